package model

import "time"

// ExamSchedule is one scheduled sitting of a question bank (jadwal ujian).
type ExamSchedule struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	QuestionBankID int64  `json:"question_bank_id"`
	// ExamDate is a civil date; only its year, month and day are meaningful.
	ExamDate time.Time `json:"exam_date"`
	// StartTime is the time of day in "15:04" form.
	StartTime       string `json:"start_time"`
	DurationMinutes int    `json:"duration_minutes"`
	MinWorkMinutes  *int   `json:"min_work_minutes,omitempty"`

	ShuffleQuestions        bool `json:"shuffle_questions"`
	ShuffleOptions          bool `json:"shuffle_options"`
	ShowScore               bool `json:"show_score"`
	ResetViolationsOnEnable bool `json:"reset_violations_on_enable"`
	AutoSubmitOnViolation   bool `json:"auto_submit_on_violation"`
	RequireProctorBrowser   bool `json:"require_proctor_browser"`
	// MaxViolations of zero means "use the configured default".
	MaxViolations int  `json:"max_violations"`
	IsActive      bool `json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ScheduleSummary is the part of a schedule a participant sees during the exam.
type ScheduleSummary struct {
	ID                    int64  `json:"id"`
	Name                  string `json:"name"`
	DurationMinutes       int    `json:"duration_minutes"`
	MinWorkMinutes        *int   `json:"min_work_minutes,omitempty"`
	ShowScore             bool   `json:"show_score"`
	RequireProctorBrowser bool   `json:"require_proctor_browser"`
}

// Summary trims the schedule to its participant-facing fields.
func (s *ExamSchedule) Summary() ScheduleSummary {
	return ScheduleSummary{
		ID:                    s.ID,
		Name:                  s.Name,
		DurationMinutes:       s.DurationMinutes,
		MinWorkMinutes:        s.MinWorkMinutes,
		ShowScore:             s.ShowScore,
		RequireProctorBrowser: s.RequireProctorBrowser,
	}
}
