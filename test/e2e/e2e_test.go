//go:build e2e
// +build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
	"github.com/stemsi/exstem-cbt/internal/config"
	"github.com/stemsi/exstem-cbt/internal/model"
	"github.com/stemsi/exstem-cbt/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const defaultBaseURL = "http://localhost:8080/api/v1"

var (
	baseURL       string
	adminToken    string
	studentToken  string
	participantID int64
	scheduleID    int64
	questionIDs   []int64
)

func TestMain(m *testing.M) {
	_ = godotenv.Load("../../.env")

	baseURL = os.Getenv("BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	cfg := config.Load()
	if err := seed(cfg); err != nil {
		fmt.Printf("Setup failed: %v\n", err)
		os.Exit(1)
	}

	auth := service.NewAuthService(cfg)
	var err error
	if studentToken, err = auth.IssueToken(service.TokenTypeStudent, participantID, 0, nil); err != nil {
		fmt.Printf("Issue student token: %v\n", err)
		os.Exit(1)
	}
	perms := make([]string, 0, len(model.AllPermissions))
	for _, p := range model.AllPermissions {
		perms = append(perms, string(p))
	}
	if adminToken, err = auth.IssueToken(service.TokenTypeAdmin, 1, 1, perms); err != nil {
		fmt.Printf("Issue admin token: %v\n", err)
		os.Exit(1)
	}

	os.Exit(m.Run())
}

// seed creates one participant registered for a schedule that opened ten minutes ago.
func seed(cfg *config.Config) error {
	ctx := context.Background()
	conn, err := pgx.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer conn.Close(ctx)

	for _, table := range []string{"activity_logs", "exam_attempts", "schedule_participants", "exam_schedules", "questions", "question_banks", "participants"} {
		if _, err := conn.Exec(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("cleanup %s: %w", table, err)
		}
	}

	if err := conn.QueryRow(ctx, `INSERT INTO participants (name) VALUES ('E2E Peserta') RETURNING id`).Scan(&participantID); err != nil {
		return fmt.Errorf("insert participant: %w", err)
	}

	var bankID int64
	if err := conn.QueryRow(ctx, `INSERT INTO question_banks (name) VALUES ('E2E Bank') RETURNING id`).Scan(&bankID); err != nil {
		return fmt.Errorf("insert bank: %w", err)
	}

	questionIDs = questionIDs[:0]
	for i, correct := range []string{"A", "B", "C"} {
		var id int64
		err := conn.QueryRow(ctx, `
			INSERT INTO questions (bank_id, body, option_a, option_b, option_c, option_d, correct_option, sequence)
			VALUES ($1, $2, 'a', 'b', 'c', 'd', $3, $4) RETURNING id`,
			bankID, fmt.Sprintf("Soal %d", i+1), correct, i+1,
		).Scan(&id)
		if err != nil {
			return fmt.Errorf("insert question: %w", err)
		}
		questionIDs = append(questionIDs, id)
	}

	opened := time.Now().In(cfg.Exam.Location()).Add(-10 * time.Minute)
	err = conn.QueryRow(ctx, `
		INSERT INTO exam_schedules (name, question_bank_id, exam_date, start_time, duration_minutes, show_score)
		VALUES ('E2E Ujian', $1, $2, $3, 90, TRUE) RETURNING id`,
		bankID, opened.Format("2006-01-02"), opened.Format("15:04"),
	).Scan(&scheduleID)
	if err != nil {
		return fmt.Errorf("insert schedule: %w", err)
	}

	_, err = conn.Exec(ctx, `INSERT INTO schedule_participants (schedule_id, participant_id) VALUES ($1, $2)`, scheduleID, participantID)
	return err
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code string `json:"code"`
	} `json:"error"`
}

func TestExamFlow(t *testing.T) {
	var attemptID int64

	t.Run("Start", func(t *testing.T) {
		status, env := call(t, http.MethodPost, fmt.Sprintf("/exam/%d/start", scheduleID), model.StartExamRequest{ParticipantID: participantID}, studentToken)
		require.Equal(t, http.StatusOK, status)

		var paper model.ExamPaper
		require.NoError(t, json.Unmarshal(env.Data, &paper))
		attemptID = paper.AttemptID
		assert.Len(t, paper.Questions, 3)
		assert.False(t, paper.Resumed)
	})

	t.Run("ResumeReturnsSameAttempt", func(t *testing.T) {
		status, env := call(t, http.MethodPost, fmt.Sprintf("/exam/%d/start", scheduleID), model.StartExamRequest{ParticipantID: participantID}, studentToken)
		require.Equal(t, http.StatusOK, status)

		var paper model.ExamPaper
		require.NoError(t, json.Unmarshal(env.Data, &paper))
		assert.Equal(t, attemptID, paper.AttemptID)
		assert.True(t, paper.Resumed)
	})

	t.Run("SaveProgress", func(t *testing.T) {
		req := model.SaveProgressRequest{
			ParticipantID: participantID,
			AttemptID:     attemptID,
			Answers:       model.AnswerMap{questionIDs[0]: "A", questionIDs[1]: "D"},
		}
		status, _ := call(t, http.MethodPost, fmt.Sprintf("/exam/%d/save-progress", scheduleID), req, studentToken)
		assert.Equal(t, http.StatusOK, status)
	})

	t.Run("LogActivity", func(t *testing.T) {
		count := 1
		req := model.LogActivityRequest{AttemptID: attemptID, ParticipantID: participantID, ActivityType: model.ActivityTabBlur, Count: &count}
		status, _ := call(t, http.MethodPost, "/proctoring/log-activity", req, studentToken)
		assert.Equal(t, http.StatusCreated, status)
	})

	t.Run("MonitorShowsAttempt", func(t *testing.T) {
		status, env := call(t, http.MethodGet, fmt.Sprintf("/admin/monitoring/active-exams?schedule_id=%d", scheduleID), nil, adminToken)
		require.Equal(t, http.StatusOK, status)
		assert.Contains(t, string(env.Data), fmt.Sprintf(`"attempt_id":%d`, attemptID))
	})

	t.Run("Submit", func(t *testing.T) {
		req := model.SubmitExamRequest{ParticipantID: participantID, AttemptID: attemptID}
		status, env := call(t, http.MethodPost, fmt.Sprintf("/exam/%d/submit", scheduleID), req, studentToken)
		require.Equal(t, http.StatusOK, status)

		var result model.ScoreResult
		require.NoError(t, json.Unmarshal(env.Data, &result))
		require.NotNil(t, result.Score)
		assert.Equal(t, 1, *result.Score)
		assert.Equal(t, 3, *result.MaxScore)
	})

	t.Run("SecondSubmitRejected", func(t *testing.T) {
		req := model.SubmitExamRequest{ParticipantID: participantID, AttemptID: attemptID}
		status, env := call(t, http.MethodPost, fmt.Sprintf("/exam/%d/submit", scheduleID), req, studentToken)
		assert.Equal(t, http.StatusBadRequest, status)
		require.NotNil(t, env.Error)
		assert.Equal(t, "ALREADY_SUBMITTED", env.Error.Code)
	})

	t.Run("RestartRejected", func(t *testing.T) {
		status, env := call(t, http.MethodPost, fmt.Sprintf("/exam/%d/start", scheduleID), model.StartExamRequest{ParticipantID: participantID}, studentToken)
		assert.Equal(t, http.StatusConflict, status)
		require.NotNil(t, env.Error)
		assert.Equal(t, "ALREADY_COMPLETED", env.Error.Code)
	})

	t.Run("Recalculate", func(t *testing.T) {
		req := model.RecalculateRequest{AttemptIDs: []int64{attemptID}}
		status, env := call(t, http.MethodPost, "/admin/hasil-ujian/recalculate", req, adminToken)
		require.Equal(t, http.StatusOK, status)
		assert.Contains(t, string(env.Data), `"total_processed":1`)
	})
}

func call(t *testing.T, method, path string, body any, token string) (int, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, baseURL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	raw, _ := io.ReadAll(resp.Body)
	require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	return resp.StatusCode, env
}
