package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-cbt/internal/config"
	"github.com/stemsi/exstem-cbt/internal/model"
)

var errStoreDown = errors.New("store unavailable")

// wibAt builds an instant on the sample exam day in WIB.
func wibAt(hour, minute int) time.Time {
	return time.Date(2025, 4, 21, hour, minute, 0, 0, wib)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func testPolicy() config.ExamPolicy {
	return config.ExamPolicy{
		TZOffsetHours:        7,
		PreStartGrace:        5 * time.Minute,
		DefaultMaxViolations: 3,
		SubmitKeySource:      config.KeySourceSnapshot,
	}
}

func sampleSchedule() *model.ExamSchedule {
	return &model.ExamSchedule{
		ID:              7,
		Name:            "Matematika XI",
		QuestionBankID:  1,
		ExamDate:        time.Date(2025, 4, 21, 0, 0, 0, 0, time.UTC),
		StartTime:       "10:00",
		DurationMinutes: 90,
		ShowScore:       true,
		IsActive:        true,
	}
}

// ─── Schedules ──────────────────────────────────────────────────────

type fakeSchedules struct {
	mu        sync.Mutex
	schedules map[int64]*model.ExamSchedule
	roster    map[[2]int64]bool
}

func newFakeSchedules(schedules ...*model.ExamSchedule) *fakeSchedules {
	f := &fakeSchedules{schedules: map[int64]*model.ExamSchedule{}, roster: map[[2]int64]bool{}}
	for _, s := range schedules {
		f.schedules[s.ID] = s
	}
	return f
}

func (f *fakeSchedules) register(scheduleID int64, participantIDs ...int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range participantIDs {
		f.roster[[2]int64{scheduleID, p}] = true
	}
}

func (f *fakeSchedules) GetByID(_ context.Context, id int64) (*model.ExamSchedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.schedules[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSchedules) IsParticipantRegistered(_ context.Context, scheduleID, participantID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.roster[[2]int64{scheduleID, participantID}], nil
}

// ─── Questions ──────────────────────────────────────────────────────

type fakeQuestions struct {
	mu       sync.Mutex
	banks    map[int64][]model.Question
	keyCalls int
}

func newFakeQuestions(bankID int64, questions []model.Question) *fakeQuestions {
	return &fakeQuestions{banks: map[int64][]model.Question{bankID: questions}}
}

func (f *fakeQuestions) setCorrect(bankID, questionID int64, label string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.banks[bankID] {
		if f.banks[bankID][i].ID == questionID {
			f.banks[bankID][i].CorrectOption = label
		}
	}
}

func (f *fakeQuestions) add(bankID int64, q model.Question) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.banks[bankID] = append(f.banks[bankID], q)
}

func (f *fakeQuestions) ListByBank(_ context.Context, bankID int64) ([]model.Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	qs := append([]model.Question(nil), f.banks[bankID]...)
	sort.SliceStable(qs, func(i, j int) bool { return qs[i].Sequence < qs[j].Sequence })
	return qs, nil
}

func (f *fakeQuestions) AnswerKeyForBank(_ context.Context, bankID int64) (model.AnswerKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keyCalls++
	key := model.AnswerKey{}
	for _, q := range f.banks[bankID] {
		key[q.ID] = q.CorrectOption
	}
	return key, nil
}

// ─── Attempts ───────────────────────────────────────────────────────

// fakeAttempts mirrors the conditional-update semantics of AttemptRepository.
type fakeAttempts struct {
	mu       sync.Mutex
	nextID   int64
	attempts map[int64]*model.ExamAttempt
	resets   []int64

	// beforeCreate runs inside Create before the uniqueness check.
	beforeCreate func(f *fakeAttempts)
	// failReset makes ResetViolations fail for the given attempt ids.
	failReset map[int64]bool
}

func newFakeAttempts() *fakeAttempts {
	return &fakeAttempts{nextID: 100, attempts: map[int64]*model.ExamAttempt{}, failReset: map[int64]bool{}}
}

func cloneAttempt(a *model.ExamAttempt) *model.ExamAttempt {
	cp := *a
	cp.Answers = model.AnswerMap{}
	for k, v := range a.Answers {
		cp.Answers[k] = v
	}
	return &cp
}

// put stores a ready-made attempt and returns its id.
func (f *fakeAttempts) put(a model.ExamAttempt) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.insertLocked(&a)
}

func (f *fakeAttempts) insertLocked(a *model.ExamAttempt) int64 {
	f.nextID++
	a.ID = f.nextID
	if a.Status == "" {
		a.Status = model.AttemptStatusInProgress
	}
	f.attempts[a.ID] = cloneAttempt(a)
	return a.ID
}

func (f *fakeAttempts) get(id int64) *model.ExamAttempt {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.attempts[id]; ok {
		return cloneAttempt(a)
	}
	return nil
}

func (f *fakeAttempts) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.attempts)
}

func (f *fakeAttempts) GetByID(_ context.Context, id int64) (*model.ExamAttempt, error) {
	if a := f.get(id); a != nil {
		return a, nil
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeAttempts) GetByScheduleAndParticipant(_ context.Context, scheduleID, participantID int64) (*model.ExamAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.attempts {
		if a.ScheduleID == scheduleID && a.ParticipantID == participantID {
			return cloneAttempt(a), nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeAttempts) Create(_ context.Context, a *model.ExamAttempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.beforeCreate != nil {
		hook := f.beforeCreate
		f.beforeCreate = nil
		hook(f)
	}
	for _, existing := range f.attempts {
		if existing.ScheduleID == a.ScheduleID && existing.ParticipantID == a.ParticipantID {
			return pgx.ErrNoRows
		}
	}
	a.UpdatedAt = a.StartedAt
	f.insertLocked(a)
	return nil
}

func (f *fakeAttempts) SaveAnswers(_ context.Context, id, scheduleID, participantID int64, answers model.AnswerMap, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.attempts[id]
	if !ok || a.ScheduleID != scheduleID || a.ParticipantID != participantID || !a.Status.IsActive() {
		return pgx.ErrNoRows
	}
	a.Answers = answers
	a.UpdatedAt = at
	return nil
}

func (f *fakeAttempts) Submit(_ context.Context, id int64, answers model.AnswerMap, score, maxScore int, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.attempts[id]
	if !ok || !a.Status.IsActive() {
		return pgx.ErrNoRows
	}
	a.Answers = answers
	a.Score = &score
	a.MaxScore = &maxScore
	a.Status = model.AttemptStatusSubmitted
	a.FinishedAt = &at
	a.UpdatedAt = at
	return nil
}

func (f *fakeAttempts) UpdateScore(_ context.Context, id int64, score, maxScore int, key model.AnswerKey, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.attempts[id]
	if !ok || a.Status != model.AttemptStatusSubmitted {
		return pgx.ErrNoRows
	}
	a.Score = &score
	a.MaxScore = &maxScore
	if key != nil {
		a.AnswerKey = key
	}
	a.UpdatedAt = at
	return nil
}

func (f *fakeAttempts) SetViolationCount(_ context.Context, id int64, count int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.attempts[id]
	if !ok {
		return pgx.ErrNoRows
	}
	a.ViolationCount = count
	return nil
}

func (f *fakeAttempts) UpdateSession(_ context.Context, id int64, sessionID, ip string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.attempts[id]
	if !ok {
		return pgx.ErrNoRows
	}
	a.SessionID = &sessionID
	if ip != "" {
		a.ClientIP = &ip
	} else {
		a.ClientIP = nil
	}
	return nil
}

func (f *fakeAttempts) ResetViolations(_ context.Context, id, _ int64, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failReset[id] {
		return errStoreDown
	}
	a, ok := f.attempts[id]
	if !ok {
		return pgx.ErrNoRows
	}
	a.ViolationCount = 0
	f.resets = append(f.resets, id)
	return nil
}

func (f *fakeAttempts) ListByParticipant(_ context.Context, participantID int64) ([]model.ExamAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.ExamAttempt
	for _, a := range f.attempts {
		if a.ParticipantID == participantID {
			out = append(out, *cloneAttempt(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeAttempts) ListInProgress(_ context.Context) ([]model.ExamAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.ExamAttempt
	for _, a := range f.attempts {
		if a.Status.IsActive() {
			out = append(out, *cloneAttempt(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ─── Activity ───────────────────────────────────────────────────────

type fakeActivity struct {
	mu        sync.Mutex
	entries   []model.ActivityLogEntry
	counts    map[int64]model.ActivityCounts
	countsErr error
}

func (f *fakeActivity) Insert(_ context.Context, e *model.ActivityLogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e.ID = int64(len(f.entries) + 1)
	f.entries = append(f.entries, *e)
	return nil
}

func (f *fakeActivity) CountsForActiveAttempts(_ context.Context, _ int64) (map[int64]model.ActivityCounts, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts, f.countsErr
}

func (f *fakeActivity) ListByAttempt(_ context.Context, attemptID int64) ([]model.ActivityLogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.ActivityLogEntry
	for _, e := range f.entries {
		if e.AttemptID == attemptID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeActivity) types() []model.ActivityType {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.ActivityType, len(f.entries))
	for i, e := range f.entries {
		out[i] = e.Type
	}
	return out
}

type fakeQueue struct {
	mu      sync.Mutex
	pushed  []model.ActivityLogEntry
	failing bool
}

func (q *fakeQueue) Push(_ context.Context, e model.ActivityLogEntry) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.failing {
		return errStoreDown
	}
	q.pushed = append(q.pushed, e)
	return nil
}

// ─── Participants / monitor / events ────────────────────────────────

type fakeParticipants struct {
	mu     sync.Mutex
	active map[int64]bool
}

func (f *fakeParticipants) SetActive(_ context.Context, id int64, active bool) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	was, ok := f.active[id]
	if !ok {
		return false, pgx.ErrNoRows
	}
	f.active[id] = active
	return was, nil
}

type fakeMonitor struct {
	attempts []model.ActiveAttempt
	err      error
}

func (f *fakeMonitor) ListActiveAttempts(_ context.Context, _ int64) ([]model.ActiveAttempt, error) {
	return f.attempts, f.err
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.MonitorEvent
}

func (p *recordingPublisher) Publish(_ context.Context, ev model.MonitorEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

// ─── Fixture ────────────────────────────────────────────────────────

type fixture struct {
	schedules *fakeSchedules
	questions *fakeQuestions
	attempts  *fakeAttempts
	activity  *fakeActivity
	events    *recordingPublisher
	recorder  *ActivityRecorder

	sessions   *ExamSessionService
	grading    *GradingService
	proctoring *ProctoringService
}

func newFixture(now time.Time, schedule *model.ExamSchedule) *fixture {
	return newFixtureWithPolicy(now, schedule, testPolicy())
}

func newFixtureWithPolicy(now time.Time, schedule *model.ExamSchedule, policy config.ExamPolicy) *fixture {
	log := zerolog.Nop()
	f := &fixture{
		schedules: newFakeSchedules(schedule),
		questions: newFakeQuestions(schedule.QuestionBankID, sampleBank()),
		attempts:  newFakeAttempts(),
		activity:  &fakeActivity{},
		events:    &recordingPublisher{},
	}
	clock := fixedClock(now)

	f.recorder = NewActivityRecorder(nil, f.activity, log)
	f.recorder.now = clock

	f.sessions = NewExamSessionService(f.schedules, f.questions, f.attempts, f.recorder, nil, f.events, policy, log)
	f.sessions.now = clock

	f.grading = NewGradingService(f.schedules, f.questions, f.attempts, f.recorder, f.events, policy, log)
	f.grading.now = clock

	f.proctoring = NewProctoringService(f.schedules, f.attempts, f.recorder, f.grading, f.events, policy, log)
	f.proctoring.now = clock

	return f
}

func (f *fixture) setNow(now time.Time) {
	clock := fixedClock(now)
	f.sessions.now = clock
	f.grading.now = clock
	f.proctoring.now = clock
	f.recorder.now = clock
}
