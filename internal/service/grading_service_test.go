package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-cbt/internal/model"
)

func inProgressAttempt(answers model.AnswerMap, key model.AnswerKey) model.ExamAttempt {
	return model.ExamAttempt{
		ScheduleID:    7,
		ParticipantID: participantID,
		StartedAt:     wibAt(10, 5),
		Answers:       answers,
		QuestionOrder: model.QuestionOrder{10, 20, 30},
		AnswerKey:     key,
		Status:        model.AttemptStatusInProgress,
	}
}

func TestForceSubmitPrefersSnapshot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(wibAt(10, 30), sampleSchedule())

	// Snapshot says 10 is A; the live bank says B.
	id := f.attempts.put(inProgressAttempt(model.AnswerMap{10: "A", 20: "D"}, model.AnswerKey{10: "A", 20: "D", 30: "C"}))

	result, err := f.grading.ForceSubmit(ctx, id, 7)
	require.NoError(t, err)
	require.NotNil(t, result.Score)
	assert.Equal(t, 2, *result.Score)
	assert.Equal(t, 3, *result.MaxScore)

	stored := f.attempts.get(id)
	assert.Equal(t, model.AttemptStatusSubmitted, stored.Status)
	assert.Equal(t, 2, *stored.Score)
	assert.Zero(t, f.questions.keyCalls)
	assert.Contains(t, f.events.types(), model.EventAttemptForced)
}

func TestForceSubmitWithoutSnapshotUsesLiveKey(t *testing.T) {
	ctx := context.Background()
	f := newFixture(wibAt(10, 30), sampleSchedule())
	id := f.attempts.put(inProgressAttempt(model.AnswerMap{10: "B", 30: "C"}, nil))

	result, err := f.grading.ForceSubmit(ctx, id, 7)
	require.NoError(t, err)
	assert.Equal(t, 2, *result.Score)
	assert.Equal(t, 1, f.questions.keyCalls)
}

func TestForceSubmitAlwaysReturnsNumbers(t *testing.T) {
	s := sampleSchedule()
	s.ShowScore = false
	f := newFixture(wibAt(10, 30), s)
	id := f.attempts.put(inProgressAttempt(model.AnswerMap{10: "B"}, model.AnswerKey{10: "B", 20: "D", 30: "C"}))

	result, err := f.grading.ForceSubmit(context.Background(), id, 7)
	require.NoError(t, err)
	assert.False(t, result.ShowScore)
	require.NotNil(t, result.Score)
	assert.Equal(t, 1, *result.Score)
}

func TestForceSubmitRejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(wibAt(10, 30), sampleSchedule())
	id := f.attempts.put(inProgressAttempt(nil, model.AnswerKey{10: "B"}))

	_, err := f.grading.ForceSubmit(ctx, 999, 7)
	assert.ErrorIs(t, err, ErrAttemptNotFound)

	_, err = f.grading.ForceSubmit(ctx, id, 8)
	assert.ErrorIs(t, err, ErrAttemptNotFound)

	_, err = f.grading.ForceSubmit(ctx, id, 7)
	require.NoError(t, err)

	_, err = f.grading.ForceSubmit(ctx, id, 7)
	assert.ErrorIs(t, err, ErrAlreadySubmitted)
}

func TestRecalculate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(wibAt(12, 0), sampleSchedule())

	submitted := inProgressAttempt(model.AnswerMap{10: "A", 20: "D", 30: "C"}, model.AnswerKey{10: "B", 20: "D", 30: "C"})
	submitted.Status = model.AttemptStatusSubmitted
	score, maxScore := 2, 3
	submitted.Score, submitted.MaxScore = &score, &maxScore
	finished := wibAt(11, 0)
	submitted.FinishedAt = &finished
	submittedID := f.attempts.put(submitted)

	other := inProgressAttempt(nil, nil)
	other.ParticipantID = 43
	activeID := f.attempts.put(other)

	// The bank key for question 10 was wrong and gets fixed to A.
	f.questions.setCorrect(1, 10, "A")

	results := f.grading.Recalculate(ctx, []int64{submittedID, activeID, 999}, false)
	require.Len(t, results, 3)

	assert.True(t, results[0].Success)
	assert.Equal(t, 3, *results[0].Score)
	assert.Equal(t, 3, *results[0].MaxScore)

	assert.False(t, results[1].Success)
	assert.Equal(t, ErrAttemptNotSubmitted.Error(), results[1].Error)

	assert.False(t, results[2].Success)
	assert.Equal(t, ErrAttemptNotFound.Error(), results[2].Error)

	stored := f.attempts.get(submittedID)
	assert.Equal(t, 3, *stored.Score)
	assert.Equal(t, model.AttemptStatusSubmitted, stored.Status)
	assert.True(t, stored.FinishedAt.Equal(finished), "finish time untouched")
	assert.Equal(t, "B", stored.AnswerKey[10], "snapshot kept unless asked")
	assert.True(t, f.attempts.get(activeID).Status.IsActive())

	again := f.grading.Recalculate(ctx, []int64{submittedID}, false)
	assert.Equal(t, results[0], again[0], "recalculation is repeatable")

	f.grading.Recalculate(ctx, []int64{submittedID}, true)
	assert.Equal(t, "A", f.attempts.get(submittedID).AnswerKey[10])
}

func TestRecalculateCountsQuestionsAddedAfterStart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(wibAt(12, 0), sampleSchedule())

	a := inProgressAttempt(model.AnswerMap{10: "B", 20: "D", 30: "C"}, model.AnswerKey{10: "B", 20: "D", 30: "C"})
	a.Status = model.AttemptStatusSubmitted
	id := f.attempts.put(a)

	f.questions.add(1, model.Question{ID: 40, BankID: 1, CorrectOption: "A", Sequence: 4})

	results := f.grading.Recalculate(ctx, []int64{id}, true)
	require.Len(t, results, 1)
	require.True(t, results[0].Success)
	assert.Equal(t, 3, *results[0].Score)
	assert.Equal(t, 4, *results[0].MaxScore, "max score follows the current bank size")

	stored := f.attempts.get(id)
	assert.Equal(t, 4, *stored.MaxScore)
	assert.Len(t, stored.AnswerKey, 4)
}

func TestForceSubmitLiveKeyUsesWholeBank(t *testing.T) {
	f := newFixture(wibAt(10, 30), sampleSchedule())
	id := f.attempts.put(inProgressAttempt(model.AnswerMap{10: "B"}, nil))
	f.questions.add(1, model.Question{ID: 40, BankID: 1, CorrectOption: "A", Sequence: 4})

	result, err := f.grading.ForceSubmit(context.Background(), id, 7)
	require.NoError(t, err)
	assert.Equal(t, 4, *result.MaxScore)
}

func TestRecalculateLoadsLiveKeyOncePerBank(t *testing.T) {
	f := newFixture(wibAt(12, 0), sampleSchedule())

	var ids []int64
	for p := int64(1); p <= 5; p++ {
		a := inProgressAttempt(model.AnswerMap{10: "B"}, nil)
		a.ParticipantID = p
		a.Status = model.AttemptStatusSubmitted
		ids = append(ids, f.attempts.put(a))
	}

	results := f.grading.Recalculate(context.Background(), ids, false)
	for _, r := range results {
		assert.True(t, r.Success)
	}
	assert.Equal(t, 1, f.questions.keyCalls)
}

func TestSweepExpired(t *testing.T) {
	ctx := context.Background()
	// The exam ends 11:30; with two minutes of grace the sweep acts after 11:32.
	f := newFixture(wibAt(11, 31), sampleSchedule())

	id := f.attempts.put(inProgressAttempt(model.AnswerMap{10: "B"}, model.AnswerKey{10: "B", 20: "D", 30: "C"}))

	res, err := f.grading.SweepExpired(ctx, 2*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Checked: 1}, res)
	assert.True(t, f.attempts.get(id).Status.IsActive())

	f.setNow(wibAt(11, 33))
	res, err = f.grading.SweepExpired(ctx, 2*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Checked: 1, Expired: 1, Submitted: 1}, res)

	stored := f.attempts.get(id)
	assert.Equal(t, model.AttemptStatusSubmitted, stored.Status)
	assert.Equal(t, 1, *stored.Score)
	assert.Equal(t, []model.ActivityType{model.ActivityExpirySubmitted}, f.activity.types())

	res, err = f.grading.SweepExpired(ctx, 2*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{}, res)
}

func TestSweepSkipsUnknownSchedule(t *testing.T) {
	f := newFixture(wibAt(23, 0), sampleSchedule())
	a := inProgressAttempt(nil, nil)
	a.ScheduleID = 404
	f.attempts.put(a)

	res, err := f.grading.SweepExpired(context.Background(), time.Minute)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Checked: 1}, res)
}
