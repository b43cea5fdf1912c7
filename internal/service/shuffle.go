package service

import (
	"math/rand/v2"
	"sort"
	"time"

	"github.com/stemsi/exstem-cbt/internal/model"
)

// PreparedQuestion is a question as it will be presented in one attempt.
// Question.Options and Question.CorrectOption carry the presented labels;
// OriginalCorrect keeps the canonical label grading is done against.
type PreparedQuestion struct {
	Question        model.Question
	OriginalCorrect string
}

// AttemptRand returns the PRNG used to shuffle one attempt. It runs once,
// when the attempt is created; later reads replay the stored result.
func AttemptRand(scheduleID, participantID int64, startedAt time.Time) *rand.Rand {
	seed1 := uint64(scheduleID)<<32 ^ uint64(participantID)
	seed2 := uint64(startedAt.UnixNano())
	return rand.New(rand.NewPCG(seed1, seed2))
}

// PrepareQuestions orders the bank's questions and optionally permutes each
// question's options. The returned mapping is newLabel → originalLabel per
// question id and is empty when options are not shuffled.
func PrepareQuestions(questions []model.Question, shuffleQuestions, shuffleOptions bool, rng *rand.Rand) ([]PreparedQuestion, model.OptionMapping) {
	ordered := make([]model.Question, len(questions))
	copy(ordered, questions)

	if shuffleQuestions {
		fisherYates(rng, len(ordered), func(i, j int) { ordered[i], ordered[j] = ordered[j], ordered[i] })
	} else {
		sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Sequence < ordered[j].Sequence })
	}

	mapping := make(model.OptionMapping)
	prepared := make([]PreparedQuestion, 0, len(ordered))

	for _, q := range ordered {
		pq := PreparedQuestion{Question: q, OriginalCorrect: q.CorrectOption}

		if shuffleOptions && len(q.Options) > 1 && len(q.Options) <= len(model.OptionLabels) {
			slots := make([]model.Option, len(q.Options))
			copy(slots, q.Options)
			fisherYates(rng, len(slots), func(i, j int) { slots[i], slots[j] = slots[j], slots[i] })

			table := make(map[string]string, len(slots))
			relabeled := make([]model.Option, len(slots))
			for i, opt := range slots {
				label := model.OptionLabels[i]
				table[label] = opt.Label
				relabeled[i] = model.Option{Label: label, Text: opt.Text}
				if opt.Label == q.CorrectOption {
					pq.Question.CorrectOption = label
				}
			}
			pq.Question.Options = relabeled
			mapping[q.ID] = table
		} else {
			pq.Question.Options = append([]model.Option(nil), q.Options...)
		}

		prepared = append(prepared, pq)
	}

	return prepared, mapping
}

// OrderOf lists the question ids in presentation order.
func OrderOf(prepared []PreparedQuestion) model.QuestionOrder {
	order := make(model.QuestionOrder, len(prepared))
	for i, pq := range prepared {
		order[i] = pq.Question.ID
	}
	return order
}

// SnapshotKey captures the canonical key of every prepared question.
func SnapshotKey(prepared []PreparedQuestion) model.AnswerKey {
	key := make(model.AnswerKey, len(prepared))
	for _, pq := range prepared {
		key[pq.Question.ID] = pq.OriginalCorrect
	}
	return key
}

// StudentView strips the prepared questions down to what a participant may see.
func StudentView(prepared []PreparedQuestion) []model.QuestionForStudent {
	out := make([]model.QuestionForStudent, len(prepared))
	for i, pq := range prepared {
		out[i] = model.QuestionForStudent{
			ID:      pq.Question.ID,
			Number:  i + 1,
			Body:    pq.Question.Body,
			Options: pq.Question.Options,
		}
	}
	return out
}

// CanonicalView is the unshuffled, key-free rendering of a bank in sequence order.
func CanonicalView(questions []model.Question) []model.QuestionForStudent {
	prepared, _ := PrepareQuestions(questions, false, false, nil)
	return StudentView(prepared)
}

// Replay rebuilds the presented paper from the canonical view and the order
// and mapping stored on the attempt. Ids in the order that no longer exist in
// the bank are skipped. An empty order (legacy rows) falls back to the
// canonical order.
func Replay(canonical []model.QuestionForStudent, order model.QuestionOrder, mapping model.OptionMapping) []model.QuestionForStudent {
	byID := make(map[int64]model.QuestionForStudent, len(canonical))
	for _, q := range canonical {
		byID[q.ID] = q
	}

	if len(order) == 0 {
		order = make(model.QuestionOrder, len(canonical))
		for i, q := range canonical {
			order[i] = q.ID
		}
	}

	out := make([]model.QuestionForStudent, 0, len(order))
	for _, id := range order {
		q, ok := byID[id]
		if !ok {
			continue
		}

		opts := q.Options
		if table, ok := mapping[id]; ok {
			textByLabel := make(map[string]string, len(q.Options))
			for _, o := range q.Options {
				textByLabel[o.Label] = o.Text
			}
			opts = make([]model.Option, 0, len(table))
			for _, label := range model.OptionLabels {
				original, ok := table[label]
				if !ok {
					continue
				}
				opts = append(opts, model.Option{Label: label, Text: textByLabel[original]})
			}
		}

		out = append(out, model.QuestionForStudent{
			ID:      q.ID,
			Number:  len(out) + 1,
			Body:    q.Body,
			Options: opts,
		})
	}
	return out
}

// fisherYates performs an unbiased in-place shuffle of n elements.
func fisherYates(rng *rand.Rand, n int, swap func(i, j int)) {
	for i := n - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		swap(i, j)
	}
}
