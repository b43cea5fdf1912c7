package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stemsi/exstem-cbt/internal/model"
)

func TestScore(t *testing.T) {
	key := model.AnswerKey{1: "B", 2: "C"}

	tests := []struct {
		name        string
		answers     model.AnswerMap
		mapping     model.OptionMapping
		shuffle     bool
		wantCorrect int
	}{
		{
			name:        "remapped answer is graded on the original label",
			answers:     model.AnswerMap{1: "A", 2: "C"},
			mapping:     model.OptionMapping{1: {"A": "B", "B": "A", "C": "C", "D": "D"}},
			shuffle:     true,
			wantCorrect: 2,
		},
		{
			name:        "mapping ignored when shuffle disabled",
			answers:     model.AnswerMap{1: "A", 2: "C"},
			mapping:     model.OptionMapping{1: {"A": "B"}},
			shuffle:     false,
			wantCorrect: 1,
		},
		{
			name:        "question without a mapping entry compares directly",
			answers:     model.AnswerMap{1: "B", 2: "C"},
			mapping:     model.OptionMapping{},
			shuffle:     true,
			wantCorrect: 2,
		},
		{
			name:        "unanswered and empty answers score zero",
			answers:     model.AnswerMap{2: ""},
			wantCorrect: 0,
		},
		{
			name:        "answers outside the key are ignored",
			answers:     model.AnswerMap{1: "B", 77: "A"},
			wantCorrect: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			correct, total := Score(key, tt.answers, tt.mapping, tt.shuffle)
			assert.Equal(t, tt.wantCorrect, correct)
			assert.Equal(t, 2, total)
			assert.LessOrEqual(t, correct, total)
		})
	}
}

func TestScoreEmptyKey(t *testing.T) {
	correct, total := Score(nil, model.AnswerMap{1: "A"}, nil, false)
	assert.Zero(t, correct)
	assert.Zero(t, total)
}
