package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-cbt/internal/model"
)

// QuestionRepository handles question data access.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// ListByBank retrieves all questions of a bank, ordered by sequence number.
func (r *QuestionRepository) ListByBank(ctx context.Context, bankID int64) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, bank_id, body, option_a, option_b, option_c, option_d, option_e,
		        correct_option, COALESCE(explanation, ''), sequence
		 FROM questions WHERE bank_id = $1
		 ORDER BY sequence, id`, bankID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var (
			q          model.Question
			a, b, c, d string
			e          *string
		)
		if err := rows.Scan(&q.ID, &q.BankID, &q.Body, &a, &b, &c, &d, &e,
			&q.CorrectOption, &q.Explanation, &q.Sequence); err != nil {
			return nil, err
		}
		q.Options = model.OptionsFromColumns(a, b, c, d, e)
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// AnswerKeyForBank returns the current canonical key of every question in the bank.
func (r *QuestionRepository) AnswerKeyForBank(ctx context.Context, bankID int64) (model.AnswerKey, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, correct_option FROM questions WHERE bank_id = $1`, bankID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	key := make(model.AnswerKey)
	for rows.Next() {
		var (
			id    int64
			label string
		)
		if err := rows.Scan(&id, &label); err != nil {
			return nil, err
		}
		key[id] = label
	}
	return key, rows.Err()
}
