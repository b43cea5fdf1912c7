package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-cbt/internal/model"
)

// ParticipantRepository handles participant account state.
type ParticipantRepository struct {
	pool *pgxpool.Pool
}

// NewParticipantRepository creates a new ParticipantRepository.
func NewParticipantRepository(pool *pgxpool.Pool) *ParticipantRepository {
	return &ParticipantRepository{pool: pool}
}

// GetByID retrieves a participant by id.
func (r *ParticipantRepository) GetByID(ctx context.Context, id int64) (*model.Participant, error) {
	p := &model.Participant{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, is_active, updated_at FROM participants WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.IsActive, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// SetActive changes the active flag and reports the value it had before.
func (r *ParticipantRepository) SetActive(ctx context.Context, id int64, active bool) (bool, error) {
	var wasActive bool
	err := r.pool.QueryRow(ctx,
		`UPDATE participants p
		 SET is_active = $2, updated_at = NOW()
		 FROM (SELECT id, is_active FROM participants WHERE id = $1 FOR UPDATE) old
		 WHERE p.id = old.id
		 RETURNING old.is_active`,
		id, active,
	).Scan(&wasActive)
	return wasActive, err
}
