package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"remi-llm/internal/domain"
)

// ParticipantRepository define el contrato de persistencia para participantes.
type ParticipantRepository interface {
	Upsert(ctx context.Context, participantID string) (domain.Participant, error)
}

// PgParticipantRepository implementa ParticipantRepository usando pgxpool.
type PgParticipantRepository struct {
	pool *pgxpool.Pool
}

func NewPgParticipantRepository(pool *pgxpool.Pool) *PgParticipantRepository {
	return &PgParticipantRepository{pool: pool}
}

// Upsert es idempotente: registrar dos veces el mismo ID devuelve la fila original.
func (r *PgParticipantRepository) Upsert(ctx context.Context, participantID string) (domain.Participant, error) {
	const query = `
		INSERT INTO participants (participant_id)
		VALUES ($1)
		ON CONFLICT (participant_id) DO UPDATE SET participant_id = EXCLUDED.participant_id
		RETURNING participant_id, created_at
	`
	var p domain.Participant
	err := r.pool.QueryRow(ctx, query, participantID).Scan(&p.ParticipantID, &p.CreatedAt)
	return p, err
}
