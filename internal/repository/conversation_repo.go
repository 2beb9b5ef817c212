package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"remi-llm/internal/domain"
)

// ConversationRepository guarda las transcripciones de sesiones terminadas.
type ConversationRepository interface {
	Create(ctx context.Context, record domain.ConversationRecord) (string, error)
	CountByParticipant(ctx context.Context, participantID string) (int, error)
	LatestTranscript(ctx context.Context, participantID string) (string, error)
}

type PgConversationRepository struct {
	pool *pgxpool.Pool
}

func NewPgConversationRepository(pool *pgxpool.Pool) *PgConversationRepository {
	return &PgConversationRepository{pool: pool}
}

// Create inserta la fila y devuelve el id generado por la base.
func (r *PgConversationRepository) Create(ctx context.Context, record domain.ConversationRecord) (string, error) {
	const query = `
		INSERT INTO conversations (participant_id, transcript, summary, duration, turns, mode, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id::text
	`
	var id string
	err := r.pool.QueryRow(ctx, query,
		record.ParticipantID,
		record.Transcript,
		record.Summary,
		record.DurationSeconds,
		record.Turns,
		string(record.Mode),
		record.Timestamp,
	).Scan(&id)
	return id, err
}

func (r *PgConversationRepository) CountByParticipant(ctx context.Context, participantID string) (int, error) {
	const query = `
		SELECT COUNT(*)
		FROM conversations
		WHERE participant_id = $1
	`
	var n int
	err := r.pool.QueryRow(ctx, query, participantID).Scan(&n)
	return n, err
}

// LatestTranscript devuelve "" si el participante no tiene sesiones previas.
func (r *PgConversationRepository) LatestTranscript(ctx context.Context, participantID string) (string, error) {
	const query = `
		SELECT transcript
		FROM conversations
		WHERE participant_id = $1
		ORDER BY timestamp DESC
		LIMIT 1
	`
	var transcript string
	err := r.pool.QueryRow(ctx, query, participantID).Scan(&transcript)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return transcript, err
}
