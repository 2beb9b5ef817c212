package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"remi-llm/internal/domain"
)

type MoodRepository interface {
	Create(ctx context.Context, m domain.MoodAssessment) (domain.MoodAssessment, error)
}

type PgMoodRepository struct {
	pool *pgxpool.Pool
}

func NewPgMoodRepository(pool *pgxpool.Pool) *PgMoodRepository {
	return &PgMoodRepository{pool: pool}
}

func (r *PgMoodRepository) Create(ctx context.Context, m domain.MoodAssessment) (domain.MoodAssessment, error) {
	const query = `
		INSERT INTO mood_assessments (
			participant_id, session_id, mood_rating, assessment_type, emoji, mood_label,
			trust_rating, trust_label, attitude_rating, attitude_label
		)
		VALUES ($1, NULLIF($2::text, '')::uuid, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id::text, created_at
	`
	err := r.pool.QueryRow(ctx, query,
		m.ParticipantID,
		m.SessionID,
		m.Rating,
		string(m.AssessmentType),
		m.Emoji,
		m.Label,
		m.TrustRating,
		nullIfEmpty(m.TrustLabel),
		m.AttitudeRating,
		nullIfEmpty(m.AttitudeLabel),
	).Scan(&m.ID, &m.CreatedAt)
	return m, err
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
