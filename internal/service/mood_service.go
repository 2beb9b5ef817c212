package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"remi-llm/internal/domain"
	"remi-llm/internal/repository"
)

var (
	ErrInvalidRating         = errors.New("rating must be between 0 and 100")
	ErrInvalidAssessmentType = errors.New("assessment type must be pre or post")
)

// MoodLabel traduce el slider 0-100 a etiqueta y emoji.
func MoodLabel(rating int) (string, string) {
	switch {
	case rating < 20:
		return "Very Low", "😢"
	case rating < 40:
		return "Low", "😕"
	case rating < 60:
		return "Neutral", "😐"
	case rating < 80:
		return "Good", "🙂"
	default:
		return "Excellent", "😄"
	}
}

// TrustLabel etiqueta la confianza en la terapia asistida.
func TrustLabel(rating int) string {
	return bucketLabel(rating, "Strongly Disagree", "Disagree", "Neutral", "Agree", "Strongly Agree")
}

// AttitudeLabel etiqueta la actitud hacia la IA en salud mental.
func AttitudeLabel(rating int) string {
	return bucketLabel(rating, "Harmful", "Somewhat Harmful", "Neutral", "Somewhat Beneficial", "Beneficial")
}

func bucketLabel(rating int, labels ...string) string {
	idx := rating / 20
	if idx < 0 {
		idx = 0
	}
	if idx >= len(labels) {
		idx = len(labels) - 1
	}
	return labels[idx]
}

type RecordMoodInput struct {
	ParticipantID  string
	SessionID      string
	Rating         int
	AssessmentType domain.AssessmentType
	TrustRating    *int
	AttitudeRating *int
}

type MoodService struct {
	logger *zap.Logger
	moods  repository.MoodRepository
}

func NewMoodService(logger *zap.Logger, moods repository.MoodRepository) *MoodService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MoodService{logger: logger, moods: moods}
}

// Record deriva etiquetas y guarda la evaluación. Nunca se modifica después.
func (s *MoodService) Record(ctx context.Context, in RecordMoodInput) (domain.MoodAssessment, error) {
	if in.AssessmentType != domain.AssessmentPre && in.AssessmentType != domain.AssessmentPost {
		return domain.MoodAssessment{}, ErrInvalidAssessmentType
	}
	if !validRating(in.Rating) {
		return domain.MoodAssessment{}, ErrInvalidRating
	}
	label, emoji := MoodLabel(in.Rating)
	m := domain.MoodAssessment{
		ParticipantID:  in.ParticipantID,
		SessionID:      in.SessionID,
		Rating:         in.Rating,
		AssessmentType: in.AssessmentType,
		Label:          label,
		Emoji:          emoji,
	}
	if in.TrustRating != nil {
		if !validRating(*in.TrustRating) {
			return domain.MoodAssessment{}, ErrInvalidRating
		}
		m.TrustRating = in.TrustRating
		m.TrustLabel = TrustLabel(*in.TrustRating)
	}
	if in.AttitudeRating != nil {
		if !validRating(*in.AttitudeRating) {
			return domain.MoodAssessment{}, ErrInvalidRating
		}
		m.AttitudeRating = in.AttitudeRating
		m.AttitudeLabel = AttitudeLabel(*in.AttitudeRating)
	}

	saved, err := s.moods.Create(ctx, m)
	if err != nil {
		s.logger.Error("mood assessment insert failed",
			zap.String("participant_id", in.ParticipantID),
			zap.String("type", string(in.AssessmentType)),
			zap.Error(err),
		)
		return m, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	return saved, nil
}

func validRating(r int) bool {
	return r >= 0 && r <= 100
}
