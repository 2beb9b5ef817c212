package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"remi-llm/internal/domain"
	"remi-llm/internal/repository"
)

// Iniciales (2+ letras), espacio opcional y edad de dos dígitos: "GK82", "abc 71".
var participantIDPattern = regexp.MustCompile(`^[A-Za-z]{2,}\s?[0-9]{2}$`)

var (
	ErrInvalidParticipantID = errors.New("invalid participant id")
	ErrTooManyAttempts      = errors.New("too many registration attempts")
)

// CanonicalParticipantID valida el ID y lo normaliza a mayúsculas sin espacios.
func CanonicalParticipantID(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if !participantIDPattern.MatchString(trimmed) {
		return "", ErrInvalidParticipantID
	}
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToUpper(r)
	}, trimmed), nil
}

// ParticipantService registra participantes.
type ParticipantService struct {
	logger       *zap.Logger
	participants repository.ParticipantRepository
	limiter      RateLimiter
}

func NewParticipantService(logger *zap.Logger, participants repository.ParticipantRepository, limiter RateLimiter) *ParticipantService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if limiter == nil {
		limiter = NewMemoryRateLimiter(defaultRegisterWindow, defaultRegisterMax)
	}
	return &ParticipantService{
		logger:       logger,
		participants: participants,
		limiter:      limiter,
	}
}

// Register valida y hace upsert del participante. clientKey identifica al
// cliente para el rate limit (IP en la API).
func (s *ParticipantService) Register(ctx context.Context, rawID, clientKey string) (domain.Participant, error) {
	if s.limiter != nil && !s.limiter.Allow(clientKey) {
		return domain.Participant{}, ErrTooManyAttempts
	}
	id, err := CanonicalParticipantID(rawID)
	if err != nil {
		return domain.Participant{}, err
	}
	p, err := s.participants.Upsert(ctx, id)
	if err != nil {
		s.logger.Error("participant upsert failed", zap.String("participant_id", id), zap.Error(err))
		return domain.Participant{}, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	return p, nil
}
