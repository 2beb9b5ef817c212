package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"remi-llm/internal/domain"
)

const sessionTokenType = "session"

var (
	ErrSessionTokenInvalid = errors.New("session token invalid")
	ErrSessionTokenExpired = errors.New("session token expired")
	// ErrRegistrationRequired: no hay contexto de sesión, el participante debe registrarse.
	ErrRegistrationRequired = errors.New("registration required")
)

type SessionClaims struct {
	ParticipantID string `json:"pid"`
	TokenType     string `json:"typ"`
	jwt.RegisteredClaims
}

// IssuedSession es lo que recibe el cliente al registrarse.
type IssuedSession struct {
	Token     string                `json:"token"`
	ExpiresIn int64                 `json:"expires_in"`
	Context   domain.SessionContext `json:"context"`
}

// SessionContextService emite tokens de sesión y resuelve el contexto
// (participante + modo) guardado bajo su jti.
type SessionContextService struct {
	secret []byte
	ttl    time.Duration
	issuer string
	store  SessionContextStore
}

func NewSessionContextService(secret string, ttl time.Duration, store SessionContextStore) *SessionContextService {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	if store == nil {
		store = NewMemorySessionContextStore()
	}
	return &SessionContextService{
		secret: []byte(secret),
		ttl:    ttl,
		issuer: "remi",
		store:  store,
	}
}

// Begin emite un token nuevo y guarda el contexto inicial (modo texto).
func (s *SessionContextService) Begin(ctx context.Context, participantID string) (IssuedSession, error) {
	if len(s.secret) == 0 || strings.TrimSpace(participantID) == "" {
		return IssuedSession{}, ErrSessionTokenInvalid
	}
	now := time.Now().UTC()
	jti := uuid.NewString()
	claims := SessionClaims{
		ParticipantID: participantID,
		TokenType:     sessionTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    s.issuer,
			Subject:   participantID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return IssuedSession{}, err
	}
	sc := domain.SessionContext{TokenID: jti, ParticipantID: participantID, Mode: domain.ModeText}
	if err := s.store.Save(ctx, sc, s.ttl); err != nil {
		return IssuedSession{}, fmt.Errorf("save session context: %w", err)
	}
	return IssuedSession{Token: signed, ExpiresIn: int64(s.ttl.Seconds()), Context: sc}, nil
}

// Resolve valida el token y devuelve el contexto vigente.
func (s *SessionContextService) Resolve(ctx context.Context, token string) (domain.SessionContext, error) {
	claims, err := s.Parse(token)
	if err != nil {
		return domain.SessionContext{}, err
	}
	sc, ok, err := s.store.Load(ctx, claims.ID)
	if err != nil {
		return domain.SessionContext{}, fmt.Errorf("load session context: %w", err)
	}
	if !ok || sc.ParticipantID != claims.ParticipantID {
		return domain.SessionContext{}, ErrRegistrationRequired
	}
	sc.TokenID = claims.ID
	return sc, nil
}

// SetMode guarda el modo elegido para el resto de la sesión del navegador.
func (s *SessionContextService) SetMode(ctx context.Context, sc domain.SessionContext, mode domain.Mode) (domain.SessionContext, error) {
	sc.Mode = mode
	if err := s.store.Save(ctx, sc, s.ttl); err != nil {
		return sc, fmt.Errorf("save session context: %w", err)
	}
	return sc, nil
}

// Forget borra el contexto; el token deja de servir.
func (s *SessionContextService) Forget(ctx context.Context, sc domain.SessionContext) error {
	return s.store.Delete(ctx, sc.TokenID)
}

func (s *SessionContextService) Parse(token string) (SessionClaims, error) {
	if len(s.secret) == 0 || strings.TrimSpace(token) == "" {
		return SessionClaims{}, ErrSessionTokenInvalid
	}
	var claims SessionClaims
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	_, err := parser.ParseWithClaims(token, &claims, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return SessionClaims{}, ErrSessionTokenExpired
		}
		return SessionClaims{}, ErrSessionTokenInvalid
	}
	if claims.TokenType != sessionTokenType || claims.ID == "" ||
		strings.TrimSpace(claims.ParticipantID) == "" ||
		claims.Subject != claims.ParticipantID || claims.Issuer != s.issuer {
		return SessionClaims{}, ErrSessionTokenInvalid
	}
	return claims, nil
}
