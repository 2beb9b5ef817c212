package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"remi-llm/internal/domain"
	"remi-llm/internal/llm"
)

const (
	// ApologyOnError se agrega como turno del asistente cuando falla la completion.
	ApologyOnError = "I apologize, but there was an error processing your request. Please try again later."
	// ApologyOnEmpty cubre respuestas sin contenido.
	ApologyOnEmpty = "I apologize, but I couldn't generate a response. Please try again."

	defaultPreviousContextMax = 4000
)

// PersonaVariant elige el texto de instrucción según sesiones previas.
type PersonaVariant string

const (
	PersonaFirstSession PersonaVariant = "first_session"
	PersonaFollowUp     PersonaVariant = "follow_up"
)

// Persona es la instrucción de sistema fijada al iniciar la sesión.
type Persona struct {
	Variant PersonaVariant
	System  string
}

type CompletionInput struct {
	Persona Persona
	History []domain.Message
}

// CompletionResult siempre trae texto mostrable; Err indica modo degradado.
type CompletionResult struct {
	Text string
	Err  error
}

// ConversationHistory es la parte del repositorio que consulta la completion.
type ConversationHistory interface {
	CountByParticipant(ctx context.Context, participantID string) (int, error)
	LatestTranscript(ctx context.Context, participantID string) (string, error)
}

// CompletionService arma persona + historial y llama al LLM.
type CompletionService struct {
	logger     *zap.Logger
	llm        llm.LLMClient
	history    ConversationHistory
	contextMax int
}

func NewCompletionService(logger *zap.Logger, client llm.LLMClient, history ConversationHistory, contextMax int) *CompletionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if contextMax <= 0 {
		contextMax = defaultPreviousContextMax
	}
	return &CompletionService{
		logger:     logger,
		llm:        client,
		history:    history,
		contextMax: contextMax,
	}
}

// PersonaFor decide la variante por el conteo de conversaciones guardadas.
// Si la consulta falla se usa la variante de primera sesión.
func (s *CompletionService) PersonaFor(ctx context.Context, participantID string) Persona {
	first := Persona{Variant: PersonaFirstSession, System: firstSessionPrompt}
	if s == nil || s.history == nil || participantID == "" {
		return first
	}
	count, err := s.history.CountByParticipant(ctx, participantID)
	if err != nil {
		s.logger.Warn("prior session count failed, using first-session persona",
			zap.String("participant_id", participantID),
			zap.Error(err),
		)
		return first
	}
	if count == 0 {
		return first
	}

	system := followUpSessionPrompt
	transcript, err := s.history.LatestTranscript(ctx, participantID)
	if err != nil {
		s.logger.Warn("previous transcript lookup failed", zap.String("participant_id", participantID), zap.Error(err))
	} else if transcript = strings.TrimSpace(transcript); transcript != "" {
		system += previousSessionHeader + tailRunes(transcript, s.contextMax)
	}
	return Persona{Variant: PersonaFollowUp, System: system}
}

// Complete nunca falla hacia el llamador: ante error devuelve la disculpa.
func (s *CompletionService) Complete(ctx context.Context, in CompletionInput) CompletionResult {
	if s == nil || s.llm == nil {
		return CompletionResult{Text: ApologyOnError, Err: fmt.Errorf("%w: llm not configured", domain.ErrCompletion)}
	}
	msgs := make([]llm.ChatMessage, 0, len(in.History))
	for _, m := range in.History {
		msgs = append(msgs, llm.ChatMessage{Role: string(m.Role), Content: m.Content})
	}

	reply, err := s.llm.Complete(ctx, in.Persona.System, msgs)
	if errors.Is(err, llm.ErrEmptyResponse) || (err == nil && strings.TrimSpace(reply) == "") {
		s.logger.Warn("llm returned no content")
		return CompletionResult{Text: ApologyOnEmpty}
	}
	if err != nil {
		s.logger.Error("llm completion failed", zap.Int("messages", len(msgs)), zap.Error(err))
		return CompletionResult{Text: ApologyOnError, Err: fmt.Errorf("%w: %v", domain.ErrCompletion, err)}
	}
	return CompletionResult{Text: strings.TrimSpace(reply)}
}

// tailRunes conserva los últimos max caracteres (lo más reciente de la sesión anterior).
func tailRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[len(r)-max:])
}
