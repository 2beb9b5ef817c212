package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"remi-llm/internal/domain"
)

// Greeting es el mensaje sembrado al iniciar cada sesión.
const Greeting = "Hello! I'm Remi, your reminiscence therapy companion. I'm here to help you explore your memories and experiences. How are you feeling today?"

const voiceUnavailableNotice = "Voice replies are not available right now, so Remi will answer in text."

var (
	ErrEmptyTurn      = errors.New("empty turn")
	ErrTurnInProgress = errors.New("a turn is already in progress")
	ErrSessionPaused  = errors.New("session is paused")
	ErrSessionEnded   = errors.New("session has ended")
)

// TurnState es el estado del controlador.
type TurnState string

const (
	TurnIdle               TurnState = "idle"
	TurnAwaitingCompletion TurnState = "awaitingCompletion"
	TurnSpeaking           TurnState = "speaking"
)

// Completer genera la respuesta del asistente.
type Completer interface {
	Complete(ctx context.Context, in CompletionInput) CompletionResult
}

// Speaker es el adaptador de salida de voz visto desde el controlador.
type Speaker interface {
	Speak(ctx context.Context, text string) error
	Cancel()
	Available() bool
}

// TurnOutcome describe un turno aceptado.
type TurnOutcome struct {
	User         domain.Message `json:"user"`
	Reply        domain.Message `json:"reply"`
	Mode         domain.Mode    `json:"mode"`
	Notice       string         `json:"notice,omitempty"`
	EndRequested bool           `json:"end_requested,omitempty"`
	Err          error          `json:"-"`
}

// Snapshot es una copia consistente del estado del controlador.
type Snapshot struct {
	Session domain.ConversationSession `json:"session"`
	State   TurnState                  `json:"state"`
	Paused  bool                       `json:"paused"`
	Ended   bool                       `json:"ended"`
}

// TurnController media entre la entrada del participante y la completion.
// Garantiza a lo sumo una completion pendiente por sesión.
type TurnController struct {
	logger    *zap.Logger
	completer Completer
	speaker   Speaker
	persona   Persona
	now       func() time.Time

	mu      sync.Mutex
	session domain.ConversationSession
	state   TurnState
	paused  bool
	ended   bool
	seq     uint64
	// speakCancel corta la reproducción del turno actual.
	speakCancel context.CancelFunc
}

// NewTurnController arranca en idle con el saludo ya en el historial.
func NewTurnController(logger *zap.Logger, session domain.ConversationSession, persona Persona, completer Completer, speaker Speaker) *TurnController {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &TurnController{
		logger:    logger,
		completer: completer,
		speaker:   speaker,
		persona:   persona,
		now:       func() time.Time { return time.Now().UTC() },
		session:   session,
		state:     TurnIdle,
	}
	if c.session.StartTime.IsZero() {
		c.session.StartTime = c.now()
	}
	if c.session.Mode == "" {
		c.session.Mode = domain.ModeText
	}
	if len(c.session.Messages) == 0 {
		c.session.Messages = []domain.Message{{
			ID:        domain.GreetingID,
			Content:   Greeting,
			Role:      domain.RoleAssistant,
			Timestamp: c.session.StartTime,
		}}
	}
	return c
}

// VoiceAvailable indica si el camino de voz tiene síntesis.
func (c *TurnController) VoiceAvailable() bool {
	return c.speaker != nil && c.speaker.Available()
}

// SubmitUserTurn agrega el mensaje del participante, espera la completion y,
// en modo voz, reproduce la respuesta. Las solicitudes rechazadas no tocan el historial.
func (c *TurnController) SubmitUserTurn(ctx context.Context, text string, mode domain.Mode) (TurnOutcome, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return TurnOutcome{}, ErrEmptyTurn
	}

	c.mu.Lock()
	switch {
	case c.ended:
		c.mu.Unlock()
		return TurnOutcome{}, ErrSessionEnded
	case c.paused:
		c.mu.Unlock()
		return TurnOutcome{}, ErrSessionPaused
	case c.state != TurnIdle:
		c.mu.Unlock()
		return TurnOutcome{}, ErrTurnInProgress
	}

	out := TurnOutcome{Mode: mode}
	if mode == domain.ModeVoice && !c.VoiceAvailable() {
		out.Mode = domain.ModeText
		out.Notice = voiceUnavailableNotice
	}
	c.session.Mode = out.Mode
	out.User = c.newMessageLocked(domain.RoleUser, text)
	c.session.Messages = append(c.session.Messages, out.User)
	c.state = TurnAwaitingCompletion
	history := append([]domain.Message(nil), c.session.Messages...)
	c.mu.Unlock()

	// La completion no se cancela con el request; la acota el timeout del cliente.
	result := c.completer.Complete(context.WithoutCancel(ctx), CompletionInput{Persona: c.persona, History: history})
	reply := result.Text
	if strings.Contains(reply, EndConversationMarker) {
		out.EndRequested = true
		reply = strings.TrimSpace(strings.ReplaceAll(reply, EndConversationMarker, ""))
	}
	if result.Err != nil {
		out.Err = result.Err
		out.Notice = domain.Notice(result.Err)
		c.logger.Warn("turn completed in degraded mode", zap.String("session_id", c.session.ID), zap.Error(result.Err))
	}

	c.mu.Lock()
	out.Reply = c.newMessageLocked(domain.RoleAssistant, reply)
	c.session.Messages = append(c.session.Messages, out.Reply)
	c.session.TurnCount++
	// El modo pudo cambiar mientras se esperaba la completion.
	if out.Mode == domain.ModeVoice && c.session.Mode != domain.ModeVoice {
		out.Mode = c.session.Mode
	}
	speak := out.Mode == domain.ModeVoice && !c.ended && !c.paused && reply != ""
	if !speak {
		c.state = TurnIdle
		c.mu.Unlock()
		return out, nil
	}
	c.state = TurnSpeaking
	speakCtx, speakCancel := context.WithCancel(ctx)
	c.speakCancel = speakCancel
	seq := c.seq
	c.mu.Unlock()
	defer speakCancel()

	err := c.speaker.Speak(speakCtx, reply)
	if notice := domain.Notice(err); notice != "" && out.Notice == "" {
		out.Notice = notice
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Warn("speech output failed", zap.String("session_id", c.session.ID), zap.Error(err))
	}

	c.mu.Lock()
	if c.seq == seq && c.state == TurnSpeaking {
		c.state = TurnIdle
		c.speakCancel = nil
	}
	c.mu.Unlock()
	return out, nil
}

// SwitchMode cambia de modo y corta la voz antes de volver.
func (c *TurnController) SwitchMode(mode domain.Mode) Snapshot {
	c.mu.Lock()
	c.session.Mode = mode
	cancel := c.interruptLocked()
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.silence(cancel)
	return snap
}

// Pause bloquea nuevas entradas y corta la voz en curso.
func (c *TurnController) Pause() Snapshot {
	c.mu.Lock()
	c.paused = true
	cancel := c.interruptLocked()
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.silence(cancel)
	return snap
}

func (c *TurnController) Resume() Snapshot {
	c.mu.Lock()
	c.paused = false
	c.mu.Unlock()
	return c.Snapshot()
}

// CancelSpeech corta la voz sin cambiar de modo.
func (c *TurnController) CancelSpeech() Snapshot {
	c.mu.Lock()
	cancel := c.interruptLocked()
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.silence(cancel)
	return snap
}

// End cancela la voz, marca la sesión como terminada y devuelve el estado final.
// Es idempotente.
func (c *TurnController) End() Snapshot {
	c.mu.Lock()
	c.ended = true
	cancel := c.interruptLocked()
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.silence(cancel)
	return snap
}

// interruptLocked invalida el turno hablado en curso. Un turno que todavía
// espera la completion vuelve a mirar modo y pausa antes de hablar.
func (c *TurnController) interruptLocked() context.CancelFunc {
	cancel := c.speakCancel
	c.speakCancel = nil
	c.seq++
	if c.state == TurnSpeaking {
		c.state = TurnIdle
	}
	return cancel
}

// silence se llama fuera del lock. El speaker se cancela siempre: la
// plataforma puede seguir sonando aunque Speak ya haya terminado.
func (c *TurnController) silence(cancel context.CancelFunc) {
	if cancel != nil {
		cancel()
	}
	if c.speaker != nil {
		c.speaker.Cancel()
	}
}

func (c *TurnController) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *TurnController) snapshotLocked() Snapshot {
	s := c.session
	s.Messages = append([]domain.Message(nil), c.session.Messages...)
	return Snapshot{Session: s, State: c.state, Paused: c.paused, Ended: c.ended}
}

func (c *TurnController) newMessageLocked(role domain.Role, content string) domain.Message {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return domain.Message{
		ID:        id.String(),
		Content:   content,
		Role:      role,
		Timestamp: c.now(),
	}
}
