package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"remi-llm/internal/domain"
	"remi-llm/internal/speech"
)

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionForbidden = errors.New("session belongs to another participant")
)

const voiceDowngradedNotice = "Voice conversation is not available on this device, so we'll continue in text."

// PersonaSource decide la instrucción de sistema de una sesión nueva.
type PersonaSource interface {
	PersonaFor(ctx context.Context, participantID string) Persona
}

// ConversationRecorder guarda la transcripción al terminar.
type ConversationRecorder interface {
	Create(ctx context.Context, record domain.ConversationRecord) (string, error)
}

// SessionDevices son los adaptadores de voz de una sesión.
type SessionDevices struct {
	Output       *speech.Output
	Relay        *speech.ClientRelay
	Capabilities speech.Capabilities
}

// DeviceFactory crea adaptadores nuevos por sesión.
type DeviceFactory func() SessionDevices

// LiveSession es una conversación abierta en memoria.
type LiveSession struct {
	ID            string
	ParticipantID string
	Controller    *TurnController
	Output        *speech.Output
	Relay         *speech.ClientRelay
	Capabilities  speech.Capabilities
	Notice        string

	mu         sync.Mutex
	capture    *speech.Capture
	lastActive time.Time
}

func (l *LiveSession) touch(now time.Time) {
	l.mu.Lock()
	l.lastActive = now
	l.mu.Unlock()
}

func (l *LiveSession) idleSince() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastActive
}

// Cues devuelve lo que la página tiene pendiente de reproducir.
func (l *LiveSession) Cues() []speech.Cue {
	if l.Relay == nil {
		return nil
	}
	return l.Relay.Drain()
}

// EndResult es lo que ve el participante al cerrar la sesión.
type EndResult struct {
	Snapshot       Snapshot              `json:"snapshot"`
	Summary        domain.SessionSummary `json:"summary"`
	ConversationID string                `json:"conversation_id,omitempty"`
	Notice         string                `json:"notice,omitempty"`
}

// ConversationService mantiene el registro de sesiones vivas.
type ConversationService struct {
	logger      *zap.Logger
	personas    PersonaSource
	completer   Completer
	records     ConversationRecorder
	devices     DeviceFactory
	recognizer  speech.Recognizer
	transcriber speech.Transcriber
	now         func() time.Time

	mu       sync.Mutex
	sessions map[string]*LiveSession
}

type ConversationServiceConfig struct {
	Personas    PersonaSource
	Completer   Completer
	Records     ConversationRecorder
	Devices     DeviceFactory
	Recognizer  speech.Recognizer
	Transcriber speech.Transcriber
}

func NewConversationService(logger *zap.Logger, cfg ConversationServiceConfig) *ConversationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Devices == nil {
		cfg.Devices = func() SessionDevices { return SessionDevices{} }
	}
	return &ConversationService{
		logger:      logger,
		personas:    cfg.Personas,
		completer:   cfg.Completer,
		records:     cfg.Records,
		devices:     cfg.Devices,
		recognizer:  cfg.Recognizer,
		transcriber: cfg.Transcriber,
		now:         func() time.Time { return time.Now().UTC() },
		sessions:    make(map[string]*LiveSession),
	}
}

// Start abre una sesión: fija la persona una sola vez y elige voz o texto
// según las capacidades de la plataforma.
func (s *ConversationService) Start(ctx context.Context, participantID string, mode domain.Mode) (*LiveSession, error) {
	if participantID == "" {
		return nil, ErrRegistrationRequired
	}
	persona := Persona{Variant: PersonaFirstSession, System: firstSessionPrompt}
	if s.personas != nil {
		persona = s.personas.PersonaFor(ctx, participantID)
	}

	dev := s.devices()
	var speaker Speaker
	if dev.Output != nil {
		speaker = dev.Output
	}

	live := &LiveSession{
		ID:            uuid.NewString(),
		ParticipantID: participantID,
		Output:        dev.Output,
		Relay:         dev.Relay,
		Capabilities:  dev.Capabilities,
		lastActive:    s.now(),
	}
	if mode == domain.ModeVoice && !(dev.Capabilities.VoiceInput() && dev.Capabilities.SpeechSynthesis) {
		mode = domain.ModeText
		live.Notice = voiceDowngradedNotice
	}
	if mode == "" {
		mode = domain.ModeText
	}

	live.Controller = NewTurnController(s.logger, domain.ConversationSession{
		ID:            live.ID,
		ParticipantID: participantID,
		StartTime:     s.now(),
		Mode:          mode,
	}, persona, s.completer, speaker)

	s.mu.Lock()
	s.sessions[live.ID] = live
	s.mu.Unlock()

	s.logger.Info("conversation session started",
		zap.String("session_id", live.ID),
		zap.String("participant_id", participantID),
		zap.String("mode", string(mode)),
		zap.String("persona", string(persona.Variant)),
	)
	return live, nil
}

// Get busca la sesión y verifica que sea del participante.
func (s *ConversationService) Get(participantID, sessionID string) (*LiveSession, error) {
	s.mu.Lock()
	live, ok := s.sessions[sessionID]
	s.mu.Unlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	if live.ParticipantID != participantID {
		return nil, ErrSessionForbidden
	}
	live.touch(s.now())
	return live, nil
}

// NewCapture arma una captura para la sesión con el micrófono dado; streaming
// usa el reconocedor continuo si existe. Solo puede haber una captura activa por sesión.
func (s *ConversationService) NewCapture(live *LiveSession, mic speech.Microphone, streaming bool) (*speech.Capture, error) {
	live.mu.Lock()
	defer live.mu.Unlock()
	if live.capture != nil {
		st := live.capture.State()
		if st.Status != domain.RecordingIdle {
			return nil, speech.ErrCaptureBusy
		}
	}
	var recognizer speech.Recognizer
	if streaming {
		recognizer = s.recognizer
	}
	live.capture = speech.NewCapture(mic, recognizer, s.transcriber, s.logger)
	return live.capture, nil
}

// CanTranscribe indica si hay algún reconocedor configurado.
func (s *ConversationService) CanTranscribe() bool {
	return s.recognizer != nil || s.transcriber != nil
}

// ReleaseCapture suelta la captura de la sesión si sigue siendo c.
func (s *ConversationService) ReleaseCapture(live *LiveSession, c *speech.Capture) {
	live.mu.Lock()
	if live.capture == c {
		live.capture = nil
	}
	live.mu.Unlock()
}

// End corta la voz, resume el historial y guarda la conversación si hubo
// al menos un mensaje del participante. Un fallo al guardar no impide el resumen.
func (s *ConversationService) End(ctx context.Context, participantID, sessionID string) (EndResult, error) {
	live, err := s.take(participantID, sessionID)
	if err != nil {
		return EndResult{}, err
	}
	s.abortCapture(live)

	snap := live.Controller.End()
	summary := Summarize(snap.Session.Messages)
	res := EndResult{Snapshot: snap, Summary: summary}

	if summary.UserMessages == 0 || s.records == nil {
		return res, nil
	}

	now := s.now()
	record := domain.ConversationRecord{
		ParticipantID:   snap.Session.ParticipantID,
		Transcript:      domain.Transcript(snap.Session.Messages),
		Summary:         summary.Text,
		DurationSeconds: int(now.Sub(snap.Session.StartTime).Seconds()),
		Turns:           snap.Session.TurnCount,
		Mode:            snap.Session.Mode,
		Timestamp:       now,
	}
	id, err := s.records.Create(ctx, record)
	if err != nil {
		s.logger.Error("conversation persistence failed", zap.String("session_id", sessionID), zap.Error(err))
		res.Notice = domain.Notice(fmt.Errorf("%w: %v", domain.ErrPersistence, err))
		return res, nil
	}
	res.ConversationID = id
	s.logger.Info("conversation session saved",
		zap.String("session_id", sessionID),
		zap.String("conversation_id", id),
		zap.Int("turns", record.Turns),
	)
	return res, nil
}

// Discard cierra la sesión sin guardar nada.
func (s *ConversationService) Discard(participantID, sessionID string) error {
	live, err := s.take(participantID, sessionID)
	if err != nil {
		return err
	}
	s.abortCapture(live)
	live.Controller.End()
	return nil
}

// Sweep descarta sesiones sin actividad por más de idle. Devuelve cuántas cerró.
func (s *ConversationService) Sweep(idle time.Duration) int {
	cutoff := s.now().Add(-idle)
	var stale []*LiveSession
	s.mu.Lock()
	for id, live := range s.sessions {
		if live.idleSince().Before(cutoff) {
			stale = append(stale, live)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, live := range stale {
		s.abortCapture(live)
		live.Controller.End()
		s.logger.Info("idle conversation session discarded", zap.String("session_id", live.ID))
	}
	return len(stale)
}

// take saca la sesión del registro en un solo paso: de dos cierres
// simultáneos solo uno la obtiene.
func (s *ConversationService) take(participantID, sessionID string) (*LiveSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	live, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if live.ParticipantID != participantID {
		return nil, ErrSessionForbidden
	}
	delete(s.sessions, sessionID)
	return live, nil
}

func (s *ConversationService) abortCapture(live *LiveSession) {
	live.mu.Lock()
	c := live.capture
	live.capture = nil
	live.mu.Unlock()
	if c != nil {
		c.Abort()
	}
}
