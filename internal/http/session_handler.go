package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"remi-llm/internal/domain"
	"remi-llm/internal/service"
	"remi-llm/internal/speech"
)

// SessionHandler expone el controlador de turnos de cada sesión viva.
type SessionHandler struct {
	logger        *zap.Logger
	conversations *service.ConversationService
}

func NewSessionHandler(logger *zap.Logger, conversations *service.ConversationService) *SessionHandler {
	return &SessionHandler{logger: logger, conversations: conversations}
}

// Start maneja POST /sessions. Sin modo explícito usa el del contexto.
func (h *SessionHandler) Start(c *gin.Context) {
	sc, ok := GetSessionContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "registration required"})
		return
	}
	var req struct {
		Mode string `json:"mode"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
	}
	mode := sc.Mode
	if req.Mode != "" {
		parsed, err := domain.ParseMode(req.Mode)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "mode must be text or voice"})
			return
		}
		mode = parsed
	}

	live, err := h.conversations.Start(c.Request.Context(), sc.ParticipantID, mode)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"session":      live.Controller.Snapshot(),
		"capabilities": live.Capabilities,
		"notice":       live.Notice,
	})
}

// Get maneja GET /sessions/:id.
func (h *SessionHandler) Get(c *gin.Context) {
	live, ok := h.live(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": live.Controller.Snapshot(), "cues": live.Cues()})
}

// SubmitTurn maneja POST /sessions/:id/turns.
func (h *SessionHandler) SubmitTurn(c *gin.Context) {
	live, ok := h.live(c)
	if !ok {
		return
	}
	var req struct {
		Text string `json:"text"`
		Mode string `json:"mode"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	mode := live.Controller.Snapshot().Session.Mode
	if req.Mode != "" {
		parsed, err := domain.ParseMode(req.Mode)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "mode must be text or voice"})
			return
		}
		mode = parsed
	}

	out, err := live.Controller.SubmitUserTurn(c.Request.Context(), req.Text, mode)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, turnResponse(live, out))
}

// SwitchMode maneja PUT /sessions/:id/mode; corta la voz antes de responder.
func (h *SessionHandler) SwitchMode(c *gin.Context) {
	live, ok := h.live(c)
	if !ok {
		return
	}
	var req struct {
		Mode string `json:"mode" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	mode, err := domain.ParseMode(req.Mode)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "mode must be text or voice"})
		return
	}
	snap := live.Controller.SwitchMode(mode)
	c.JSON(http.StatusOK, gin.H{"session": snap, "cues": live.Cues()})
}

func (h *SessionHandler) Pause(c *gin.Context) {
	live, ok := h.live(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": live.Controller.Pause(), "cues": live.Cues()})
}

func (h *SessionHandler) Resume(c *gin.Context) {
	live, ok := h.live(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": live.Controller.Resume()})
}

// UnlockSpeech maneja POST /sessions/:id/speech/unlock (gesto del usuario).
func (h *SessionHandler) UnlockSpeech(c *gin.Context) {
	live, ok := h.live(c)
	if !ok {
		return
	}
	if err := live.Output.Unlock(c.Request.Context()); err != nil {
		h.logger.Warn("speech unlock failed", zap.String("session_id", live.ID), zap.Error(err))
		c.JSON(http.StatusConflict, gin.H{"error": domain.Notice(domain.ErrPlaybackBlocked)})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *SessionHandler) CancelSpeech(c *gin.Context) {
	live, ok := h.live(c)
	if !ok {
		return
	}
	snap := live.Controller.CancelSpeech()
	c.JSON(http.StatusOK, gin.H{"session": snap, "cues": live.Cues()})
}

// SetVoices maneja PUT /sessions/:id/voices: la página informa sus voces locales.
func (h *SessionHandler) SetVoices(c *gin.Context) {
	live, ok := h.live(c)
	if !ok {
		return
	}
	var req struct {
		Voices []speech.Voice `json:"voices"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if live.Relay == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "session has no local voice relay"})
		return
	}
	live.Relay.SetVoices(req.Voices)
	c.JSON(http.StatusOK, gin.H{"selected": speech.PickVoice(req.Voices)})
}

// End maneja POST /sessions/:id/end: resumen y guardado.
func (h *SessionHandler) End(c *gin.Context) {
	sc, ok := GetSessionContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "registration required"})
		return
	}
	res, err := h.conversations.End(c.Request.Context(), sc.ParticipantID, c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Discard maneja DELETE /sessions/:id sin guardar.
func (h *SessionHandler) Discard(c *gin.Context) {
	sc, ok := GetSessionContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "registration required"})
		return
	}
	if err := h.conversations.Discard(sc.ParticipantID, c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *SessionHandler) live(c *gin.Context) (*service.LiveSession, bool) {
	return lookupLive(c, h.conversations, h.logger)
}

// lookupLive resuelve la sesión de :id para el participante del contexto.
func lookupLive(c *gin.Context, conversations *service.ConversationService, logger *zap.Logger) (*service.LiveSession, bool) {
	sc, ok := GetSessionContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "registration required"})
		return nil, false
	}
	live, err := conversations.Get(sc.ParticipantID, c.Param("id"))
	if err != nil {
		writeSessionError(c, logger, err)
		return nil, false
	}
	return live, true
}

func (h *SessionHandler) writeError(c *gin.Context, err error) {
	writeSessionError(c, h.logger, err)
}

func writeSessionError(c *gin.Context, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, service.ErrSessionNotFound), errors.Is(err, service.ErrSessionForbidden):
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
	case errors.Is(err, service.ErrRegistrationRequired):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "registration required"})
	case errors.Is(err, service.ErrEmptyTurn):
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is empty"})
	case errors.Is(err, service.ErrTurnInProgress), errors.Is(err, speech.ErrCaptureBusy):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrSessionPaused), errors.Is(err, service.ErrSessionEnded):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrPermissionDenied), errors.Is(err, domain.ErrNoSpeechDetected), errors.Is(err, domain.ErrTranscription):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": domain.Notice(err)})
	default:
		logger.Error("session request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": domain.Notice(err)})
	}
}

func turnResponse(live *service.LiveSession, out service.TurnOutcome) gin.H {
	return gin.H{
		"turn":  out,
		"state": live.Controller.Snapshot().State,
		"cues":  live.Cues(),
	}
}
