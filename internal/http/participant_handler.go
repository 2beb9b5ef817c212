package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"remi-llm/internal/domain"
	"remi-llm/internal/service"
)

// ParticipantHandler registra participantes y administra su contexto de sesión.
type ParticipantHandler struct {
	logger       *zap.Logger
	participants *service.ParticipantService
	sessions     *service.SessionContextService
}

func NewParticipantHandler(logger *zap.Logger, participants *service.ParticipantService, sessions *service.SessionContextService) *ParticipantHandler {
	return &ParticipantHandler{
		logger:       logger,
		participants: participants,
		sessions:     sessions,
	}
}

// Register maneja POST /participants.
func (h *ParticipantHandler) Register(c *gin.Context) {
	var req struct {
		ParticipantID string `json:"participant_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	p, err := h.participants.Register(c.Request.Context(), req.ParticipantID, c.ClientIP())
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidParticipantID):
			c.JSON(http.StatusBadRequest, gin.H{"error": "participant id must be your initials followed by your age, e.g. GK82"})
		case errors.Is(err, service.ErrTooManyAttempts):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
		default:
			h.logger.Error("register participant failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": domain.Notice(err)})
		}
		return
	}

	issued, err := h.sessions.Begin(c.Request.Context(), p.ParticipantID)
	if err != nil {
		h.logger.Error("issue session token failed", zap.String("participant_id", p.ParticipantID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not start session"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"participant": p,
		"token":       issued.Token,
		"expires_in":  issued.ExpiresIn,
		"context":     issued.Context,
	})
}

// GetContext maneja GET /context.
func (h *ParticipantHandler) GetContext(c *gin.Context) {
	sc, ok := GetSessionContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "registration required"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"context": sc})
}

// SetMode maneja PUT /context/mode.
func (h *ParticipantHandler) SetMode(c *gin.Context) {
	sc, ok := GetSessionContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "registration required"})
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

	sc, err = h.sessions.SetMode(c.Request.Context(), sc, mode)
	if err != nil {
		h.logger.Error("save mode failed", zap.String("participant_id", sc.ParticipantID), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "session context unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"context": sc})
}

// ForgetContext maneja DELETE /context (pestaña cerrada).
func (h *ParticipantHandler) ForgetContext(c *gin.Context) {
	sc, ok := GetSessionContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "registration required"})
		return
	}
	if err := h.sessions.Forget(c.Request.Context(), sc); err != nil {
		h.logger.Warn("forget session context failed", zap.Error(err))
	}
	c.Status(http.StatusNoContent)
}
