package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"remi-llm/internal/domain"
	"remi-llm/internal/service"
)

type MoodHandler struct {
	logger *zap.Logger
	moods  *service.MoodService
}

func NewMoodHandler(logger *zap.Logger, moods *service.MoodService) *MoodHandler {
	return &MoodHandler{logger: logger, moods: moods}
}

// Record maneja POST /moods.
func (h *MoodHandler) Record(c *gin.Context) {
	sc, ok := GetSessionContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "registration required"})
		return
	}
	var req struct {
		Rating         *int   `json:"rating" binding:"required"`
		AssessmentType string `json:"assessment_type" binding:"required"`
		SessionID      string `json:"session_id"`
		TrustRating    *int   `json:"trust_rating"`
		AttitudeRating *int   `json:"attitude_rating"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	m, err := h.moods.Record(c.Request.Context(), service.RecordMoodInput{
		ParticipantID:  sc.ParticipantID,
		SessionID:      req.SessionID,
		Rating:         *req.Rating,
		AssessmentType: domain.AssessmentType(req.AssessmentType),
		TrustRating:    req.TrustRating,
		AttitudeRating: req.AttitudeRating,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRating), errors.Is(err, service.ErrInvalidAssessmentType):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": domain.Notice(err)})
		}
		return
	}
	c.JSON(http.StatusCreated, gin.H{"assessment": m})
}
