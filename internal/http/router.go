package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"remi-llm/internal/service"
)

// Handlers agrupa los handlers que monta el router.
type Handlers struct {
	Participants *ParticipantHandler
	Moods        *MoodHandler
	Sessions     *SessionHandler
	Speech       *SpeechHandler
}

// NewRouter configura el router de Gin con middlewares y rutas.
func NewRouter(logger *zap.Logger, sessionCtx *service.SessionContextService, h Handlers) *gin.Engine {
	r := gin.New()

	r.Use(zapLoggerMiddleware(logger), gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.POST("/participants", h.Participants.Register)

	auth := r.Group("", SessionContextMiddleware(sessionCtx))

	ctx := auth.Group("/context")
	ctx.GET("", h.Participants.GetContext)
	ctx.PUT("/mode", h.Participants.SetMode)
	ctx.DELETE("", h.Participants.ForgetContext)

	auth.POST("/moods", h.Moods.Record)

	sessions := auth.Group("/sessions")
	sessions.POST("", h.Sessions.Start)
	sessions.GET("/:id", h.Sessions.Get)
	sessions.POST("/:id/turns", h.Sessions.SubmitTurn)
	sessions.POST("/:id/voice", h.Speech.Voice)
	sessions.GET("/:id/listen", h.Speech.Listen)
	sessions.PUT("/:id/mode", h.Sessions.SwitchMode)
	sessions.POST("/:id/pause", h.Sessions.Pause)
	sessions.POST("/:id/resume", h.Sessions.Resume)
	sessions.POST("/:id/speech/unlock", h.Sessions.UnlockSpeech)
	sessions.POST("/:id/speech/cancel", h.Sessions.CancelSpeech)
	sessions.PUT("/:id/voices", h.Sessions.SetVoices)
	sessions.POST("/:id/end", h.Sessions.End)
	sessions.DELETE("/:id", h.Sessions.Discard)

	speechGroup := auth.Group("/speech")
	speechGroup.POST("/transcribe", h.Speech.Transcribe)
	speechGroup.POST("/synthesize", h.Speech.Synthesize)

	return r
}

// zapLoggerMiddleware loguea cada request con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if sc, ok := GetSessionContext(c); ok {
			fields = append(fields, zap.String("participant_id", sc.ParticipantID))
		}
		logger.Info("request", fields...)
	}
}
