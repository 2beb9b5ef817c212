package http

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"remi-llm/internal/domain"
	"remi-llm/internal/service"
	"remi-llm/internal/speech"
)

const (
	defaultUploadFormat = "webm"
	maxUploadBytes      = 10 << 20
	listenReadTimeout   = 60 * time.Second
	partialInterval     = 250 * time.Millisecond
)

// SpeechHandler cubre la captura de voz de una sesión y los endpoints sin estado.
type SpeechHandler struct {
	logger        *zap.Logger
	conversations *service.ConversationService
	transcriber   speech.Transcriber
	synthesizer   speech.Synthesizer
	upgrader      websocket.Upgrader
	readTimeout   time.Duration
}

func NewSpeechHandler(logger *zap.Logger, conversations *service.ConversationService, transcriber speech.Transcriber, synthesizer speech.Synthesizer) *SpeechHandler {
	return &SpeechHandler{
		logger:        logger,
		conversations: conversations,
		transcriber:   transcriber,
		synthesizer:   synthesizer,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  4096,
			WriteBufferSize: 1024,
		},
		readTimeout: listenReadTimeout,
	}
}

// Voice maneja POST /sessions/:id/voice: audio grabado por la página ->
// transcripción -> turno de voz.
func (h *SpeechHandler) Voice(c *gin.Context) {
	live, ok := lookupLive(c, h.conversations, h.logger)
	if !ok {
		return
	}
	audio, ok := h.readAudio(c)
	if !ok {
		return
	}
	if !h.conversations.CanTranscribe() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": domain.Notice(domain.ErrTranscription)})
		return
	}

	capture, err := h.conversations.NewCapture(live, speech.NewBufferMicrophone(audio, uploadFormat(c)), false)
	if err != nil {
		writeSessionError(c, h.logger, err)
		return
	}
	defer h.conversations.ReleaseCapture(live, capture)

	ctx := c.Request.Context()
	if err := capture.Start(ctx); err != nil {
		writeSessionError(c, h.logger, err)
		return
	}
	text, err := capture.Stop(ctx)
	if err != nil {
		h.logger.Warn("voice upload not transcribed", zap.String("session_id", live.ID), zap.Error(err))
		writeSessionError(c, h.logger, err)
		return
	}

	out, err := live.Controller.SubmitUserTurn(ctx, text, domain.ModeVoice)
	if err != nil {
		writeSessionError(c, h.logger, err)
		return
	}
	resp := turnResponse(live, out)
	resp["transcript"] = text
	c.JSON(http.StatusOK, resp)
}

// Transcribe maneja POST /speech/transcribe.
func (h *SpeechHandler) Transcribe(c *gin.Context) {
	if h.transcriber == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": domain.Notice(domain.ErrTranscription)})
		return
	}
	audio, ok := h.readAudio(c)
	if !ok {
		return
	}
	text, err := h.transcriber.Transcribe(c.Request.Context(), audio, uploadFormat(c))
	if err != nil {
		h.logger.Error("transcription failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": domain.Notice(domain.ErrTranscription)})
		return
	}
	text = strings.TrimSpace(text)
	if text == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": domain.Notice(domain.ErrNoSpeechDetected)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"text": text})
}

// Synthesize maneja POST /speech/synthesize. Si falla, la página usa su voz local.
func (h *SpeechHandler) Synthesize(c *gin.Context) {
	var req struct {
		Text string `json:"text" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if h.synthesizer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "remote synthesis unavailable", "fallback": "local"})
		return
	}
	audio, err := h.synthesizer.Synthesize(c.Request.Context(), req.Text)
	if err != nil || len(audio) == 0 {
		h.logger.Warn("remote synthesis failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "remote synthesis failed", "fallback": "local"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"audio":     base64.StdEncoding.EncodeToString(audio),
		"mime_type": "audio/mpeg",
	})
}

func (h *SpeechHandler) readAudio(c *gin.Context) ([]byte, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)
	audio, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "audio too large"})
		return nil, false
	}
	if len(audio) == 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": domain.Notice(domain.ErrNoSpeechDetected)})
		return nil, false
	}
	return audio, true
}

func uploadFormat(c *gin.Context) string {
	if f := strings.TrimSpace(c.Query("format")); f != "" {
		return f
	}
	return defaultUploadFormat
}

type listenControl struct {
	Type string `json:"type"`
}

type listenEvent struct {
	Type       string                 `json:"type"`
	Status     domain.RecordingStatus `json:"status,omitempty"`
	Partial    string                 `json:"partial,omitempty"`
	Transcript string                 `json:"transcript,omitempty"`
	Notice     string                 `json:"notice,omitempty"`
	Turn       *service.TurnOutcome   `json:"turn,omitempty"`
	Cues       []speech.Cue           `json:"cues,omitempty"`
}

// listenConn serializa las escrituras al socket.
type listenConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (l *listenConn) send(ev listenEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	_ = l.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return l.conn.WriteJSON(ev)
}

// Listen maneja GET /sessions/:id/listen: captura continua por WebSocket.
// Frames binarios = audio; mensajes de texto = control (start, stop, abort, denied).
func (h *SpeechHandler) Listen(c *gin.Context) {
	live, ok := lookupLive(c, h.conversations, h.logger)
	if !ok {
		return
	}
	if !h.conversations.CanTranscribe() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": domain.Notice(domain.ErrTranscription)})
		return
	}

	mic := speech.NewConnMicrophone(c.DefaultQuery("format", speech.PCMFormat))
	capture, err := h.conversations.NewCapture(live, mic, true)
	if err != nil {
		writeSessionError(c, h.logger, err)
		return
	}
	defer h.conversations.ReleaseCapture(live, capture)

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("listen upgrade failed", zap.Error(err))
		return
	}
	defer ws.Close()
	conn := &listenConn{conn: ws}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer func() {
		capture.Abort()
		mic.CloseInput()
	}()
	go h.pushPartials(ctx, conn, capture)

	for {
		// El plazo corre desde cada lectura: un turno largo no lo consume.
		_ = ws.SetReadDeadline(time.Now().Add(h.readTimeout))
		mt, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("listen socket read failed", zap.String("session_id", live.ID), zap.Error(err))
			}
			return
		}

		if mt == websocket.BinaryMessage {
			if err := mic.Push(data); err != nil && !errors.Is(err, speech.ErrNotRecording) {
				h.logger.Debug("dropping audio frame", zap.Error(err))
			}
			continue
		}

		var ctl listenControl
		if err := json.Unmarshal(data, &ctl); err != nil {
			_ = conn.send(listenEvent{Type: "error", Notice: "invalid control message"})
			continue
		}
		if err := h.handleControl(ctx, conn, live, capture, mic, ctl.Type); err != nil {
			return
		}
	}
}

func (h *SpeechHandler) handleControl(ctx context.Context, conn *listenConn, live *service.LiveSession, capture *speech.Capture, mic *speech.ConnMicrophone, kind string) error {
	switch kind {
	case "denied":
		mic.Deny()
		return nil
	case "start":
		if err := capture.Start(ctx); err != nil {
			return conn.send(listenEvent{Type: "error", Notice: domain.Notice(err)})
		}
		return conn.send(listenEvent{Type: "state", Status: domain.RecordingActive})
	case "abort":
		capture.Abort()
		mic.CloseInput()
		return conn.send(listenEvent{Type: "state", Status: domain.RecordingIdle})
	case "stop":
		mic.CloseInput()
		if err := conn.send(listenEvent{Type: "state", Status: domain.RecordingTranscribing}); err != nil {
			return err
		}
		stopCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		text, err := capture.Stop(stopCtx)
		cancel()
		if err != nil {
			h.logger.Warn("listen capture failed", zap.String("session_id", live.ID), zap.Error(err))
			return conn.send(listenEvent{Type: "error", Status: domain.RecordingIdle, Notice: domain.Notice(err)})
		}
		out, err := live.Controller.SubmitUserTurn(ctx, text, domain.ModeVoice)
		if err != nil {
			return conn.send(listenEvent{Type: "error", Status: domain.RecordingIdle, Transcript: text, Notice: err.Error()})
		}
		return conn.send(listenEvent{
			Type:       "turn",
			Status:     domain.RecordingIdle,
			Transcript: text,
			Turn:       &out,
			Cues:       live.Cues(),
		})
	default:
		return conn.send(listenEvent{Type: "error", Notice: "unknown control message"})
	}
}

// pushPartials envía el parcial cuando cambia.
func (h *SpeechHandler) pushPartials(ctx context.Context, conn *listenConn, capture *speech.Capture) {
	ticker := time.NewTicker(partialInterval)
	defer ticker.Stop()
	last := ""
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st := capture.State()
			if st.Status != domain.RecordingActive || st.PartialTranscript == last {
				continue
			}
			last = st.PartialTranscript
			if err := conn.send(listenEvent{Type: "partial", Status: st.Status, Partial: last}); err != nil {
				return
			}
		}
	}
}
