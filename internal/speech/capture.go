package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"go.uber.org/zap"

	"remi-llm/internal/domain"
)

const captureFrameSize = 3200 // 100ms de PCM16 mono a 16kHz

// Microphone abre una fuente de audio. Un rechazo de permisos se reporta con
// domain.ErrPermissionDenied.
type Microphone interface {
	Open(ctx context.Context) (io.ReadCloser, error)
	Format() string
}

// Recognizer inicia reconocimiento continuo; onPartial recibe los parciales.
type Recognizer interface {
	Start(ctx context.Context, onPartial func(text string)) (Recognition, error)
}

// Recognition es una sesión de reconocimiento en curso.
type Recognition interface {
	Send(frame []byte) error
	Finish(ctx context.Context) (string, error)
	Close() error
}

// Transcriber convierte audio grabado en texto (modo grabar-y-transcribir).
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, format string) (string, error)
}

// Capture es el adaptador de captura: micrófono + reconocimiento continuo o
// transcripción por lotes. Transiciones: idle -> recording -> transcribing -> idle.
type Capture struct {
	mic         Microphone
	recognizer  Recognizer
	transcriber Transcriber
	logger      *zap.Logger

	mu       sync.Mutex
	state    domain.RecordingState
	starting bool
	gen      uint64
	src      io.ReadCloser
	rec      Recognition
	buf      bytes.Buffer
	pumpDone chan struct{}
}

// NewCapture requiere un micrófono y al menos uno de recognizer/transcriber.
func NewCapture(mic Microphone, recognizer Recognizer, transcriber Transcriber, logger *zap.Logger) *Capture {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Capture{
		mic:         mic,
		recognizer:  recognizer,
		transcriber: transcriber,
		logger:      logger,
		state:       domain.RecordingState{Status: domain.RecordingIdle},
	}
}

// State devuelve una copia del estado de grabación.
func (c *Capture) State() domain.RecordingState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start abre el micrófono y empieza a grabar.
func (c *Capture) Start(ctx context.Context) error {
	if c == nil || c.mic == nil {
		return fmt.Errorf("%w: no microphone", domain.ErrPermissionDenied)
	}
	c.mu.Lock()
	if c.state.Status != domain.RecordingIdle || c.starting {
		c.mu.Unlock()
		return ErrCaptureBusy
	}
	c.starting = true
	c.gen++
	gen := c.gen
	c.state.PartialTranscript = ""
	c.mu.Unlock()

	src, err := c.mic.Open(ctx)
	if err != nil {
		c.finishStarting()
		if errors.Is(err, domain.ErrPermissionDenied) {
			return err
		}
		return fmt.Errorf("%w: %v", domain.ErrPermissionDenied, err)
	}

	var rec Recognition
	if c.recognizer != nil {
		rec, err = c.startRecognition(ctx, gen)
		if err != nil {
			if c.transcriber == nil {
				_ = src.Close()
				c.finishStarting()
				return fmt.Errorf("%w: %v", domain.ErrTranscription, err)
			}
			c.logger.Warn("streaming recognition unavailable, buffering audio", zap.Error(err))
			rec = nil
		}
	}

	done := make(chan struct{})
	c.mu.Lock()
	c.starting = false
	if c.gen != gen {
		// Abort llegó mientras se abría el micrófono.
		c.mu.Unlock()
		_ = src.Close()
		if rec != nil {
			_ = rec.Close()
		}
		return context.Canceled
	}
	c.src = src
	c.rec = rec
	c.buf.Reset()
	c.pumpDone = done
	c.state.Status = domain.RecordingActive
	c.mu.Unlock()

	go c.pump(src, rec, gen, done)
	return nil
}

func (c *Capture) finishStarting() {
	c.mu.Lock()
	c.starting = false
	c.mu.Unlock()
}

// startRecognition reintenta una única vez si el reconocedor ya está corriendo.
func (c *Capture) startRecognition(ctx context.Context, gen uint64) (Recognition, error) {
	onPartial := func(text string) {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.gen == gen {
			c.state.PartialTranscript = text
		}
	}
	rec, err := c.recognizer.Start(ctx, onPartial)
	if errors.Is(err, ErrRecognizerBusy) {
		c.logger.Debug("recognizer already running, retrying once")
		rec, err = c.recognizer.Start(ctx, onPartial)
	}
	return rec, err
}

func (c *Capture) pump(src io.Reader, rec Recognition, gen uint64, done chan struct{}) {
	defer close(done)
	frame := make([]byte, captureFrameSize)
	for {
		n, err := src.Read(frame)
		if n > 0 {
			if rec != nil {
				if sendErr := rec.Send(append([]byte(nil), frame[:n]...)); sendErr != nil {
					c.logger.Warn("recognizer send failed", zap.Error(sendErr))
					return
				}
			} else {
				c.mu.Lock()
				if c.gen == gen {
					c.buf.Write(frame[:n])
				}
				c.mu.Unlock()
			}
		}
		if err != nil {
			return
		}
	}
}

// Stop libera el micrófono y devuelve la transcripción final (no vacía).
func (c *Capture) Stop(ctx context.Context) (string, error) {
	if c == nil {
		return "", ErrNotRecording
	}
	c.mu.Lock()
	if c.state.Status != domain.RecordingActive {
		c.mu.Unlock()
		return "", ErrNotRecording
	}
	c.state.Status = domain.RecordingTranscribing
	gen := c.gen
	src, rec, done := c.src, c.rec, c.pumpDone
	c.src = nil
	c.mu.Unlock()

	defer c.reset(gen)

	if src != nil {
		_ = src.Close()
	}
	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			if rec != nil {
				_ = rec.Close()
			}
			return "", ctx.Err()
		}
	}

	text, err := c.finalize(ctx, rec)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", domain.ErrNoSpeechDetected
	}
	return text, nil
}

func (c *Capture) finalize(ctx context.Context, rec Recognition) (string, error) {
	if rec != nil {
		defer rec.Close()
		text, err := rec.Finish(ctx)
		c.mu.Lock()
		partial := c.state.PartialTranscript
		c.mu.Unlock()
		if err != nil {
			if strings.TrimSpace(partial) != "" {
				c.logger.Warn("recognizer finish failed, using last partial", zap.Error(err))
				return partial, nil
			}
			return "", fmt.Errorf("%w: %v", domain.ErrTranscription, err)
		}
		if strings.TrimSpace(text) == "" {
			return partial, nil
		}
		return text, nil
	}

	c.mu.Lock()
	audio := append([]byte(nil), c.buf.Bytes()...)
	c.buf.Reset()
	c.mu.Unlock()
	if len(audio) == 0 {
		return "", domain.ErrNoSpeechDetected
	}
	if c.transcriber == nil {
		return "", fmt.Errorf("%w: no transcriber configured", domain.ErrTranscription)
	}
	text, err := c.transcriber.Transcribe(ctx, audio, c.mic.Format())
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrTranscription, err)
	}
	return text, nil
}

func (c *Capture) reset(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return
	}
	c.state = domain.RecordingState{Status: domain.RecordingIdle}
	c.rec = nil
	c.pumpDone = nil
	c.buf.Reset()
}

// Abort descarta la grabación en curso y libera el micrófono. Idempotente.
func (c *Capture) Abort() {
	if c == nil {
		return
	}
	c.mu.Lock()
	src, rec := c.src, c.rec
	c.src, c.rec = nil, nil
	c.gen++
	c.pumpDone = nil
	c.buf.Reset()
	c.state = domain.RecordingState{Status: domain.RecordingIdle}
	c.mu.Unlock()

	if src != nil {
		_ = src.Close()
	}
	if rec != nil {
		_ = rec.Close()
	}
}
