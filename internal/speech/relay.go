package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"sync"

	"remi-llm/internal/domain"
)

// CueKind identifica una instrucción de reproducción para la página.
type CueKind string

const (
	CueAudio  CueKind = "audio"
	CueLocal  CueKind = "local"
	CueCancel CueKind = "cancel"
)

// Cue es lo que la página tiene que reproducir, en orden.
type Cue struct {
	Kind     CueKind `json:"kind"`
	Audio    string  `json:"audio,omitempty"`
	MimeType string  `json:"mime_type,omitempty"`
	Text     string  `json:"text,omitempty"`
	Voice    *Voice  `json:"voice,omitempty"`
}

// ClientRelay hace de Player y LocalEngine cuando la plataforma real es el
// navegador: los clips y las frases locales se devuelven a la página.
type ClientRelay struct {
	mu       sync.Mutex
	unlocked bool
	voices   []Voice
	changed  chan struct{}
	signaled bool
	cues     []Cue
}

func NewClientRelay() *ClientRelay {
	return &ClientRelay{changed: make(chan struct{})}
}

func (r *ClientRelay) Unlock(context.Context) error {
	r.mu.Lock()
	r.unlocked = true
	r.mu.Unlock()
	return nil
}

func (r *ClientRelay) Play(ctx context.Context, audio []byte) error {
	return r.push(ctx, Cue{
		Kind:     CueAudio,
		Audio:    base64.StdEncoding.EncodeToString(audio),
		MimeType: "audio/mpeg",
	})
}

func (r *ClientRelay) Speak(ctx context.Context, text string, voice *Voice) error {
	return r.push(ctx, Cue{Kind: CueLocal, Text: text, Voice: voice})
}

func (r *ClientRelay) push(ctx context.Context, cue Cue) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.unlocked {
		return domain.ErrPlaybackBlocked
	}
	r.cues = append(r.cues, cue)
	return nil
}

func (r *ClientRelay) Voices() []Voice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Voice(nil), r.voices...)
}

func (r *ClientRelay) VoicesChanged() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.changed
}

// SetVoices registra la lista de voces que reporta la página.
func (r *ClientRelay) SetVoices(voices []Voice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.voices = append([]Voice(nil), voices...)
	if len(voices) > 0 && !r.signaled {
		r.signaled = true
		close(r.changed)
	}
}

// Stop descarta lo pendiente y le indica a la página que corte el audio.
func (r *ClientRelay) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cues = []Cue{{Kind: CueCancel}}
}

// Drain entrega y vacía la cola de instrucciones.
func (r *ClientRelay) Drain() []Cue {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.cues
	r.cues = nil
	return out
}

// BufferMicrophone sirve audio ya grabado (subido por la página).
type BufferMicrophone struct {
	audio  []byte
	format string
}

func NewBufferMicrophone(audio []byte, format string) *BufferMicrophone {
	return &BufferMicrophone{audio: audio, format: format}
}

func (m *BufferMicrophone) Format() string { return m.format }

func (m *BufferMicrophone) Open(context.Context) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(m.audio)), nil
}

// ConnMicrophone recibe frames de audio desde un socket del navegador.
type ConnMicrophone struct {
	format string

	mu     sync.Mutex
	denied bool
	pw     *io.PipeWriter
}

func NewConnMicrophone(format string) *ConnMicrophone {
	return &ConnMicrophone{format: format}
}

func (m *ConnMicrophone) Format() string { return m.format }

// Deny marca que la página no obtuvo permiso de micrófono.
func (m *ConnMicrophone) Deny() {
	m.mu.Lock()
	m.denied = true
	m.mu.Unlock()
}

func (m *ConnMicrophone) Open(context.Context) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.denied {
		return nil, domain.ErrPermissionDenied
	}
	if m.pw != nil {
		_ = m.pw.Close()
	}
	pr, pw := io.Pipe()
	m.pw = pw
	return pr, nil
}

// Push entrega un frame a la grabación activa.
func (m *ConnMicrophone) Push(frame []byte) error {
	m.mu.Lock()
	pw := m.pw
	m.mu.Unlock()
	if pw == nil {
		return ErrNotRecording
	}
	_, err := pw.Write(frame)
	return err
}

// CloseInput termina el flujo de la grabación activa.
func (m *ConnMicrophone) CloseInput() {
	m.mu.Lock()
	pw := m.pw
	m.pw = nil
	m.mu.Unlock()
	if pw != nil {
		_ = pw.Close()
	}
}
