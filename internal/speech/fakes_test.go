package speech

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
)

type fakeMic struct {
	audio  []byte
	err    error
	mu     sync.Mutex
	closed int
}

func (m *fakeMic) Format() string { return "pcm" }

func (m *fakeMic) Open(context.Context) (io.ReadCloser, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &trackedReader{Reader: bytes.NewReader(m.audio), mic: m}, nil
}

func (m *fakeMic) closedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

type trackedReader struct {
	io.Reader
	mic *fakeMic
}

func (r *trackedReader) Close() error {
	r.mic.mu.Lock()
	r.mic.closed++
	r.mic.mu.Unlock()
	return nil
}

// blockingMic no entrega datos hasta que se cierra.
type blockingMic struct {
	mu     sync.Mutex
	closed int
}

func (m *blockingMic) Format() string { return "pcm" }

func (m *blockingMic) Open(context.Context) (io.ReadCloser, error) {
	pr, pw := io.Pipe()
	return &blockingSource{pr: pr, pw: pw, mic: m}, nil
}

type blockingSource struct {
	pr  *io.PipeReader
	pw  *io.PipeWriter
	mic *blockingMic
}

func (s *blockingSource) Read(p []byte) (int, error) { return s.pr.Read(p) }

func (s *blockingSource) Close() error {
	s.mic.mu.Lock()
	s.mic.closed++
	s.mic.mu.Unlock()
	_ = s.pw.Close()
	return s.pr.Close()
}

type fakeTranscriber struct {
	text  string
	err   error
	got   []byte
	calls int
}

func (t *fakeTranscriber) Transcribe(_ context.Context, audio []byte, _ string) (string, error) {
	t.calls++
	t.got = append([]byte(nil), audio...)
	return t.text, t.err
}

type fakeRecognizer struct {
	busyFirst int
	startErr  error
	partials  []string
	final     string
	finishErr error

	mu     sync.Mutex
	starts int
	rec    *fakeRecognition
}

func (r *fakeRecognizer) Start(_ context.Context, onPartial func(string)) (Recognition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.starts++
	if r.starts <= r.busyFirst {
		return nil, ErrRecognizerBusy
	}
	if r.startErr != nil {
		return nil, r.startErr
	}
	for _, p := range r.partials {
		onPartial(p)
	}
	r.rec = &fakeRecognition{final: r.final, err: r.finishErr}
	return r.rec, nil
}

type fakeRecognition struct {
	final string
	err   error

	mu     sync.Mutex
	frames int
	closed bool
}

func (r *fakeRecognition) Send([]byte) error {
	r.mu.Lock()
	r.frames++
	r.mu.Unlock()
	return nil
}

func (r *fakeRecognition) Finish(context.Context) (string, error) { return r.final, r.err }

func (r *fakeRecognition) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return nil
}

type fakeSynth struct {
	err   error
	empty bool
	mu    sync.Mutex
	calls []string
}

func (s *fakeSynth) Synthesize(_ context.Context, text string) ([]byte, error) {
	s.mu.Lock()
	s.calls = append(s.calls, text)
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	if s.empty {
		return nil, nil
	}
	return []byte("mp3:" + text), nil
}

type fakePlayer struct {
	blocked bool
	block   bool
	started chan struct{}

	mu     sync.Mutex
	played []string
	stops  int
}

func (p *fakePlayer) Unlock(context.Context) error {
	p.mu.Lock()
	p.blocked = false
	p.mu.Unlock()
	return nil
}

func (p *fakePlayer) Play(ctx context.Context, audio []byte) error {
	p.mu.Lock()
	blocked, block := p.blocked, p.block
	p.mu.Unlock()
	if blocked {
		return errPlaybackBlocked()
	}
	if block {
		if p.started != nil {
			close(p.started)
		}
		<-ctx.Done()
		return ctx.Err()
	}
	p.mu.Lock()
	p.played = append(p.played, string(audio))
	p.mu.Unlock()
	return nil
}

func (p *fakePlayer) Stop() {
	p.mu.Lock()
	p.stops++
	p.mu.Unlock()
}

type fakeEngine struct {
	voices  []Voice
	changed chan struct{}
	err     error

	mu     sync.Mutex
	spoken []string
	used   []*Voice
}

func (e *fakeEngine) Voices() []Voice {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.voices
}

func (e *fakeEngine) VoicesChanged() <-chan struct{} { return e.changed }

func (e *fakeEngine) Speak(_ context.Context, text string, voice *Voice) error {
	if e.err != nil {
		return e.err
	}
	e.mu.Lock()
	e.spoken = append(e.spoken, text)
	e.used = append(e.used, voice)
	e.mu.Unlock()
	return nil
}

var errRemoteDown = errors.New("remote down")
