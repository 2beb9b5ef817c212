package speech

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"remi-llm/internal/domain"
)

// DefaultVoiceReadyTimeout acota la espera de la lista de voces locales.
const DefaultVoiceReadyTimeout = 2 * time.Second

// Synthesizer produce audio remoto para un fragmento. Audio vacío sin error
// significa "sin audio" y dispara el motor local.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Player reproduce un clip y termina cuando acaba. Devuelve
// domain.ErrPlaybackBlocked mientras la plataforma no se haya desbloqueado.
type Player interface {
	Play(ctx context.Context, audio []byte) error
	Unlock(ctx context.Context) error
}

// LocalEngine es la síntesis de la plataforma. voice nil = voz por defecto.
type LocalEngine interface {
	Voices() []Voice
	VoicesChanged() <-chan struct{}
	Speak(ctx context.Context, text string, voice *Voice) error
}

// stopper lo implementan las plataformas que necesitan cortar audio ya entregado.
type stopper interface {
	Stop()
}

// OutputConfig agrupa colaboradores y límites del adaptador de salida.
type OutputConfig struct {
	Synthesizer       Synthesizer
	Player            Player
	Engine            LocalEngine
	ChunkSize         int
	SynthesisTimeout  time.Duration
	VoiceReadyTimeout time.Duration
}

// Output reproduce respuestas: síntesis remota con fallback local, una sola
// reproducción activa a la vez.
type Output struct {
	synth        Synthesizer
	player       Player
	engine       LocalEngine
	chunkSize    int
	synthTimeout time.Duration
	voiceTimeout time.Duration
	logger       *zap.Logger

	mu     sync.Mutex
	state  domain.SpeechPlaybackState
	seq    uint64
	cancel context.CancelFunc
	done   chan struct{}
}

func NewOutput(cfg OutputConfig, logger *zap.Logger) *Output {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.SynthesisTimeout <= 0 {
		cfg.SynthesisTimeout = 15 * time.Second
	}
	if cfg.VoiceReadyTimeout <= 0 {
		cfg.VoiceReadyTimeout = DefaultVoiceReadyTimeout
	}
	return &Output{
		synth:        cfg.Synthesizer,
		player:       cfg.Player,
		engine:       cfg.Engine,
		chunkSize:    cfg.ChunkSize,
		synthTimeout: cfg.SynthesisTimeout,
		voiceTimeout: cfg.VoiceReadyTimeout,
		logger:       logger,
		state:        domain.SpeechPlaybackState{Status: domain.PlaybackIdle},
	}
}

// Available indica si hay alguna vía de síntesis.
func (o *Output) Available() bool {
	return o != nil && ((o.synth != nil && o.player != nil) || o.engine != nil)
}

// State devuelve una copia del estado de reproducción.
func (o *Output) State() domain.SpeechPlaybackState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Speak cancela lo que esté sonando y reproduce text fragmento a fragmento.
// Termina cuando acaba el último fragmento, o con error si se cancela o falla.
func (o *Output) Speak(ctx context.Context, text string) error {
	if o == nil {
		return domain.ErrPlayback
	}
	chunks := SplitSentences(text, o.chunkSize)
	if len(chunks) == 0 {
		return nil
	}

	// El relevo de la reproducción anterior ocurre en una sola sección crítica.
	pctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	o.mu.Lock()
	prevCancel, prevDone := o.cancel, o.done
	wasSpeaking := o.state.Status == domain.PlaybackSpeaking
	o.seq++
	seq := o.seq
	o.cancel = cancel
	o.done = done
	o.state = domain.SpeechPlaybackState{Status: domain.PlaybackSpeaking, PendingText: text}
	o.mu.Unlock()

	defer func() {
		cancel()
		o.mu.Lock()
		if o.seq == seq {
			o.state = domain.SpeechPlaybackState{Status: domain.PlaybackIdle}
			o.cancel = nil
		}
		if o.done == done {
			o.done = nil
		}
		o.mu.Unlock()
		close(done)
	}()

	if prevCancel != nil {
		prevCancel()
	}
	if wasSpeaking {
		o.stopPlatform()
	}
	// La anterior ya fue cancelada; hasta que termine no empieza otra.
	if prevDone != nil {
		<-prevDone
	}

	remote := o.synth != nil && o.player != nil
	for i, chunk := range chunks {
		if err := pctx.Err(); err != nil {
			return err
		}
		if remote {
			played, err := o.playRemote(pctx, chunk)
			if played {
				continue
			}
			if pctx.Err() != nil {
				return pctx.Err()
			}
			if errors.Is(err, domain.ErrPlaybackBlocked) {
				return err
			}
			o.logger.Warn("remote synthesis unavailable, switching to local engine",
				zap.Int("chunk", i),
				zap.Error(err),
			)
			remote = false
		}
		if err := o.speakLocal(pctx, chunk); err != nil {
			if pctx.Err() != nil {
				return pctx.Err()
			}
			return err
		}
	}
	return nil
}

func (o *Output) playRemote(ctx context.Context, chunk string) (bool, error) {
	sctx, cancel := context.WithTimeout(ctx, o.synthTimeout)
	audio, err := o.synth.Synthesize(sctx, chunk)
	cancel()
	if err != nil {
		return false, err
	}
	if len(audio) == 0 {
		return false, errors.New("synthesis returned no audio")
	}
	if err := o.player.Play(ctx, audio); err != nil {
		return false, err
	}
	return true, nil
}

func (o *Output) speakLocal(ctx context.Context, chunk string) error {
	if o.engine == nil {
		return fmt.Errorf("%w: no local speech engine", domain.ErrPlayback)
	}
	voice, err := o.selectVoice(ctx)
	if err != nil {
		return err
	}
	if err := o.engine.Speak(ctx, chunk, voice); err != nil {
		if errors.Is(err, domain.ErrPlaybackBlocked) || errors.Is(err, domain.ErrPlayback) || ctx.Err() != nil {
			return err
		}
		return fmt.Errorf("%w: %v", domain.ErrPlayback, err)
	}
	return nil
}

// selectVoice espera la lista de voces si todavía está vacía; vencido el plazo
// se usa la voz por defecto del motor.
func (o *Output) selectVoice(ctx context.Context) (*Voice, error) {
	voices := o.engine.Voices()
	if len(voices) == 0 {
		timer := time.NewTimer(o.voiceTimeout)
		defer timer.Stop()
		select {
		case <-o.engine.VoicesChanged():
			voices = o.engine.Voices()
		case <-timer.C:
			o.logger.Debug("voice list not ready, using engine default")
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return PickVoice(voices), nil
}

// Cancel corta la reproducción y vuelve a idle. Idempotente. Siempre avisa a
// la plataforma: un relay ya entregó el audio aunque Speak haya terminado.
func (o *Output) Cancel() {
	if o == nil {
		return
	}
	o.mu.Lock()
	cancel := o.cancel
	o.cancel = nil
	o.seq++
	o.state = domain.SpeechPlaybackState{Status: domain.PlaybackIdle}
	o.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	o.stopPlatform()
}

func (o *Output) stopPlatform() {
	if s, ok := o.player.(stopper); ok {
		s.Stop()
	}
	if s, ok := o.engine.(stopper); ok {
		s.Stop()
	}
}

// Unlock se invoca desde un gesto del usuario.
func (o *Output) Unlock(ctx context.Context) error {
	if o == nil || o.player == nil {
		return nil
	}
	return o.player.Unlock(ctx)
}
