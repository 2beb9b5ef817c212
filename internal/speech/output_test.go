package speech

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"remi-llm/internal/domain"
)

func errPlaybackBlocked() error { return domain.ErrPlaybackBlocked }

const longReply = "That sounds like a wonderful memory. Gardens have a way of holding our stories. " +
	"What did your mother like to grow there? Were there particular flowers she was proud of? " +
	"I would love to hear more about the time you spent together outside."

func TestOutputRemotePlaysEveryChunk(t *testing.T) {
	synth := &fakeSynth{}
	player := &fakePlayer{}
	o := NewOutput(OutputConfig{Synthesizer: synth, Player: player, Engine: &fakeEngine{}}, nil)

	if err := o.Speak(context.Background(), longReply); err != nil {
		t.Fatalf("speak: %v", err)
	}
	chunks := SplitSentences(longReply, DefaultChunkSize)
	if len(player.played) != len(chunks) {
		t.Fatalf("expected %d clips, got %d", len(chunks), len(player.played))
	}
	if o.State().Status != domain.PlaybackIdle {
		t.Fatalf("expected idle after speak")
	}
}

func TestOutputFallsBackToLocalWhenRemoteFails(t *testing.T) {
	synth := &fakeSynth{err: errRemoteDown}
	engine := &fakeEngine{voices: []Voice{{Name: "Daniel"}, {Name: "Samantha"}}}
	o := NewOutput(OutputConfig{Synthesizer: synth, Player: &fakePlayer{}, Engine: engine}, nil)

	if err := o.Speak(context.Background(), longReply); err != nil {
		t.Fatalf("remote failure must not reject the caller: %v", err)
	}
	chunks := SplitSentences(longReply, DefaultChunkSize)
	if strings.Join(engine.spoken, " ") != strings.Join(chunks, " ") {
		t.Fatalf("local engine did not speak every chunk: %v", engine.spoken)
	}
	if len(synth.calls) != 1 {
		t.Fatalf("expected remote tried once then abandoned, got %d calls", len(synth.calls))
	}
	if engine.used[0] == nil || engine.used[0].Name != "Samantha" {
		t.Fatalf("expected preferred voice, got %+v", engine.used[0])
	}
}

func TestOutputEmptyRemoteAudioUsesLocal(t *testing.T) {
	engine := &fakeEngine{voices: []Voice{{Name: "Default"}}}
	o := NewOutput(OutputConfig{Synthesizer: &fakeSynth{empty: true}, Player: &fakePlayer{}, Engine: engine}, nil)
	if err := o.Speak(context.Background(), "Hello there."); err != nil {
		t.Fatalf("speak: %v", err)
	}
	if len(engine.spoken) != 1 {
		t.Fatalf("expected local synthesis, got %v", engine.spoken)
	}
}

func TestOutputAllPathsFail(t *testing.T) {
	o := NewOutput(OutputConfig{Synthesizer: &fakeSynth{err: errRemoteDown}, Player: &fakePlayer{}}, nil)
	if err := o.Speak(context.Background(), "Hello."); !errors.Is(err, domain.ErrPlayback) {
		t.Fatalf("expected ErrPlayback, got %v", err)
	}
	engine := &fakeEngine{voices: []Voice{{Name: "x"}}, err: errors.New("audio device gone")}
	o = NewOutput(OutputConfig{Engine: engine}, nil)
	if err := o.Speak(context.Background(), "Hello."); !errors.Is(err, domain.ErrPlayback) {
		t.Fatalf("expected ErrPlayback, got %v", err)
	}
	if o.State().Status != domain.PlaybackIdle {
		t.Fatalf("expected idle after failure")
	}
}

func TestOutputBlockedUntilUnlock(t *testing.T) {
	player := &fakePlayer{blocked: true}
	engine := &fakeEngine{voices: []Voice{{Name: "x"}}}
	o := NewOutput(OutputConfig{Synthesizer: &fakeSynth{}, Player: player, Engine: engine}, nil)

	if err := o.Speak(context.Background(), "Hello."); !errors.Is(err, domain.ErrPlaybackBlocked) {
		t.Fatalf("expected ErrPlaybackBlocked, got %v", err)
	}
	if len(engine.spoken) != 0 {
		t.Fatalf("blocked playback must not fall back")
	}
	if err := o.Unlock(context.Background()); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if err := o.Speak(context.Background(), "Hello."); err != nil {
		t.Fatalf("speak after unlock: %v", err)
	}
}

func TestOutputCancelStopsPlayback(t *testing.T) {
	player := &fakePlayer{block: true, started: make(chan struct{})}
	o := NewOutput(OutputConfig{Synthesizer: &fakeSynth{}, Player: player}, nil)

	done := make(chan error, 1)
	go func() { done <- o.Speak(context.Background(), longReply) }()

	select {
	case <-player.started:
	case <-time.After(time.Second):
		t.Fatalf("playback never started")
	}
	if o.State().Status != domain.PlaybackSpeaking {
		t.Fatalf("expected speaking, got %s", o.State().Status)
	}

	o.Cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("speak did not return after cancel")
	}
	if o.State().Status != domain.PlaybackIdle {
		t.Fatalf("expected idle after cancel")
	}
	if player.stops != 1 {
		t.Fatalf("expected player stopped once, got %d", player.stops)
	}
}

func TestOutputCancelIsIdempotent(t *testing.T) {
	o := NewOutput(OutputConfig{}, nil)
	for i := 0; i < 3; i++ {
		o.Cancel()
	}
	var nilOutput *Output
	nilOutput.Cancel()
	if o.State().Status != domain.PlaybackIdle {
		t.Fatalf("expected idle")
	}
}

func TestOutputVoiceReadinessGate(t *testing.T) {
	t.Run("espera la lista", func(t *testing.T) {
		engine := &fakeEngine{changed: make(chan struct{})}
		o := NewOutput(OutputConfig{Engine: engine, VoiceReadyTimeout: time.Second}, nil)
		go func() {
			time.Sleep(20 * time.Millisecond)
			engine.mu.Lock()
			engine.voices = []Voice{{Name: "Fred"}, {Name: "Victoria", Gender: "female"}}
			engine.mu.Unlock()
			close(engine.changed)
		}()
		if err := o.Speak(context.Background(), "Hi."); err != nil {
			t.Fatalf("speak: %v", err)
		}
		if engine.used[0] == nil || engine.used[0].Name != "Victoria" {
			t.Fatalf("expected female voice after gate, got %+v", engine.used[0])
		}
	})
	t.Run("vence el plazo", func(t *testing.T) {
		engine := &fakeEngine{}
		o := NewOutput(OutputConfig{Engine: engine, VoiceReadyTimeout: 10 * time.Millisecond}, nil)
		if err := o.Speak(context.Background(), "Hi."); err != nil {
			t.Fatalf("speak: %v", err)
		}
		if len(engine.used) != 1 || engine.used[0] != nil {
			t.Fatalf("expected engine default voice, got %+v", engine.used)
		}
	})
}

func TestPickVoice(t *testing.T) {
	if PickVoice(nil) != nil {
		t.Fatalf("expected nil voice for empty list")
	}
	voices := []Voice{{Name: "Alex"}, {Name: "Microsoft Zira Desktop"}, {Name: "Samantha"}}
	if v := PickVoice(voices); v.Name != "Samantha" {
		t.Fatalf("expected Samantha first, got %s", v.Name)
	}
	if v := PickVoice([]Voice{{Name: "Alex"}, {Name: "Tessa", Gender: "F"}}); v.Name != "Tessa" {
		t.Fatalf("expected female fallback, got %s", v.Name)
	}
	if v := PickVoice([]Voice{{Name: "Alex"}, {Name: "Fred"}}); v.Name != "Alex" {
		t.Fatalf("expected first voice, got %s", v.Name)
	}
}

func TestClientRelay(t *testing.T) {
	r := NewClientRelay()
	if err := r.Play(context.Background(), []byte("mp3")); !errors.Is(err, domain.ErrPlaybackBlocked) {
		t.Fatalf("expected blocked before unlock, got %v", err)
	}
	_ = r.Unlock(context.Background())

	o := NewOutput(OutputConfig{Synthesizer: &fakeSynth{err: errRemoteDown}, Player: r, Engine: r, VoiceReadyTimeout: time.Second}, nil)
	go r.SetVoices([]Voice{{Name: "Google US English Female"}})
	if err := o.Speak(context.Background(), "Tell me about your family."); err != nil {
		t.Fatalf("speak: %v", err)
	}
	cues := r.Drain()
	if len(cues) != 1 || cues[0].Kind != CueLocal || cues[0].Voice == nil {
		t.Fatalf("unexpected cues %+v", cues)
	}
	if len(r.Drain()) != 0 {
		t.Fatalf("drain should empty the queue")
	}
}

// slowStopEngine cuenta reproducciones simultáneas; Stop tarda como una plataforma real.
type slowStopEngine struct {
	hold    time.Duration
	started chan struct{}

	mu     sync.Mutex
	active int
	peak   int
	stops  int
}

func (e *slowStopEngine) Voices() []Voice                { return []Voice{{Name: "Samantha"}} }
func (e *slowStopEngine) VoicesChanged() <-chan struct{} { return nil }

func (e *slowStopEngine) Speak(ctx context.Context, _ string, _ *Voice) error {
	e.mu.Lock()
	e.active++
	if e.active > e.peak {
		e.peak = e.active
	}
	e.mu.Unlock()
	select {
	case e.started <- struct{}{}:
	default:
	}

	var err error
	select {
	case <-ctx.Done():
		err = ctx.Err()
	case <-time.After(e.hold):
	}

	e.mu.Lock()
	e.active--
	e.mu.Unlock()
	return err
}

func (e *slowStopEngine) Stop() {
	time.Sleep(50 * time.Millisecond)
	e.mu.Lock()
	e.stops++
	e.mu.Unlock()
}

func TestOutputOverlappingSpeakKeepsOnePlayback(t *testing.T) {
	engine := &slowStopEngine{hold: 100 * time.Millisecond, started: make(chan struct{}, 1)}
	o := NewOutput(OutputConfig{Engine: engine}, nil)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = o.Speak(context.Background(), "First reply.")
	}()
	select {
	case <-engine.started:
	case <-time.After(time.Second):
		t.Fatalf("first playback never started")
	}

	for _, text := range []string{"Second reply.", "Third reply."} {
		wg.Add(1)
		go func(text string) {
			defer wg.Done()
			_ = o.Speak(context.Background(), text)
		}(text)
	}

	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(3 * time.Second):
		t.Fatalf("speak calls did not finish")
	}

	engine.mu.Lock()
	defer engine.mu.Unlock()
	if engine.peak != 1 {
		t.Fatalf("expected at most one playback at a time, peak was %d", engine.peak)
	}
	if o.State().Status != domain.PlaybackIdle {
		t.Fatalf("expected idle after all calls returned")
	}
}

func TestOutputCancelAfterDeliveryStopsPlatform(t *testing.T) {
	r := NewClientRelay()
	_ = r.Unlock(context.Background())
	o := NewOutput(OutputConfig{Synthesizer: &fakeSynth{}, Player: r, Engine: r}, nil)

	// El relay entrega el clip y Speak termina antes de que la página lo reproduzca.
	if err := o.Speak(context.Background(), "Tell me more."); err != nil {
		t.Fatalf("speak: %v", err)
	}
	if got := r.Drain(); len(got) != 1 || got[0].Kind != CueAudio {
		t.Fatalf("expected one audio cue, got %+v", got)
	}

	o.Cancel()
	cues := r.Drain()
	if len(cues) != 1 || cues[0].Kind != CueCancel {
		t.Fatalf("expected cancel cue after delivery, got %+v", cues)
	}
}
