package speech

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strings"
	"sync"

	"remi-llm/internal/domain"
)

const (
	micSampleRateHz = 16000
	// PCMFormat es el formato que entrega FFmpegMicrophone.
	PCMFormat = "pcm_s16le_16000"
)

// FFmpegMicrophone graba el dispositivo por defecto con ffmpeg (PCM16 mono).
type FFmpegMicrophone struct {
	goos string
}

func NewFFmpegMicrophone() *FFmpegMicrophone {
	return &FFmpegMicrophone{goos: runtime.GOOS}
}

func (m *FFmpegMicrophone) Format() string { return PCMFormat }

func (m *FFmpegMicrophone) Open(ctx context.Context) (io.ReadCloser, error) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return nil, fmt.Errorf("%w: ffmpeg not found in PATH", domain.ErrPermissionDenied)
	}
	args, err := micFFmpegArgs(m.goos)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPermissionDenied, err)
	}
	cmd := exec.Command("ffmpeg", args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("open ffmpeg stdout: %w", err)
	}
	cmd.Stderr = io.Discard
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: start ffmpeg: %v", domain.ErrPermissionDenied, err)
	}
	return &ffmpegCapture{cmd: cmd, stdout: stdout}, nil
}

func micFFmpegArgs(goos string) ([]string, error) {
	var input []string
	switch goos {
	case "darwin":
		input = []string{"-f", "avfoundation", "-i", ":0"}
	case "linux":
		input = []string{"-f", "pulse", "-i", "default"}
	default:
		return nil, fmt.Errorf("mic capture is not implemented for %s", goos)
	}
	args := []string{"-hide_banner", "-loglevel", "error"}
	args = append(args, input...)
	return append(args, "-ac", "1", "-ar", fmt.Sprintf("%d", micSampleRateHz), "-f", "s16le", "-"), nil
}

type ffmpegCapture struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	once   sync.Once
}

func (c *ffmpegCapture) Read(p []byte) (int, error) {
	return c.stdout.Read(p)
}

// Close mata ffmpeg; es el único camino para soltar el dispositivo.
func (c *ffmpegCapture) Close() error {
	c.once.Do(func() {
		if c.cmd.Process != nil {
			_ = c.cmd.Process.Kill()
		}
		_ = c.stdout.Close()
		_ = c.cmd.Wait()
	})
	return nil
}

// FFplayPlayer reproduce clips (MP3) con ffplay. En terminal nunca está bloqueado.
type FFplayPlayer struct{}

func (FFplayPlayer) Unlock(context.Context) error { return nil }

func (FFplayPlayer) Play(ctx context.Context, audio []byte) error {
	if _, err := exec.LookPath("ffplay"); err != nil {
		return fmt.Errorf("%w: ffplay not found in PATH", domain.ErrPlayback)
	}
	cmd := exec.CommandContext(ctx, "ffplay", "-nodisp", "-autoexit", "-loglevel", "error", "-i", "pipe:0")
	cmd.Stdin = bytes.NewReader(audio)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: ffplay: %v", domain.ErrPlayback, err)
	}
	return nil
}

// EspeakEngine es la síntesis local de la terminal (espeak-ng).
type EspeakEngine struct {
	Rate int

	once   sync.Once
	voices []Voice
	ready  chan struct{}
}

func NewEspeakEngine() *EspeakEngine {
	return &EspeakEngine{Rate: 150, ready: make(chan struct{})}
}

// Voices lista las voces inglesas de espeak-ng la primera vez que se consulta.
func (e *EspeakEngine) Voices() []Voice {
	e.once.Do(func() {
		defer close(e.ready)
		out, err := exec.Command("espeak-ng", "--voices=en").Output()
		if err != nil {
			return
		}
		e.voices = parseEspeakVoices(out)
	})
	return e.voices
}

func (e *EspeakEngine) VoicesChanged() <-chan struct{} {
	return e.ready
}

func (e *EspeakEngine) Speak(ctx context.Context, text string, voice *Voice) error {
	if _, err := exec.LookPath("espeak-ng"); err != nil {
		return fmt.Errorf("%w: espeak-ng not found in PATH", domain.ErrPlayback)
	}
	args := []string{"-s", fmt.Sprintf("%d", e.Rate)}
	if voice != nil && voice.Lang != "" {
		args = append(args, "-v", voice.Lang)
	}
	args = append(args, text)
	cmd := exec.CommandContext(ctx, "espeak-ng", args...)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: espeak-ng: %v", domain.ErrPlayback, err)
	}
	return nil
}

// parseEspeakVoices interpreta la tabla de `espeak-ng --voices`:
// Pty Language Age/Gender VoiceName File Other
func parseEspeakVoices(out []byte) []Voice {
	var voices []Voice
	sc := bufio.NewScanner(bytes.NewReader(out))
	header := true
	for sc.Scan() {
		if header {
			header = false
			continue
		}
		fields := strings.Fields(sc.Text())
		if len(fields) < 4 {
			continue
		}
		gender := fields[2]
		if i := strings.IndexByte(gender, '/'); i >= 0 {
			gender = gender[i+1:]
		}
		voices = append(voices, Voice{
			Name:   strings.ReplaceAll(fields[3], "_", " "),
			Lang:   fields[1],
			Gender: gender,
		})
	}
	return voices
}
