package config

import (
	"time"

	"github.com/caarlos0/env/v10"
)

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort         string `env:"HTTP_PORT" envDefault:"8080"`
	DatabaseURL      string `env:"DATABASE_URL,required,notEmpty"`
	DatabaseMaxConns int32  `env:"DATABASE_MAX_CONNS" envDefault:"10"`
	RunMigrations    bool   `env:"RUN_MIGRATIONS" envDefault:"true"`

	LLMAPIKey          string        `env:"LLM_API_KEY,required,notEmpty"`
	LLMBaseURL         string        `env:"LLM_BASE_URL" envDefault:"https://api.openai.com/v1"`
	LLMModel           string        `env:"LLM_MODEL" envDefault:"gpt-4o"`
	LLMTemperature     float64       `env:"LLM_TEMPERATURE" envDefault:"0.7"`
	LLMMaxTokens       int           `env:"LLM_MAX_TOKENS" envDefault:"500"`
	CompletionTimeout  time.Duration `env:"COMPLETION_TIMEOUT" envDefault:"60s"`
	PreviousContextMax int           `env:"PREVIOUS_CONTEXT_MAX_CHARS" envDefault:"4000"`

	STTURL               string        `env:"STT_URL"`
	STTStreamURL         string        `env:"STT_STREAM_URL"`
	STTAPIKey            string        `env:"STT_API_KEY"`
	TranscriptionTimeout time.Duration `env:"TRANSCRIPTION_TIMEOUT" envDefault:"30s"`

	TTSURL            string        `env:"TTS_URL" envDefault:"https://texttospeech.googleapis.com/v1/text:synthesize"`
	TTSAPIKey         string        `env:"GOOGLE_TTS_API_KEY"`
	TTSVoice          string        `env:"TTS_VOICE" envDefault:"en-US-Wavenet-F"`
	SynthesisTimeout  time.Duration `env:"SYNTHESIS_TIMEOUT" envDefault:"15s"`
	SpeechChunkSize   int           `env:"SPEECH_CHUNK_SIZE" envDefault:"150"`
	VoiceReadyTimeout time.Duration `env:"VOICE_READY_TIMEOUT" envDefault:"2s"`

	SessionSecret      string        `env:"SESSION_SECRET,required,notEmpty"`
	SessionTTL         time.Duration `env:"SESSION_TTL" envDefault:"12h"`
	SessionIdleTTL     time.Duration `env:"SESSION_IDLE_TTL" envDefault:"2h"`
	RegisterRateMax    int           `env:"REGISTER_RATE_MAX" envDefault:"10"`
	RegisterRateWindow time.Duration `env:"REGISTER_RATE_WINDOW" envDefault:"1m"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
