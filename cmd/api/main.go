package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"remi-llm/internal/config"
	"remi-llm/internal/db"
	apihttp "remi-llm/internal/http"
	"remi-llm/internal/llm"
	"remi-llm/internal/repository"
	"remi-llm/internal/service"
	"remi-llm/internal/speech"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	if cfg.RunMigrations {
		if err := db.Migrate(ctx, cfg.DatabaseURL); err != nil {
			logger.Fatal("db migrate", zap.Error(err))
		}
	}

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()

	participantRepo := repository.NewPgParticipantRepository(pool)
	conversationRepo := repository.NewPgConversationRepository(pool)
	moodRepo := repository.NewPgMoodRepository(pool)

	llmClient := llm.NewHTTPClient(llm.Options{
		BaseURL:     cfg.LLMBaseURL,
		APIKey:      cfg.LLMAPIKey,
		Model:       cfg.LLMModel,
		Temperature: cfg.LLMTemperature,
		MaxTokens:   cfg.LLMMaxTokens,
		Timeout:     cfg.CompletionTimeout,
	}, logger)

	var (
		limiter     service.RateLimiter
		ctxStore    service.SessionContextStore
		redisClient *redis.Client
	)
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed, using in-memory stores", zap.Error(err))
		} else {
			limiter = service.NewRedisRateLimiter(redisClient, "remi:rl:register:", cfg.RegisterRateWindow, cfg.RegisterRateMax)
			ctxStore = service.NewRedisSessionContextStore(redisClient)
		}
		cancel()
	}
	if limiter == nil {
		limiter = service.NewMemoryRateLimiter(cfg.RegisterRateWindow, cfg.RegisterRateMax)
	}

	var (
		synthesizer speech.Synthesizer
		transcriber speech.Transcriber
		recognizer  speech.Recognizer
	)
	if cfg.TTSAPIKey != "" {
		synthesizer = speech.NewGoogleSynthesizer(cfg.TTSURL, cfg.TTSAPIKey, cfg.TTSVoice, cfg.SynthesisTimeout)
	} else {
		logger.Warn("remote synthesis not configured, replies use the browser voice")
	}
	if cfg.STTURL != "" {
		transcriber = speech.NewHTTPTranscriber(cfg.STTURL, cfg.STTAPIKey, cfg.TranscriptionTimeout)
	}
	if cfg.STTStreamURL != "" {
		recognizer = speech.NewWSRecognizer(cfg.STTStreamURL, cfg.STTAPIKey)
	}
	voiceInput := transcriber != nil || recognizer != nil

	completionSvc := service.NewCompletionService(logger, llmClient, conversationRepo, cfg.PreviousContextMax)
	participantSvc := service.NewParticipantService(logger, participantRepo, limiter)
	moodSvc := service.NewMoodService(logger, moodRepo)
	sessionCtx := service.NewSessionContextService(cfg.SessionSecret, cfg.SessionTTL, ctxStore)
	conversationSvc := service.NewConversationService(logger, service.ConversationServiceConfig{
		Personas:    completionSvc,
		Completer:   completionSvc,
		Records:     conversationRepo,
		Recognizer:  recognizer,
		Transcriber: transcriber,
		// La página es la plataforma real de audio: el relay le devuelve clips y frases.
		Devices: func() service.SessionDevices {
			relay := speech.NewClientRelay()
			return service.SessionDevices{
				Output: speech.NewOutput(speech.OutputConfig{
					Synthesizer:       synthesizer,
					Player:            relay,
					Engine:            relay,
					ChunkSize:         cfg.SpeechChunkSize,
					SynthesisTimeout:  cfg.SynthesisTimeout,
					VoiceReadyTimeout: cfg.VoiceReadyTimeout,
				}, logger),
				Relay: relay,
				Capabilities: speech.Capabilities{
					Microphone:        true,
					SpeechRecognition: voiceInput,
					SpeechSynthesis:   true,
				},
			}
		},
	})

	router := apihttp.NewRouter(logger, sessionCtx, apihttp.Handlers{
		Participants: apihttp.NewParticipantHandler(logger, participantSvc, sessionCtx),
		Moods:        apihttp.NewMoodHandler(logger, moodSvc),
		Sessions:     apihttp.NewSessionHandler(logger, conversationSvc),
		Speech:       apihttp.NewSpeechHandler(logger, conversationSvc, transcriber, synthesizer),
	})

	go sweepIdleSessions(ctx, logger, conversationSvc, cfg.SessionIdleTTL)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("starting server",
		zap.String("port", cfg.HTTPPort),
		zap.String("model", llmClient.Model()),
		zap.Bool("remote_tts", synthesizer != nil),
		zap.Bool("voice_input", voiceInput),
	)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}
}

// sweepIdleSessions descarta sesiones abandonadas (pestaña cerrada sin terminar).
func sweepIdleSessions(ctx context.Context, logger *zap.Logger, conversations *service.ConversationService, idle time.Duration) {
	if idle <= 0 {
		return
	}
	ticker := time.NewTicker(idle / 4)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := conversations.Sweep(idle); n > 0 {
				logger.Info("idle sessions swept", zap.Int("count", n))
			}
		}
	}
}
