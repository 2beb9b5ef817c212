package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"remi-llm/internal/config"
	"remi-llm/internal/db"
	"remi-llm/internal/domain"
	"remi-llm/internal/llm"
	"remi-llm/internal/repository"
	"remi-llm/internal/service"
	"remi-llm/internal/speech"
)

// Cliente de terminal: misma conversación que la API, con ffmpeg para grabar
// y ffplay/espeak-ng para hablar.
func main() {
	ctx := context.Background()
	reader := bufio.NewReader(os.Stdin)

	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := zap.NewExample()
	defer logger.Sync()

	if cfg.RunMigrations {
		if err := db.Migrate(ctx, cfg.DatabaseURL); err != nil {
			log.Fatalf("migrate: %v", err)
		}
	}
	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	conversationRepo := repository.NewPgConversationRepository(pool)
	llmClient := llm.NewHTTPClient(llm.Options{
		BaseURL:     cfg.LLMBaseURL,
		APIKey:      cfg.LLMAPIKey,
		Model:       cfg.LLMModel,
		Temperature: cfg.LLMTemperature,
		MaxTokens:   cfg.LLMMaxTokens,
		Timeout:     cfg.CompletionTimeout,
	}, logger)

	participantSvc := service.NewParticipantService(logger, repository.NewPgParticipantRepository(pool), nil)
	moodSvc := service.NewMoodService(logger, repository.NewPgMoodRepository(pool))
	completionSvc := service.NewCompletionService(logger, llmClient, conversationRepo, cfg.PreviousContextMax)

	var (
		synthesizer speech.Synthesizer
		transcriber speech.Transcriber
		recognizer  speech.Recognizer
		engine      speech.LocalEngine
	)
	if cfg.TTSAPIKey != "" {
		synthesizer = speech.NewGoogleSynthesizer(cfg.TTSURL, cfg.TTSAPIKey, cfg.TTSVoice, cfg.SynthesisTimeout)
	}
	if cfg.STTURL != "" {
		transcriber = speech.NewHTTPTranscriber(cfg.STTURL, cfg.STTAPIKey, cfg.TranscriptionTimeout)
	}
	if cfg.STTStreamURL != "" {
		recognizer = speech.NewWSRecognizer(cfg.STTStreamURL, cfg.STTAPIKey)
	}
	if _, err := exec.LookPath("espeak-ng"); err == nil {
		engine = speech.NewEspeakEngine()
	}
	caps := speech.DetectLocal(transcriber != nil || recognizer != nil, synthesizer != nil).Capabilities()

	conversationSvc := service.NewConversationService(logger, service.ConversationServiceConfig{
		Personas:    completionSvc,
		Completer:   completionSvc,
		Records:     conversationRepo,
		Recognizer:  recognizer,
		Transcriber: transcriber,
		Devices: func() service.SessionDevices {
			return service.SessionDevices{
				Output: speech.NewOutput(speech.OutputConfig{
					Synthesizer:       synthesizer,
					Player:            speech.FFplayPlayer{},
					Engine:            engine,
					ChunkSize:         cfg.SpeechChunkSize,
					SynthesisTimeout:  cfg.SynthesisTimeout,
					VoiceReadyTimeout: cfg.VoiceReadyTimeout,
				}, logger),
				Capabilities: caps,
			}
		},
	})

	fmt.Println("===== Remi =====")
	participant := register(ctx, reader, participantSvc)
	askMood(ctx, reader, moodSvc, participant.ParticipantID, domain.AssessmentPre, "")

	mode := domain.ModeText
	if caps.VoiceInput() && caps.SpeechSynthesis {
		fmt.Print("Would you like to talk by [v]oice or [t]ext? ")
		if strings.EqualFold(readLine(reader), "v") {
			mode = domain.ModeVoice
		}
	} else {
		fmt.Println("(voice conversation is not available on this machine; using text)")
	}

	live, err := conversationSvc.Start(ctx, participant.ParticipantID, mode)
	if err != nil {
		log.Fatalf("start session: %v", err)
	}
	if live.Notice != "" {
		fmt.Println("[notice]", live.Notice)
	}
	fmt.Println("Remi:", service.Greeting)
	if mode == domain.ModeVoice {
		_ = live.Output.Speak(ctx, service.Greeting)
	}
	fmt.Println("Commands: /voice, /text, /pause, /resume, /end")

	chat(ctx, reader, conversationSvc, live)

	res, err := conversationSvc.End(ctx, participant.ParticipantID, live.ID)
	if err != nil {
		log.Fatalf("end session: %v", err)
	}
	fmt.Println()
	fmt.Println(res.Summary.Text)
	if res.Notice != "" {
		fmt.Println("[notice]", res.Notice)
	}
	askMood(ctx, reader, moodSvc, participant.ParticipantID, domain.AssessmentPost, res.ConversationID)
	fmt.Println("Thank you for sharing your memories today.")
}

func chat(ctx context.Context, reader *bufio.Reader, conversations *service.ConversationService, live *service.LiveSession) {
	ctrl := live.Controller
	for {
		snap := ctrl.Snapshot()
		if snap.Session.Mode == domain.ModeVoice {
			fmt.Print("\n[Enter] to speak, or type> ")
		} else {
			fmt.Print("\nYou> ")
		}
		line := readLine(reader)

		switch strings.ToLower(line) {
		case "/end":
			return
		case "/voice":
			if !(live.Capabilities.VoiceInput() && live.Capabilities.SpeechSynthesis) {
				fmt.Println("[notice] voice conversation is not available on this machine")
				continue
			}
			ctrl.SwitchMode(domain.ModeVoice)
			continue
		case "/text":
			ctrl.SwitchMode(domain.ModeText)
			continue
		case "/pause":
			ctrl.Pause()
			fmt.Println("(paused; type /resume to continue)")
			continue
		case "/resume":
			ctrl.Resume()
			continue
		}

		mode := snap.Session.Mode
		if line == "" && mode == domain.ModeVoice {
			text, err := record(ctx, reader, conversations, live)
			if err != nil {
				if notice := domain.Notice(err); notice != "" {
					fmt.Println("[notice]", notice)
				}
				continue
			}
			fmt.Println("You (voice):", text)
			line = text
		}

		out, err := ctrl.SubmitUserTurn(ctx, line, mode)
		switch {
		case errors.Is(err, service.ErrEmptyTurn):
			continue
		case errors.Is(err, service.ErrSessionPaused):
			fmt.Println("(paused; type /resume to continue)")
			continue
		case err != nil:
			fmt.Println("[error]", err)
			continue
		}
		fmt.Println("Remi:", out.Reply.Content)
		if out.Notice != "" {
			fmt.Println("[notice]", out.Notice)
		}
		if out.EndRequested {
			return
		}
	}
}

func record(ctx context.Context, reader *bufio.Reader, conversations *service.ConversationService, live *service.LiveSession) (string, error) {
	capture, err := conversations.NewCapture(live, speech.NewFFmpegMicrophone(), true)
	if err != nil {
		return "", err
	}
	defer conversations.ReleaseCapture(live, capture)

	if err := capture.Start(ctx); err != nil {
		return "", err
	}
	fmt.Print("Recording... press Enter to stop. ")
	_ = readLine(reader)
	fmt.Println("(transcribing)")
	return capture.Stop(ctx)
}

func register(ctx context.Context, reader *bufio.Reader, participants *service.ParticipantService) domain.Participant {
	for {
		fmt.Print("Participant ID (initials + age, e.g. GK82): ")
		p, err := participants.Register(ctx, readLine(reader), "cli")
		if err == nil {
			return p
		}
		if errors.Is(err, service.ErrInvalidParticipantID) {
			fmt.Println("That doesn't look right. Use your initials followed by your age.")
			continue
		}
		log.Fatalf("register: %v", err)
	}
}

func askMood(ctx context.Context, reader *bufio.Reader, moods *service.MoodService, participantID string, kind domain.AssessmentType, sessionID string) {
	prompt := "How are you feeling right now? (0-100, Enter to skip): "
	if kind == domain.AssessmentPost {
		prompt = "How are you feeling after the session? (0-100, Enter to skip): "
	}
	for {
		fmt.Print(prompt)
		raw := readLine(reader)
		if raw == "" {
			return
		}
		rating, err := strconv.Atoi(raw)
		if err != nil {
			fmt.Println("Please enter a number between 0 and 100.")
			continue
		}
		m, err := moods.Record(ctx, service.RecordMoodInput{
			ParticipantID:  participantID,
			SessionID:      sessionID,
			Rating:         rating,
			AssessmentType: kind,
		})
		if errors.Is(err, service.ErrInvalidRating) {
			fmt.Println("Please enter a number between 0 and 100.")
			continue
		}
		if err != nil {
			fmt.Println("[notice]", domain.Notice(err))
			return
		}
		fmt.Printf("%s %s\n", m.Emoji, m.Label)
		return
	}
}

func readLine(reader *bufio.Reader) string {
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		os.Exit(0)
	}
	return strings.TrimSpace(line)
}
