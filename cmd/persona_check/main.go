package main

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"remi-llm/internal/config"
	"remi-llm/internal/domain"
	"remi-llm/internal/llm"
	"remi-llm/internal/service"
)

const (
	colorGreen = "\033[32m"
	colorCyan  = "\033[36m"
	colorReset = "\033[0m"
)

// Scenario es una conversación guionada contra el LLM real.
type Scenario struct {
	Name            string
	PriorTranscript string
	Inputs          []string
	Expected        string
}

func main() {
	ctx := context.Background()
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}
	logger := zap.NewExample()
	defer logger.Sync()

	llmClient := llm.NewHTTPClient(llm.Options{
		BaseURL:     cfg.LLMBaseURL,
		APIKey:      cfg.LLMAPIKey,
		Model:       cfg.LLMModel,
		Temperature: cfg.LLMTemperature,
		MaxTokens:   cfg.LLMMaxTokens,
		Timeout:     cfg.CompletionTimeout,
	}, logger)
	judge := llm.NewHTTPClient(llm.Options{
		BaseURL:     cfg.LLMBaseURL,
		APIKey:      cfg.LLMAPIKey,
		Model:       cfg.LLMModel,
		Temperature: 0.1,
		Timeout:     cfg.CompletionTimeout,
	}, logger)

	scenarios := []Scenario{
		{
			Name:     "First session, childhood",
			Inputs:   []string{"I grew up on a farm with my three brothers.", "We used to swim in the river every summer."},
			Expected: "Warm reflection and one open question about the farm or the brothers",
		},
		{
			Name:     "Difficult memory",
			Inputs:   []string{"My husband passed away two years ago. I still set the table for two."},
			Expected: "Validates grief without minimising it, no advice, one gentle question",
		},
		{
			Name:            "Follow-up session",
			PriorTranscript: "user: I was a nurse for forty years at St. Mary's.\n\nassistant: That is a long career. What drew you to nursing?",
			Inputs:          []string{"Hello again, Remi."},
			Expected:        "Greets as a returning participant and refers back to the nursing career",
		},
	}

	var totalQ, totalE, totalM, n int
	for _, sc := range scenarios {
		fmt.Printf("\n==== %s ====\n", sc.Name)

		history := &memoryHistory{}
		if sc.PriorTranscript != "" {
			history.transcripts = append(history.transcripts, sc.PriorTranscript)
		}
		completion := service.NewCompletionService(logger, llmClient, history, cfg.PreviousContextMax)
		persona := completion.PersonaFor(ctx, "TEST99")
		ctrl := service.NewTurnController(logger, domain.ConversationSession{
			ID:            uuid.NewString(),
			ParticipantID: "TEST99",
			Mode:          domain.ModeText,
		}, persona, completion, nil)

		for _, input := range sc.Inputs {
			fmt.Printf("%s[Participant]%s %s\n", colorCyan, colorReset, input)
			out, err := ctrl.SubmitUserTurn(ctx, input, domain.ModeText)
			if err != nil {
				log.Fatalf("submit turn: %v", err)
			}
			if out.Err != nil {
				log.Fatalf("completion failed: %v", out.Err)
			}
			fmt.Printf("%s[Remi]%s %s\n", colorGreen, colorReset, out.Reply.Content)

			jr, err := evaluateReply(ctx, judge, sc, input, out.Reply.Content)
			if err != nil {
				log.Fatalf("judge failed: %v", err)
			}
			fmt.Printf("%sJudge%s %q\n", colorCyan, colorReset, jr.Reasoning)
			fmt.Printf("Scores: Question %d/5 | Empathy %d/5 | Memory %d/5\n", jr.QuestionScore, jr.EmpathyScore, jr.MemoryScore)

			totalQ += jr.QuestionScore
			totalE += jr.EmpathyScore
			totalM += jr.MemoryScore
			n++
		}
	}

	if n == 0 {
		return
	}
	fmt.Println("\n==== Averages ====")
	fmt.Printf("Question: %.2f/5 | Empathy: %.2f/5 | Memory: %.2f/5\n",
		float64(totalQ)/float64(n), float64(totalE)/float64(n), float64(totalM)/float64(n))
}
