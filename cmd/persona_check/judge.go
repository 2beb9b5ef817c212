package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"remi-llm/internal/llm"
)

// judgeResponse es el veredicto JSON del juez.
type judgeResponse struct {
	Reasoning     string `json:"reasoning"`
	QuestionScore int    `json:"question_score"`
	EmpathyScore  int    `json:"empathy_score"`
	MemoryScore   int    `json:"memory_score"`
}

func evaluateReply(ctx context.Context, judge llm.LLMClient, sc Scenario, input, reply string) (judgeResponse, error) {
	questions := countQuestions(reply)
	advice := detectAdvice(reply)
	heuristicLine := fmt.Sprintf("Heuristics: questions=%d, gives_advice=%t, follow_up_session=%t",
		questions, advice, sc.PriorTranscript != "")

	raw, err := judge.Generate(ctx, buildJudgePrompt(sc, heuristicLine, input, reply))
	if err != nil {
		return judgeResponse{}, err
	}

	jsonStr := llm.ExtractJSONObject(raw)
	if jsonStr == "" {
		return judgeResponse{}, fmt.Errorf("judge returned no json: %q", raw)
	}
	var jr judgeResponse
	if err := json.Unmarshal([]byte(jsonStr), &jr); err != nil {
		return judgeResponse{}, fmt.Errorf("parse judge json: %w (raw=%q)", err, jsonStr)
	}

	jr.QuestionScore = clamp1to5(jr.QuestionScore)
	jr.EmpathyScore = clamp1to5(jr.EmpathyScore)
	jr.MemoryScore = clamp1to5(jr.MemoryScore)

	// Más de una pregunta por respuesta rompe la regla principal de la persona.
	if questions > 1 && jr.QuestionScore > 2 {
		jr.QuestionScore = 2
	}
	if advice && jr.EmpathyScore > 3 {
		jr.EmpathyScore = 3
	}
	return jr, nil
}

func clamp1to5(v int) int {
	if v < 1 {
		return 1
	}
	if v > 5 {
		return 5
	}
	return v
}

// countQuestions cuenta oraciones interrogativas, no signos sueltos.
func countQuestions(reply string) int {
	n := 0
	prev := rune(0)
	for _, r := range reply {
		if r == '?' && prev != '?' {
			n++
		}
		prev = r
	}
	return n
}

func detectAdvice(reply string) bool {
	l := strings.ToLower(reply)
	for _, s := range []string{"you should", "i recommend", "i suggest", "try to ", "make sure you", "it would help to"} {
		if strings.Contains(l, s) {
			return true
		}
	}
	return false
}

func buildJudgePrompt(sc Scenario, heuristicLine, input, reply string) string {
	prior := "(none: first session)"
	if sc.PriorTranscript != "" {
		prior = sc.PriorTranscript
	}
	return fmt.Sprintf(`You are an expert clinical supervisor reviewing a reminiscence therapy companion called Remi.
Remi talks with older adults (65+), must ask ONLY ONE question per reply, must use reflective listening,
and must never recommend lifestyle changes or treatment.

Previous session transcript: %s
%s

Participant: %q
Remi: %q
Scenario expectation: %s

Score 1-5:
1) question_score: exactly one open question = 5; no question but good reflection = 3; several questions = 1-2.
2) empathy_score: validates feelings and reflects the participant's words = 5; generic or advice-giving = 1-3.
3) memory_score: in a follow-up session, uses what was shared before naturally = 5; acts as a stranger = 1.
   In a first session score 3 unless the reply invents shared history (then 1).

Reply with JSON ONLY (no markdown):
{
  "reasoning": "...",
  "question_score": 0,
  "empathy_score": 0,
  "memory_score": 0
}`,
		prior, heuristicLine, input, reply, sc.Expected,
	)
}
