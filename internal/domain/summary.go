package domain

import "time"

type MoodBucket string

const (
	MoodPositive   MoodBucket = "positive"
	MoodReflective MoodBucket = "reflective"
	MoodNostalgic  MoodBucket = "nostalgic"
	MoodMixed      MoodBucket = "mixed"
)

// SessionSummary es el resultado determinista de resumir un historial.
type SessionSummary struct {
	Topics            []string      `json:"topics"`
	Mood              MoodBucket    `json:"mood"`
	UserMessages      int           `json:"user_messages"`
	AssistantMessages int           `json:"assistant_messages"`
	Exchanges         int           `json:"exchanges"`
	Duration          time.Duration `json:"duration"`
	Reflection        string        `json:"reflection"`
	Text              string        `json:"text"`
}
