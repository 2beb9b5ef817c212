package domain

import "time"

type Participant struct {
	ParticipantID string    `json:"participant_id"`
	CreatedAt     time.Time `json:"created_at"`
}

// ConversationRecord es la fila durable que se guarda al terminar una sesión.
type ConversationRecord struct {
	ID              string    `json:"id"`
	ParticipantID   string    `json:"participant_id"`
	Transcript      string    `json:"transcript"`
	Summary         string    `json:"summary"`
	DurationSeconds int       `json:"duration"`
	Turns           int       `json:"turns"`
	Mode            Mode      `json:"mode"`
	Timestamp       time.Time `json:"timestamp"`
}
