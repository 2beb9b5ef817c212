package domain

import (
	"fmt"
	"strings"
	"time"
)

type Mode string

const (
	ModeText  Mode = "text"
	ModeVoice Mode = "voice"
)

// ParseMode normaliza el modo recibido desde clientes; vacío equivale a texto.
func ParseMode(raw string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", string(ModeText):
		return ModeText, nil
	case string(ModeVoice):
		return ModeVoice, nil
	default:
		return "", fmt.Errorf("unknown conversation mode %q", raw)
	}
}

// ConversationSession vive en memoria mientras dura la conversación.
type ConversationSession struct {
	ID            string    `json:"id"`
	ParticipantID string    `json:"participant_id"`
	Messages      []Message `json:"messages"`
	StartTime     time.Time `json:"start_time"`
	TurnCount     int       `json:"turn_count"`
	Mode          Mode      `json:"mode"`
}

// SessionContext reemplaza el estado de pestaña del navegador (participante + modo).
type SessionContext struct {
	TokenID       string `json:"-"`
	ParticipantID string `json:"participant_id"`
	Mode          Mode   `json:"mode"`
}

// Transcript arma la transcripción "rol: contenido" separada por líneas en blanco.
func Transcript(messages []Message) string {
	parts := make([]string, 0, len(messages))
	for _, m := range messages {
		parts = append(parts, fmt.Sprintf("%s: %s", m.Role, m.Content))
	}
	return strings.Join(parts, "\n\n")
}
