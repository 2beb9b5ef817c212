package domain

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// GreetingID identifica el saludo inicial sembrado en cada sesión.
const GreetingID = "greeting"

// Message es inmutable una vez creado; el historial solo crece por append.
type Message struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Role      Role      `json:"role"`
	Timestamp time.Time `json:"timestamp"`
}

// IsGreeting indica si el mensaje es el saludo sembrado y no parte de un turno.
func (m Message) IsGreeting() bool {
	return m.ID == GreetingID
}
