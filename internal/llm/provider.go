package llm

import "context"

// Roles aceptados por el endpoint de chat completions.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage es un turno tal como lo espera la API.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// LLMClient define la interfaz para generar respuestas con un LLM.
type LLMClient interface {
	// Complete envía la instrucción de sistema seguida del historial ordenado.
	Complete(ctx context.Context, system string, history []ChatMessage) (string, error)
	// Generate es un atajo de un solo mensaje de usuario (herramientas de evaluación).
	Generate(ctx context.Context, prompt string) (string, error)
}
