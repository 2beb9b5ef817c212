package speech

import (
	"errors"
	"fmt"
)

var (
	// ErrRecognizerBusy: el reconocedor reporta que ya hay una sesión en curso.
	ErrRecognizerBusy = errors.New("speech: recognizer already running")
	ErrCaptureBusy    = errors.New("speech: capture already active")
	ErrNotRecording   = errors.New("speech: not recording")
	ErrNoAPIKey       = errors.New("speech: API key required")
)

// APIError es una respuesta de error de un proveedor remoto de voz.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("speech [%s]: API error %d: %s", e.Provider, e.StatusCode, e.Message)
}

// IsRetryable indica si vale la pena reintentar (429 o 5xx).
func (e *APIError) IsRetryable() bool {
	return e.StatusCode == 429 || (e.StatusCode >= 500 && e.StatusCode < 600)
}
