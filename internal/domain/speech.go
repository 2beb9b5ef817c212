package domain

type RecordingStatus string

const (
	RecordingIdle         RecordingStatus = "idle"
	RecordingActive       RecordingStatus = "recording"
	RecordingTranscribing RecordingStatus = "transcribing"
)

// RecordingState pertenece al adaptador de captura y dura una interacción de grabación.
type RecordingState struct {
	Status            RecordingStatus `json:"status"`
	PartialTranscript string          `json:"partial_transcript,omitempty"`
}

type PlaybackStatus string

const (
	PlaybackIdle     PlaybackStatus = "idle"
	PlaybackSpeaking PlaybackStatus = "speaking"
)

// SpeechPlaybackState pertenece al adaptador de salida; como máximo una reproducción activa.
type SpeechPlaybackState struct {
	Status      PlaybackStatus `json:"status"`
	PendingText string         `json:"pending_text,omitempty"`
}
