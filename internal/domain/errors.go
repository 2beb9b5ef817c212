package domain

import (
	"context"
	"errors"
)

// Taxonomía de fallos visibles para el participante.
var (
	ErrPermissionDenied = errors.New("microphone permission denied")
	ErrNoSpeechDetected = errors.New("no speech detected")
	ErrTranscription    = errors.New("transcription failed")
	ErrCompletion       = errors.New("completion failed")
	ErrPlaybackBlocked  = errors.New("playback blocked")
	ErrPlayback         = errors.New("playback failed")
	ErrPersistence      = errors.New("persistence failed")
)

// Notice traduce un error a un aviso corto para mostrar al participante.
// Devuelve "" cuando no hay nada que avisar (nil o cancelación).
func Notice(err error) string {
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return ""
	case errors.Is(err, ErrPermissionDenied):
		return "Unable to access your microphone. Please check your browser permissions."
	case errors.Is(err, ErrNoSpeechDetected):
		return "We didn't catch that. Please try speaking again."
	case errors.Is(err, ErrTranscription):
		return "We couldn't transcribe your message. Please try again or type it instead."
	case errors.Is(err, ErrCompletion):
		return "Failed to get a response. Please try again."
	case errors.Is(err, ErrPlaybackBlocked):
		return "Audio is blocked by your browser. Tap the speaker button to enable sound."
	case errors.Is(err, ErrPlayback):
		return "Unable to play audio response. Check your audio settings."
	case errors.Is(err, ErrPersistence):
		return "There was a problem saving your conversation."
	default:
		return "Something went wrong. Please try again."
	}
}
