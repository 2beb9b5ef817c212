package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestNotice(t *testing.T) {
	if Notice(nil) != "" {
		t.Fatalf("expected empty notice for nil")
	}
	if Notice(fmt.Errorf("speak: %w", context.Canceled)) != "" {
		t.Fatalf("expected cancellation to be silent")
	}

	sentinels := []error{
		ErrPermissionDenied,
		ErrNoSpeechDetected,
		ErrTranscription,
		ErrCompletion,
		ErrPlaybackBlocked,
		ErrPlayback,
		ErrPersistence,
	}
	seen := map[string]bool{}
	for _, s := range sentinels {
		msg := Notice(fmt.Errorf("wrapped: %w", s))
		if msg == "" {
			t.Fatalf("expected notice for %v", s)
		}
		if seen[msg] {
			t.Fatalf("expected distinct notice for %v, got duplicate %q", s, msg)
		}
		seen[msg] = true
	}

	if Notice(errors.New("boom")) == "" {
		t.Fatalf("expected generic notice for unknown errors")
	}
}

func TestParseMode(t *testing.T) {
	cases := map[string]Mode{"": ModeText, "TEXT": ModeText, " voice ": ModeVoice}
	for in, want := range cases {
		got, err := ParseMode(in)
		if err != nil || got != want {
			t.Fatalf("ParseMode(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseMode("video"); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}
