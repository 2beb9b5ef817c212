package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"go.uber.org/zap"

	"remi-llm/internal/domain"
	"remi-llm/internal/llm"
)

func TestCompletionService_PersonaFor(t *testing.T) {
	ctx := context.Background()

	t.Run("first session when no conversations", func(t *testing.T) {
		svc := NewCompletionService(zap.NewNop(), &llm.MockClient{}, &mockConversationRepo{count: 0}, 0)
		p := svc.PersonaFor(ctx, "GK82")
		if p.Variant != PersonaFirstSession || p.System != firstSessionPrompt {
			t.Fatalf("expected first-session persona, got %s", p.Variant)
		}
	})

	t.Run("lookup failure falls back to first session", func(t *testing.T) {
		svc := NewCompletionService(zap.NewNop(), &llm.MockClient{}, &mockConversationRepo{countErr: errDBDown}, 0)
		if p := svc.PersonaFor(ctx, "GK82"); p.Variant != PersonaFirstSession {
			t.Fatalf("expected first-session persona, got %s", p.Variant)
		}
	})

	t.Run("follow up carries previous transcript", func(t *testing.T) {
		repo := &mockConversationRepo{count: 2, latest: "user: I grew up by the sea"}
		svc := NewCompletionService(zap.NewNop(), &llm.MockClient{}, repo, 0)
		p := svc.PersonaFor(ctx, "GK82")
		if p.Variant != PersonaFollowUp {
			t.Fatalf("expected follow-up persona, got %s", p.Variant)
		}
		if !strings.HasPrefix(p.System, followUpSessionPrompt) || !strings.HasSuffix(p.System, "I grew up by the sea") {
			t.Fatalf("expected transcript appended to follow-up prompt")
		}
	})

	t.Run("previous transcript is tail truncated", func(t *testing.T) {
		long := strings.Repeat("a", 50) + strings.Repeat("z", 20)
		repo := &mockConversationRepo{count: 1, latest: long}
		svc := NewCompletionService(zap.NewNop(), &llm.MockClient{}, repo, 20)
		p := svc.PersonaFor(ctx, "GK82")
		if !strings.HasSuffix(p.System, previousSessionHeader+strings.Repeat("z", 20)) {
			t.Fatalf("expected only the last 20 runes to be kept")
		}
	})
}

func TestCompletionService_Complete(t *testing.T) {
	history := []domain.Message{
		{ID: domain.GreetingID, Role: domain.RoleAssistant, Content: Greeting},
		{ID: "m1", Role: domain.RoleUser, Content: "hello"},
	}
	persona := Persona{Variant: PersonaFirstSession, System: "system"}

	t.Run("success", func(t *testing.T) {
		client := &llm.MockClient{Response: "  Hello again!  "}
		svc := NewCompletionService(zap.NewNop(), client, nil, 0)
		res := svc.Complete(context.Background(), CompletionInput{Persona: persona, History: history})
		if res.Err != nil || res.Text != "Hello again!" {
			t.Fatalf("unexpected result: %+v", res)
		}
		if client.Systems[0] != "system" || len(client.History[0]) != 2 || client.History[0][1].Role != llm.RoleUser {
			t.Fatalf("unexpected request: %+v %+v", client.Systems, client.History)
		}
	})

	t.Run("error returns apology", func(t *testing.T) {
		client := &llm.MockClient{Err: errors.New("timeout")}
		svc := NewCompletionService(zap.NewNop(), client, nil, 0)
		res := svc.Complete(context.Background(), CompletionInput{Persona: persona, History: history})
		if res.Text != ApologyOnError || !errors.Is(res.Err, domain.ErrCompletion) {
			t.Fatalf("unexpected result: %+v", res)
		}
	})

	t.Run("empty reply returns empty apology", func(t *testing.T) {
		client := &llm.MockClient{Response: "   "}
		svc := NewCompletionService(zap.NewNop(), client, nil, 0)
		res := svc.Complete(context.Background(), CompletionInput{Persona: persona, History: history})
		if res.Text != ApologyOnEmpty || res.Err != nil {
			t.Fatalf("unexpected result: %+v", res)
		}
	})

	t.Run("empty response error returns empty apology", func(t *testing.T) {
		client := &llm.MockClient{Err: llm.ErrEmptyResponse}
		svc := NewCompletionService(zap.NewNop(), client, nil, 0)
		if res := svc.Complete(context.Background(), CompletionInput{Persona: persona}); res.Text != ApologyOnEmpty {
			t.Fatalf("unexpected result: %+v", res)
		}
	})
}

func TestTailRunes(t *testing.T) {
	s := "ñandú y más"
	if got := tailRunes(s, 100); got != s {
		t.Fatalf("short strings must be kept, got %q", got)
	}
	got := tailRunes(s, 3)
	if got != "más" || utf8.RuneCountInString(got) != 3 {
		t.Fatalf("unexpected tail: %q", got)
	}
}
