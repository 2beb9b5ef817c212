package service

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"remi-llm/internal/domain"
)

func msg(role domain.Role, content string, at time.Time) domain.Message {
	return domain.Message{ID: content, Role: role, Content: content, Timestamp: at}
}

func TestSummarize_Empty(t *testing.T) {
	got := Summarize(nil)
	if got.Text != NoConversationSummary {
		t.Fatalf("expected no-conversation text, got %q", got.Text)
	}
	if got.Exchanges != 0 || len(got.Topics) != 0 {
		t.Fatalf("unexpected summary: %+v", got)
	}
}

func TestSummarize_GreetingOnly(t *testing.T) {
	greeting := domain.Message{ID: domain.GreetingID, Role: domain.RoleAssistant, Content: Greeting, Timestamp: time.Now()}
	got := Summarize([]domain.Message{greeting})
	if got.Text != NoConversationSummary {
		t.Fatalf("greeting alone is not an exchange, got %q", got.Text)
	}
}

func TestSummarize_TopicsFromUserMessages(t *testing.T) {
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	history := []domain.Message{
		{ID: domain.GreetingID, Role: domain.RoleAssistant, Content: Greeting, Timestamp: start},
		msg(domain.RoleUser, "I keep thinking about my mother", start.Add(time.Minute)),
		msg(domain.RoleAssistant, "What do you remember about her garden work?", start.Add(2*time.Minute)),
		msg(domain.RoleUser, "She spent every morning in the garden", start.Add(3*time.Minute)),
		msg(domain.RoleAssistant, "That sounds lovely.", start.Add(4*time.Minute)),
		msg(domain.RoleUser, "My mother grew tomatoes", start.Add(12*time.Minute)),
	}

	got := Summarize(history)
	if !reflect.DeepEqual(got.Topics, []string{"Family", "Hobbies & Interests"}) {
		t.Fatalf("unexpected topics: %v", got.Topics)
	}
	if got.UserMessages != 3 || got.AssistantMessages != 2 || got.Exchanges != 5 {
		t.Fatalf("unexpected counts: %+v", got)
	}
	if got.Duration != 12*time.Minute {
		t.Fatalf("unexpected duration: %v", got.Duration)
	}
	if !strings.Contains(got.Text, "- Family") || !strings.Contains(got.Text, "Duration: 12 minutes") {
		t.Fatalf("unexpected rendered text:\n%s", got.Text)
	}
}

func TestSummarize_AssistantWordsIgnoredForTopics(t *testing.T) {
	now := time.Now()
	history := []domain.Message{
		msg(domain.RoleUser, "hello there", now),
		msg(domain.RoleAssistant, "Tell me about your school and your family", now),
	}
	got := Summarize(history)
	if len(got.Topics) != 0 {
		t.Fatalf("expected no topics, got %v", got.Topics)
	}
	if !strings.Contains(got.Text, generalTopic) {
		t.Fatalf("expected general topic fallback in text")
	}
}

func TestSummarize_Mood(t *testing.T) {
	now := time.Now()
	cases := []struct {
		name string
		text string
		want domain.MoodBucket
	}{
		{"positive", "We were so happy, it was wonderful", domain.MoodPositive},
		{"nostalgic", "I remember those days, I miss them", domain.MoodNostalgic},
		{"reflective", "I think I finally understand what it meant", domain.MoodReflective},
		{"tie is mixed", "I was happy and I remember it", domain.MoodMixed},
		{"none is mixed", "we had tea", domain.MoodMixed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Summarize([]domain.Message{msg(domain.RoleUser, tc.text, now)})
			if got.Mood != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got.Mood)
			}
			if got.Reflection != reflections[tc.want] {
				t.Fatalf("reflection must follow mood")
			}
		})
	}
}

func TestSummarize_Deterministic(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	history := []domain.Message{
		msg(domain.RoleUser, "We travelled abroad when I was young and I loved it", now),
		msg(domain.RoleAssistant, "Where did you go?", now.Add(time.Minute)),
	}
	a := Summarize(history)
	b := Summarize(history)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("summaries differ:\n%+v\n%+v", a, b)
	}
}
