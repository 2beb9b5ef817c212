package service

import (
	"fmt"
	"math"
	"strings"
	"unicode"

	"remi-llm/internal/domain"
)

// NoConversationSummary se devuelve cuando solo existe el saludo.
const NoConversationSummary = "No conversation took place in this session."

const generalTopic = "General reminiscence"

type keywordBucket struct {
	name     string
	keywords []string
}

// Orden estable: define el orden de los temas en el resumen.
var topicBuckets = []keywordBucket{
	{name: "Family", keywords: []string{"family", "parent", "child", "daughter", "son", "mother", "father"}},
	{name: "Work & Career", keywords: []string{"work", "job", "career", "profession", "employment"}},
	{name: "Travel & Experiences", keywords: []string{"travel", "vacation", "trip", "visit", "abroad", "journey"}},
	{name: "Education & Learning", keywords: []string{"school", "education", "learn", "college", "university", "study"}},
	{name: "Hobbies & Interests", keywords: []string{"hobby", "interest", "activity", "garden", "read", "cook"}},
}

var moodBuckets = []struct {
	mood     domain.MoodBucket
	keywords []string
}{
	{mood: domain.MoodPositive, keywords: []string{"happy", "joy", "love", "wonderful", "great", "fun", "proud", "laugh", "enjoy", "beautiful"}},
	{mood: domain.MoodReflective, keywords: []string{"think", "thought", "realize", "understand", "wonder", "learned", "meaning", "lesson"}},
	{mood: domain.MoodNostalgic, keywords: []string{"remember", "miss", "childhood", "memory", "memories", "ago", "young", "past"}},
}

var reflections = map[domain.MoodBucket]string{
	domain.MoodPositive: "The participant shared warm and joyful memories during this session. " +
		"Their stories highlighted moments of connection and pride that continue to bring comfort in the present.",
	domain.MoodReflective: "The participant approached their memories thoughtfully, considering what past experiences taught them. " +
		"The conversation helped draw connections between earlier life events and present feelings.",
	domain.MoodNostalgic: "The participant revisited earlier chapters of their life with a sense of longing. " +
		"Recalling people and places from the past offered a chance to honour those experiences.",
	domain.MoodMixed: "The participant engaged in a reminiscence therapy session focusing on past memories and experiences. " +
		"The conversation aimed to help establish connections between past experiences and present feelings.",
}

// Summarize es puro y determinista sobre el historial.
func Summarize(history []domain.Message) domain.SessionSummary {
	var s domain.SessionSummary
	var userText []string
	for _, m := range history {
		switch {
		case m.Role == domain.RoleUser:
			s.UserMessages++
			userText = append(userText, m.Content)
		case m.Role == domain.RoleAssistant && !m.IsGreeting():
			s.AssistantMessages++
		}
	}
	s.Exchanges = s.UserMessages + s.AssistantMessages
	if len(history) > 1 {
		if d := history[len(history)-1].Timestamp.Sub(history[0].Timestamp); d > 0 {
			s.Duration = d
		}
	}

	if s.Exchanges == 0 {
		s.Mood = domain.MoodMixed
		s.Text = NoConversationSummary
		return s
	}

	words := tokenize(strings.Join(userText, " "))
	for _, b := range topicBuckets {
		if countPrefixHits(words, b.keywords) > 0 {
			s.Topics = append(s.Topics, b.name)
		}
	}
	s.Mood = moodOf(words)
	s.Reflection = reflections[s.Mood]
	s.Text = renderSummary(s)
	return s
}

// moodOf: gana el máximo único; empate o ningún acierto es mixed.
func moodOf(words []string) domain.MoodBucket {
	best := domain.MoodMixed
	bestCount, tie := 0, false
	for _, b := range moodBuckets {
		n := countPrefixHits(words, b.keywords)
		switch {
		case n > bestCount:
			best, bestCount, tie = b.mood, n, false
		case n == bestCount && n > 0:
			tie = true
		}
	}
	if bestCount == 0 || tie {
		return domain.MoodMixed
	}
	return best
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})
}

func countPrefixHits(words, keywords []string) int {
	n := 0
	for _, w := range words {
		for _, k := range keywords {
			if strings.HasPrefix(w, k) {
				n++
				break
			}
		}
	}
	return n
}

func renderSummary(s domain.SessionSummary) string {
	topics := s.Topics
	if len(topics) == 0 {
		topics = []string{generalTopic}
	}
	var b strings.Builder
	b.WriteString("Session Summary\n\n")
	b.WriteString("Key Topics Discussed\n")
	for _, t := range topics {
		b.WriteString("- " + t + "\n")
	}
	b.WriteString("\nSession Details\n")
	fmt.Fprintf(&b, "Duration: %d minutes\n", int(math.Round(s.Duration.Minutes())))
	fmt.Fprintf(&b, "Number of exchanges: %d\n", s.Exchanges)
	b.WriteString("\nNotes\n")
	b.WriteString(s.Reflection + "\n\n")
	b.WriteString("This summary was generated to help track your progress across sessions.")
	return b.String()
}
