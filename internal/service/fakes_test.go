package service

import (
	"context"
	"errors"
	"sync"

	"remi-llm/internal/domain"
)

type stubCompleter struct {
	mu     sync.Mutex
	result CompletionResult
	inputs []CompletionInput
	// gate bloquea Complete hasta que se cierre.
	gate    chan struct{}
	entered chan struct{}
}

func (s *stubCompleter) Complete(ctx context.Context, in CompletionInput) CompletionResult {
	s.mu.Lock()
	s.inputs = append(s.inputs, in)
	gate, entered := s.gate, s.entered
	s.mu.Unlock()
	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	return s.result
}

func (s *stubCompleter) calls() []CompletionInput {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]CompletionInput(nil), s.inputs...)
}

type stubSpeaker struct {
	mu        sync.Mutex
	available bool
	err       error
	spoken    []string
	cancels   int
	// block hace que Speak espere a Cancel.
	block   bool
	started chan struct{}
	stop    chan struct{}
}

func newStubSpeaker() *stubSpeaker {
	return &stubSpeaker{available: true, stop: make(chan struct{}, 1)}
}

func (s *stubSpeaker) Speak(ctx context.Context, text string) error {
	s.mu.Lock()
	s.spoken = append(s.spoken, text)
	block, started := s.block, s.started
	s.mu.Unlock()
	if started != nil {
		started <- struct{}{}
	}
	if block {
		select {
		case <-s.stop:
			return context.Canceled
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return s.err
}

func (s *stubSpeaker) Cancel() {
	s.mu.Lock()
	s.cancels++
	s.mu.Unlock()
	select {
	case s.stop <- struct{}{}:
	default:
	}
}

func (s *stubSpeaker) Available() bool { return s.available }

func (s *stubSpeaker) cancelCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancels
}

func (s *stubSpeaker) spokenTexts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.spoken...)
}

type mockConversationRepo struct {
	mu        sync.Mutex
	count     int
	countErr  error
	latest    string
	latestErr error
	createErr error
	created   []domain.ConversationRecord
}

func (m *mockConversationRepo) Create(ctx context.Context, rec domain.ConversationRecord) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return "", m.createErr
	}
	m.created = append(m.created, rec)
	return "conv-1", nil
}

func (m *mockConversationRepo) CountByParticipant(ctx context.Context, participantID string) (int, error) {
	return m.count, m.countErr
}

func (m *mockConversationRepo) LatestTranscript(ctx context.Context, participantID string) (string, error) {
	return m.latest, m.latestErr
}

type mockParticipantRepo struct {
	upserted []string
	err      error
}

func (m *mockParticipantRepo) Upsert(ctx context.Context, id string) (domain.Participant, error) {
	if m.err != nil {
		return domain.Participant{}, m.err
	}
	m.upserted = append(m.upserted, id)
	return domain.Participant{ParticipantID: id}, nil
}

type mockMoodRepo struct {
	saved []domain.MoodAssessment
	err   error
}

func (m *mockMoodRepo) Create(ctx context.Context, a domain.MoodAssessment) (domain.MoodAssessment, error) {
	if m.err != nil {
		return domain.MoodAssessment{}, m.err
	}
	a.ID = "mood-1"
	m.saved = append(m.saved, a)
	return a, nil
}

var errDBDown = errors.New("db down")
