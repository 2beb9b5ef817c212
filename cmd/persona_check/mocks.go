package main

import "context"

// memoryHistory simula la tabla conversations para elegir la persona.
type memoryHistory struct {
	transcripts []string
}

func (m *memoryHistory) CountByParticipant(ctx context.Context, participantID string) (int, error) {
	return len(m.transcripts), nil
}

func (m *memoryHistory) LatestTranscript(ctx context.Context, participantID string) (string, error) {
	if len(m.transcripts) == 0 {
		return "", nil
	}
	return m.transcripts[len(m.transcripts)-1], nil
}
