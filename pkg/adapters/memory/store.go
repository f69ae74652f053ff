package memory

import (
	"context"
	"sync"

	"github.com/aretw0/parlance/pkg/domain"
)

// Transcript implements ports.TranscriptSink in memory.
// Safe for concurrent use.
type Transcript struct {
	data map[string][]domain.TranscriptEntry
	mu   sync.RWMutex
}

// NewTranscript creates a new in-memory transcript sink.
func NewTranscript() *Transcript {
	return &Transcript{
		data: make(map[string][]domain.TranscriptEntry),
	}
}

// Append records one line.
func (s *Transcript) Append(ctx context.Context, entry domain.TranscriptEntry) error {
	if entry.Confidence != nil {
		c := *entry.Confidence
		entry.Confidence = &c
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[entry.SessionID] = append(s.data[entry.SessionID], entry)
	return nil
}

// List returns a copy of the session's lines.
func (s *Transcript) List(ctx context.Context, sessionID string) ([]domain.TranscriptEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lines := s.data[sessionID]
	out := make([]domain.TranscriptEntry, len(lines))
	copy(out, lines)
	return out, nil
}

// Delete removes the session's lines.
func (s *Transcript) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, sessionID)
	return nil
}

// Sessions returns the IDs with recorded lines.
func (s *Transcript) Sessions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]string, 0, len(s.data))
	for id := range s.data {
		sessions = append(sessions, id)
	}
	return sessions
}
