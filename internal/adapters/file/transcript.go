package file

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/aretw0/parlance/pkg/domain"
)

// Transcript implements ports.TranscriptSink as one JSON Lines file per session.
type Transcript struct {
	BasePath string
	mu       sync.Mutex
}

// NewTranscript creates a Transcript writing under basePath.
// If basePath is empty, it defaults to ".parlance/transcripts".
func NewTranscript(basePath string) *Transcript {
	if basePath == "" {
		basePath = filepath.Join(".parlance", "transcripts")
	}
	return &Transcript{BasePath: basePath}
}

func (s *Transcript) path(sessionID string) (string, error) {
	if sessionID == "" {
		return "", fmt.Errorf("sessionID cannot be empty")
	}
	if sessionID != filepath.Base(sessionID) {
		return "", fmt.Errorf("invalid sessionID: %q", sessionID)
	}
	return filepath.Join(s.BasePath, sessionID+".jsonl"), nil
}

// Append writes one line and fsyncs it.
func (s *Transcript) Append(ctx context.Context, entry domain.TranscriptEntry) error {
	p, err := s.path(entry.SessionID)
	if err != nil {
		return err
	}
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal transcript entry: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.BasePath, 0755); err != nil {
		return fmt.Errorf("failed to ensure transcript directory: %w", err)
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open transcript: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to write transcript: %w", err)
	}
	return f.Sync()
}

// List reads the session's lines in append order.
func (s *Transcript) List(ctx context.Context, sessionID string) ([]domain.TranscriptEntry, error) {
	p, err := s.path(sessionID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(p)
	if err != nil {
		if os.IsNotExist(err) {
			return []domain.TranscriptEntry{}, nil
		}
		return nil, fmt.Errorf("failed to open transcript: %w", err)
	}
	defer f.Close()

	var out []domain.TranscriptEntry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e domain.TranscriptEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return nil, fmt.Errorf("failed to unmarshal transcript entry: %w", err)
		}
		out = append(out, e)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read transcript: %w", err)
	}
	return out, nil
}

// Delete removes the session file.
func (s *Transcript) Delete(ctx context.Context, sessionID string) error {
	p, err := s.path(sessionID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete transcript: %w", err)
	}
	return nil
}
