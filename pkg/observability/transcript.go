package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/parlance/internal/logging"
	"github.com/aretw0/parlance/pkg/domain"
	"github.com/aretw0/parlance/pkg/ports"
)

const defaultTranscriptBuffer = 256

// TranscriptRecorder turns spoken prompts and recognitions into transcript
// lines. Lines are written by a background goroutine so hooks never block
// on the sink; when the buffer is full, lines are dropped and logged.
type TranscriptRecorder struct {
	sink    ports.TranscriptSink
	logger  *slog.Logger
	timeout time.Duration

	ch        chan domain.TranscriptEntry
	done      chan struct{}
	closeOnce sync.Once
}

// RecorderOption configures a TranscriptRecorder.
type RecorderOption func(*TranscriptRecorder)

// WithRecorderLogger sets the logger for write failures.
func WithRecorderLogger(l *slog.Logger) RecorderOption {
	return func(r *TranscriptRecorder) {
		r.logger = l
	}
}

// WithBuffer sets the number of lines queued before dropping.
func WithBuffer(n int) RecorderOption {
	return func(r *TranscriptRecorder) {
		r.ch = make(chan domain.TranscriptEntry, n)
	}
}

// NewTranscriptRecorder starts the writer goroutine. Call Close to flush.
func NewTranscriptRecorder(sink ports.TranscriptSink, opts ...RecorderOption) *TranscriptRecorder {
	r := &TranscriptRecorder{
		sink:    sink,
		logger:  logging.NewNop(),
		timeout: 5 * time.Second,
		ch:      make(chan domain.TranscriptEntry, defaultTranscriptBuffer),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	go r.loop()
	return r
}

func (r *TranscriptRecorder) loop() {
	defer close(r.done)
	for e := range r.ch {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		if err := r.sink.Append(ctx, e); err != nil {
			r.logger.Warn("transcript append failed", "session_id", e.SessionID, "error", err)
		}
		cancel()
	}
}

func (r *TranscriptRecorder) record(e domain.TranscriptEntry) {
	select {
	case r.ch <- e:
	default:
		r.logger.Warn("transcript buffer full, dropping line", "session_id", e.SessionID, "kind", e.Kind)
	}
}

// Close stops accepting lines and waits until the queued ones are written.
// Hooks must not fire after Close.
func (r *TranscriptRecorder) Close() {
	r.closeOnce.Do(func() {
		close(r.ch)
	})
	<-r.done
}

// Hooks returns the lifecycle hooks feeding the recorder.
func (r *TranscriptRecorder) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnCommand: func(_ context.Context, e *domain.CommandEvent) {
			if e.Err != nil || e.Command.Type != domain.CommandSpeak {
				return
			}
			r.record(domain.TranscriptEntry{
				SessionID: e.SessionID,
				TurnID:    e.Command.TurnID,
				StateID:   e.Command.StateID,
				Speaker:   domain.SpeakerSystem,
				Kind:      domain.TranscriptSpeak,
				Text:      e.Command.Utterance,
				At:        e.Timestamp,
			})
		},
		OnCollaborator: func(_ context.Context, e *domain.CollaboratorEvent) {
			entry := domain.TranscriptEntry{
				SessionID: e.SessionID,
				TurnID:    e.Event.TurnID,
				StateID:   e.StateID,
				Speaker:   domain.SpeakerUser,
				At:        e.Timestamp,
			}
			switch e.Event.Type {
			case domain.EventRecognised:
				entry.Kind = domain.TranscriptRecognised
				if res := e.Event.Result; res != nil {
					entry.Text = res.Utterance
					entry.Intent = res.Interpretation.Intent()
					entry.Confidence = res.Confidence
				}
			case domain.EventNoInput:
				entry.Kind = domain.TranscriptNoInput
			default:
				return
			}
			r.record(entry)
		},
	}
}
