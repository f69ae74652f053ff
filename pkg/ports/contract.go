package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/parlance/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunTranscriptSinkContract runs a suite of tests to verify that a TranscriptSink
// implementation adheres to the defined interface contract.
func RunTranscriptSinkContract(t *testing.T, sink TranscriptSink) {
	ctx := context.Background()
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405")
	at := time.Date(2024, 5, 6, 10, 0, 0, 0, time.UTC)
	conf := 0.87

	t.Run("Append and List", func(t *testing.T) {
		entries := []domain.TranscriptEntry{
			{SessionID: sessionID, TurnID: "t1", StateID: "ask_day.prompt", Speaker: domain.SpeakerSystem, Kind: domain.TranscriptSpeak, Text: "Which day?", At: at},
			{SessionID: sessionID, TurnID: "t2", StateID: "ask_day.listen", Speaker: domain.SpeakerUser, Kind: domain.TranscriptRecognised, Text: "monday", Intent: "create_meeting", Confidence: &conf, At: at.Add(time.Second)},
			{SessionID: sessionID, TurnID: "t3", StateID: "ask_day.listen", Speaker: domain.SpeakerUser, Kind: domain.TranscriptNoInput, At: at.Add(2 * time.Second)},
		}
		for _, e := range entries {
			require.NoError(t, sink.Append(ctx, e), "Append should not return error")
		}

		got, err := sink.List(ctx, sessionID)
		require.NoError(t, err, "List should not return error")
		require.Len(t, got, 3)

		assert.Equal(t, "Which day?", got[0].Text)
		assert.Equal(t, domain.SpeakerUser, got[1].Speaker)
		assert.Equal(t, "create_meeting", got[1].Intent)
		require.NotNil(t, got[1].Confidence)
		assert.InDelta(t, conf, *got[1].Confidence, 1e-9)
		assert.Equal(t, domain.TranscriptNoInput, got[2].Kind)
		assert.True(t, got[2].At.Equal(at.Add(2*time.Second)), "timestamps survive storage")
	})

	t.Run("List Unknown Session", func(t *testing.T) {
		got, err := sink.List(ctx, "non-existent-"+sessionID)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("Sessions Are Isolated", func(t *testing.T) {
		other := sessionID + "-other"
		require.NoError(t, sink.Append(ctx, domain.TranscriptEntry{SessionID: other, Speaker: domain.SpeakerUser, Kind: domain.TranscriptRecognised, Text: "no", At: at}))
		defer func() { _ = sink.Delete(ctx, other) }()

		got, err := sink.List(ctx, other)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "no", got[0].Text)
	})

	t.Run("Delete", func(t *testing.T) {
		err := sink.Delete(ctx, sessionID)
		require.NoError(t, err, "Delete should not return error")

		got, err := sink.List(ctx, sessionID)
		require.NoError(t, err)
		assert.Empty(t, got, "List after Delete should be empty")
	})
}
