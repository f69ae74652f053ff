package memory_test

import (
	"context"
	"testing"

	"github.com/aretw0/parlance/pkg/adapters/memory"
	"github.com/aretw0/parlance/pkg/domain"
	"github.com/aretw0/parlance/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryTranscript_Contract(t *testing.T) {
	sink := memory.NewTranscript()
	ports.RunTranscriptSinkContract(t, sink)
}

func TestMemoryTranscript_Isolation(t *testing.T) {
	ctx := context.Background()
	sink := memory.NewTranscript()
	conf := 0.5
	require.NoError(t, sink.Append(ctx, domain.TranscriptEntry{SessionID: "s1", Text: "hello", Confidence: &conf}))

	conf = 0.9
	got, err := sink.List(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 0.5, *got[0].Confidence, "stored entries do not alias caller memory")

	got[0].Text = "mutated"
	again, _ := sink.List(ctx, "s1")
	assert.Equal(t, "hello", again[0].Text)

	assert.Equal(t, []string{"s1"}, sink.Sessions())
}
