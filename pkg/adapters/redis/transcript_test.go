package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/parlance/pkg/adapters/redis"
	"github.com/aretw0/parlance/pkg/domain"
	"github.com/aretw0/parlance/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisTranscript_Contract(t *testing.T) {
	_, client := newClient(t)
	ports.RunTranscriptSinkContract(t, redis.NewFromClient(client))
}

func TestRedisTranscript_TTL(t *testing.T) {
	mr, client := newClient(t)
	now := time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)
	sink := redis.NewFromClient(client,
		redis.WithTTL(time.Minute),
		redis.WithClock(func() time.Time { return now }),
	)
	ctx := context.Background()

	require.NoError(t, sink.Append(ctx, domain.TranscriptEntry{SessionID: "s1", Kind: domain.TranscriptSpeak, Text: "Hello"}))
	assert.Equal(t, time.Minute, mr.TTL("parlance:transcript:s1"))

	sessions, err := sink.Sessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, sessions)

	mr.FastForward(2 * time.Minute)
	now = now.Add(2 * time.Minute)

	got, err := sink.List(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, got)

	sessions, err = sink.Sessions(ctx)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestRedisTranscript_Prefix(t *testing.T) {
	mr, client := newClient(t)
	sink := redis.NewFromClient(client, redis.WithPrefix("custom:app:"))
	ctx := context.Background()

	require.NoError(t, sink.Append(ctx, domain.TranscriptEntry{SessionID: "my-session", Text: "hi"}))
	assert.True(t, mr.Exists("custom:app:my-session"), "Expected key with custom prefix to exist")
	assert.True(t, mr.Exists("custom:app:index"), "Expected index with custom prefix to exist")
	assert.Equal(t, time.Duration(0), mr.TTL("custom:app:my-session"))
}

func TestRedisTranscript_NewFromURL(t *testing.T) {
	mr, _ := newClient(t)
	sink, err := redis.NewFromURL("redis://" + mr.Addr() + "/0")
	require.NoError(t, err)
	defer sink.Close()

	require.NoError(t, sink.Append(context.Background(), domain.TranscriptEntry{SessionID: "u", Text: "x"}))
	assert.True(t, mr.Exists("parlance:transcript:u"))

	_, err = redis.NewFromURL("://bad")
	assert.Error(t, err)
}
