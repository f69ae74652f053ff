package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aretw0/parlance/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// Transcript implements ports.TranscriptSink with one Redis list per session.
// Lists expire after the configured TTL; an index ZSET tracks live sessions.
type Transcript struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

type Option func(*Transcript)

// WithTTL sets the expiration of a session's transcript, refreshed on every append.
func WithTTL(ttl time.Duration) Option {
	return func(s *Transcript) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Transcript) {
		s.prefix = prefix
	}
}

// New creates a new Redis transcript sink with options.
func New(address, password string, db int, opts ...Option) *Transcript {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromURL creates a sink from a redis:// URL.
func NewFromURL(url string, opts ...Option) (*Transcript, error) {
	o, err := backend.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return NewFromClient(backend.NewClient(o), opts...), nil
}

// NewFromClient creates a new Redis transcript sink from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Transcript {
	s := &Transcript{
		client: client,
		prefix: "parlance:transcript:",
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Client exposes the underlying client, e.g. to share it with a Locker.
func (s *Transcript) Client() *backend.Client {
	return s.client
}

func (s *Transcript) key(sessionID string) string {
	return s.prefix + sessionID
}

func (s *Transcript) indexKey() string {
	return s.prefix + "index"
}

// Append pushes one line and refreshes the expiration.
func (s *Transcript) Append(ctx context.Context, entry domain.TranscriptEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal transcript entry: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, s.key(entry.SessionID), data)

	// Score = expiry time. Without TTL the session never leaves the index.
	score := float64(4102444800) // 2100-01-01
	if s.ttl > 0 {
		pipe.Expire(ctx, s.key(entry.SessionID), s.ttl)
		score = float64(s.now().Add(s.ttl).Unix())
	}
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{Score: score, Member: entry.SessionID})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append to redis: %w", err)
	}
	return nil
}

// List returns the session's lines in append order.
func (s *Transcript) List(ctx context.Context, sessionID string) ([]domain.TranscriptEntry, error) {
	vals, err := s.client.LRange(ctx, s.key(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read from redis: %w", err)
	}

	out := make([]domain.TranscriptEntry, 0, len(vals))
	for _, v := range vals {
		var e domain.TranscriptEntry
		if err := json.Unmarshal([]byte(v), &e); err != nil {
			return nil, fmt.Errorf("failed to unmarshal transcript entry: %w", err)
		}
		out = append(out, e)
	}
	return out, nil
}

// Delete removes the session's lines.
func (s *Transcript) Delete(ctx context.Context, sessionID string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.key(sessionID))
	pipe.ZRem(ctx, s.indexKey(), sessionID)
	_, err := pipe.Exec(ctx)
	return err
}

// Sessions returns the sessions whose transcript has not expired.
// Expired members are pruned from the index lazily.
func (s *Transcript) Sessions(ctx context.Context) ([]string, error) {
	now := float64(s.now().Unix())
	if err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", fmt.Sprintf("%f", now)).Err(); err != nil {
		return nil, fmt.Errorf("failed to prune expired sessions: %w", err)
	}

	sessions, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

// Close closes the redis client.
func (s *Transcript) Close() error {
	return s.client.Close()
}
