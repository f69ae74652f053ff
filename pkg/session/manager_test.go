package session_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/parlance/internal/runtime"
	"github.com/aretw0/parlance/internal/testutils"
	"github.com/aretw0/parlance/pkg/adapters/redis"
	"github.com/aretw0/parlance/pkg/domain"
	"github.com/aretw0/parlance/pkg/dsl"
	"github.com/aretw0/parlance/pkg/ports"
	"github.com/aretw0/parlance/pkg/session"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterFlow() *domain.Definition {
	b := dsl.New("counter")
	b.Add("idle").
		Stay(domain.EventClick, dsl.Do(dsl.Increment("clicks")))
	return b.MustBuild()
}

func machineFactory(def *domain.Definition) session.Factory {
	return func(id string) (ports.Dialogue, error) {
		return runtime.New(def,
			runtime.WithSessionID(id),
			runtime.WithCollaborator(&testutils.Collaborator{}),
		)
	}
}

type countingObserver struct {
	mu             sync.Mutex
	started, ended int
}

func (o *countingObserver) SessionStarted() { o.mu.Lock(); o.started++; o.mu.Unlock() }
func (o *countingObserver) SessionEnded()   { o.mu.Lock(); o.ended++; o.mu.Unlock() }

func TestManager_CreateGetClose(t *testing.T) {
	obs := &countingObserver{}
	mgr := session.NewManager(machineFactory(counterFlow()),
		session.WithIDGenerator(func() string { return "generated" }),
		session.WithObserver(obs),
	)
	ctx := context.Background()

	d, err := mgr.Create(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "generated", d.ID())
	assert.Equal(t, domain.StatusActive, d.Snapshot().Status)

	_, err = mgr.Create(ctx, "generated")
	assert.ErrorIs(t, err, domain.ErrSessionExists)

	got, err := mgr.Get("generated")
	require.NoError(t, err)
	assert.Same(t, d, got)
	assert.Equal(t, []string{"generated"}, mgr.List())

	require.NoError(t, mgr.Close(ctx, "generated"))
	_, err = mgr.Get("generated")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	assert.ErrorIs(t, mgr.Close(ctx, "generated"), domain.ErrSessionNotFound)
	assert.ErrorIs(t, mgr.Send(ctx, "generated", domain.Event{Type: domain.EventClick}), domain.ErrSessionNotFound)

	assert.Equal(t, 1, obs.started)
	assert.Equal(t, 1, obs.ended)
}

func TestManager_FactoryError(t *testing.T) {
	mgr := session.NewManager(func(string) (ports.Dialogue, error) { return nil, errors.New("boom") })
	_, err := mgr.Create(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Empty(t, mgr.List())
}

func TestManager_ConcurrentSends(t *testing.T) {
	mgr := session.NewManager(machineFactory(counterFlow()))
	ctx := context.Background()
	d, err := mgr.Create(ctx, "race-test")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, mgr.Send(ctx, "race-test", domain.Event{Type: domain.EventClick}))
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, d.Snapshot().Context.Counter("clicks"))
}

func TestManager_ConcurrentCreateSameID(t *testing.T) {
	mgr := session.NewManager(machineFactory(counterFlow()))
	ctx := context.Background()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := mgr.Create(ctx, "atomic-init")
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}()
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
		} else {
			assert.ErrorIs(t, err, domain.ErrSessionExists)
		}
	}
	assert.Equal(t, 1, ok)
}

func TestManager_CloseAll(t *testing.T) {
	mgr := session.NewManager(machineFactory(counterFlow()))
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := mgr.Create(ctx, fmt.Sprintf("s%d", i))
		require.NoError(t, err)
	}
	mgr.CloseAll(ctx)
	assert.Empty(t, mgr.List())
}

func TestManager_DistributedLock(t *testing.T) {
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	mgr := session.NewManager(machineFactory(counterFlow()),
		session.WithLocker(redis.NewLocker(client, "test:")),
		session.WithLockTTL(time.Second),
	)
	ctx := context.Background()
	_, err := mgr.Create(ctx, "shared")
	require.NoError(t, err)
	assert.False(t, mr.Exists("test:lock:shared"), "lock is released after the operation")

	// Another replica holds the session.
	require.NoError(t, mr.Set("test:lock:shared", "other-replica"))
	short, cancel := context.WithTimeout(ctx, 250*time.Millisecond)
	defer cancel()
	err = mgr.Send(short, "shared", domain.Event{Type: domain.EventClick})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	mr.Del("test:lock:shared")
	require.NoError(t, mgr.Send(ctx, "shared", domain.Event{Type: domain.EventClick}))
}
