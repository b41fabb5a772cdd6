// Loomfeed - Hybrid Feed Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/loomfeed

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/loomfeed/internal/recommend"
)

var _ suture.Service = (*SnapshotService)(nil)

// fakeSnapshotEngine clears its pending count on every successful save.
type fakeSnapshotEngine struct {
	pending atomic.Int64
	saves   atomic.Int32
	failing atomic.Bool
	ctxErrs atomic.Int32
}

func (f *fakeSnapshotEngine) SaveSnapshot(ctx context.Context) error {
	defer f.saves.Add(1)
	if ctx.Err() != nil {
		f.ctxErrs.Add(1)
		return ctx.Err()
	}
	if f.failing.Load() {
		return errors.New("disk full")
	}
	f.pending.Store(0)
	return nil
}

func (f *fakeSnapshotEngine) Pending() int64 {
	return f.pending.Load()
}

func runSnapshotService(t *testing.T, svc *SnapshotService) (cancel func() error) {
	t.Helper()
	ctx, stop := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()

	return func() error {
		stop()
		select {
		case err := <-errCh:
			return err
		case <-time.After(2 * time.Second):
			t.Fatal("snapshot service did not stop")
			return nil
		}
	}
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestSnapshotService_SavesOnEvent(t *testing.T) {
	t.Parallel()

	engine := &fakeSnapshotEngine{}
	svc := NewSnapshotService(engine, SnapshotServiceConfig{}, zerolog.Nop())
	stop := runSnapshotService(t, svc)

	engine.pending.Store(1)
	if err := svc.OnInteraction(context.Background(), recommend.InteractionEvent{UserID: "u1", PostID: "p1"}); err != nil {
		t.Fatalf("OnInteraction() error = %v", err)
	}
	eventually(t, func() bool { return engine.saves.Load() == 1 })

	if err := stop(); !errors.Is(err, context.Canceled) {
		t.Errorf("Serve() error = %v, want context.Canceled", err)
	}
	if got := engine.saves.Load(); got != 1 {
		t.Errorf("saves = %d, want 1 (nothing pending at shutdown)", got)
	}
}

func TestSnapshotService_ThrottlesEvents(t *testing.T) {
	t.Parallel()

	engine := &fakeSnapshotEngine{}
	svc := NewSnapshotService(engine, SnapshotServiceConfig{MinInterval: time.Hour}, zerolog.Nop())
	stop := runSnapshotService(t, svc)

	engine.pending.Store(1)
	_ = svc.OnInteraction(context.Background(), recommend.InteractionEvent{})
	eventually(t, func() bool { return engine.saves.Load() == 1 })

	// Inside the interval: requests are accepted but skipped.
	for range 5 {
		engine.pending.Add(1)
		_ = svc.OnInteraction(context.Background(), recommend.InteractionEvent{})
		time.Sleep(2 * time.Millisecond)
	}
	if got := engine.saves.Load(); got != 1 {
		t.Errorf("saves inside interval = %d, want 1", got)
	}

	// The skipped updates are written on shutdown.
	_ = stop()
	if got := engine.saves.Load(); got != 2 {
		t.Errorf("saves after shutdown = %d, want 2", got)
	}
	if engine.ctxErrs.Load() != 0 {
		t.Error("final flush ran with a canceled context")
	}
}

func TestSnapshotService_PeriodicFlush(t *testing.T) {
	t.Parallel()

	engine := &fakeSnapshotEngine{}
	svc := NewSnapshotService(engine, SnapshotServiceConfig{
		MinInterval:   time.Hour,
		FlushInterval: 10 * time.Millisecond,
	}, zerolog.Nop())
	stop := runSnapshotService(t, svc)

	// Idle ticks do not save.
	time.Sleep(50 * time.Millisecond)
	if got := engine.saves.Load(); got != 0 {
		t.Fatalf("saves while idle = %d, want 0", got)
	}

	engine.pending.Store(3)
	eventually(t, func() bool { return engine.saves.Load() == 1 && engine.Pending() == 0 })
	_ = stop()
}

func TestSnapshotService_FailureKeepsRunning(t *testing.T) {
	t.Parallel()

	engine := &fakeSnapshotEngine{}
	engine.failing.Store(true)
	svc := NewSnapshotService(engine, SnapshotServiceConfig{}, zerolog.Nop())
	stop := runSnapshotService(t, svc)

	engine.pending.Store(1)
	_ = svc.OnInteraction(context.Background(), recommend.InteractionEvent{})
	eventually(t, func() bool { return engine.saves.Load() == 1 })

	engine.failing.Store(false)
	_ = svc.OnInteraction(context.Background(), recommend.InteractionEvent{})
	eventually(t, func() bool { return engine.saves.Load() == 2 && engine.Pending() == 0 })

	if err := stop(); !errors.Is(err, context.Canceled) {
		t.Errorf("Serve() error = %v, want context.Canceled", err)
	}
}

func TestSnapshotService_OnInteractionNeverBlocks(t *testing.T) {
	t.Parallel()

	svc := NewSnapshotService(&fakeSnapshotEngine{}, DefaultSnapshotServiceConfig(), zerolog.Nop())

	done := make(chan struct{})
	go func() {
		for range 100 {
			_ = svc.OnInteraction(context.Background(), recommend.InteractionEvent{})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("OnInteraction blocked without a running service")
	}
	if svc.String() != "snapshot-service" {
		t.Errorf("String() = %q", svc.String())
	}
}
