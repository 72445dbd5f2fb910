package lifecycle_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/aretw0/lifecycle"
	tlifecycle "github.com/aretw0/tessera/pkg/adapters/lifecycle"
	"github.com/aretw0/tessera/pkg/adapters/memory"
	"github.com/aretw0/tessera/pkg/core"
	"github.com/aretw0/tessera/pkg/hooks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newNotes(t *testing.T) (*core.Model, *hooks.Registry) {
	t.Helper()
	s := core.NewSchema(memory.New())
	note := s.Define("Note", core.Properties{"title": {Kind: core.String}})
	reg := hooks.New()
	note.UseHooks(reg)
	return note, reg
}

func receive(t *testing.T, src lifecycle.Source, n int) []tlifecycle.Change {
	t.Helper()
	var got []tlifecycle.Change
	for len(got) < n {
		select {
		case e := <-src.Events():
			c, ok := e.(tlifecycle.Change)
			require.True(t, ok)
			got = append(got, c)
		case <-time.After(time.Second):
			t.Fatalf("timeout waiting for changes, got %v", got)
		}
	}
	return got
}

func TestSourceEmitsOneChangePerWrite(t *testing.T) {
	note, reg := newNotes(t)
	src := tlifecycle.NewSource(reg)
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	require.NoError(t, src.Start(ctx))

	n, err := note.Create(ctx, core.Fields{"title": "a"})
	require.NoError(t, err)
	require.NoError(t, n.UpdateAttributes(ctx, core.Fields{"title": "b"}))
	require.NoError(t, n.Destroy(ctx))

	got := receive(t, src, 3)
	assert.Equal(t, core.EventCreate, got[0].Event)
	assert.Equal(t, core.EventUpdate, got[1].Event)
	assert.Equal(t, core.EventDestroy, got[2].Event)
	assert.Equal(t, "Note", got[2].Model)
	assert.Equal(t, n.ID(), got[2].ID)
	assert.Equal(t, "create Note 1", got[0].String())

	select {
	case e := <-src.Events():
		t.Fatalf("unexpected change %v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSourceSelectedEvents(t *testing.T) {
	note, reg := newNotes(t)
	src := tlifecycle.NewSource(reg, tlifecycle.WithEvents(core.EventDestroy))
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	require.NoError(t, src.Start(ctx))

	n, err := note.Create(ctx, core.Fields{"title": "a"})
	require.NoError(t, err)
	require.NoError(t, n.Destroy(ctx))

	got := receive(t, src, 1)
	assert.Equal(t, core.EventDestroy, got[0].Event)
}

func TestSourceStoppedConsumerDoesNotBlockWrites(t *testing.T) {
	note, reg := newNotes(t)
	src := tlifecycle.NewSource(reg)
	ctx, cancel := context.WithCancel(t.Context())
	require.NoError(t, src.Start(ctx))
	cancel()

	assert.Eventually(t, func() bool {
		_, open := <-src.Events()
		return !open
	}, time.Second, 10*time.Millisecond)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := range 2 * tlifecycle.DefaultBuffer {
			if _, err := note.Create(context.Background(), core.Fields{"title": "late"}); err != nil {
				t.Errorf("create #%d: %v", i, err)
				return
			}
		}
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("writes blocked after the consumer stopped")
	}

	n, err := note.Count(t.Context(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2*tlifecycle.DefaultBuffer, n)
}

func TestSourceDropsWhenFull(t *testing.T) {
	note, reg := newNotes(t)
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	src := tlifecycle.NewSource(reg, tlifecycle.WithBuffer(2), tlifecycle.WithLogger(logger))

	for range 5 {
		_, err := note.Create(t.Context(), core.Fields{"title": "x"})
		require.NoError(t, err)
	}
	assert.Equal(t, int64(3), tlifecycle.Dropped(src))
	assert.Contains(t, logs.String(), "level=WARN")
	assert.Contains(t, logs.String(), "dropping change")

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	require.NoError(t, src.Start(ctx))
	got := receive(t, src, 2)
	assert.Equal(t, int64(1), got[0].ID)
	assert.Equal(t, int64(2), got[1].ID)
}
