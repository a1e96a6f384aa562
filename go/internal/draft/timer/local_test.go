package timer

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/leaguedraft/go/internal/draft"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startLocal(t *testing.T, clock *clockwork.FakeClock) (*Local, chan draft.ResolveTask, context.CancelFunc) {
	t.Helper()
	l := NewLocal(clock, 2)
	fired := make(chan draft.ResolveTask, 8)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = l.Run(ctx, func(_ context.Context, task draft.ResolveTask) error {
			fired <- task
			return nil
		})
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return l, fired, cancel
}

func TestLocalFiresAfterDelay(t *testing.T) {
	clock := clockwork.NewFakeClock()
	l, fired, _ := startLocal(t, clock)
	ctx := context.Background()

	task := draft.ResolveTask{LeagueID: uuid.New(), ExpectedPickIndex: 3}
	_, err := l.Schedule(ctx, time.Minute, task)
	require.NoError(t, err)
	assert.Equal(t, 1, l.Pending())

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(59 * time.Second)
	select {
	case <-fired:
		t.Fatal("fired early")
	case <-time.After(50 * time.Millisecond):
	}

	clock.Advance(time.Second)
	select {
	case got := <-fired:
		assert.Equal(t, task, got)
	case <-time.After(2 * time.Second):
		t.Fatal("timer did not fire")
	}
	assert.Eventually(t, func() bool { return l.Pending() == 0 }, time.Second, 10*time.Millisecond)
}

func TestLocalCancel(t *testing.T) {
	clock := clockwork.NewFakeClock()
	l, fired, _ := startLocal(t, clock)
	ctx := context.Background()

	handle, err := l.Schedule(ctx, time.Second, draft.ResolveTask{LeagueID: uuid.New()})
	require.NoError(t, err)
	require.NoError(t, l.Cancel(ctx, handle))
	assert.Zero(t, l.Pending())
	assert.ErrorIs(t, l.Cancel(ctx, handle), ErrUnknownHandle)

	clock.Advance(time.Minute)
	select {
	case <-fired:
		t.Fatal("cancelled timer fired")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestLocalCancelAfterFire(t *testing.T) {
	clock := clockwork.NewFakeClock()
	l, fired, _ := startLocal(t, clock)
	ctx := context.Background()

	handle, err := l.Schedule(ctx, time.Second, draft.ResolveTask{LeagueID: uuid.New(), ExpectedPickIndex: 1})
	require.NoError(t, err)
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(time.Second)
	<-fired

	require.Eventually(t, func() bool { return l.Pending() == 0 }, time.Second, 10*time.Millisecond)
	assert.ErrorIs(t, l.Cancel(ctx, handle), ErrUnknownHandle)
}
