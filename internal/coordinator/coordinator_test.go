package coordinator

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	xerrors "github.com/elinsky/Intern-Trading-Game-sub002/pkg/errors"
)

func newTestCoordinator(maxPending int) *Coordinator {
	return New(maxPending, 50*time.Millisecond, 10*time.Millisecond, zap.NewNop())
}

func TestCoordinator_RegisterAndComplete(t *testing.T) {
	c := newTestCoordinator(10)
	reg, err := c.Register("team-a")
	require.NoError(t, err)
	require.Equal(t, Pending, reg.Status)

	ok := c.NotifyCompletion(reg.RequestID, Result{Payload: "done"})
	require.True(t, ok)

	result := c.WaitForCompletion(reg.RequestID, time.Second)
	assert.Equal(t, Complete, result.Status)
	assert.Equal(t, "done", result.Payload)
}

func TestCoordinator_NotifyCompletionIsIdempotent(t *testing.T) {
	c := newTestCoordinator(10)
	reg, err := c.Register("team-a")
	require.NoError(t, err)

	first := c.NotifyCompletion(reg.RequestID, Result{Payload: "first"})
	second := c.NotifyCompletion(reg.RequestID, Result{Payload: "second"})
	require.True(t, first)
	require.False(t, second)

	result := c.WaitForCompletion(reg.RequestID, time.Second)
	assert.Equal(t, "first", result.Payload)
}

func TestCoordinator_WaitTimesOut(t *testing.T) {
	c := newTestCoordinator(10)
	reg, err := c.Register("team-a")
	require.NoError(t, err)

	result := c.WaitForCompletion(reg.RequestID, 10*time.Millisecond)
	assert.Equal(t, TimedOut, result.Status)
	assert.Equal(t, string(xerrors.Timeout), result.ErrorCode)
}

func TestCoordinator_CapacityExactlyNSucceed(t *testing.T) {
	c := newTestCoordinator(3)

	for i := 0; i < 3; i++ {
		_, err := c.Register("team-a")
		require.NoError(t, err)
	}

	_, err := c.Register("team-a")
	require.Error(t, err)
	code, ok := xerrors.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, xerrors.ServiceOverloaded, code)
}

func TestCoordinator_CapacityFreesUpAfterCompletion(t *testing.T) {
	c := newTestCoordinator(1)

	reg, err := c.Register("team-a")
	require.NoError(t, err)

	_, err = c.Register("team-b")
	require.Error(t, err)

	c.NotifyCompletion(reg.RequestID, Result{})
	c.WaitForCompletion(reg.RequestID, time.Second)

	_, err = c.Register("team-b")
	require.NoError(t, err)
}

func TestCoordinator_CapacityIsAtomicUnderConcurrency(t *testing.T) {
	c := newTestCoordinator(5)

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Register("team-a"); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 5, successes)
}

func TestCoordinator_ShutdownUnblocksWaiters(t *testing.T) {
	c := newTestCoordinator(10)
	reg, err := c.Register("team-a")
	require.NoError(t, err)

	done := make(chan Result, 1)
	go func() {
		done <- c.WaitForCompletion(reg.RequestID, time.Second)
	}()

	time.Sleep(5 * time.Millisecond)
	c.Shutdown()

	result := <-done
	assert.Equal(t, string(xerrors.ServiceShutdown), result.ErrorCode)

	_, err = c.Register("team-b")
	require.Error(t, err)
	code, _ := xerrors.CodeOf(err)
	assert.Equal(t, xerrors.ServiceShutdown, code)
}
