package pool

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSpawnRunsTaskAndReportsSuccess(t *testing.T) {
	p := New(2)
	defer p.Stop()

	h := p.Spawn(func() error { return nil })
	require.NoError(t, h.Wait())
	require.Equal(t, Success, h.Status())
}

func TestSpawnReportsTaskError(t *testing.T) {
	p := New(2)
	defer p.Stop()

	wantErr := errors.New("task failed")
	h := p.Spawn(func() error { return wantErr })
	err := h.Wait()
	require.Error(t, err)
	require.Equal(t, Error, h.Status())
}

func TestSpawnRecoversPanic(t *testing.T) {
	p := New(2)
	defer p.Stop()

	h := p.Spawn(func() error { panic("boom") })
	err := h.Wait()
	require.Error(t, err)
	require.Equal(t, Error, h.Status())
}

func TestSpawnFIFOOrdering(t *testing.T) {
	p := New(1) // single worker forces strict FIFO
	defer p.Stop()

	var mu sync.Mutex
	var order []int
	var handles []*Handle
	for i := 0; i < 20; i++ {
		i := i
		handles = append(handles, p.Spawn(func() error {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return nil
		}))
	}
	for _, h := range handles {
		h.Wait()
	}

	mu.Lock()
	defer mu.Unlock()
	for i, v := range order {
		require.Equal(t, i, v)
	}
}

func TestSpawnAfterDelaysExecution(t *testing.T) {
	p := New(2)
	defer p.Stop()

	start := time.Now()
	h := p.SpawnAfter(100*time.Millisecond, func() error { return nil })
	require.NoError(t, h.Wait())
	require.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestStopCancelsQueuedTasks(t *testing.T) {
	p := New(1)

	block := make(chan struct{})
	running := p.Spawn(func() error {
		<-block
		return nil
	})
	// This one sits in the queue behind the blocking task.
	queued := p.Spawn(func() error { return nil })

	go func() {
		time.Sleep(20 * time.Millisecond)
		close(block)
	}()
	require.NoError(t, p.Stop())

	require.NoError(t, running.Wait())
	require.Equal(t, Error, queued.Status())
}

func TestSpawnAfterStopReturnsErrStopped(t *testing.T) {
	p := New(1)
	require.NoError(t, p.Stop())

	h := p.Spawn(func() error { return nil })
	require.Equal(t, ErrStopped, h.Wait())
}

func TestWorkerStatsTrackExecutionAndFailures(t *testing.T) {
	p := New(2)
	defer p.Stop()

	p.Spawn(func() error { return nil }).Wait()
	p.Spawn(func() error { return errors.New("fail") }).Wait()

	var executed, failed int64
	for _, s := range p.WorkerStats() {
		executed += s.TasksExecuted
		failed += s.TasksFailed
	}
	require.Equal(t, int64(2), executed)
	require.Equal(t, int64(1), failed)
}
