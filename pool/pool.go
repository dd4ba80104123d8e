package pool

import (
	"container/heap"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/NebulousLabs/errors"
	"github.com/nebulouslabs/blockserver/protoerr"
	siasync "github.com/nebulouslabs/blockserver/sync"
)

// ErrStopped is the error of a Handle returned by Spawn/SpawnAfter once
// the pool has been stopped.
var ErrStopped = errors.Extend(errors.New("pool is stopped"), protoerr.ErrIO)

// ErrCancelled marks a queued (not yet started) task's Handle when
// shutdown cancels it before it runs.
var ErrCancelled = errors.New("task cancelled before it ran")

// WorkerStat is a snapshot of one worker goroutine's lifetime counters.
type WorkerStat struct {
	ID                int
	TasksExecuted     int64
	TasksFailed       int64
	CumulativeRunTime time.Duration
}

type readyTask struct {
	fn     func() error
	handle *Handle
}

// Pool is a fixed-size worker pool. It accepts an unbounded logical
// queue of immediate and delayed tasks, runs them FIFO across a fixed
// number of persistent goroutines, and recovers panics into a Handle's
// Error status rather than crashing a worker.
type Pool struct {
	tg siasync.ThreadGroup

	numWorkers int

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []*readyTask
	delayed delayedHeap
	closed  bool
	wake    chan struct{}

	statsMu sync.Mutex
	stats   []WorkerStat
}

// New creates and starts a Pool with numWorkers persistent goroutines.
// numWorkers <= 0 selects runtime.NumCPU().
func New(numWorkers int) *Pool {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	p := &Pool{
		numWorkers: numWorkers,
		wake:       make(chan struct{}, 1),
		stats:      make([]WorkerStat, numWorkers),
	}
	for i := range p.stats {
		p.stats[i].ID = i
	}
	p.cond = sync.NewCond(&p.mu)

	for i := 0; i < numWorkers; i++ {
		if err := p.tg.Add(); err != nil {
			break
		}
		go p.worker(i)
	}
	if err := p.tg.Add(); err == nil {
		go p.timerLoop()
	}
	p.tg.OnStop(p.cancelQueued)
	return p
}

// cancelQueued drains the immediate and delayed queues, marking every
// task in them Error/ErrCancelled instead of letting it run — a global
// shutdown cancels queued tasks but waits for already-running ones.
func (p *Pool) cancelQueued() {
	p.mu.Lock()
	p.closed = true
	cancelled := p.queue
	p.queue = nil
	delayedCancelled := []*delayedTask(p.delayed)
	p.delayed = nil
	p.mu.Unlock()

	for _, t := range cancelled {
		t.handle.markDone(ErrCancelled)
	}
	for _, dt := range delayedCancelled {
		dt.handle.markDone(ErrCancelled)
	}
	p.cond.Broadcast()
}

// Stop cancels queued tasks, waits for running tasks and the timer
// goroutine to finish, and prevents further Spawn/SpawnAfter calls from
// enqueueing work.
func (p *Pool) Stop() error {
	return p.tg.Stop()
}

// Spawn enqueues fn to run as soon as a worker is free.
func (p *Pool) Spawn(fn func() error) *Handle {
	h := newHandle()
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		h.markDone(ErrStopped)
		return h
	}
	p.queue = append(p.queue, &readyTask{fn: fn, handle: h})
	p.mu.Unlock()
	p.cond.Signal()
	return h
}

// SpawnAfter enqueues fn to run once delay has elapsed.
func (p *Pool) SpawnAfter(delay time.Duration, fn func() error) *Handle {
	h := newHandle()
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		h.markDone(ErrStopped)
		return h
	}
	dt := &delayedTask{deadline: time.Now().Add(delay), fn: fn, handle: h}
	heap.Push(&p.delayed, dt)
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
	return h
}

// WorkerStats returns a snapshot of every worker's lifetime counters.
func (p *Pool) WorkerStats() []WorkerStat {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	out := make([]WorkerStat, len(p.stats))
	copy(out, p.stats)
	return out
}

func (p *Pool) worker(id int) {
	defer p.tg.Done()
	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.closed {
			p.cond.Wait()
		}
		if len(p.queue) == 0 && p.closed {
			p.mu.Unlock()
			return
		}
		t := p.queue[0]
		p.queue = p.queue[1:]
		p.mu.Unlock()

		p.runTask(id, t)
	}
}

func (p *Pool) runTask(id int, t *readyTask) {
	t.handle.markRunning()

	var taskErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				taskErr = errors.Extend(fmt.Errorf("%v", r), protoerr.ErrInternalPanic)
			}
		}()
		taskErr = t.fn()
	}()
	t.handle.markDone(taskErr)

	p.statsMu.Lock()
	p.stats[id].TasksExecuted++
	if taskErr != nil {
		p.stats[id].TasksFailed++
	}
	p.stats[id].CumulativeRunTime += t.handle.RunTime()
	p.statsMu.Unlock()
}

func (p *Pool) timerLoop() {
	defer p.tg.Done()
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		p.mu.Lock()
		wait := time.Hour
		if len(p.delayed) > 0 {
			wait = time.Until(p.delayed[0].deadline)
			if wait < 0 {
				wait = 0
			}
		}
		p.mu.Unlock()

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-p.tg.StopChan():
			return
		case <-p.wake:
			continue
		case <-timer.C:
			p.promoteExpired()
		}
	}
}

func (p *Pool) promoteExpired() {
	p.mu.Lock()
	now := time.Now()
	moved := 0
	for len(p.delayed) > 0 && !p.delayed[0].deadline.After(now) {
		dt := heap.Pop(&p.delayed).(*delayedTask)
		p.queue = append(p.queue, &readyTask{fn: dt.fn, handle: dt.handle})
		moved++
	}
	p.mu.Unlock()
	if moved > 0 {
		p.cond.Broadcast()
	}
}
