// Package scheduler serializes pipeline runs: rapid parameter edits are
// debounced per image, stale pending work is cancelled, and exactly one
// task executes at a time with priority-ordered dequeueing.
package scheduler

import (
	"context"
	"sync"
	"time"

	"snapvec/internal/logger"
	"snapvec/internal/tracer"
)

// Priority orders pending tasks. Higher runs first.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
)

// Status is the lifecycle state of a task.
type Status int

const (
	StatusPending Status = iota
	StatusRunning
	StatusCompleted
	StatusCancelled
	StatusError
)

// DefaultDebounce collapses parameter edit bursts to the last value.
const DefaultDebounce = 150 * time.Millisecond

// DefaultQueueCap bounds the pending queue; overflow drops the oldest
// pending task.
const DefaultQueueCap = 16

// TaskFunc is the unit of work. It must honor ctx cooperatively; the
// scheduler never preempts a running task, it only discards the result.
type TaskFunc func(ctx context.Context) (*tracer.Result, error)

// Task is one scheduled pipeline run.
type Task struct {
	Key      string
	Priority Priority

	mu     sync.Mutex
	status Status
	result *tracer.Result
	err    error
	done   chan struct{}
	cancel context.CancelFunc
	runCtx context.Context
	run    TaskFunc
	seq    uint64
}

// Status returns the task's current lifecycle state.
func (t *Task) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Wait blocks until the task finishes or waitCtx is cancelled.
func (t *Task) Wait(waitCtx context.Context) (*tracer.Result, error) {
	select {
	case <-t.done:
	case <-waitCtx.Done():
		return nil, waitCtx.Err()
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result, t.err
}

// Cancel rejects a pending task immediately; a running task is marked
// for cooperative cancellation and its result discarded.
func (t *Task) Cancel() {
	t.mu.Lock()
	if t.status == StatusPending {
		t.finishLocked(StatusCancelled, nil, &tracer.CancellationError{Reason: "cancelled by caller"})
		t.mu.Unlock()
		return
	}
	cancel := t.cancel
	t.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// finishLocked transitions to a terminal state exactly once.
func (t *Task) finishLocked(status Status, result *tracer.Result, err error) {
	if t.status == StatusCompleted || t.status == StatusCancelled || t.status == StatusError {
		return
	}
	t.status = status
	t.result = result
	t.err = err
	close(t.done)
}

// Scheduler owns the debounce timers, the bounded priority queue and the
// single runner goroutine.
type Scheduler struct {
	mu       sync.Mutex
	log      logger.Logger
	debounce time.Duration
	queueCap int

	staged  map[string]*stagedEntry // debouncing, not yet queued
	pending []*Task
	running *Task
	seq     uint64
	wake    chan struct{}
	closed  bool
}

type stagedEntry struct {
	task  *Task
	timer *time.Timer
}

// Option configures a Scheduler.
type Option func(*Scheduler)

func WithDebounce(d time.Duration) Option {
	return func(s *Scheduler) { s.debounce = d }
}

func WithQueueCap(n int) Option {
	return func(s *Scheduler) { s.queueCap = n }
}

func WithLogger(log logger.Logger) Option {
	return func(s *Scheduler) { s.log = log }
}

// New starts a scheduler and its runner goroutine.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		log:      logger.Nop{},
		debounce: DefaultDebounce,
		queueCap: DefaultQueueCap,
		staged:   make(map[string]*stagedEntry),
		wake:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.runLoop()
	return s
}

// SubmitDebounced cancels any staged or pending task for the same key,
// then enqueues this one after the debounce window. Bursts of edits for
// one image collapse to the newest value.
func (s *Scheduler) SubmitDebounced(key string, priority Priority, fn TaskFunc) *Task {
	task := s.newTask(key, priority, fn)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.rejectClosed(task)
		return task
	}

	s.cancelSameKeyLocked(key)

	entry := &stagedEntry{task: task}
	entry.timer = time.AfterFunc(s.debounce, func() { s.promote(key, task) })
	s.staged[key] = entry
	return task
}

// SubmitImmediate cancels same-key staged and pending tasks and
// enqueues without delay. Used for discrete, deliberate actions.
func (s *Scheduler) SubmitImmediate(key string, priority Priority, fn TaskFunc) *Task {
	task := s.newTask(key, priority, fn)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.rejectClosed(task)
		return task
	}

	s.cancelSameKeyLocked(key)
	s.enqueueLocked(task)
	return task
}

// Close cancels everything and stops the runner. In-flight work is
// cancelled cooperatively.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true

	for key, entry := range s.staged {
		entry.timer.Stop()
		entry.task.mu.Lock()
		entry.task.finishLocked(StatusCancelled, nil, &tracer.CancellationError{Reason: "scheduler closed"})
		entry.task.mu.Unlock()
		delete(s.staged, key)
	}
	for _, task := range s.pending {
		task.mu.Lock()
		task.finishLocked(StatusCancelled, nil, &tracer.CancellationError{Reason: "scheduler closed"})
		task.mu.Unlock()
	}
	s.pending = nil
	running := s.running
	s.mu.Unlock()

	if running != nil {
		running.Cancel()
	}
	s.signal()
}

// PendingCount reports staged plus queued tasks, for introspection.
func (s *Scheduler) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.staged) + len(s.pending)
}

func (s *Scheduler) newTask(key string, priority Priority, fn TaskFunc) *Task {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.mu.Unlock()
	return &Task{
		Key:      key,
		Priority: priority,
		status:   StatusPending,
		done:     make(chan struct{}),
		run:      fn,
		seq:      seq,
	}
}

func (s *Scheduler) rejectClosed(task *Task) {
	task.mu.Lock()
	task.finishLocked(StatusCancelled, nil, &tracer.CancellationError{Reason: "scheduler closed"})
	task.mu.Unlock()
}

// cancelSameKeyLocked rejects staged and queued (not running) tasks for
// the key. A superseding submission always wins.
func (s *Scheduler) cancelSameKeyLocked(key string) {
	if entry, ok := s.staged[key]; ok {
		entry.timer.Stop()
		entry.task.mu.Lock()
		entry.task.finishLocked(StatusCancelled, nil, &tracer.CancellationError{Reason: "superseded by newer submission"})
		entry.task.mu.Unlock()
		delete(s.staged, key)
	}

	kept := s.pending[:0]
	for _, task := range s.pending {
		if task.Key == key {
			task.mu.Lock()
			task.finishLocked(StatusCancelled, nil, &tracer.CancellationError{Reason: "superseded by newer submission"})
			task.mu.Unlock()
			continue
		}
		kept = append(kept, task)
	}
	s.pending = kept
}

// promote moves a staged task into the queue once its debounce window
// expires.
func (s *Scheduler) promote(key string, task *Task) {
	s.mu.Lock()
	entry, ok := s.staged[key]
	if !ok || entry.task != task || s.closed {
		s.mu.Unlock()
		return
	}
	delete(s.staged, key)
	s.enqueueLocked(task)
	s.mu.Unlock()
}

func (s *Scheduler) enqueueLocked(task *Task) {
	if len(s.pending) >= s.queueCap {
		// Drop the oldest pending task.
		oldest := 0
		for i, t := range s.pending {
			if t.seq < s.pending[oldest].seq {
				oldest = i
			}
		}
		dropped := s.pending[oldest]
		s.pending = append(s.pending[:oldest], s.pending[oldest+1:]...)
		dropped.mu.Lock()
		dropped.finishLocked(StatusCancelled, nil, &tracer.CancellationError{Reason: "queue overflow"})
		dropped.mu.Unlock()
		s.log.Warning("scheduler", "queue overflow, oldest task dropped", map[string]interface{}{
			"key": dropped.Key,
		})
	}
	s.pending = append(s.pending, task)
	s.signal()
}

func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// runLoop dequeues and executes one task at a time. On completion
// (success, error or post-hoc cancellation) the next task starts
// automatically.
func (s *Scheduler) runLoop() {
	for range s.wake {
		for {
			task := s.dequeue()
			if task == nil {
				break
			}
			s.execute(task)
		}
		s.mu.Lock()
		done := s.closed
		s.mu.Unlock()
		if done {
			return
		}
	}
}

// dequeue picks the highest-priority pending task, FIFO within a
// priority class.
func (s *Scheduler) dequeue() *Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || len(s.pending) == 0 {
		return nil
	}

	best := 0
	for i, t := range s.pending {
		if t.Priority > s.pending[best].Priority ||
			(t.Priority == s.pending[best].Priority && t.seq < s.pending[best].seq) {
			best = i
		}
	}
	task := s.pending[best]
	s.pending = append(s.pending[:best], s.pending[best+1:]...)

	ctx, cancel := context.WithCancel(context.Background())
	task.mu.Lock()
	task.status = StatusRunning
	task.cancel = cancel
	task.runCtx = ctx
	task.mu.Unlock()

	s.running = task
	return task
}

func (s *Scheduler) execute(task *Task) {
	result, err := task.run(task.runCtx)

	task.mu.Lock()
	switch {
	case task.runCtx.Err() != nil:
		// Cancelled mid-run: the work may have completed, but a newer
		// submission won. Discard the result.
		task.finishLocked(StatusCancelled, nil, &tracer.CancellationError{Reason: "superseded mid-run"})
	case err != nil:
		task.finishLocked(StatusError, nil, err)
	default:
		task.finishLocked(StatusCompleted, result, nil)
	}
	task.mu.Unlock()

	s.mu.Lock()
	s.running = nil
	s.mu.Unlock()

	if err != nil && task.runCtx.Err() == nil {
		s.log.Error("scheduler", err, map[string]interface{}{"key": task.Key})
	}
}
