// Package scheduler provides a delayed-task queue for deferred guard work.
// The coordinator schedules verification cycles into it and a single worker
// loop drains them when due. Pending tasks do not survive a process restart;
// the platform's own deferred-task store covers that gap.
package scheduler

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rcavanagh/sitesentry/internal/host"
	"github.com/rcavanagh/sitesentry/internal/logging"
)

// Task kinds drained by the worker loop.
const (
	KindVerification = "verification"
)

// Task is one unit of deferred work.
type Task struct {
	ID      string
	Kind    string
	Context host.ChangeContext
	RunAt   time.Time
}

// Handler processes a due task.
type Handler func(Task)

// Scheduler holds pending tasks and fires them when due.
type Scheduler struct {
	handler Handler

	mu      sync.Mutex
	tasks   []Task
	running bool
	stop    chan struct{}
	wake    chan struct{}
	wg      sync.WaitGroup
}

// New creates a scheduler that dispatches due tasks to handler.
func New(handler Handler) *Scheduler {
	return &Scheduler{
		handler: handler,
		stop:    make(chan struct{}),
		wake:    make(chan struct{}, 1),
	}
}

// Schedule enqueues a task to run after delay.
func (s *Scheduler) Schedule(delay time.Duration, kind string, chg host.ChangeContext) string {
	task := Task{
		ID:      uuid.NewString(),
		Kind:    kind,
		Context: chg,
		RunAt:   time.Now().Add(delay),
	}

	s.mu.Lock()
	s.tasks = append(s.tasks, task)
	s.mu.Unlock()

	logging.Debugf("[scheduler] queued %s task %s in %v", kind, task.ID, delay)

	// Nudge the worker so it re-evaluates the next wake time.
	select {
	case s.wake <- struct{}{}:
	default:
	}
	return task.ID
}

// Pending returns the number of queued tasks.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Start begins the worker loop.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run()
}

// Stop stops the worker loop. Queued tasks that have not fired are dropped.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stop)
	s.wg.Wait()
}

func (s *Scheduler) run() {
	defer s.wg.Done()

	for {
		wait := s.nextWait()

		timer := time.NewTimer(wait)
		select {
		case <-s.stop:
			timer.Stop()
			return
		case <-s.wake:
			timer.Stop()
			continue
		case <-timer.C:
		}

		for _, task := range s.takeDue() {
			s.handler(task)
		}
	}
}

// nextWait returns how long until the earliest task is due, or a long idle
// interval when the queue is empty.
func (s *Scheduler) nextWait() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.tasks) == 0 {
		return time.Hour
	}

	earliest := s.tasks[0].RunAt
	for _, t := range s.tasks[1:] {
		if t.RunAt.Before(earliest) {
			earliest = t.RunAt
		}
	}

	wait := time.Until(earliest)
	if wait < 0 {
		wait = time.Millisecond
	}
	return wait
}

// takeDue removes and returns all tasks whose RunAt has passed.
func (s *Scheduler) takeDue() []Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var due []Task
	kept := s.tasks[:0]
	for _, t := range s.tasks {
		if !t.RunAt.After(now) {
			due = append(due, t)
		} else {
			kept = append(kept, t)
		}
	}
	s.tasks = kept
	return due
}
