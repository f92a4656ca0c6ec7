package sched

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/valmere/tradesman/internal/config"
	"github.com/valmere/tradesman/internal/logging"
)

// ErrExclusiveState is returned when the exclusive resource is found held by
// another operation. Callers reset and continue; it is never fatal.
var ErrExclusiveState = errors.New("exclusive resource already claimed")

// Gate lets the pause coordinator hold back whole action categories without
// the scheduler importing it (see the capability wiring in the daemon).
type Gate interface {
	Blocked(cat Category, now time.Time) bool
}

// Scheduler owns the action queue and the busy-flag that, together with the
// external surface, form the one exclusive resource. A single cooperative
// loop dequeues and executes one action at a time.
type Scheduler struct {
	cfg config.SchedulerConfig
	log *logging.Logger

	mu        sync.Mutex
	q         priorityQueue
	busy      bool
	inflight  *inflight
	holds     map[string]func() bool
	gate      Gate
	abortHook func()
	exclusive string

	now func() time.Time
}

type inflight struct {
	action      *Action
	cancel      context.CancelFunc
	interrupted bool
}

func NewScheduler(cfg config.SchedulerConfig, log *logging.Logger) *Scheduler {
	return &Scheduler{
		cfg:   cfg,
		log:   log,
		holds: make(map[string]func() bool),
		now:   time.Now,
	}
}

// SetGate wires the pause coordinator's category gate. Must be called before Run.
func (s *Scheduler) SetGate(g Gate) { s.gate = g }

// SetAbortHook wires the reset applied to the external surface when an action
// fails, times out, or is preempted. Must be called before Run.
func (s *Scheduler) SetAbortHook(fn func()) { s.abortHook = fn }

// AddHold registers a named exclusive external state (grace period, startup,
// and the like). While any hold reports true the loop does not dequeue.
func (s *Scheduler) AddHold(name string, fn func() bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.holds[name] = fn
}

// Enqueue inserts the action in priority order and returns its id.
// Order-category duplicates for an already-queued item are rejected.
func (s *Scheduler) Enqueue(a *Action) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a.EnqueuedAt = s.now()
	if err := s.q.insert(a); err != nil {
		s.log.Warnf("enqueue_rejected name=%s item=%s: %v", a.Name, a.Item, err)
		return "", err
	}
	s.log.Debugf("enqueued id=%s name=%s priority=%s category=%s queue_len=%d",
		a.ID, a.Name, a.Priority, a.Category, s.q.len())
	return a.ID, nil
}

// Submit is Enqueue without the id, satisfying the Submitter capability used
// by the pause coordinator and the order tracker.
func (s *Scheduler) Submit(a *Action) error {
	_, err := s.Enqueue(a)
	return err
}

// Len returns the number of queued actions.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.len()
}

// Busy reports whether an action is in flight.
func (s *Scheduler) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// Clear drains the queue and returns the number of dropped actions.
// Emergency use only.
func (s *Scheduler) Clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.q.clear()
	if n > 0 {
		s.log.Warnf("queue cleared, dropped=%d", n)
	}
	return n
}

// ClaimExclusive marks the shared resource as held by a higher-priority
// external operation. While claimed, the loop does not dequeue and failure
// cleanup leaves the resource alone.
func (s *Scheduler) ClaimExclusive(owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exclusive != "" {
		return fmt.Errorf("%w: held by %s", ErrExclusiveState, s.exclusive)
	}
	s.exclusive = owner
	s.log.Debugf("exclusive claimed by %s", owner)
	return nil
}

// ReleaseExclusive releases a claim taken with ClaimExclusive. Releasing a
// claim held by someone else is ignored.
func (s *Scheduler) ReleaseExclusive(owner string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exclusive == owner {
		s.exclusive = ""
		s.log.Debugf("exclusive released by %s", owner)
	}
}

// Interrupt preempts the in-flight action. It returns false when nothing is
// in flight or the action is not interruptible. Otherwise the action's
// context is cancelled, the abort hook resets the surface, and the action is
// re-queued at the front of its priority band with a refreshed timestamp.
func (s *Scheduler) Interrupt() bool {
	s.mu.Lock()
	inf := s.inflight
	if inf == nil || !inf.action.Interruptible {
		s.mu.Unlock()
		return false
	}
	inf.interrupted = true
	s.inflight = nil
	s.busy = false

	a := inf.action
	a.EnqueuedAt = s.now()
	s.q.insertFront(a)
	s.mu.Unlock()

	inf.cancel()
	if s.abortHook != nil {
		s.abortHook()
	}
	s.log.Infof("interrupted id=%s name=%s, re-queued at front of band", a.ID, a.Name)
	return true
}

// Run drives the processing loop until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Poll())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if s.step(ctx) {
				// one action completed; brief settle before the next dequeue
				s.sleep(ctx, s.cfg.InterActionDelay())
			}
		}
	}
}

// step dequeues and executes at most one action. Returns true when an action
// ran (successfully or not).
func (s *Scheduler) step(ctx context.Context) bool {
	for {
		a, ok := s.take()
		if !ok {
			return false
		}
		if a.Category == CategoryOrder && a.age(s.now()) > s.cfg.Staleness() {
			s.log.Infof("discarding stale action id=%s name=%s age=%s", a.ID, a.Name, a.age(s.now()))
			s.finish(nil)
			continue
		}
		s.execute(ctx, a)
		return true
	}
}

// take claims the busy-flag and removes the next eligible action. ok is false
// when the loop must stay idle this tick.
func (s *Scheduler) take() (*Action, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.busy || s.exclusive != "" || s.q.len() == 0 {
		return nil, false
	}
	for _, hold := range s.holds {
		if hold() {
			return nil, false
		}
	}

	now := s.now()
	a := s.q.popEligible(func(a *Action) bool {
		return s.gate == nil || !s.gate.Blocked(a.Category, now)
	})
	if a == nil {
		return nil, false
	}
	s.busy = true
	return a, true
}

func (s *Scheduler) execute(ctx context.Context, a *Action) {
	runCtx, cancel := context.WithTimeout(ctx, s.cfg.ActionTimeout())
	defer cancel()

	s.mu.Lock()
	inf := &inflight{action: a, cancel: cancel}
	s.inflight = inf
	s.mu.Unlock()

	started := s.now()
	done := make(chan error, 1)
	go func() {
		done <- a.Execute(runCtx)
	}()

	var err error
	select {
	case err = <-done:
	case <-runCtx.Done():
		err = fmt.Errorf("action %s: %w", a.Name, runCtx.Err())
	}

	s.mu.Lock()
	if inf.interrupted {
		// Interrupt already reset state and re-queued the action.
		s.mu.Unlock()
		return
	}
	s.inflight = nil
	s.busy = false
	skipReset := s.exclusive != ""
	s.mu.Unlock()

	if err != nil {
		s.log.Errorf("action failed id=%s name=%s after=%s: %v", a.ID, a.Name, s.now().Sub(started), err)
		if !skipReset && s.abortHook != nil {
			s.abortHook()
		}
		return
	}
	s.log.Infof("action done id=%s name=%s after=%s", a.ID, a.Name, s.now().Sub(started))
}

// finish releases the busy-flag after a dequeue that did not execute.
func (s *Scheduler) finish(inf *inflight) {
	s.mu.Lock()
	s.busy = false
	s.inflight = inf
	s.mu.Unlock()
}

func (s *Scheduler) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
