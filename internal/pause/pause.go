// Package pause implements the temporal exclusion window armed by incoming
// high-priority sale signals. While the window is open, price-sensitive
// actions are buffered and replayed in arrival order once it closes.
package pause

import (
	"context"
	"sync"
	"time"

	"github.com/valmere/tradesman/internal/config"
	"github.com/valmere/tradesman/internal/logging"
	"github.com/valmere/tradesman/internal/sched"
)

// Submitter enqueues actions into the scheduler.
type Submitter interface {
	Submit(*sched.Action) error
}

// Interrupter preempts in-flight scheduler work.
type Interrupter interface {
	Interrupt() bool
}

// Coordinator is the Idle → Paused → Idle state machine. The pending flag is
// armed the instant a signal is seen and models "imminent but unconfirmed";
// the pause window is the confirmed exclusion period.
type Coordinator struct {
	cfg  config.PauseConfig
	log  *logging.Logger
	subm Submitter
	intr Interrupter

	mu           sync.Mutex
	pauseUntil   time.Time
	pendingUntil time.Time
	buffer       []*sched.Action

	now func() time.Time
}

func New(cfg config.PauseConfig, log *logging.Logger, subm Submitter, intr Interrupter) *Coordinator {
	return &Coordinator{
		cfg:  cfg,
		log:  log,
		subm: subm,
		intr: intr,
		now:  time.Now,
	}
}

// Trigger arms the pending flag and opens (or restarts) the pause window,
// then asks the scheduler to yield any interruptible in-flight action.
func (c *Coordinator) Trigger() {
	c.mu.Lock()
	now := c.now()
	restarted := now.Before(c.pauseUntil)
	c.pendingUntil = now.Add(c.cfg.PendingTimeout())
	c.pauseUntil = now.Add(c.cfg.Window())
	c.mu.Unlock()

	if restarted {
		c.log.Infof("pause window restarted, until=%s", c.pauseUntil.Format(time.RFC3339))
	} else {
		c.log.Infof("pause window opened, until=%s", c.pauseUntil.Format(time.RFC3339))
	}

	if c.intr != nil && c.intr.Interrupt() {
		c.log.Infof("in-flight action yielded to incoming sale")
	}
}

// ClearPending clears the pending flag early, on explicit completion of the
// anticipated event. The pause window is unaffected.
func (c *Coordinator) ClearPending() {
	c.mu.Lock()
	c.pendingUntil = time.Time{}
	c.mu.Unlock()
}

// IsPaused reports whether the confirmed exclusion window is open.
func (c *Coordinator) IsPaused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now().Before(c.pauseUntil)
}

// IsPending reports whether a signal has been seen and neither completed nor
// timed out.
func (c *Coordinator) IsPending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now().Before(c.pendingUntil)
}

// Blocked implements the scheduler gate: order-category actions are held
// while pending or paused.
func (c *Coordinator) Blocked(cat sched.Category, now time.Time) bool {
	if cat != sched.CategoryOrder {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return now.Before(c.pauseUntil) || now.Before(c.pendingUntil)
}

// Submit routes an action to the scheduler, diverting order-category actions
// into the side buffer while the window is open.
func (c *Coordinator) Submit(a *sched.Action) error {
	c.mu.Lock()
	if a.Category == sched.CategoryOrder && c.now().Before(c.pauseUntil) {
		c.buffer = append(c.buffer, a)
		n := len(c.buffer)
		c.mu.Unlock()
		c.log.Debugf("buffered during pause name=%s item=%s buffered=%d", a.Name, a.Item, n)
		return nil
	}
	c.mu.Unlock()
	return c.subm.Submit(a)
}

// Advance performs lazy expiry: once the window has closed, buffered actions
// are submitted oldest first and the buffer is cleared.
func (c *Coordinator) Advance(now time.Time) {
	c.mu.Lock()
	if c.pauseUntil.IsZero() || now.Before(c.pauseUntil) {
		c.mu.Unlock()
		return
	}
	buffered := c.buffer
	c.buffer = nil
	c.pauseUntil = time.Time{}
	c.mu.Unlock()

	if len(buffered) == 0 {
		c.log.Infof("pause window expired")
		return
	}
	c.log.Infof("pause window expired, replaying %d buffered actions", len(buffered))
	for _, a := range buffered {
		if err := c.subm.Submit(a); err != nil {
			c.log.Warnf("replay rejected name=%s item=%s: %v", a.Name, a.Item, err)
		}
	}
}

// Run polls for window expiry until ctx is cancelled.
func (c *Coordinator) Run(ctx context.Context) error {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case t := <-ticker.C:
			c.Advance(t)
		}
	}
}
