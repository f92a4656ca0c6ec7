// Package orders tracks the standing orders this client has placed, ages
// them, and drives stale ones through cancellation.
package orders

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/valmere/tradesman/internal/config"
	"github.com/valmere/tradesman/internal/flow"
	"github.com/valmere/tradesman/internal/logging"
	"github.com/valmere/tradesman/internal/market"
	"github.com/valmere/tradesman/internal/sched"
)

// Canceller drives a cancel operation through the interaction machine.
type Canceller interface {
	CancelOrder(ctx context.Context, item string, side market.Side) error
}

// Submitter enqueues actions into the scheduler.
type Submitter interface {
	Submit(*sched.Action) error
}

// Tracker owns the active order set. Orders leave the set once claimed or
// cancelled.
type Tracker struct {
	cfg  config.OrdersConfig
	log  *logging.Logger
	subm Submitter
	canc Canceller

	mu       sync.Mutex
	orders   []market.Order
	sweeping map[string]bool

	now func() time.Time
}

func NewTracker(cfg config.OrdersConfig, log *logging.Logger, subm Submitter) *Tracker {
	return &Tracker{
		cfg:      cfg,
		log:      log,
		subm:     subm,
		sweeping: make(map[string]bool),
		now:      time.Now,
	}
}

// SetCanceller wires the cancel flow. Set after construction because the flow
// layer also needs the tracker (daemon→flow→orders would otherwise cycle).
func (t *Tracker) SetCanceller(c Canceller) {
	t.canc = c
}

// Load restores the order set from the snapshot file.
func (t *Tracker) Load() error {
	restored, err := loadSnapshot(t.cfg.Path)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.orders = restored
	n := len(restored)
	t.mu.Unlock()
	if n > 0 {
		t.log.Infof("restored %d open orders", n)
	}
	return nil
}

// Record appends a freshly placed order.
func (t *Tracker) Record(item string, qty int, price float64, side market.Side) {
	t.mu.Lock()
	t.orders = append(t.orders, market.Order{
		ItemID:    item,
		Quantity:  qty,
		UnitPrice: price,
		Side:      side,
		PlacedAt:  t.now(),
	})
	t.persistLocked()
	t.mu.Unlock()
	t.log.Infof("order recorded item=%s qty=%d price=%.2f side=%s", item, qty, price, side)
}

// MarkClaimed marks the first matching open order claimed and removes it from
// the active set. Returns false when no open order matches.
func (t *Tracker) MarkClaimed(item string, side market.Side) bool {
	return t.resolve(item, side, func(o *market.Order) { o.Claimed = true })
}

// MarkCancelled marks the first matching open order cancelled and removes it
// from the active set.
func (t *Tracker) MarkCancelled(item string, side market.Side) bool {
	return t.resolve(item, side, func(o *market.Order) { o.Cancelled = true })
}

func (t *Tracker) resolve(item string, side market.Side, mark func(*market.Order)) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.orders {
		o := &t.orders[i]
		if o.ItemID == item && o.Side == side && o.Open() {
			mark(o)
			t.removeLocked(i)
			t.persistLocked()
			t.log.Infof("order resolved item=%s side=%s claimed=%v cancelled=%v",
				item, side, o.Claimed, o.Cancelled)
			return true
		}
	}
	return false
}

// Open returns a copy of the active order set.
func (t *Tracker) Open() []market.Order {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]market.Order, len(t.orders))
	copy(out, t.orders)
	return out
}

// Sweep submits cancel actions for orders past the cancel threshold. When the
// active set exceeds the configured maximum, the oldest order is cancelled
// early as well.
func (t *Tracker) Sweep(now time.Time) {
	t.mu.Lock()
	var stale []market.Order
	oldestIdx := -1
	for i, o := range t.orders {
		if !o.Open() || t.sweeping[orderKey(o.ItemID, o.Side)] {
			continue
		}
		if now.Sub(o.PlacedAt) > t.cfg.CancelAfter() {
			stale = append(stale, o)
			continue
		}
		if oldestIdx < 0 || o.PlacedAt.Before(t.orders[oldestIdx].PlacedAt) {
			oldestIdx = i
		}
	}
	if t.cfg.MaxOpen > 0 && len(t.orders) > t.cfg.MaxOpen && oldestIdx >= 0 {
		stale = append(stale, t.orders[oldestIdx])
	}
	for _, o := range stale {
		t.sweeping[orderKey(o.ItemID, o.Side)] = true
	}
	t.mu.Unlock()

	for _, o := range stale {
		t.submitCancel(o)
	}
}

func (t *Tracker) submitCancel(o market.Order) {
	key := orderKey(o.ItemID, o.Side)
	a := sched.New(fmt.Sprintf("cancel stale %s %s", o.Side, o.ItemID),
		sched.PriorityHigh, sched.CategoryClaim, func(ctx context.Context) error {
			defer t.clearSweeping(key)
			err := t.canc.CancelOrder(ctx, o.ItemID, o.Side)
			if errors.Is(err, flow.ErrAlreadyFilled) {
				// discovered filled before it was found stale
				t.MarkClaimed(o.ItemID, o.Side)
				return nil
			}
			return err
		})
	a.Item = o.ItemID
	a.Interruptible = true

	if err := t.subm.Submit(a); err != nil {
		t.clearSweeping(key)
		t.log.Warnf("cancel submit rejected item=%s: %v", o.ItemID, err)
		return
	}
	t.log.Infof("cancel submitted item=%s side=%s age=%s", o.ItemID, o.Side, t.now().Sub(o.PlacedAt))
}

func (t *Tracker) clearSweeping(key string) {
	t.mu.Lock()
	delete(t.sweeping, key)
	t.mu.Unlock()
}

// Run sweeps at the configured interval until ctx is cancelled.
func (t *Tracker) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.cfg.SweepInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			t.Sweep(now)
		}
	}
}

func (t *Tracker) removeLocked(i int) {
	t.orders = append(t.orders[:i], t.orders[i+1:]...)
}

func (t *Tracker) persistLocked() {
	if t.cfg.Path == "" {
		return
	}
	if err := saveSnapshot(t.cfg.Path, t.orders); err != nil {
		t.log.Errorf("order snapshot failed: %v", err)
	}
}

func orderKey(item string, side market.Side) string {
	return item + "/" + string(side)
}
