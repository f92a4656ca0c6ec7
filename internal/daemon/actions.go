package daemon

import (
	"context"
	"fmt"
	"strings"

	"github.com/valmere/tradesman/internal/market"
	"github.com/valmere/tradesman/internal/sched"
)

// orderAction wraps a recommendation into a price-sensitive order action.
func (d *Daemon) orderAction(rec *market.Recommendation) *sched.Action {
	r := *rec
	name := fmt.Sprintf("Bazaar %s: %dx %s",
		strings.ToUpper(string(r.Side)), r.Quantity, market.DisplayName(r.ItemID))
	a := sched.New(name, sched.PriorityNormal, sched.CategoryOrder, func(ctx context.Context) error {
		return d.ops.PlaceOrder(ctx, r)
	})
	a.Item = r.ItemID
	a.Interruptible = true
	return a
}

// claimAction collects a filled order after a fill notification.
func (d *Daemon) claimAction(item string, side market.Side) *sched.Action {
	name := fmt.Sprintf("Claim %s: %s", strings.ToUpper(string(side)), market.DisplayName(item))
	a := sched.New(name, sched.PriorityHigh, sched.CategoryClaim, func(ctx context.Context) error {
		return d.ops.ClaimOrder(ctx, item, side)
	})
	a.Item = item
	a.Interruptible = true
	return a
}

// purchaseAction buys a time-sensitive listing. It is the highest-urgency
// work and must not be preempted once started; completing it also clears the
// pause coordinator's pending flag.
func (d *Daemon) purchaseAction(l market.Listing) *sched.Action {
	name := fmt.Sprintf("Purchase: %s", market.DisplayName(l.ItemID))
	a := sched.New(name, sched.PriorityCritical, sched.CategoryPurchase, func(ctx context.Context) error {
		defer d.pause.ClearPending()
		return d.ops.PurchaseListing(ctx, l)
	})
	a.Item = l.ItemID
	return a
}
