package flow

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/valmere/tradesman/internal/market"
)

// Tracker is the order-lifecycle capability the flows notify on terminal
// success.
type Tracker interface {
	Record(item string, qty int, price float64, side market.Side)
	MarkClaimed(item string, side market.Side) bool
	MarkCancelled(item string, side market.Side) bool
}

// Sink receives one-way completed-operation records; no response is awaited.
type Sink interface {
	RecordOp(op, item string, qty int, price float64, side market.Side, failure error)
}

// Ops composes the machine with its downstream side effects.
type Ops struct {
	m       *Machine
	tracker Tracker
	sink    Sink
}

func NewOps(m *Machine, tracker Tracker, sink Sink) *Ops {
	return &Ops{m: m, tracker: tracker, sink: sink}
}

// PlaceOrder drives a buy-order or sell-offer placement to completion and
// records the standing order on success.
func (o *Ops) PlaceOrder(ctx context.Context, rec market.Recommendation) error {
	display := market.DisplayName(rec.ItemID)
	create := "Create Buy Order"
	if rec.Side == market.SideSell {
		create = "Create Sell Offer"
	}

	err := o.m.run(ctx, "place "+string(rec.Side)+" "+rec.ItemID, []step{
		{"await bazaar", func(ctx context.Context) error {
			return o.m.awaitSurface(ctx, "Bazaar")
		}},
		{"open item", func(ctx context.Context) error {
			return o.m.selectAndAwait(ctx, display)
		}},
		{"open order form", func(ctx context.Context) error {
			return o.m.selectAndAwait(ctx, create)
		}},
		{"enter amount", func(ctx context.Context) error {
			return o.m.enterNumber(ctx, "Custom Amount", strconv.Itoa(rec.Quantity))
		}},
		{"enter price", func(ctx context.Context) error {
			return o.m.enterNumber(ctx, "Custom Price", formatPrice(rec.UnitPrice))
		}},
		{"confirm", func(ctx context.Context) error {
			return o.m.selectAndAwait(ctx, "Confirm")
		}},
	})

	o.sink.RecordOp("place", rec.ItemID, rec.Quantity, rec.UnitPrice, rec.Side, err)
	if err != nil {
		return err
	}
	o.tracker.Record(rec.ItemID, rec.Quantity, rec.UnitPrice, rec.Side)
	return nil
}

// ClaimOrder collects a filled order from the orders screen and marks it
// claimed.
func (o *Ops) ClaimOrder(ctx context.Context, item string, side market.Side) error {
	err := o.m.run(ctx, "claim "+string(side)+" "+item, []step{
		{"await orders", func(ctx context.Context) error {
			return o.m.awaitSurface(ctx, "Your Bazaar Orders")
		}},
		{"claim order", func(ctx context.Context) error {
			return o.m.selectAndAwait(ctx, orderSlotLabel(item, side))
		}},
	})

	o.sink.RecordOp("claim", item, 0, 0, side, err)
	if err != nil {
		return err
	}
	o.tracker.MarkClaimed(item, side)
	return nil
}

// CancelOrder withdraws a standing order. When the order view shows a claim
// element instead of a cancel element the order has already filled, and
// ErrAlreadyFilled is returned so the caller can claim instead.
func (o *Ops) CancelOrder(ctx context.Context, item string, side market.Side) error {
	var filled bool

	err := o.m.run(ctx, "cancel "+string(side)+" "+item, []step{
		{"await orders", func(ctx context.Context) error {
			return o.m.awaitSurface(ctx, "Your Bazaar Orders")
		}},
		{"open order", func(ctx context.Context) error {
			return o.m.selectAndAwait(ctx, orderSlotLabel(item, side))
		}},
		{"cancel order", func(ctx context.Context) error {
			if !o.m.hasElement("Cancel Order") && o.m.hasElement("Claim") {
				filled = true
				return nil
			}
			return o.m.selectAndAwait(ctx, "Cancel Order")
		}},
	})

	if err == nil && filled {
		err = ErrAlreadyFilled
	}
	o.sink.RecordOp("cancel", item, 0, 0, side, err)
	if err != nil {
		return err
	}
	o.tracker.MarkCancelled(item, side)
	return nil
}

// PurchaseListing buys a time-sensitive listing outright.
func (o *Ops) PurchaseListing(ctx context.Context, l market.Listing) error {
	err := o.m.run(ctx, "purchase "+l.ItemID, []step{
		{"await listing", func(ctx context.Context) error {
			return o.m.awaitSurface(ctx, market.DisplayName(l.ItemID))
		}},
		{"buy now", func(ctx context.Context) error {
			return o.m.selectAndAwait(ctx, "Buy Item Right Now")
		}},
		{"confirm", func(ctx context.Context) error {
			return o.m.selectAndAwait(ctx, "Confirm Purchase")
		}},
	})

	o.sink.RecordOp("purchase", l.ItemID, 1, l.Price, market.SideBuy, err)
	return err
}

func orderSlotLabel(item string, side market.Side) string {
	return fmt.Sprintf("%s: %s", strings.ToUpper(string(side)), market.DisplayName(item))
}

func formatPrice(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}
