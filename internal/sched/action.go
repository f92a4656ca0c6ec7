// Package sched implements the single-consumer action scheduler: a priority
// queue with category-dependent ordering, a cooperative processing loop that
// enforces mutual exclusion on the shared surface, and preemption of
// interruptible in-flight work.
package sched

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Priority orders actions; lower value means more urgent.
type Priority int

const (
	PriorityCritical Priority = iota
	PriorityHigh
	PriorityNormal
	PriorityLow
)

func (p Priority) String() string {
	switch p {
	case PriorityCritical:
		return "critical"
	case PriorityHigh:
		return "high"
	case PriorityNormal:
		return "normal"
	default:
		return "low"
	}
}

// Category selects the tiebreak and gating rules that apply to an action.
type Category int

const (
	// CategoryOrder covers price-sensitive bazaar order placement. Ties break
	// LIFO (fresher prices win), duplicates per item are suppressed, entries
	// go stale, and the pause window applies.
	CategoryOrder Category = iota
	// CategoryPurchase covers direct listing purchases.
	CategoryPurchase
	// CategoryClaim covers claiming and cancelling standing orders.
	CategoryClaim
	// CategoryMaintenance covers housekeeping work.
	CategoryMaintenance
)

func (c Category) String() string {
	switch c {
	case CategoryOrder:
		return "order"
	case CategoryPurchase:
		return "purchase"
	case CategoryClaim:
		return "claim"
	default:
		return "maintenance"
	}
}

// Action is a named, prioritized unit of work. EnqueuedAt is refreshed when
// the action is re-queued after preemption; everything else is immutable.
type Action struct {
	ID            string
	Name          string
	Item          string
	Priority      Priority
	Category      Category
	Interruptible bool
	EnqueuedAt    time.Time
	Execute       func(ctx context.Context) error
}

// New builds an action with a fresh id.
func New(name string, prio Priority, cat Category, execute func(ctx context.Context) error) *Action {
	return &Action{
		ID:       uuid.NewString(),
		Name:     name,
		Priority: prio,
		Category: cat,
		Execute:  execute,
	}
}

func (a *Action) age(now time.Time) time.Duration {
	return now.Sub(a.EnqueuedAt)
}
