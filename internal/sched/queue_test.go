package sched

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(q *priorityQueue) []string {
	out := make([]string, 0, q.len())
	for _, a := range q.items {
		out = append(out, a.ID)
	}
	return out
}

func qa(id string, prio Priority, cat Category) *Action {
	return &Action{ID: id, Name: id, Priority: prio, Category: cat}
}

func TestInsertPriorityOrder(t *testing.T) {
	var q priorityQueue
	require.NoError(t, q.insert(qa("a", PriorityNormal, CategoryClaim)))
	require.NoError(t, q.insert(qa("b", PriorityHigh, CategoryClaim)))
	require.NoError(t, q.insert(qa("c", PriorityCritical, CategoryPurchase)))
	require.NoError(t, q.insert(qa("d", PriorityLow, CategoryMaintenance)))

	assert.Equal(t, []string{"c", "b", "a", "d"}, ids(&q))
}

func TestInsertTiebreakFIFO(t *testing.T) {
	var q priorityQueue
	require.NoError(t, q.insert(qa("first", PriorityNormal, CategoryClaim)))
	require.NoError(t, q.insert(qa("second", PriorityNormal, CategoryClaim)))
	require.NoError(t, q.insert(qa("third", PriorityNormal, CategoryMaintenance)))

	assert.Equal(t, []string{"first", "second", "third"}, ids(&q))
}

func TestInsertTiebreakLIFOForOrders(t *testing.T) {
	var q priorityQueue
	a := qa("older", PriorityNormal, CategoryOrder)
	a.Item = "COAL"
	b := qa("newer", PriorityNormal, CategoryOrder)
	b.Item = "IRON"
	require.NoError(t, q.insert(a))
	require.NoError(t, q.insert(b))

	// fresher prices win within the band
	assert.Equal(t, []string{"newer", "older"}, ids(&q))
}

func TestInsertOrderDoesNotJumpNonOrderPeers(t *testing.T) {
	var q priorityQueue
	require.NoError(t, q.insert(qa("claim", PriorityNormal, CategoryClaim)))
	older := qa("older", PriorityNormal, CategoryOrder)
	older.Item = "COAL"
	require.NoError(t, q.insert(older))
	newer := qa("newer", PriorityNormal, CategoryOrder)
	newer.Item = "IRON"
	require.NoError(t, q.insert(newer))

	// the LIFO jump lands ahead of order peers only; the claim keeps its place
	assert.Equal(t, []string{"claim", "newer", "older"}, ids(&q))
}

func TestInsertDuplicateOrderRejected(t *testing.T) {
	var q priorityQueue
	a := qa("a", PriorityNormal, CategoryOrder)
	a.Item = "ENCHANTED_COAL"
	require.NoError(t, q.insert(a))

	dup := qa("dup", PriorityNormal, CategoryOrder)
	dup.Item = "ENCHANTED_COAL"
	err := q.insert(dup)
	require.ErrorIs(t, err, ErrDuplicate)
	assert.Equal(t, 1, q.len())

	// lower-priority duplicate is rejected too
	low := qa("low", PriorityLow, CategoryOrder)
	low.Item = "ENCHANTED_COAL"
	require.ErrorIs(t, q.insert(low), ErrDuplicate)

	// a strictly more urgent duplicate is allowed through
	urgent := qa("urgent", PriorityHigh, CategoryOrder)
	urgent.Item = "ENCHANTED_COAL"
	require.NoError(t, q.insert(urgent))
	assert.Equal(t, 2, q.len())
}

func TestInsertDuplicateOtherCategoriesAllowed(t *testing.T) {
	var q priorityQueue
	a := qa("a", PriorityHigh, CategoryClaim)
	a.Item = "ENCHANTED_COAL"
	b := qa("b", PriorityHigh, CategoryClaim)
	b.Item = "ENCHANTED_COAL"
	require.NoError(t, q.insert(a))
	require.NoError(t, q.insert(b))
	assert.Equal(t, 2, q.len())
}

func TestInsertFront(t *testing.T) {
	var q priorityQueue
	require.NoError(t, q.insert(qa("critical", PriorityCritical, CategoryPurchase)))
	require.NoError(t, q.insert(qa("peer1", PriorityNormal, CategoryClaim)))
	require.NoError(t, q.insert(qa("peer2", PriorityNormal, CategoryClaim)))

	q.insertFront(qa("requeued", PriorityNormal, CategoryClaim))

	// ahead of same-priority peers, behind strictly higher priority
	assert.Equal(t, []string{"critical", "requeued", "peer1", "peer2"}, ids(&q))
}

func TestPopEligibleSkipsBlocked(t *testing.T) {
	var q priorityQueue
	require.NoError(t, q.insert(qa("order", PriorityHigh, CategoryOrder)))
	require.NoError(t, q.insert(qa("claim", PriorityNormal, CategoryClaim)))

	got := q.popEligible(func(a *Action) bool { return a.Category != CategoryOrder })
	require.NotNil(t, got)
	assert.Equal(t, "claim", got.ID)

	// blocked entry stays queued in place
	assert.Equal(t, []string{"order"}, ids(&q))
}

func TestClear(t *testing.T) {
	var q priorityQueue
	require.NoError(t, q.insert(qa("a", PriorityNormal, CategoryClaim)))
	require.NoError(t, q.insert(qa("b", PriorityLow, CategoryClaim)))
	assert.Equal(t, 2, q.clear())
	assert.Equal(t, 0, q.len())
}
