package sched

import "errors"

// ErrDuplicate is returned when an equal-or-higher-priority order-category
// action for the same item is already queued.
var ErrDuplicate = errors.New("duplicate order action queued for item")

// priorityQueue keeps actions in priority order. Within an equal-priority
// band, incoming order-category actions go to the front (LIFO) and all other
// categories to the back (FIFO). Not safe for concurrent use; the scheduler's
// mutex guards it.
type priorityQueue struct {
	items []*Action
}

func (q *priorityQueue) len() int { return len(q.items) }

// insert places the action per its category's tiebreak rule. Order-category
// duplicates for the same item are rejected when an existing entry is at
// least as urgent.
func (q *priorityQueue) insert(a *Action) error {
	if a.Category == CategoryOrder {
		for _, ex := range q.items {
			if ex.Category == CategoryOrder && ex.Item == a.Item && ex.Priority <= a.Priority {
				return ErrDuplicate
			}
		}
	}

	pos := len(q.items)
	for i, ex := range q.items {
		if ex.Priority > a.Priority {
			pos = i
			break
		}
		// LIFO only among order-category peers; earlier non-order entries of
		// the band keep their FIFO place
		if ex.Priority == a.Priority && a.Category == CategoryOrder && ex.Category == CategoryOrder {
			pos = i
			break
		}
	}
	q.insertAt(pos, a)
	return nil
}

// insertFront places the action ahead of same-priority peers regardless of
// category. Used when re-queueing preempted work.
func (q *priorityQueue) insertFront(a *Action) {
	pos := len(q.items)
	for i, ex := range q.items {
		if ex.Priority >= a.Priority {
			pos = i
			break
		}
	}
	q.insertAt(pos, a)
}

func (q *priorityQueue) insertAt(pos int, a *Action) {
	q.items = append(q.items, nil)
	copy(q.items[pos+1:], q.items[pos:])
	q.items[pos] = a
}

// popEligible removes and returns the first action for which eligible is
// true, keeping ineligible entries queued in place.
func (q *priorityQueue) popEligible(eligible func(*Action) bool) *Action {
	for i, a := range q.items {
		if eligible(a) {
			q.removeAt(i)
			return a
		}
	}
	return nil
}

func (q *priorityQueue) removeAt(i int) {
	copy(q.items[i:], q.items[i+1:])
	q.items[len(q.items)-1] = nil
	q.items = q.items[:len(q.items)-1]
}

func (q *priorityQueue) clear() int {
	n := len(q.items)
	q.items = nil
	return n
}
