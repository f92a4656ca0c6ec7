// Package flow drives multi-step marketplace operations across the shared
// surface: each operation is a sequence of select-and-wait steps matched
// against the surface's actual contents, under per-step and whole-operation
// timeouts.
package flow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/valmere/tradesman/internal/config"
	"github.com/valmere/tradesman/internal/logging"
	"github.com/valmere/tradesman/internal/surface"
)

// Machine runs one operation at a time against the surface client. It holds
// no per-operation state; every step inspects the current surface rather than
// trusting a step counter, since the same physical surface can arrive in a
// different logical state than expected.
type Machine struct {
	client surface.Client
	cfg    config.FlowConfig
	log    *logging.Logger
}

func NewMachine(client surface.Client, cfg config.FlowConfig, log *logging.Logger) *Machine {
	return &Machine{client: client, cfg: cfg, log: log}
}

type step struct {
	name string
	fn   func(ctx context.Context) error
}

// run executes the steps under the whole-operation timeout. Any failure
// closes the surface so the exclusive resource is never left held.
func (m *Machine) run(ctx context.Context, opName string, steps []step) error {
	opCtx, cancel := context.WithTimeout(ctx, m.cfg.OperationTimeout())
	defer cancel()

	for _, st := range steps {
		err := st.fn(opCtx)
		if err == nil {
			continue
		}
		if opCtx.Err() == context.DeadlineExceeded {
			err = fmt.Errorf("%w: step %s", ErrOperationTimeout, st.name)
		}
		m.abort()
		return fmt.Errorf("%s: %s: %w", opName, st.name, err)
	}
	return nil
}

// abort closes the current surface. Step-local listeners are removed by their
// own deferred cancels.
func (m *Machine) abort() {
	if err := m.client.Close(); err != nil {
		m.log.Warnf("surface close failed: %v", err)
	}
}

// withRetry runs fn up to StepRetries+1 times, bailing out early when the
// operation context is gone.
func (m *Machine) withRetry(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	attempts := m.cfg.StepRetries + 1
	var err error
	for i := 1; i <= attempts; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err = fn(ctx); err == nil {
			return nil
		}
		m.log.Debugf("step %s attempt %d/%d failed: %v", name, i, attempts, err)
	}
	return err
}

// awaitSurface waits for a surface whose title contains titlePart.
func (m *Machine) awaitSurface(ctx context.Context, titlePart string) error {
	want := strings.ToLower(titlePart)
	matches := func(s surface.Surface) bool {
		return strings.Contains(strings.ToLower(s.Title), want)
	}

	return m.withRetry(ctx, "await "+titlePart, func(ctx context.Context) error {
		ch := make(chan surface.Event, 4)
		cancel := m.client.Subscribe(func(ev surface.Event) {
			select {
			case ch <- ev:
			default:
			}
		})
		defer cancel()

		if cur, ok := m.client.Current(); ok && matches(cur) {
			return nil
		}

		timer := time.NewTimer(m.cfg.StepTimeout())
		defer timer.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case ev := <-ch:
				if ev.Kind != surface.EventClosed && matches(ev.Surface) {
					return nil
				}
			case <-timer.C:
				return &StepTimeoutError{Step: "await " + titlePart}
			}
		}
	})
}

// selectAndAwait finds target on the current surface, registers the
// completion listener, selects the slot, and waits for the surface to open or
// change. Listener registration precedes the selection so a fast response is
// never missed.
func (m *Machine) selectAndAwait(ctx context.Context, target string) error {
	return m.withRetry(ctx, "select "+target, func(ctx context.Context) error {
		sl, err := m.lookup(target)
		if err != nil {
			return err
		}

		ch := make(chan surface.Event, 4)
		cancel := m.client.Subscribe(func(ev surface.Event) {
			select {
			case ch <- ev:
			default:
			}
		})
		defer cancel()

		if err := m.client.Select(sl.Index); err != nil {
			return fmt.Errorf("select %q: %w", target, err)
		}

		timer := time.NewTimer(m.cfg.StepTimeout())
		defer timer.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case ev := <-ch:
				if ev.Kind == surface.EventOpened || ev.Kind == surface.EventUpdated {
					return nil
				}
			case <-timer.C:
				return &StepTimeoutError{Step: "select " + target}
			}
		}
	})
}

// enterNumber delivers a numeric value through the side text-entry dialog.
// The dialog callback must be registered before the triggering selection is
// sent; the dialog can open faster than a late registration would catch.
func (m *Machine) enterNumber(ctx context.Context, target, value string) error {
	return m.withRetry(ctx, "enter "+target, func(ctx context.Context) error {
		sl, err := m.lookup(target)
		if err != nil {
			return err
		}

		tokCh := make(chan string, 1)
		cancelDlg := m.client.OnDialog(func(token string) {
			select {
			case tokCh <- token:
			default:
			}
		})
		defer cancelDlg()

		evCh := make(chan surface.Event, 4)
		cancelEv := m.client.Subscribe(func(ev surface.Event) {
			select {
			case evCh <- ev:
			default:
			}
		})
		defer cancelEv()

		if err := m.client.Select(sl.Index); err != nil {
			return fmt.Errorf("select %q: %w", target, err)
		}

		timer := time.NewTimer(m.cfg.StepTimeout())
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case token := <-tokCh:
			// events queued so far came from the selection, not the entry;
			// only activity after the submission confirms it
		drain:
			for {
				select {
				case <-evCh:
				default:
					break drain
				}
			}
			if err := m.client.SubmitText(token, value); err != nil {
				return fmt.Errorf("submit %q: %w", value, err)
			}
		case <-timer.C:
			return &StepTimeoutError{Step: "dialog " + target}
		}

		// surface returns to the order screen once the entry is accepted
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case ev := <-evCh:
				if ev.Kind == surface.EventOpened || ev.Kind == surface.EventUpdated {
					return nil
				}
			case <-timer.C:
				return &StepTimeoutError{Step: "confirm " + target}
			}
		}
	})
}

// lookup applies the element lookup policy to the current surface, logging
// all candidate names on a miss.
func (m *Machine) lookup(target string) (surface.Slot, error) {
	cur, ok := m.client.Current()
	if !ok {
		return surface.Slot{}, &NotFoundError{Target: target}
	}
	sl, ok := surface.FindSlot(cur, target)
	if !ok {
		names := surface.SlotNames(cur)
		m.log.Warnf("element %q not found on %q, candidates=%v", target, cur.Title, names)
		return surface.Slot{}, &NotFoundError{Target: target, Candidates: names}
	}
	return sl, nil
}

// hasElement reports whether target is present on the current surface without
// selecting it.
func (m *Machine) hasElement(target string) bool {
	cur, ok := m.client.Current()
	if !ok {
		return false
	}
	_, ok = surface.FindSlot(cur, target)
	return ok
}
