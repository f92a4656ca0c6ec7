// Package daemon wires the tradesman components together and owns the
// process lifecycle.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/valmere/tradesman/internal/config"
	"github.com/valmere/tradesman/internal/feed"
	"github.com/valmere/tradesman/internal/flow"
	"github.com/valmere/tradesman/internal/ledger"
	"github.com/valmere/tradesman/internal/logging"
	"github.com/valmere/tradesman/internal/market"
	"github.com/valmere/tradesman/internal/orders"
	"github.com/valmere/tradesman/internal/pause"
	"github.com/valmere/tradesman/internal/sched"
	"github.com/valmere/tradesman/internal/surface"
)

// Daemon is the main tradesman process.
type Daemon struct {
	cfg     config.Config
	log     *logging.Logger
	logFile io.Closer

	client    surface.Client
	scheduler *sched.Scheduler
	pause     *pause.Coordinator
	tracker   *orders.Tracker
	ledger    *ledger.Ledger
	ops       *flow.Ops
	socket    *feed.Socket
	inbox     *feed.Inbox

	ctx      context.Context
	cancel   context.CancelFunc
	shutdown sync.Once

	startedAt time.Time
}

// New builds a fully wired daemon around the given surface client. The
// client is the adapter to the game protocol, which this package never
// touches directly.
func New(cfg config.Config, client surface.Client) (*Daemon, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Logging.Path), 0755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	logFile, err := os.OpenFile(cfg.Logging.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open daemon log: %w", err)
	}

	d, err := newDaemon(cfg, client, logFile, logFile)
	if err != nil {
		logFile.Close()
		return nil, err
	}
	return d, nil
}

// newDaemon is the internal constructor for testing.
func newDaemon(cfg config.Config, client surface.Client, w io.Writer, closer io.Closer) (*Daemon, error) {
	ctx, cancel := context.WithCancel(context.Background())
	level := logging.ParseLevel(cfg.Logging.Level)
	log := logging.New(w, level, "daemon")

	led, err := ledger.Open(cfg.Ledger.Path, log.Named("ledger"))
	if err != nil {
		cancel()
		return nil, err
	}

	scheduler := sched.NewScheduler(cfg.Scheduler, log.Named("sched"))
	coordinator := pause.New(cfg.Pause, log.Named("pause"), scheduler, scheduler)
	tracker := orders.NewTracker(cfg.Orders, log.Named("orders"), scheduler)
	machine := flow.NewMachine(client, cfg.Flow, log.Named("flow"))
	ops := flow.NewOps(machine, tracker, led)
	tracker.SetCanceller(ops)

	scheduler.SetGate(coordinator)
	scheduler.SetAbortHook(func() {
		if err := client.Close(); err != nil {
			log.Debugf("surface reset: %v", err)
		}
	})

	d := &Daemon{
		cfg:       cfg,
		log:       log,
		logFile:   closer,
		client:    client,
		scheduler: scheduler,
		pause:     coordinator,
		tracker:   tracker,
		ledger:    led,
		ops:       ops,
		ctx:       ctx,
		cancel:    cancel,
	}

	d.socket = feed.NewSocket(cfg.Socket, log.Named("socket"), feed.Handlers{
		Recommendation: d.handleRecommendation,
		Chat:           d.handleChat,
		Fill:           d.handleFill,
		Listing:        d.handleListing,
	})
	d.inbox = feed.NewInbox(cfg.Inbox.Dir, log.Named("inbox"), d.handleRecommendation)

	return d, nil
}

// Run starts all loops and blocks until shutdown completes. It ends on the
// first shutdown signal or when any component loop fails.
func (d *Daemon) Run() error {
	d.startedAt = time.Now()
	d.scheduler.AddHold("startup", func() bool {
		return time.Since(d.startedAt) < d.cfg.Scheduler.StartupGrace()
	})

	if err := d.tracker.Load(); err != nil {
		d.log.Warnf("order snapshot restore failed: %v", err)
	}

	g, ctx := errgroup.WithContext(d.ctx)
	g.Go(func() error { return d.scheduler.Run(ctx) })
	g.Go(func() error { return d.pause.Run(ctx) })
	g.Go(func() error { return d.tracker.Run(ctx) })
	g.Go(func() error { return d.socket.Run(ctx) })
	g.Go(func() error { return d.inbox.Run(ctx) })

	groupDone := make(chan error, 1)
	go func() { groupDone <- g.Wait() }()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)

	d.log.Infof("daemon ready pid=%d", os.Getpid())

	var runErr error
	select {
	case sig := <-sigCh:
		d.log.Infof("received signal=%s, initiating graceful shutdown", sig)
		// second signal forces exit
		go func() {
			<-sigCh
			d.log.Warnf("received second signal, forcing exit")
			os.Exit(1)
		}()
		d.Shutdown()
		runErr = <-groupDone
	case runErr = <-groupDone:
		if runErr != nil && !errors.Is(runErr, context.Canceled) {
			d.log.Errorf("component failed: %v", runErr)
		}
		d.Shutdown()
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

// Shutdown performs graceful shutdown (idempotent).
func (d *Daemon) Shutdown() {
	d.shutdown.Do(func() {
		d.log.Infof("shutdown started")
		d.cancel()

		done := make(chan struct{})
		go func() {
			for d.scheduler.Busy() {
				time.Sleep(50 * time.Millisecond)
			}
			close(done)
		}()

		select {
		case <-done:
			d.log.Infof("in-flight work drained")
		case <-time.After(30 * time.Second):
			d.log.Warnf("shutdown timeout, an operation may be incomplete")
		}

		if err := d.ledger.Close(); err != nil {
			d.log.Warnf("ledger close: %v", err)
		}
		d.log.Infof("daemon stopped")
		if d.logFile != nil {
			d.logFile.Close()
		}
	})
}

func (d *Daemon) handleRecommendation(rec *market.Recommendation) {
	if err := d.pause.Submit(d.orderAction(rec)); err != nil {
		d.log.Debugf("recommendation dropped item=%s: %v", rec.ItemID, err)
	}
}

func (d *Daemon) handleChat(text string) {
	if market.MatchesIncomingSignal(text) {
		d.log.Infof("incoming sale signal: %q", text)
		d.pause.Trigger()
	}
}

func (d *Daemon) handleFill(item string, side market.Side) {
	if err := d.scheduler.Submit(d.claimAction(item, side)); err != nil {
		d.log.Warnf("claim submit rejected item=%s: %v", item, err)
	}
}

func (d *Daemon) handleListing(l market.Listing) {
	if err := d.scheduler.Submit(d.purchaseAction(l)); err != nil {
		d.log.Warnf("purchase submit rejected item=%s: %v", l.ItemID, err)
	}
}
