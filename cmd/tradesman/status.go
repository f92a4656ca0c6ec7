package main

import (
	"fmt"
	"io"
	"time"

	"github.com/valmere/tradesman/internal/config"
	"github.com/valmere/tradesman/internal/ledger"
	"github.com/valmere/tradesman/internal/logging"
	"github.com/valmere/tradesman/internal/market"
	"github.com/valmere/tradesman/internal/orders"
)

const recentOps = 10

// printStatus renders the order snapshot and the tail of the operation ledger
// without touching the running daemon.
func printStatus(w io.Writer, cfg config.Config) error {
	log := logging.New(io.Discard, logging.LevelError, "status")

	tracker := orders.NewTracker(cfg.Orders, log, nil)
	if err := tracker.Load(); err != nil {
		return fmt.Errorf("load orders: %w", err)
	}

	open := tracker.Open()
	fmt.Fprintf(w, "Open orders: %d\n", len(open))
	for _, o := range open {
		fmt.Fprintf(w, "  %-4s %-30s qty=%-5d price=%-10.2f age=%s\n",
			o.Side, market.DisplayName(o.ItemID), o.Quantity, o.UnitPrice,
			time.Since(o.PlacedAt).Round(time.Second))
	}

	led, err := ledger.Open(cfg.Ledger.Path, log)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer led.Close()

	entries, err := led.Recent(recentOps)
	if err != nil {
		return fmt.Errorf("read ledger: %w", err)
	}
	fmt.Fprintf(w, "Recent operations: %d\n", len(entries))
	for _, e := range entries {
		line := fmt.Sprintf("  %s %-8s %-4s %-30s %s",
			e.CreatedAt.Local().Format("15:04:05"), e.Op, e.Side, market.DisplayName(e.ItemID), e.Status)
		if e.Error != "" {
			line += " (" + e.Error + ")"
		}
		fmt.Fprintln(w, line)
	}
	return nil
}
