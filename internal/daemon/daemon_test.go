package daemon

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valmere/tradesman/internal/config"
	"github.com/valmere/tradesman/internal/market"
	"github.com/valmere/tradesman/internal/sched"
	"github.com/valmere/tradesman/internal/surface"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	return config.Config{
		Logging: config.LoggingConfig{Level: "error"},
		Inbox:   config.InboxConfig{Dir: filepath.Join(dir, "inbox")},
		Scheduler: config.SchedulerConfig{
			PollMs:           5,
			ActionTimeoutSec: 1,
			StalenessSec:     45,
			StartupGraceSec:  0,
		},
		Pause:  config.PauseConfig{WindowSec: 20, PendingTimeoutSec: 30},
		Flow:   config.FlowConfig{StepTimeoutMs: 50, StepRetries: 2, OperationTimeoutSec: 1},
		Orders: config.OrdersConfig{Path: filepath.Join(dir, "orders.yaml"), CancelAfterSec: 900, SweepIntervalSec: 60, MaxOpen: 8},
		Ledger: config.LedgerConfig{Path: filepath.Join(dir, "ledger.db")},
	}
}

func testDaemon(t *testing.T) *Daemon {
	t.Helper()
	d, err := newDaemon(testConfig(t), surface.Disconnected(), io.Discard, nil)
	require.NoError(t, err)
	t.Cleanup(d.Shutdown)
	return d
}

func rec(item string) *market.Recommendation {
	return &market.Recommendation{ItemID: item, Quantity: 64, UnitPrice: 10.5, TotalPrice: 672, Side: market.SideBuy}
}

func TestHandleRecommendationEnqueuesOrder(t *testing.T) {
	d := testDaemon(t)

	d.handleRecommendation(rec("ENCHANTED_COAL"))
	assert.Equal(t, 1, d.scheduler.Len())

	// a second advisory for the same item at equal urgency is dropped
	d.handleRecommendation(rec("ENCHANTED_COAL"))
	assert.Equal(t, 1, d.scheduler.Len())

	d.handleRecommendation(rec("IRON_INGOT"))
	assert.Equal(t, 2, d.scheduler.Len())
}

func TestHandleChatArmsPause(t *testing.T) {
	d := testDaemon(t)

	d.handleChat("someone says hello")
	assert.False(t, d.pause.IsPaused())

	d.handleChat("Selling in 10 seconds!")
	assert.True(t, d.pause.IsPaused())
	assert.True(t, d.pause.IsPending())

	// order advisories divert to the side buffer while paused
	d.handleRecommendation(rec("ENCHANTED_COAL"))
	assert.Equal(t, 0, d.scheduler.Len())
}

func TestHandleFillEnqueuesClaim(t *testing.T) {
	d := testDaemon(t)

	d.handleFill("ENCHANTED_COAL", market.SideBuy)
	assert.Equal(t, 1, d.scheduler.Len())
}

func TestHandleListingEnqueuesPurchase(t *testing.T) {
	d := testDaemon(t)

	d.handleListing(market.Listing{ItemID: "ENCHANTED_COAL", Price: 4200})
	assert.Equal(t, 1, d.scheduler.Len())
}

func TestOrderActionShape(t *testing.T) {
	d := testDaemon(t)

	a := d.orderAction(rec("ENCHANTED_COAL"))
	assert.Equal(t, "Bazaar BUY: 64x Enchanted Coal", a.Name)
	assert.Equal(t, sched.PriorityNormal, a.Priority)
	assert.Equal(t, sched.CategoryOrder, a.Category)
	assert.Equal(t, "ENCHANTED_COAL", a.Item)
	assert.True(t, a.Interruptible)
}

func TestClaimActionShape(t *testing.T) {
	d := testDaemon(t)

	a := d.claimAction("ENCHANTED_COAL", market.SideSell)
	assert.Equal(t, "Claim SELL: Enchanted Coal", a.Name)
	assert.Equal(t, sched.PriorityHigh, a.Priority)
	assert.Equal(t, sched.CategoryClaim, a.Category)
	assert.True(t, a.Interruptible)
}

func TestPurchaseActionNotInterruptible(t *testing.T) {
	d := testDaemon(t)

	a := d.purchaseAction(market.Listing{ItemID: "ENCHANTED_COAL", Price: 4200})
	assert.Equal(t, "Purchase: Enchanted Coal", a.Name)
	assert.Equal(t, sched.PriorityCritical, a.Priority)
	assert.Equal(t, sched.CategoryPurchase, a.Category)
	assert.False(t, a.Interruptible)
}

func TestRunExitsWhenComponentFails(t *testing.T) {
	cfg := testConfig(t)

	// inbox dir cannot be created: its parent is a regular file
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))
	cfg.Inbox.Dir = filepath.Join(blocker, "inbox")

	d, err := newDaemon(cfg, surface.Disconnected(), io.Discard, nil)
	require.NoError(t, err)
	t.Cleanup(d.Shutdown)

	done := make(chan error, 1)
	go func() { done <- d.Run() }()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "inbox")
	case <-time.After(5 * time.Second):
		t.Fatal("Run kept waiting after a component failed")
	}
}

func TestShutdownIdempotent(t *testing.T) {
	d := testDaemon(t)
	d.Shutdown()
	d.Shutdown()
}
