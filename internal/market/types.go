// Package market defines the trading domain types and the parsing of
// externally sourced recommendations and chat signals.
package market

import (
	"strings"
	"time"
)

// Side distinguishes standing buy orders from sell offers.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// Order is a standing bazaar order placed by this client.
type Order struct {
	ItemID    string    `yaml:"item_id"`
	Quantity  int       `yaml:"quantity"`
	UnitPrice float64   `yaml:"unit_price"`
	Side      Side      `yaml:"side"`
	PlacedAt  time.Time `yaml:"placed_at"`
	Claimed   bool      `yaml:"claimed"`
	Cancelled bool      `yaml:"cancelled"`
}

// Open reports whether the order is still standing.
func (o Order) Open() bool {
	return !o.Claimed && !o.Cancelled
}

// Recommendation is a parsed price advisory for a single item.
type Recommendation struct {
	ItemID     string
	Quantity   int
	UnitPrice  float64
	TotalPrice float64
	Side       Side
}

// Listing is a time-sensitive auction listing eligible for direct purchase.
type Listing struct {
	ItemID string
	Seller string
	Price  float64
	EndsAt time.Time
}

// DisplayName converts an item id like ENCHANTED_COAL into the form shown on
// surfaces, "Enchanted Coal".
func DisplayName(itemID string) string {
	words := strings.Split(strings.ToLower(itemID), "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
