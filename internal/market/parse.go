package market

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
)

// ErrMalformedRecommendation is returned for payloads that cannot be turned
// into an actionable recommendation. Callers drop and log, never enqueue.
var ErrMalformedRecommendation = errors.New("malformed recommendation")

type rawRecommendation struct {
	ItemID     string  `json:"item_id"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
	TotalPrice float64 `json:"total_price"`
	Side       string  `json:"side"`
}

// ParseRecommendation decodes a JSON advisory payload. When only one of
// unit/total price is present the other is reconciled from the quantity.
func ParseRecommendation(raw []byte) (*Recommendation, error) {
	var r rawRecommendation
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecommendation, err)
	}
	if r.ItemID == "" {
		return nil, fmt.Errorf("%w: missing item_id", ErrMalformedRecommendation)
	}
	if r.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity %d", ErrMalformedRecommendation, r.Quantity)
	}
	side := Side(r.Side)
	if !side.Valid() {
		return nil, fmt.Errorf("%w: side %q", ErrMalformedRecommendation, r.Side)
	}

	unit, total := r.UnitPrice, r.TotalPrice
	switch {
	case unit > 0 && total > 0:
		// keep both as given
	case unit > 0:
		total = round2(unit * float64(r.Quantity))
	case total > 0:
		unit = round2(total / float64(r.Quantity))
	default:
		return nil, fmt.Errorf("%w: no price given", ErrMalformedRecommendation)
	}

	return &Recommendation{
		ItemID:     r.ItemID,
		Quantity:   r.Quantity,
		UnitPrice:  unit,
		TotalPrice: total,
		Side:       side,
	}, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// incomingSalePatterns match the chat phrasings that precede a timed listing
// going on sale. Matching any of them arms the pause coordinator.
var incomingSalePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)selling\s+in\s+\d+\s+seconds?`),
	regexp.MustCompile(`(?i)auction\s+(?:is\s+)?(?:starting|started)`),
	regexp.MustCompile(`(?i)item\s+will\s+be\s+sold\s+in\s+\d+`),
	regexp.MustCompile(`(?i)going\s+once.*going\s+twice`),
}

// MatchesIncomingSignal reports whether a free-text line announces an
// imminent high-priority sale event.
func MatchesIncomingSignal(text string) bool {
	for _, p := range incomingSalePatterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}
