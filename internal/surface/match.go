package surface

import (
	"math"
	"strings"

	"github.com/agnivade/levenshtein"
)

const fuzzyMinTargetLen = 5

// FindSlot locates the slot whose display text best corresponds to target.
// Stages, in order of precedence: exact match, all target tokens present,
// substring containment either direction, bounded edit-distance fuzzy match.
// Returns false when no stage produces a hit.
func FindSlot(s Surface, target string) (Slot, bool) {
	want := normalize(target)
	if want == "" {
		return Slot{}, false
	}

	for _, sl := range s.Slots {
		if normalize(sl.DisplayText) == want {
			return sl, true
		}
	}

	tokens := strings.Fields(want)
	for _, sl := range s.Slots {
		if containsAllTokens(normalize(sl.DisplayText), tokens) {
			return sl, true
		}
	}

	for _, sl := range s.Slots {
		have := normalize(sl.DisplayText)
		if have == "" {
			continue
		}
		if strings.Contains(have, want) || strings.Contains(want, have) {
			return sl, true
		}
	}

	// Fuzzy fallback only for targets long enough to make distance meaningful.
	if len(want) >= fuzzyMinTargetLen {
		limit := maxEditDistance(len(want))
		best, bestDist := Slot{}, limit+1
		for _, sl := range s.Slots {
			d := levenshtein.ComputeDistance(normalize(sl.DisplayText), want)
			if d < bestDist {
				best, bestDist = sl, d
			}
		}
		if bestDist <= limit {
			return best, true
		}
	}

	return Slot{}, false
}

// maxEditDistance = max(2, round(0.2 * target length)).
func maxEditDistance(length int) int {
	d := int(math.Round(0.2 * float64(length)))
	if d < 2 {
		return 2
	}
	return d
}

func containsAllTokens(have string, tokens []string) bool {
	if len(tokens) == 0 {
		return false
	}
	for _, tok := range tokens {
		if !strings.Contains(have, tok) {
			return false
		}
	}
	return true
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// SlotNames returns the display texts of all slots, used when a lookup fails
// and the candidates need to be logged.
func SlotNames(s Surface) []string {
	names := make([]string, 0, len(s.Slots))
	for _, sl := range s.Slots {
		names = append(names, sl.DisplayText)
	}
	return names
}
