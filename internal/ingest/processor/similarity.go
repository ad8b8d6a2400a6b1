package processor

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

// Similarity scores how alike two titles are on a 0-100 scale. Identical
// strings score 100. Substring containment is a strong duplicate signal and
// scores at least 90. Anything else falls back to a Levenshtein ratio over
// the longer string. Comparison is case-insensitive with whitespace
// collapsed.
func Similarity(a, b string) int {
	a = normalizeTitle(a)
	b = normalizeTitle(b)

	if a == b {
		if a == "" {
			return 0
		}
		return 100
	}
	if a == "" || b == "" {
		return 0
	}

	shorter, longer := a, b
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}

	if strings.Contains(longer, shorter) {
		// Scale 90..100 by how much of the longer string is covered.
		return 90 + (10*len(shorter))/len(longer)
	}

	distance := levenshtein.ComputeDistance(a, b)
	score := 100 - (100*distance)/len([]rune(longer))
	if score < 0 {
		return 0
	}
	return score
}

func normalizeTitle(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
