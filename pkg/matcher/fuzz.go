package matcher

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/xrash/smetrics"
)

// The ratios below are Indel based similarity scores on a 0-100 scale,
// rounded half to even like the fuzzy matching libraries users compare
// results against.

// indel is the insert/delete edit distance (substitution costs 2).
func indel(a, b string) int {
	return smetrics.WagnerFischer(a, b, 1, 1, 2)
}

func normSim(dist, lensum int) float64 {
	if lensum == 0 {
		return 100
	}
	return 100 - 100*float64(dist)/float64(lensum)
}

func round(f float64) float64 {
	return math.RoundToEven(f)
}

// Ratio is the normalized Indel similarity of two strings.
func Ratio(a, b string) float64 {
	return round(ratio(a, b))
}

func ratio(a, b string) float64 {
	return normSim(indel(a, b), len(a)+len(b))
}

// PartialRatio is the best Ratio of the shorter string against any
// same-length window of the longer one, including windows cut off at
// either edge.
func PartialRatio(a, b string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 100
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	best := partialRatio(a, b)
	if len(a) == len(b) {
		best = max(best, partialRatio(b, a))
	}
	return round(best)
}

func partialRatio(a, b string) float64 {
	short, long := a, b
	if len(short) > len(long) {
		short, long = long, short
	}
	m, n := len(short), len(long)

	best := 0.0
	score := func(window string) bool {
		r := ratio(short, window)
		if r > best {
			best = r
		}
		return best == 100
	}

	// windows growing in from the left edge
	for i := 1; i < m; i++ {
		if score(long[:i]) {
			return best
		}
	}
	for i := 0; i <= n-m; i++ {
		if score(long[i : i+m]) {
			return best
		}
	}
	// windows shrinking out at the right edge
	for i := n - m + 1; i < n; i++ {
		if score(long[i:]) {
			return best
		}
	}
	return best
}

// process lower-cases, replaces non-alphanumerics with spaces and trims.
func process(s string) string {
	s = lower(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, s)
	return strings.TrimSpace(s)
}

func sortedTokens(s string) []string {
	toks := strings.Fields(s)
	sort.Strings(toks)
	return toks
}

// TokenSortRatio compares the processed strings with their words sorted.
func TokenSortRatio(a, b string) float64 {
	a, b = process(a), process(b)
	return round(ratio(strings.Join(sortedTokens(a), " "), strings.Join(sortedTokens(b), " ")))
}

// TokenSetRatio compares the shared words of both strings against each
// side's remainder. A name whose words are all contained in the other
// scores 100.
func TokenSetRatio(a, b string) float64 {
	ta, tb := tokenSet(process(a)), tokenSet(process(b))
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	var sect, ab, ba []string
	for t := range ta {
		if tb[t] {
			sect = append(sect, t)
		} else {
			ab = append(ab, t)
		}
	}
	for t := range tb {
		if !ta[t] {
			ba = append(ba, t)
		}
	}
	if len(sect) > 0 && (len(ab) == 0 || len(ba) == 0) {
		return 100
	}
	sort.Strings(sect)
	sort.Strings(ab)
	sort.Strings(ba)

	abJoined := strings.Join(ab, " ")
	baJoined := strings.Join(ba, " ")
	sectLen := len(strings.Join(sect, " "))
	sep := 0
	if sectLen > 0 {
		sep = 1
	}
	sectABLen := sectLen + sep + len(abJoined)
	sectBALen := sectLen + sep + len(baJoined)

	result := normSim(indel(abJoined, baJoined), sectABLen+sectBALen)
	if sectLen == 0 {
		return round(result)
	}
	// sect vs sect+diff differs only by the appended diff
	sectAB := normSim(sep+len(abJoined), sectLen+sectABLen)
	sectBA := normSim(sep+len(baJoined), sectLen+sectBALen)
	return round(max(result, sectAB, sectBA))
}

func tokenSet(s string) map[string]bool {
	set := map[string]bool{}
	for _, t := range strings.Fields(s) {
		set[t] = true
	}
	return set
}
