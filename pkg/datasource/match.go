package datasource

import (
	"strings"
)

const (
	// similarity below which a name is not treated as a league
	minLeagueScore = 0.75
	// shorter queries only match exactly
	minFuzzyRunes = 4
)

// MatchLeague finds a league by exact name, then by best fuzzy match
func MatchLeague(name string) (League, bool) {
	if l, ok := FindLeague(name); ok {
		return l, true
	}
	if len([]rune(strings.TrimSpace(name))) < minFuzzyRunes {
		return League{}, false
	}
	best, bestScore := League{}, 0.0
	for _, l := range leagues {
		if s := similarity(name, l.Name); s > bestScore {
			best, bestScore = l, s
		}
	}
	if bestScore < minLeagueScore {
		return League{}, false
	}
	return best, true
}

// similarity scores 1.0 for a perfect match down to 0.0 for nothing in common.
// The shorter string is slid across the longer one so a fragment like "premier" scores well.
func similarity(a, b string) float64 {
	x := []rune(strings.ToLower(strings.TrimSpace(a)))
	y := []rune(strings.ToLower(strings.TrimSpace(b)))
	if len(x) > len(y) {
		x, y = y, x
	}
	if len(x) == 0 {
		if len(y) == 0 {
			return 1
		}
		return 0
	}
	best := len(x)
	for i := 0; i+len(x) <= len(y) && best > 0; i++ {
		if d := levenshtein(x, y[i:i+len(x)]); d < best {
			best = d
		}
	}
	return 1 - float64(best)/float64(len(x))
}

func levenshtein(a, b []rune) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}
