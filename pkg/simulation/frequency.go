package simulation

import (
	"math"
	"sort"

	"github.com/richard-senior/leaguesim/pkg/league"
)

// PositionFrequency counts how often each team finished in each position.
// Counts[t][p-1] is the count for team Teams[t] at position p.
type PositionFrequency struct {
	Teams  []string  `json:"teams"`
	Counts [][]int64 `json:"counts"`
	Total  int64     `json:"total"`
	index  map[string]int
}

func NewPositionFrequency(teams []string) *PositionFrequency {
	p := &PositionFrequency{
		Teams:  teams,
		Counts: make([][]int64, len(teams)),
		index:  make(map[string]int, len(teams)),
	}
	for i, t := range teams {
		p.Counts[i] = make([]int64, len(teams))
		p.index[t] = i
	}
	return p
}

// Add records one final table given as team indexes in rank order
func (p *PositionFrequency) Add(order []int) {
	for pos, idx := range order {
		p.Counts[idx][pos]++
	}
	p.Total++
}

func (p *PositionFrequency) teamIndex(team string) (int, bool) {
	if p.index == nil {
		p.index = make(map[string]int, len(p.Teams))
		for i, t := range p.Teams {
			p.index[t] = i
		}
	}
	i, ok := p.index[team]
	return i, ok
}

// Count returns the count for team at 1-based position
func (p *PositionFrequency) Count(team string, position int) int64 {
	i, ok := p.teamIndex(team)
	if !ok || position < 1 || position > len(p.Teams) {
		return 0
	}
	return p.Counts[i][position-1]
}

// Probability of team finishing at position, 0 before any iteration
func (p *PositionFrequency) Probability(team string, position int) float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(p.Count(team, position)) / float64(p.Total)
}

// Distribution returns the probability of every position for a team
func (p *PositionFrequency) Distribution(team string) []float64 {
	ret := make([]float64, len(p.Teams))
	for pos := range ret {
		ret[pos] = p.Probability(team, pos+1)
	}
	return ret
}

// ModalPosition is the team's most frequent position, lowest position on ties
func (p *PositionFrequency) ModalPosition(team string) int {
	i, ok := p.teamIndex(team)
	if !ok {
		return 0
	}
	best := 0
	for pos, c := range p.Counts[i] {
		if c > p.Counts[i][best] {
			best = pos
		}
	}
	return best + 1
}

// ModalTable orders teams by modal position, the higher count winning ties
func (p *PositionFrequency) ModalTable() league.FinalTable {
	type modal struct {
		team  string
		pos   int
		count int64
	}
	ms := make([]modal, len(p.Teams))
	for i, t := range p.Teams {
		pos := p.ModalPosition(t)
		ms[i] = modal{t, pos, p.Counts[i][pos-1]}
	}
	sort.SliceStable(ms, func(a, b int) bool {
		if ms[a].pos != ms[b].pos {
			return ms[a].pos < ms[b].pos
		}
		return ms[a].count > ms[b].count
	})
	ret := make(league.FinalTable, len(ms))
	for i, m := range ms {
		ret[i] = m.team
	}
	return ret
}

// AsMap returns team -> position -> count, leaving out zero counts
func (p *PositionFrequency) AsMap() map[string]map[int]int64 {
	ret := make(map[string]map[int]int64, len(p.Teams))
	for i, t := range p.Teams {
		m := map[int]int64{}
		for pos, c := range p.Counts[i] {
			if c > 0 {
				m[pos+1] = c
			}
		}
		ret[t] = m
	}
	return ret
}

// ErrorEstimate is the mean standard error of every team/position probability,
// in percentage points. It is +Inf until the first iteration completes.
func (p *PositionFrequency) ErrorEstimate() float64 {
	return StandardErrorPP(p.Counts, p.Total)
}

// StandardErrorPP averages sqrt(p(1-p)/n)*100 over all cells
func StandardErrorPP(counts [][]int64, n int64) float64 {
	if n <= 0 {
		return math.Inf(1)
	}
	sum := 0.0
	cells := 0
	for _, row := range counts {
		for _, c := range row {
			p := float64(c) / float64(n)
			sum += math.Sqrt(p*(1-p)/float64(n)) * 100
			cells++
		}
	}
	if cells == 0 {
		return 0
	}
	return sum / float64(cells)
}

// TableCount is one complete final table and how often it occurred
type TableCount struct {
	Table league.FinalTable `json:"table"`
	Count int64             `json:"count"`
}

// TableCounter counts complete final tables
type TableCounter struct {
	teams  []string
	counts map[string]int64
	total  int64
}

func NewTableCounter(teams []string) *TableCounter {
	return &TableCounter{teams: teams, counts: map[string]int64{}}
}

func tableKey(order []int) string {
	b := make([]byte, 0, 2*len(order))
	for _, idx := range order {
		b = append(b, byte(idx), byte(idx>>8))
	}
	return string(b)
}

func (c *TableCounter) decode(key string) league.FinalTable {
	ret := make(league.FinalTable, 0, len(key)/2)
	for i := 0; i+1 < len(key); i += 2 {
		idx := int(key[i]) | int(key[i+1])<<8
		ret = append(ret, c.teams[idx])
	}
	return ret
}

// Add records one final table given as team indexes in rank order
func (c *TableCounter) Add(order []int) {
	c.counts[tableKey(order)]++
	c.total++
}

func (c *TableCounter) Total() int64 {
	return c.total
}

// Distinct is the number of different tables seen
func (c *TableCounter) Distinct() int {
	return len(c.counts)
}

// Top returns the k most frequent tables, most frequent first
func (c *TableCounter) Top(k int) []TableCount {
	keys := make([]string, 0, len(c.counts))
	for key := range c.counts {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(a, b int) bool {
		if c.counts[keys[a]] != c.counts[keys[b]] {
			return c.counts[keys[a]] > c.counts[keys[b]]
		}
		return keys[a] < keys[b]
	})
	if k > len(keys) {
		k = len(keys)
	}
	ret := make([]TableCount, k)
	for i := 0; i < k; i++ {
		ret[i] = TableCount{Table: c.decode(keys[i]), Count: c.counts[keys[i]]}
	}
	return ret
}

// MostFrequent returns the single most common table and its count
func (c *TableCounter) MostFrequent() (league.FinalTable, int64) {
	top := c.Top(1)
	if len(top) == 0 {
		return nil, 0
	}
	return top[0].Table, top[0].Count
}
