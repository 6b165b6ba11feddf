package datasource

import (
	"sort"
	"strconv"
	"strings"
)

// League is a SofaScore unique tournament
type League struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

var leagues = []League{
	{17, "Premier League"},
	{8, "La Liga"},
	{23, "Serie A"},
	{35, "Bundesliga"},
	{34, "Ligue 1"},
	{37, "Eredivisie"},
	{242, "MLS"},
	{325, "Brasileirão Série A"},
	{155, "Liga Profesional"},
	{54, "La Liga 2"},
	{18, "Championship"},
	{24, "League One"},
	{44, "2. Bundesliga"},
	{53, "Serie B"},
	{390, "Brasileirão Série B"},
	{703, "Primera Nacional"},
	{203, "Russian Premier League"},
	{1127, "Liga F"},
	{23608, "Serie B Femminile"},
	{2288, "2. Frauen-Bundesliga"},
	{13363, "USL Championship"},
	{18641, "MLS Next Pro"},
}

// Leagues returns the catalogue sorted by name
func Leagues() []League {
	ret := make([]League, len(leagues))
	copy(ret, leagues)
	sort.Slice(ret, func(i, j int) bool { return ret[i].Name < ret[j].Name })
	return ret
}

func LookupLeague(id int) (League, bool) {
	for _, l := range leagues {
		if l.ID == id {
			return l, true
		}
	}
	return League{}, false
}

// FindLeague matches a catalogue name ignoring case
func FindLeague(name string) (League, bool) {
	for _, l := range leagues {
		if strings.EqualFold(l.Name, strings.TrimSpace(name)) {
			return l, true
		}
	}
	return League{}, false
}

// leagueName falls back to the tournament id for leagues outside the catalogue
func leagueName(tournament int) string {
	if l, ok := LookupLeague(tournament); ok {
		return l.Name
	}
	return "Tournament " + strconv.Itoa(tournament)
}
