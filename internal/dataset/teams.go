package dataset

import (
	"sort"
	"sync"
)

const maxIndexedTables = 8

// TeamIndex caches the sorted team list of each table, keyed by the table
// fingerprint. Enumerating teams over a full dataset is the dominant cost of
// one-hot feature construction.
type TeamIndex struct {
	mu    sync.RWMutex
	teams map[string][]string
}

func NewTeamIndex() *TeamIndex {
	return &TeamIndex{teams: make(map[string][]string)}
}

// Teams returns the sorted union of home and away team names. The returned
// slice is shared and must not be modified.
func (ti *TeamIndex) Teams(t *Table) []string {
	if t.IsEmpty() {
		return nil
	}
	key := t.Fingerprint()

	ti.mu.RLock()
	teams, ok := ti.teams[key]
	ti.mu.RUnlock()
	if ok {
		return teams
	}

	teams = enumerateTeams(t)

	ti.mu.Lock()
	if len(ti.teams) >= maxIndexedTables {
		ti.teams = make(map[string][]string)
	}
	ti.teams[key] = teams
	ti.mu.Unlock()
	return teams
}

func enumerateTeams(t *Table) []string {
	seen := make(map[string]struct{})
	for _, r := range t.Records {
		if r.HomeTeam != "" {
			seen[r.HomeTeam] = struct{}{}
		}
		if r.AwayTeam != "" {
			seen[r.AwayTeam] = struct{}{}
		}
	}
	teams := make([]string, 0, len(seen))
	for name := range seen {
		teams = append(teams, name)
	}
	sort.Strings(teams)
	return teams
}
