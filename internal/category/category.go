package category

import (
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed taxonomy.yaml
var taxonomyYAML []byte

// Category is the top-level partition that picks a dataset and model.
type Category string

const (
	European Category = "European"
	Other    Category = "Other"
	Unknown  Category = "Unknown"
)

// Dataset ids served by each category.
const (
	EuropeanDataset = 1
	OtherDataset    = 2
)

var (
	ErrUnknownCategory = errors.New("unknown category")
	ErrUnknownLeague   = errors.New("unknown league")
)

// ParseCategory accepts the category names and their display forms.
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "european", "european leagues", "europe":
		return European, nil
	case "other", "others":
		return Other, nil
	}
	return Unknown, fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}

// DatasetID returns the dataset a category is served from. Unknown maps to
// the European dataset.
func (c Category) DatasetID() int {
	if c == Other {
		return OtherDataset
	}
	return EuropeanDataset
}

type League struct {
	Name    string   `yaml:"name" json:"name"`
	Country string   `yaml:"country" json:"country"`
	Teams   []string `yaml:"teams" json:"teams"`
}

type Group struct {
	Name    string   `yaml:"name" json:"name"`
	Key     string   `yaml:"key" json:"key"`
	Dataset int      `yaml:"dataset" json:"dataset"`
	Leagues []League `yaml:"leagues" json:"leagues"`
}

func (g Group) Category() Category {
	switch strings.ToLower(g.Key) {
	case "european":
		return European
	case "others", "other":
		return Other
	}
	return Unknown
}

// Taxonomy is the static category, league and team hierarchy.
type Taxonomy struct {
	Categories []Group `yaml:"categories"`
}

// DefaultTaxonomy decodes the compiled-in taxonomy.
func DefaultTaxonomy() (*Taxonomy, error) {
	return ParseTaxonomy(taxonomyYAML)
}

func ParseTaxonomy(data []byte) (*Taxonomy, error) {
	var t Taxonomy
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decode taxonomy: %w", err)
	}
	if len(t.Categories) == 0 {
		return nil, errors.New("taxonomy has no categories")
	}
	return &t, nil
}

// Route is the dataset/model pair chosen for a fixture.
type Route struct {
	Category     Category `json:"category"`
	DatasetID    int      `json:"dataset_id"`
	Mixed        bool     `json:"mixed"`
	HomeCategory Category `json:"home_category"`
	AwayCategory Category `json:"away_category"`
	League       string   `json:"league,omitempty"`
}

type placement struct {
	category Category
	league   string
}

// Index is the immutable lookup built once from a taxonomy and shared by
// every request.
type Index struct {
	byName   map[string]placement
	byLower  map[string]placement
	leagues  map[Category][]League
	byLeague map[string]League
	datasets map[Category]int
	order    []Category
}

func NewIndex(t *Taxonomy) *Index {
	idx := &Index{
		byName:   make(map[string]placement),
		byLower:  make(map[string]placement),
		leagues:  make(map[Category][]League),
		byLeague: make(map[string]League),
		datasets: make(map[Category]int),
	}
	for _, g := range t.Categories {
		cat := g.Category()
		if cat == Unknown {
			continue
		}
		idx.order = append(idx.order, cat)
		if g.Dataset > 0 {
			idx.datasets[cat] = g.Dataset
		}
		for _, l := range g.Leagues {
			teams := append([]string(nil), l.Teams...)
			sort.Strings(teams)
			league := League{Name: l.Name, Country: l.Country, Teams: teams}
			idx.leagues[cat] = append(idx.leagues[cat], league)
			idx.byLeague[strings.ToLower(l.Name)] = league
			for _, team := range teams {
				p := placement{category: cat, league: l.Name}
				if _, seen := idx.byName[team]; !seen {
					idx.byName[team] = p
				}
				if _, seen := idx.byLower[strings.ToLower(team)]; !seen {
					idx.byLower[strings.ToLower(team)] = p
				}
			}
		}
	}
	return idx
}

func (i *Index) lookup(team string) (placement, bool) {
	team = strings.TrimSpace(team)
	if p, ok := i.byName[team]; ok {
		return p, true
	}
	p, ok := i.byLower[strings.ToLower(team)]
	return p, ok
}

func (i *Index) CategoryOf(team string) Category {
	if p, ok := i.lookup(team); ok {
		return p.category
	}
	return Unknown
}

func (i *Index) LeagueOf(team string) (string, bool) {
	p, ok := i.lookup(team)
	return p.league, ok
}

// DatasetID returns the dataset the taxonomy assigns to c, or the built-in
// default when the taxonomy leaves it unset.
func (i *Index) DatasetID(c Category) int {
	if id, ok := i.datasets[c]; ok {
		return id
	}
	return c.DatasetID()
}

// Route picks the category shared by both teams. Mixed or unknown pairs
// default to the European dataset with Mixed set.
func (i *Index) Route(home, away string) Route {
	hc, ac := i.CategoryOf(home), i.CategoryOf(away)
	r := Route{HomeCategory: hc, AwayCategory: ac}
	if league, ok := i.LeagueOf(home); ok {
		r.League = league
	}

	if hc == ac && hc != Unknown {
		r.Category = hc
	} else {
		r.Category = European
		r.Mixed = true
	}
	r.DatasetID = i.DatasetID(r.Category)
	return r
}

// Categories lists the categories in taxonomy order.
func (i *Index) Categories() []Category {
	return append([]Category(nil), i.order...)
}

func (i *Index) Leagues(c Category) ([]League, error) {
	leagues, ok := i.leagues[c]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, c)
	}
	return leagues, nil
}

func (i *Index) Teams(league string) ([]string, error) {
	l, ok := i.byLeague[strings.ToLower(strings.TrimSpace(league))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLeague, league)
	}
	return l.Teams, nil
}
