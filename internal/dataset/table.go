package dataset

import (
	"fmt"
	"strings"
	"time"

	"github.com/stitts-dev/match-predictor/internal/match"
)

// Schema identifies which column naming convention a table uses.
type Schema int

const (
	SchemaUnknown Schema = iota
	SchemaA              // HomeTeam / AwayTeam / FTR
	SchemaB              // Home / Away / Res
)

func (s Schema) String() string {
	switch s {
	case SchemaA:
		return "A"
	case SchemaB:
		return "B"
	}
	return "unknown"
}

// Columns names the semantic columns of a schema.
type Columns struct {
	Home      string
	Away      string
	Result    string
	HomeGoals []string
	AwayGoals []string
}

func (s Schema) Columns() Columns {
	switch s {
	case SchemaA:
		return Columns{Home: "HomeTeam", Away: "AwayTeam", Result: "FTR",
			HomeGoals: []string{"FTHG"}, AwayGoals: []string{"FTAG"}}
	case SchemaB:
		return Columns{Home: "Home", Away: "Away", Result: "Res",
			HomeGoals: []string{"HG", "FTHG"}, AwayGoals: []string{"AG", "FTAG"}}
	}
	return Columns{}
}

// DetectSchema checks schema B first, matching the order the data files
// were produced in.
func DetectSchema(columns []string) Schema {
	has := make(map[string]bool, len(columns))
	for _, c := range columns {
		has[c] = true
	}
	switch {
	case has["Home"] && has["Away"] && has["Res"]:
		return SchemaB
	case has["HomeTeam"] && has["AwayTeam"] && has["FTR"]:
		return SchemaA
	}
	return SchemaUnknown
}

// Record is one historical fixture with its result decoded once at load time.
type Record struct {
	Date      *time.Time         `json:"date,omitempty"`
	HomeTeam  string             `json:"home_team"`
	AwayTeam  string             `json:"away_team"`
	Result    match.Outcome      `json:"result"`
	Country   string             `json:"country,omitempty"`
	HomeGoals float64            `json:"home_goals"`
	AwayGoals float64            `json:"away_goals"`
	HasGoals  bool               `json:"has_goals"`
	Stats     map[string]float64 `json:"stats,omitempty"`
}

// Stat returns a numeric statistic for the row.
func (r Record) Stat(name string) (float64, bool) {
	v, ok := r.Stats[name]
	return v, ok
}

// Table is an immutable snapshot of one dataset. Consumers must not mutate
// Records or Columns after the table is published.
type Table struct {
	ID      int      `json:"id"`
	Schema  Schema   `json:"schema"`
	Columns []string `json:"columns"`
	HasDate bool     `json:"has_date"`
	Source  string   `json:"source"`
	Records []Record `json:"records"`
}

// Empty is the sentinel returned when a dataset cannot be read.
var Empty = &Table{}

func (t *Table) IsEmpty() bool {
	return t == nil || len(t.Records) == 0
}

// HasRequiredColumns reports whether the team and result columns exist.
func (t *Table) HasRequiredColumns() bool {
	return t != nil && t.Schema != SchemaUnknown
}

// Usable is true for tables the statistics engines can work on.
func (t *Table) Usable() bool {
	return !t.IsEmpty() && t.HasRequiredColumns()
}

func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Records)
}

// HasColumn reports whether the source file carried the named column.
func (t *Table) HasColumn(name string) bool {
	if t == nil {
		return false
	}
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Fingerprint is a cheap identity for caches derived from the table:
// dataset id, row count and column list.
func (t *Table) Fingerprint() string {
	if t == nil {
		return "0|0|"
	}
	return fmt.Sprintf("%d|%d|%s", t.ID, len(t.Records), strings.Join(t.Columns, ","))
}
