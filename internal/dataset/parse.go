package dataset

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/stitts-dev/match-predictor/internal/match"
)

var ErrNoHeader = errors.New("dataset has no header row")

// Columns that are never treated as numeric statistics.
var nonStatColumns = map[string]bool{
	"Date": true, "Time": true, "Country": true, "League": true, "Season": true, "Div": true,
	"HomeTeam": true, "AwayTeam": true, "FTR": true,
	"Home": true, "Away": true, "Res": true,
	"Referee": true,
}

// htrCodes encodes the half-time result for averaging (H=1, D=2, A=3).
var htrCodes = map[string]float64{"H": 1, "D": 2, "A": 3}

// ParseStats summarises what was dropped while parsing.
type ParseStats struct {
	Rows          int
	SkippedResult int
	UndatedRows   int
}

// DecodeText returns the file contents as UTF-8, re-decoding as Latin-1 when
// the bytes are not valid UTF-8.
func DecodeText(raw []byte) ([]byte, error) {
	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))
	if utf8.Valid(raw) {
		return raw, nil
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		return nil, fmt.Errorf("latin-1 decode: %w", err)
	}
	return decoded, nil
}

// Parse reads a CSV match table. maxRows limits the data rows read (0 reads
// everything).
func Parse(r io.Reader, maxRows int) (*Table, ParseStats, error) {
	var stats ParseStats

	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, stats, fmt.Errorf("read dataset: %w", err)
	}
	text, err := DecodeText(raw)
	if err != nil {
		return nil, stats, err
	}

	reader := csv.NewReader(bytes.NewReader(text))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, stats, ErrNoHeader
	}
	if err != nil {
		return nil, stats, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	table := &Table{
		Schema:  DetectSchema(header),
		Columns: header,
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}
	_, table.HasDate = index["Date"]

	cols := table.Schema.Columns()
	cell := func(row []string, name string) string {
		i, ok := index[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	for {
		if maxRows > 0 && stats.Rows >= maxRows {
			break
		}
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, stats, fmt.Errorf("read row %d: %w", stats.Rows+1, err)
		}
		stats.Rows++

		rec := Record{Country: cell(row, "Country")}
		if table.Schema != SchemaUnknown {
			rec.HomeTeam = cell(row, cols.Home)
			rec.AwayTeam = cell(row, cols.Away)
			outcome, err := match.DecodeResult(cell(row, cols.Result))
			if err != nil {
				stats.SkippedResult++
				continue
			}
			rec.Result = outcome
		}

		if table.HasDate {
			if d, ok := ParseDate(cell(row, "Date")); ok {
				rec.Date = &d
			} else {
				stats.UndatedRows++
			}
		}

		rec.Stats = make(map[string]float64)
		for name, i := range index {
			if nonStatColumns[name] || i >= len(row) {
				continue
			}
			v := strings.TrimSpace(row[i])
			if name == "HTR" {
				if code, ok := htrCodes[strings.ToUpper(v)]; ok {
					rec.Stats[name] = code
				}
				continue
			}
			if f, err := strconv.ParseFloat(v, 64); err == nil && !math.IsNaN(f) {
				rec.Stats[name] = f
			}
		}

		if hg, ok := firstStat(rec.Stats, cols.HomeGoals); ok {
			if ag, ok := firstStat(rec.Stats, cols.AwayGoals); ok {
				rec.HomeGoals, rec.AwayGoals, rec.HasGoals = hg, ag, true
			}
		}

		table.Records = append(table.Records, rec)
	}

	return table, stats, nil
}

func firstStat(stats map[string]float64, names []string) (float64, bool) {
	for _, n := range names {
		if v, ok := stats[n]; ok {
			return v, true
		}
	}
	return 0, false
}

var isoLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006/01/02",
}

var dayFirstLayouts = []string{
	"02/01/2006",
	"2/1/2006",
	"02/01/06",
	"2/1/06",
	"02-01-2006",
	"02.01.2006",
}

// spreadsheetEpoch is day zero of spreadsheet serial dates.
var spreadsheetEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// ParseDate tries ISO layouts first, then day-first layouts, then
// spreadsheet serial numbers.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	for _, layout := range dayFirstLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > 0 && serial < 2958466 {
		days := math.Floor(serial)
		return spreadsheetEpoch.AddDate(0, 0, int(days)), true
	}
	return time.Time{}, false
}
