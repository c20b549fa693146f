// Package raceresults reads the semicolon separated race-results export.
package raceresults

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/aarondl/opt/null"

	"github.com/mpapenbr/crewchief/pkg/model"
)

// column layout of the export
const (
	colPosition        = 0
	colNumber          = 1
	colStatus          = 2
	colLaps            = 3
	colTotalTime       = 4
	colGapFirst        = 5
	colGapPrevious     = 6
	colFastestLapNum   = 7
	colFastestLapTime  = 8
	colFastestLapKph   = 9
	colTeam            = 10
	colClass           = 11
	colVehicle         = 13
	colDriverFirstName = 26
	colDriverLastName  = 27
	colDriverCountry   = 30

	minFields = 31
)

var ErrNoResults = errors.New("no race results found")

func LoadFile(path string) ([]model.RaceResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads the export. The header row is skipped, rows with too few
// fields are ignored.
func Parse(r io.Reader) ([]model.RaceResult, error) {
	reader := csv.NewReader(r)
	reader.Comma = ';'
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read race results: %w", err)
	}
	ret := make([]model.RaceResult, 0, len(records))
	for i, rec := range records {
		if i == 0 || len(rec) < minFields {
			continue
		}
		ret = append(ret, model.RaceResult{
			Position:        atoi(rec[colPosition]),
			CarNumber:       strings.TrimSpace(rec[colNumber]),
			Status:          strings.TrimSpace(rec[colStatus]),
			Laps:            atoi(rec[colLaps]),
			TotalTime:       strings.TrimSpace(rec[colTotalTime]),
			GapFirst:        strings.TrimSpace(rec[colGapFirst]),
			GapPrevious:     strings.TrimSpace(rec[colGapPrevious]),
			FastestLapNum:   atoi(rec[colFastestLapNum]),
			FastestLapTime:  strings.TrimSpace(rec[colFastestLapTime]),
			FastestLapKph:   atof(rec[colFastestLapKph]),
			Team:            strings.TrimSpace(rec[colTeam]),
			Class:           strings.TrimSpace(rec[colClass]),
			Vehicle:         strings.TrimSpace(rec[colVehicle]),
			DriverFirstName: strings.TrimSpace(rec[colDriverFirstName]),
			DriverLastName:  strings.TrimSpace(rec[colDriverLastName]),
			DriverCountry:   strings.TrimSpace(rec[colDriverCountry]),
		})
	}
	if len(ret) == 0 {
		return nil, ErrNoResults
	}
	return ret, nil
}

// ParseLapTime converts "m:ss.sss" or "ss.sss" into seconds.
func ParseLapTime(s string) (float64, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	switch len(parts) {
	case 1:
		return strconv.ParseFloat(parts[0], 64)
	case 2:
		mins, err := strconv.Atoi(parts[0])
		if err != nil {
			return 0, fmt.Errorf("lap time %q: %w", s, err)
		}
		secs, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return 0, fmt.Errorf("lap time %q: %w", s, err)
		}
		return float64(mins)*60 + secs, nil
	default:
		return 0, fmt.Errorf("lap time %q: unsupported format", s)
	}
}

// FormatLapTime renders seconds as m:ss.sss.
func FormatLapTime(secs float64) string {
	if secs < 0 || math.IsNaN(secs) || math.IsInf(secs, 0) {
		return "-"
	}
	mins := int(secs / 60)
	rest := secs - float64(mins*60)
	return fmt.Sprintf("%d:%06.3f", mins, rest)
}

// ParseGap converts a gap column value into seconds.
// The leader's "-" (or an empty value) is 0, a value that can't be read
// (e.g. "+1 Lap") is null. A car can't trail by a negative time, so
// negative values are null as well.
func ParseGap(s string) null.Val[float64] {
	s = strings.TrimSpace(s)
	if s == "" || s == "-" {
		return null.From(0.0)
	}
	s = strings.TrimPrefix(s, "+")
	if strings.HasPrefix(s, "-") {
		return null.Val[float64]{}
	}
	v, err := ParseLapTime(s)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return null.Val[float64]{}
	}
	return null.From(v)
}

func atoi(s string) int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return v
}

func atof(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}
