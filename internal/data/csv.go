package data

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"market-clearing/internal/model"
)

// Paths locates the input tables of a dataset. HistoricalPrices is optional.
type Paths struct {
	Units            string
	Emissions        string
	FuelPrices       string
	Renewables       string
	Demand           string
	HistoricalPrices string

	// HistoricalColumn selects the price column of the historical table;
	// empty means the first value column.
	HistoricalColumn string
}

// LoadDataset reads every table and validates the result, so that a missing
// technology or column fails here rather than in the middle of a run.
func LoadDataset(p Paths) (*model.Dataset, error) {
	var (
		ds  model.Dataset
		err error
	)
	if err = readFile(p.Units, func(r io.Reader) error {
		ds.Units, err = LoadUnits(r)
		return err
	}); err != nil {
		return nil, err
	}
	if err = readFile(p.Emissions, func(r io.Reader) error {
		ds.Emissions, err = LoadEmissions(r)
		return err
	}); err != nil {
		return nil, err
	}
	if err = readFile(p.FuelPrices, func(r io.Reader) error {
		ds.FuelPrices, err = LoadFuelPrices(r)
		return err
	}); err != nil {
		return nil, err
	}
	if p.Renewables != "" {
		if err = readFile(p.Renewables, func(r io.Reader) error {
			ds.CapacityFactors, err = LoadCapacityFactors(r)
			return err
		}); err != nil {
			return nil, err
		}
	}
	if err = readFile(p.Demand, func(r io.Reader) error {
		ds.DemandMW, err = LoadDemand(r)
		return err
	}); err != nil {
		return nil, err
	}
	if p.HistoricalPrices != "" {
		if err = readFile(p.HistoricalPrices, func(r io.Reader) error {
			ds.HistoricalPrices, err = LoadHistoricalPrices(r, p.HistoricalColumn)
			return err
		}); err != nil {
			return nil, err
		}
	}

	if err := ds.Validate(); err != nil {
		return nil, fmt.Errorf("dataset invalid: %w", err)
	}
	return &ds, nil
}

func readFile(path string, load func(io.Reader) error) error {
	if path == "" {
		return errors.New("input path is empty")
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := load(f); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// LoadUnits reads the fleet table:
//
//	index,technology,capacity,efficiency,operational_cost[,min_output]
//
// The first column is the unit ID whatever its header. "-" marks a missing
// value; a missing operational cost reads as 0 and a missing min output
// leaves the unit on the strategy default. An explicit 0 min output means the
// unit has no minimum.
func LoadUnits(r io.Reader) ([]model.Unit, error) {
	header, records, err := readAll(r)
	if err != nil {
		return nil, err
	}
	col, err := columns(header, "technology", "capacity", "efficiency", "operational_cost")
	if err != nil {
		return nil, err
	}
	minCol := indexOf(header, "min_output")

	units := make([]model.Unit, 0, len(records))
	for i, rec := range records {
		line := i + 2
		u := model.Unit{
			ID:         strings.TrimSpace(rec[0]),
			Technology: model.Technology(strings.TrimSpace(rec[col["technology"]])),
		}
		if u.CapacityMW, err = parseRequired(rec[col["capacity"]]); err != nil {
			return nil, lineError(line, "capacity", err)
		}
		if u.Efficiency, err = parseRequired(rec[col["efficiency"]]); err != nil {
			return nil, lineError(line, "efficiency", err)
		}
		if u.OperationalCost, err = parseOptional(rec[col["operational_cost"]]); err != nil {
			return nil, lineError(line, "operational_cost", err)
		}
		if minCol >= 0 && !isMissing(rec[minCol]) {
			f, err := parseOptional(rec[minCol])
			if err != nil {
				return nil, lineError(line, "min_output", err)
			}
			u.MinOutputFraction = &f
		}
		units = append(units, u)
	}
	return units, nil
}

// LoadEmissions reads technology,emissions (t CO2 per MWh thermal).
func LoadEmissions(r io.Reader) (model.EmissionFactors, error) {
	header, records, err := readAll(r)
	if err != nil {
		return nil, err
	}
	col, err := columns(header, "emissions")
	if err != nil {
		return nil, err
	}
	out := make(model.EmissionFactors, len(records))
	for i, rec := range records {
		v, err := parseRequired(rec[col["emissions"]])
		if err != nil {
			return nil, lineError(i+2, "emissions", err)
		}
		out[model.Technology(strings.TrimSpace(rec[0]))] = v
	}
	return out, nil
}

// LoadFuelPrices reads timestamp,<technology>...,co2.
func LoadFuelPrices(r io.Reader) (map[time.Time]model.FuelPrices, error) {
	header, rows, err := readTimeTable(r)
	if err != nil {
		return nil, err
	}
	co2 := indexOf(header, "co2")
	if co2 < 0 {
		return nil, errors.New(`missing column "co2"`)
	}
	out := make(map[time.Time]model.FuelPrices, len(rows))
	for _, row := range rows {
		fp := model.FuelPrices{ByTechnology: make(map[model.Technology]float64, len(header)-1)}
		for j, name := range header {
			if j == 0 || math.IsNaN(row.values[j]) {
				continue
			}
			if j == co2 {
				fp.CO2 = row.values[j]
				continue
			}
			fp.ByTechnology[model.Technology(name)] = row.values[j]
		}
		out[row.ts] = fp
	}
	return out, nil
}

// LoadCapacityFactors reads timestamp,<source>... (solar, onshore, offshore).
func LoadCapacityFactors(r io.Reader) (map[time.Time]map[string]float64, error) {
	header, rows, err := readTimeTable(r)
	if err != nil {
		return nil, err
	}
	out := make(map[time.Time]map[string]float64, len(rows))
	for _, row := range rows {
		cf := make(map[string]float64, len(header)-1)
		for j := 1; j < len(header); j++ {
			if !math.IsNaN(row.values[j]) {
				cf[header[j]] = row.values[j]
			}
		}
		out[row.ts] = cf
	}
	return out, nil
}

// LoadDemand reads timestamp,demand in MW.
func LoadDemand(r io.Reader) (map[time.Time]float64, error) {
	return loadSeries(r, "demand")
}

// LoadHistoricalPrices reads timestamp,<column>; an empty column picks the
// first value column.
func LoadHistoricalPrices(r io.Reader, column string) (map[time.Time]float64, error) {
	return loadSeries(r, column)
}

func loadSeries(r io.Reader, column string) (map[time.Time]float64, error) {
	header, rows, err := readTimeTable(r)
	if err != nil {
		return nil, err
	}
	j := 1
	if column != "" {
		if j = indexOf(header, column); j < 1 {
			return nil, fmt.Errorf("missing column %q", column)
		}
	}
	if j >= len(header) {
		return nil, errors.New("table has no value column")
	}
	out := make(map[time.Time]float64, len(rows))
	for _, row := range rows {
		if !math.IsNaN(row.values[j]) {
			out[row.ts] = row.values[j]
		}
	}
	return out, nil
}

type timeRow struct {
	ts     time.Time
	values []float64 // by header index; [0] unused, NaN when missing
}

func readTimeTable(r io.Reader) ([]string, []timeRow, error) {
	header, records, err := readAll(r)
	if err != nil {
		return nil, nil, err
	}
	rows := make([]timeRow, 0, len(records))
	for i, rec := range records {
		ts, err := ParseTimestamp(rec[0])
		if err != nil {
			return nil, nil, lineError(i+2, header[0], err)
		}
		row := timeRow{ts: ts, values: make([]float64, len(header))}
		for j := 1; j < len(header); j++ {
			v, err := parseValue(rec[j])
			if err != nil {
				return nil, nil, lineError(i+2, header[j], err)
			}
			row.values[j] = v
		}
		rows = append(rows, row)
	}
	return header, rows, nil
}

func readAll(r io.Reader) ([]string, [][]string, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(records) == 0 {
		return nil, nil, errors.New("empty table")
	}
	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}
	return header, records[1:], nil
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTimestamp accepts RFC 3339 and the naive layouts pandas writes.
// Naive timestamps are taken as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func isMissing(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || s == "-"
}

func parseValue(s string) (float64, error) {
	if isMissing(s) {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

func parseRequired(s string) (float64, error) {
	if isMissing(s) {
		return 0, errors.New("value is required")
	}
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

func parseOptional(s string) (float64, error) {
	if isMissing(s) {
		return 0, nil
	}
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

func columns(header []string, names ...string) (map[string]int, error) {
	out := make(map[string]int, len(names))
	for _, n := range names {
		i := indexOf(header, n)
		if i < 0 {
			return nil, fmt.Errorf("missing column %q", n)
		}
		out[n] = i
	}
	return out, nil
}

func indexOf(header []string, name string) int {
	for i, h := range header {
		if h == name {
			return i
		}
	}
	return -1
}

func lineError(line int, column string, err error) error {
	return fmt.Errorf("line %d, column %q: %w", line, column, err)
}
