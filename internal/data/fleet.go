package data

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"market-clearing/internal/model"
)

// FleetInfo describes a unit table stored in the fleet directory.
type FleetInfo struct {
	ID             string             `json:"id"`
	File           string             `json:"file"`
	Units          int                `json:"units"`
	CapacityMW     float64            `json:"capacity_mw"`
	CapacityByTech map[string]float64 `json:"capacity_by_technology"`
}

// ListFleets reads every *.csv unit table in dir. Files that fail to parse
// are returned in skipped instead of failing the listing.
func ListFleets(dir string) (fleets []FleetInfo, skipped map[string]error, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, err
	}
	skipped = map[string]error{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".csv") {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ".csv")
		path := filepath.Join(dir, entry.Name())
		units, err := loadUnitsFile(path)
		if err != nil {
			skipped[entry.Name()] = err
			continue
		}
		fleets = append(fleets, describeFleet(id, path, units))
	}
	sort.Slice(fleets, func(i, j int) bool { return fleets[i].ID < fleets[j].ID })
	return fleets, skipped, nil
}

// LoadFleet reads <dir>/<id>.csv. id must be a bare file name.
func LoadFleet(dir, id string) ([]model.Unit, error) {
	if id == "" || id != filepath.Base(id) || strings.HasPrefix(id, ".") {
		return nil, fmt.Errorf("invalid fleet id %q", id)
	}
	return loadUnitsFile(filepath.Join(dir, id+".csv"))
}

func loadUnitsFile(path string) ([]model.Unit, error) {
	var units []model.Unit
	err := readFile(path, func(r io.Reader) error {
		var err error
		units, err = LoadUnits(r)
		return err
	})
	if err != nil {
		return nil, err
	}
	for _, u := range units {
		if err := u.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	return units, nil
}

func describeFleet(id, path string, units []model.Unit) FleetInfo {
	info := FleetInfo{ID: id, File: path, Units: len(units), CapacityByTech: map[string]float64{}}
	for _, u := range units {
		info.CapacityMW += u.CapacityMW
		info.CapacityByTech[string(u.Technology)] += u.CapacityMW
	}
	return info
}
