package config

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"gopkg.in/yaml.v3"
)

// Region describes one served region: its bounding box and timezone.
type Region struct {
	Name     string
	Timezone string
	BBox     *geom.Bounds
}

// Contains reports whether the given point falls inside the region's
// bounding box. Regions without a configured bbox contain everything.
func (r *Region) Contains(lat, lon float64) bool {
	if r.BBox == nil {
		return true
	}
	return lon >= r.BBox.Min(0) && lon <= r.BBox.Max(0) &&
		lat >= r.BBox.Min(1) && lat <= r.BBox.Max(1)
}

// Regions is the set of regions the system serves, keyed by region code.
type Regions map[string]*Region

// Lookup returns the region for code, or nil if unknown.
func (rs Regions) Lookup(code string) *Region {
	return rs[code]
}

// regionsFile mirrors the on-disk regions.yaml layout.
type regionsFile struct {
	Regions map[string]struct {
		Name     string `yaml:"name"`
		Timezone string `yaml:"timezone"`
		BBox     *struct {
			West  float64 `yaml:"west"`
			South float64 `yaml:"south"`
			East  float64 `yaml:"east"`
			North float64 `yaml:"north"`
		} `yaml:"bbox"`
	} `yaml:"regions"`
}

// LoadRegions reads a regions.yaml file.
func LoadRegions(path string) (Regions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "config: read regions file %s", path)
	}
	return ParseRegions(data)
}

// ParseRegions parses regions.yaml content.
func ParseRegions(data []byte) (Regions, error) {
	var f regionsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "config: parse regions")
	}
	if len(f.Regions) == 0 {
		return nil, eris.New("config: regions file defines no regions")
	}

	rs := make(Regions, len(f.Regions))
	for code, rf := range f.Regions {
		r := &Region{Name: rf.Name, Timezone: rf.Timezone}
		if rf.BBox != nil {
			r.BBox = geom.NewBounds(geom.XY).Set(rf.BBox.West, rf.BBox.South, rf.BBox.East, rf.BBox.North)
		}
		rs[code] = r
	}
	return rs, nil
}
