package layout

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Zone names the catalog understands. A layout must define the required
// zones; the optional ones are read when present.
const (
	ZoneProductName = "product_name"
	ZoneLocalPrice  = "local_price"
	ZoneFriendPrice = "friend_price"
	ZoneQuantity    = "quantity_owned"
	ZoneAvgCost     = "average_cost"
)

var requiredZones = []string{ZoneProductName, ZoneLocalPrice, ZoneFriendPrice}

// Rect is a pixel rectangle in screen coordinates.
type Rect struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
	W int `yaml:"w"`
	H int `yaml:"h"`
}

// Zone is a named capture rectangle. Numeric zones are OCRed with a digit
// whitelist.
type Zone struct {
	Rect    Rect
	Numeric bool
}

// Layout maps zone names to rectangles for one supported UI variant
// (resolution / client layout).
type Layout struct {
	Zones map[string]Zone
}

// Catalog is the full region configuration: layout variants plus the known
// goods list mapping each good to its market region. Immutable after Load.
type Catalog struct {
	Layouts map[string]Layout
	// Goods maps a canonical good name to its market region id
	// (e.g. "wuling", "valley").
	Goods map[string]string
}

type fileZone struct {
	X       int  `yaml:"x"`
	Y       int  `yaml:"y"`
	W       int  `yaml:"w"`
	H       int  `yaml:"h"`
	Numeric bool `yaml:"numeric"`
}

type fileCatalog struct {
	Layouts map[string]map[string]fileZone `yaml:"layouts"`
	Goods   map[string]string              `yaml:"goods"`
}

// Load reads a catalog YAML file and validates it.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var fc fileCatalog
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	cat := &Catalog{
		Layouts: make(map[string]Layout, len(fc.Layouts)),
		Goods:   make(map[string]string, len(fc.Goods)),
	}
	for id, zones := range fc.Layouts {
		l := Layout{Zones: make(map[string]Zone, len(zones))}
		for name, z := range zones {
			if z.W <= 0 || z.H <= 0 {
				return nil, fmt.Errorf("layout %q zone %q: non-positive size %dx%d", id, name, z.W, z.H)
			}
			l.Zones[name] = Zone{Rect: Rect{X: z.X, Y: z.Y, W: z.W, H: z.H}, Numeric: z.Numeric}
		}
		for _, req := range requiredZones {
			if _, ok := l.Zones[req]; !ok {
				return nil, fmt.Errorf("layout %q missing zone %q", id, req)
			}
		}
		cat.Layouts[id] = l
	}
	if len(cat.Layouts) == 0 {
		return nil, fmt.Errorf("catalog %s defines no layouts", path)
	}
	for good, region := range fc.Goods {
		good = strings.TrimSpace(good)
		region = strings.ToLower(strings.TrimSpace(region))
		if good == "" || region == "" {
			return nil, fmt.Errorf("catalog %s: empty good or region entry", path)
		}
		cat.Goods[good] = region
	}
	return cat, nil
}

// Layout returns the layout for the given variant id.
func (c *Catalog) Layout(id string) (Layout, error) {
	l, ok := c.Layouts[id]
	if !ok {
		return Layout{}, fmt.Errorf("unknown layout %q (have %s)", id, strings.Join(c.LayoutIDs(), ", "))
	}
	return l, nil
}

// LayoutIDs returns the configured variant ids, sorted.
func (c *Catalog) LayoutIDs() []string {
	ids := make([]string, 0, len(c.Layouts))
	for id := range c.Layouts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// GoodNames returns the known goods, sorted for deterministic matching.
func (c *Catalog) GoodNames() []string {
	names := make([]string, 0, len(c.Goods))
	for n := range c.Goods {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// RegionFor returns the market region for a known good, or "" if unknown.
func (c *Catalog) RegionFor(good string) string {
	return c.Goods[good]
}
