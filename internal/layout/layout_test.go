package layout

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleCatalog = `
layouts:
  "2560x1440":
    product_name: {x: 950, y: 285, w: 650, h: 75}
    local_price: {x: 1950, y: 365, w: 180, h: 55, numeric: true}
    friend_price: {x: 1550, y: 440, w: 250, h: 65, numeric: true}
    quantity_owned: {x: 210, y: 585, w: 210, h: 50}
goods:
  "Iron Ore": wuling
  "Copper Wire": valley
`

func writeCatalog(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "layouts.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadCatalog(t *testing.T) {
	cat, err := Load(writeCatalog(t, sampleCatalog))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	l, err := cat.Layout("2560x1440")
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	z, ok := l.Zones[ZoneLocalPrice]
	if !ok {
		t.Fatalf("missing local_price zone")
	}
	if !z.Numeric {
		t.Fatalf("local_price should be numeric")
	}
	if z.Rect.X != 1950 || z.Rect.H != 55 {
		t.Fatalf("unexpected rect %+v", z.Rect)
	}
	if cat.RegionFor("Iron Ore") != "wuling" {
		t.Fatalf("expected wuling, got %q", cat.RegionFor("Iron Ore"))
	}
	if cat.RegionFor("Unknown Thing") != "" {
		t.Fatalf("unknown good should map to empty region")
	}
}

func TestLoadRejectsMissingRequiredZone(t *testing.T) {
	body := `
layouts:
  "1080p":
    product_name: {x: 1, y: 1, w: 10, h: 10}
    local_price: {x: 1, y: 1, w: 10, h: 10, numeric: true}
goods: {}
`
	if _, err := Load(writeCatalog(t, body)); err == nil {
		t.Fatalf("expected error for missing friend_price zone")
	}
}

func TestLoadRejectsBadRect(t *testing.T) {
	body := `
layouts:
  "1080p":
    product_name: {x: 1, y: 1, w: 0, h: 10}
    local_price: {x: 1, y: 1, w: 10, h: 10}
    friend_price: {x: 1, y: 1, w: 10, h: 10}
`
	if _, err := Load(writeCatalog(t, body)); err == nil {
		t.Fatalf("expected error for zero-width rect")
	}
}

func TestUnknownLayout(t *testing.T) {
	cat, err := Load(writeCatalog(t, sampleCatalog))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := cat.Layout("800x600"); err == nil {
		t.Fatalf("expected error for unknown layout id")
	}
}
