package catalog

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultCatalog(t *testing.T) {
	c := Default()
	if got := len(c.All()); got != 4 {
		t.Fatalf("default catalog has %d packages, want 4", got)
	}

	tests := []struct {
		name        string
		destination string
		label       string
		days        int
	}{
		{"A London Christmas", "London, United Kingdom", "8N/9D", 9},
		{"A New York Christmas", "New York, USA", "4N/5D", 5},
		{"A Parisian Noël", "Paris, France", "6N/7D", 7},
		{"A Week with Santa", "Lapland, Finland", "6N/7D", 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, ok := c.Get(tt.name)
			if !ok {
				t.Fatalf("package %q not found", tt.name)
			}
			if p.Destination != tt.destination {
				t.Errorf("destination = %q, want %q", p.Destination, tt.destination)
			}
			if p.DurationLabel() != tt.label {
				t.Errorf("duration = %q, want %q", p.DurationLabel(), tt.label)
			}
			if p.Days != tt.days {
				t.Errorf("days = %d, want %d", p.Days, tt.days)
			}
		})
	}
}

func TestMatchKeyword(t *testing.T) {
	c := Default()

	tests := []struct {
		message string
		want    string
		ok      bool
	}{
		{"london", "A London Christmas", true},
		{"I'd love to visit LONDON this december", "A London Christmas", true},
		{"maybe new york?", "A New York Christmas", true},
		{"Paris sounds lovely", "A Parisian Noël", true},
		{"the kids want to meet santa", "A Week with Santa", true},
		{"somewhere warm please", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			p, ok := c.MatchKeyword(tt.message)
			if ok != tt.ok {
				t.Fatalf("MatchKeyword(%q) ok = %v, want %v", tt.message, ok, tt.ok)
			}
			if ok && p.Name != tt.want {
				t.Errorf("MatchKeyword(%q) = %q, want %q", tt.message, p.Name, tt.want)
			}
		})
	}
}

func TestGetCaseInsensitive(t *testing.T) {
	c := Default()
	if _, ok := c.Get("a week with santa"); !ok {
		t.Error("Get should be case-insensitive")
	}
	if _, ok := c.Get("A Month with Santa"); ok {
		t.Error("unknown package must not resolve")
	}
}

func TestEndDate(t *testing.T) {
	c := Default()
	p, _ := c.Get("A Week with Santa")
	start := time.Date(2026, 12, 20, 0, 0, 0, 0, time.UTC)
	want := time.Date(2026, 12, 26, 0, 0, 0, 0, time.UTC)
	if got := p.EndDate(start); !got.Equal(want) {
		t.Errorf("EndDate = %v, want %v", got, want)
	}

	// Month rollover.
	p2, _ := c.Get("A London Christmas")
	start2 := time.Date(2026, 12, 28, 0, 0, 0, 0, time.UTC)
	want2 := time.Date(2027, 1, 5, 0, 0, 0, 0, time.UTC)
	if got := p2.EndDate(start2); !got.Equal(want2) {
		t.Errorf("EndDate across month = %v, want %v", got, want2)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "packages.json")
	content := `[{"name":"Test Trip","keyword":"test","destination":"Testville","nights":2,"days":3}]`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile error = %v", err)
	}
	if p, ok := c.Get("Test Trip"); !ok || p.DurationLabel() != "2N/3D" {
		t.Errorf("loaded package wrong: %+v ok=%v", p, ok)
	}
}

func TestLoadFileRejectsBadEntries(t *testing.T) {
	dir := t.TempDir()

	cases := map[string]string{
		"empty.json":      `[]`,
		"no-keyword.json": `[{"name":"X","destination":"Y","days":3}]`,
		"zero-days.json":  `[{"name":"X","keyword":"x","destination":"Y","days":0}]`,
		"not-json.json":   `{{{`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadFile(path); err == nil {
				t.Errorf("LoadFile(%s) should fail", name)
			}
		})
	}

	if _, err := LoadFile(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("LoadFile on missing file should fail")
	}
}
