// Package catalog holds the travel packages on offer and keyword matching
// for destination selection.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// Package describes one bookable trip.
type Package struct {
	Name        string   `json:"name"`
	Keyword     string   `json:"keyword"`
	Destination string   `json:"destination"`
	Nights      int      `json:"nights"`
	Days        int      `json:"days"`
	BestFor     string   `json:"best_for,omitempty"`
	Highlights  []string `json:"highlights,omitempty"`
	Brochure    string   `json:"brochure,omitempty"`
}

// DurationLabel renders the nights/days label, e.g. "6N/7D".
func (p *Package) DurationLabel() string {
	return fmt.Sprintf("%dN/%dD", p.Nights, p.Days)
}

// EndDate returns the last day of a trip starting on start.
func (p *Package) EndDate(start time.Time) time.Time {
	return start.AddDate(0, 0, p.Days-1)
}

// Catalog is an ordered set of packages with keyword lookup.
type Catalog struct {
	packages []Package
	byName   map[string]*Package
}

// New builds a catalog from the given packages.
func New(packages []Package) *Catalog {
	c := &Catalog{
		packages: packages,
		byName:   make(map[string]*Package, len(packages)),
	}
	for i := range c.packages {
		c.byName[strings.ToLower(c.packages[i].Name)] = &c.packages[i]
	}
	return c
}

// Default returns the built-in festive season catalog.
func Default() *Catalog {
	return New([]Package{
		{
			Name:        "A London Christmas",
			Keyword:     "london",
			Destination: "London, United Kingdom",
			Nights:      8,
			Days:        9,
			BestFor:     "Couples and families who love city festivities",
			Highlights: []string{
				"Hyde Park Winter Wonderland",
				"Christmas lights on Oxford Street",
				"West End holiday shows",
			},
			Brochure: "london-christmas.pdf",
		},
		{
			Name:        "A New York Christmas",
			Keyword:     "new york",
			Destination: "New York, USA",
			Nights:      4,
			Days:        5,
			BestFor:     "Short festive city breaks",
			Highlights: []string{
				"Rockefeller Center tree",
				"Ice skating in Central Park",
				"Fifth Avenue window displays",
			},
			Brochure: "new-york-christmas.pdf",
		},
		{
			Name:        "A Parisian Noël",
			Keyword:     "paris",
			Destination: "Paris, France",
			Nights:      6,
			Days:        7,
			BestFor:     "Romantic winter getaways",
			Highlights: []string{
				"Champs-Élysées illuminations",
				"Christmas markets at Tuileries",
				"Seine dinner cruise",
			},
			Brochure: "parisian-noel.pdf",
		},
		{
			Name:        "A Week with Santa",
			Keyword:     "santa",
			Destination: "Lapland, Finland",
			Nights:      6,
			Days:        7,
			BestFor:     "Families with children",
			Highlights: []string{
				"Santa Claus Village visit",
				"Husky and reindeer safaris",
				"Northern lights hunt",
			},
			Brochure: "week-with-santa.pdf",
		},
	})
}

// LoadFile reads a catalog from a JSON file. Used to override the built-in
// packages without a redeploy.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog file: %w", err)
	}
	var packages []Package
	if err := json.Unmarshal(data, &packages); err != nil {
		return nil, fmt.Errorf("parsing catalog file: %w", err)
	}
	if len(packages) == 0 {
		return nil, fmt.Errorf("catalog file %s contains no packages", path)
	}
	for i, p := range packages {
		if p.Name == "" || p.Keyword == "" || p.Destination == "" {
			return nil, fmt.Errorf("catalog entry %d missing name, keyword, or destination", i)
		}
		if p.Days <= 0 {
			return nil, fmt.Errorf("catalog entry %q has non-positive duration", p.Name)
		}
	}
	return New(packages), nil
}

// All returns the packages in catalog order.
func (c *Catalog) All() []Package {
	return c.packages
}

// Get looks up a package by exact name, case-insensitively.
func (c *Catalog) Get(name string) (*Package, bool) {
	p, ok := c.byName[strings.ToLower(name)]
	return p, ok
}

// MatchKeyword finds the package whose keyword appears in the message.
// Keywords are matched case-insensitively as substrings, so "I'd love to
// see London this year" selects the London package.
func (c *Catalog) MatchKeyword(message string) (*Package, bool) {
	lower := strings.ToLower(message)
	for i := range c.packages {
		if strings.Contains(lower, c.packages[i].Keyword) {
			return &c.packages[i], true
		}
	}
	return nil, false
}
