package database

import "testing"

func TestExtractVersion(t *testing.T) {
	tests := []struct {
		filename string
		want     int
	}{
		{"001_initial.up.sql", 1},
		{"042_add_quotes.up.sql", 42},
		{"initial.up.sql", 0},
		{"abc_initial.up.sql", 0},
		{"", 0},
	}

	for _, tt := range tests {
		if got := extractVersion(tt.filename); got != tt.want {
			t.Errorf("extractVersion(%q) = %d, want %d", tt.filename, got, tt.want)
		}
	}
}
