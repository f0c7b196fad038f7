package address

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanStreet(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"whitespace only", "   ", ""},
		{"plain", "123 Main St", "123 Main St"},
		{"trailing suite", "123 Main St, Suite 200", "123 Main St"},
		{"trailing ste", "123 Main St Ste 4B", "123 Main St"},
		{"trailing unit hash", "500 Broadway #12", "500 Broadway"},
		{"inline suite", "123 Main St, Suite 200, Building A", "123 Main St, Building A"},
		{"collapses whitespace", "  123   Main  St ", "123 Main St"},
		{"typo fix", "200 Lincolnway Ave", "200 lincoln way Ave"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanStreet(tt.in))
		})
	}
}

func TestCleanStreet_Deterministic(t *testing.T) {
	in := "123 Main St, Suite 200"
	first := CleanStreet(in)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, CleanStreet(in))
	}
}

func TestCleanCity(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"plain", "Denver", "Denver"},
		{"lowercase", "denver", "Denver"},
		{"uppercase", "DENVER", "Denver"},
		{"compound pipe", "Boston | Everett", "Boston"},
		{"compound slash", "Aurora/Centennial", "Aurora"},
		{"compound ampersand", "Tempe & Mesa", "Tempe"},
		{"parenthetical", "Denver (Downtown)", "Denver"},
		{"area suffix", "Denver area", "Denver"},
		{"known correction", "Tuscaloosa", "Tucson"},
		{"renamed municipality", "Shawnee Mission", "Overland Park"},
		{"suite prefix leak", "Suite 4, Littleton", "Littleton"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanCity(tt.in))
		})
	}
}

func TestNormalizeState(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"abbr lower", "co", "CO"},
		{"abbr upper", "CO", "CO"},
		{"full name", "Colorado", "CO"},
		{"full name lower", "colorado", "CO"},
		{"dc", "District of Columbia", "DC"},
		{"unknown passthrough", "Ontario", "ONTARIO"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeState(tt.in))
		})
	}
}
