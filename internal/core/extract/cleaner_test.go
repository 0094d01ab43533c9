package extract

import (
	"testing"
)

func TestCleanText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"collapses spaces and tabs", "customs   and\t\texcise", "customs and excise"},
		{"trims", "  ruling of the board  ", "ruling of the board"},
		{"collapses periods", "continued.....on appeal", "continued...on appeal"},
		{"collapses newlines", "section 12\n\n\n\n\nsection 13", "section 12\n\nsection 13"},
		{"drops non-printables", "tax\x00\x01 assessment", "tax assessment"},
		{"keeps short ellipsis", "see p. 4...", "see p. 4..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanText(tt.in); got != tt.want {
				t.Errorf("CleanText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestWordCount(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"   ", 0},
		{"one", 1},
		{"the appellant  appeared \n in person", 5},
	}
	for _, tt := range tests {
		if got := WordCount(tt.in); got != tt.want {
			t.Errorf("WordCount(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestStripPageMarkers(t *testing.T) {
	in := "intro\f\n-- Page 1 --\nbody text\n--- page 12 ---\n"
	got := stripPageMarkers(in)
	if want := "intro\n\nbody text\n\n"; got != want {
		t.Errorf("stripPageMarkers(%q) = %q, want %q", in, got, want)
	}
}
