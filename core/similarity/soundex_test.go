package similarity

import (
	"math"
	"testing"
)

func TestSoundex(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"Robert", "R163"},
		{"Rupert", "R163"},
		{"Ashcraft", "A226"},
		{"Tymczak", "T522"},
		{"Pfister", "P236"},
		{"Honeyman", "H555"},
		{"lodash", "L320"},
		{"loadsh", "L320"},
		{"express", "E216"},
		{"a", "A000"},
		{"", ""},
		{"123", ""},
		{"node-fetch", "N313"},
	}

	for _, tt := range tests {
		if got := Soundex(tt.in); got != tt.want {
			t.Errorf("Soundex(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPhoneticSimilarity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		a, b string
		want float64
	}{
		{"lodash", "loadsh", 1.0},   // same code, classic transposition
		{"lodash", "lodash", 1.0},   // identity
		{"robert", "rupert", 1.0},   // canonical soundex pair
		{"lodash", "react", 0.25}, // only the trailing zero coincides
		{"", "", 1.0},
		{"lodash", "", 0.0},
		{"", "lodash", 0.0},
	}

	for _, tt := range tests {
		got := PhoneticSimilarity(tt.a, tt.b)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("PhoneticSimilarity(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestPhoneticSimilarityRange(t *testing.T) {
	t.Parallel()

	pairs := [][2]string{
		{"react", "preact"},
		{"webpack", "whatpack"},
		{"colour", "color"},
	}
	for _, p := range pairs {
		got := PhoneticSimilarity(p[0], p[1])
		if got < 0 || got > 1 {
			t.Errorf("PhoneticSimilarity(%q, %q) = %v, out of [0,1]", p[0], p[1], got)
		}
	}
}
