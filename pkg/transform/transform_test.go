package transform

import (
	"testing"
)

func TestParseRating(t *testing.T) {
	tests := []struct {
		token string
		want  int
	}{
		{"One", 1},
		{"Two", 2},
		{"Three", 3},
		{"Four", 4},
		{"Five", 5},
		{"Six", 0},
		{"", 0},
		{"  three  ", 3},
	}
	for _, tt := range tests {
		if got := ParseRating(tt.token); got != tt.want {
			t.Errorf("ParseRating(%q) = %d, want %d", tt.token, got, tt.want)
		}
	}
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    float64
		wantErr bool
	}{
		{"plain pound", "£51.77", 51.77, false},
		{"mojibake prefix", "Â£10.00", 10.00, false},
		{"no currency", "13.50", 13.50, false},
		{"garbage", "free", 0, true},
		{"empty", "", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePrice(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePrice(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParsePrice(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestConvertPrice(t *testing.T) {
	tests := []struct {
		amount float64
		rate   float64
		want   float64
	}{
		{10.00, 1.17, 11.70},
		{51.77, 1.17, 60.57},
		{0, 1.17, 0},
		{33.34, 1.17, 39.01},
	}
	for _, tt := range tests {
		if got := ConvertPrice(tt.amount, tt.rate); got != tt.want {
			t.Errorf("ConvertPrice(%v, %v) = %v, want %v", tt.amount, tt.rate, got, tt.want)
		}
	}
}

func TestParseAvailability(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{"In stock (19 available)", 19},
		{"In stock (1 available)", 1},
		{"In stock", 1},
		{"Out of stock", 0},
		{"", 0},
	}
	for _, tt := range tests {
		if got := ParseAvailability(tt.input); got != tt.want {
			t.Errorf("ParseAvailability(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Science Fiction", "science-fiction"},
		{"  Poetry  ", "poetry"},
		{"Albert Einstein", "albert-einstein"},
		{"J.K. Rowling", "jk-rowling"},
		{"Historical Fiction", "historical-fiction"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Slugify(tt.input); got != tt.want {
			t.Errorf("Slugify(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestContentHashNormalizes(t *testing.T) {
	a := ContentHash("The World as We Know It")
	b := ContentHash("  the world as we know it  ")
	if a != b {
		t.Errorf("hash should ignore case and padding: %s != %s", a, b)
	}
	if a == ContentHash("something else") {
		t.Error("different text produced the same hash")
	}
	if len(a) != 64 {
		t.Errorf("expected sha256 hex length 64, got %d", len(a))
	}
}
