package models

import (
	"testing"

	"github.com/google/uuid"
)

func TestSplitGenres(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty", "", []string{}},
		{"whitespace", "   ", []string{}},
		{"single", "rock", []string{"rock"}},
		{"trims and drops empties", " rock, ,jazz ,", []string{"rock", "jazz"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitGenres(tt.input)
			if len(got) != len(tt.want) {
				t.Fatalf("SplitGenres(%q) = %v, want %v", tt.input, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("SplitGenres(%q)[%d] = %q, want %q", tt.input, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestMergeGenres(t *testing.T) {
	got := MergeGenres([]string{"Rock", "jazz"}, []string{"rock", "Shoegaze", "JAZZ"})
	want := []string{"Rock", "jazz", "Shoegaze"}

	if len(got) != len(want) {
		t.Fatalf("MergeGenres() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("MergeGenres()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestDedupe(t *testing.T) {
	bands := []BandModel{
		{Name: "Slowdive", Popularity: 10},
		{Name: "slowdive ", Popularity: 90},
		{Name: "Ride"},
		{Name: ""},
	}

	got := Dedupe(bands)
	if len(got) != 2 {
		t.Fatalf("Dedupe() returned %d bands, want 2", len(got))
	}
	if got[0].Popularity != 10 {
		t.Errorf("Dedupe() kept popularity %d, want first occurrence (10)", got[0].Popularity)
	}
}

func TestLargestImage(t *testing.T) {
	images := []Image{
		{URL: "small", Width: 64, Height: 64},
		{URL: "large", Width: 640, Height: 640},
		{URL: "medium", Width: 300, Height: 300},
	}

	if got := LargestImage(images); got != "large" {
		t.Errorf("LargestImage() = %q, want %q", got, "large")
	}
	if got := LargestImage(nil); got != "" {
		t.Errorf("LargestImage(nil) = %q, want empty", got)
	}
}

func TestRegisteredBandLocation(t *testing.T) {
	tests := []struct {
		name string
		band RegisteredBand
		want string
	}{
		{"city and country", RegisteredBand{City: "Leeds", Country: "UK"}, "Leeds, UK"},
		{"country only", RegisteredBand{Country: "Norway"}, "Norway"},
		{"neither", RegisteredBand{ID: uuid.New()}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.band.Location(); got != tt.want {
				t.Errorf("Location() = %q, want %q", got, tt.want)
			}
		})
	}
}
