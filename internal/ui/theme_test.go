package ui

import (
	"testing"

	"github.com/five82/ubike/internal/state"
)

func TestGetTheme_FallsBackToNightfox(t *testing.T) {
	if got := GetTheme("Kanagawa").Name; got != "Kanagawa" {
		t.Fatalf("GetTheme(Kanagawa).Name = %q, want Kanagawa", got)
	}
	if got := GetTheme("nope").Name; got != "Nightfox" {
		t.Fatalf("GetTheme(nope).Name = %q, want Nightfox", got)
	}
}

func TestThemeNames(t *testing.T) {
	names := ThemeNames()
	want := []string{"Nightfox", "Kanagawa", "Slate"}
	if len(names) != len(want) {
		t.Fatalf("ThemeNames() returned %d names, want %d", len(names), len(want))
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("ThemeNames() = %v, want %v", names, want)
		}
	}

	names[0] = "mutated"
	if ThemeNames()[0] != "Nightfox" {
		t.Fatalf("ThemeNames() exposed internal slice")
	}
}

func TestNextTheme(t *testing.T) {
	cases := map[string]string{
		"Nightfox": "Kanagawa",
		"Kanagawa": "Slate",
		"Slate":    "Nightfox",
		"unknown":  "Nightfox",
	}
	for in, want := range cases {
		if got := NextTheme(in); got != want {
			t.Fatalf("NextTheme(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestAvailabilityColor(t *testing.T) {
	th := GetTheme("Nightfox")
	cases := []struct {
		name  string
		count *int
		want  string
	}{
		{"unknown", nil, th.Faint},
		{"empty", state.IntPtr(0), th.Danger},
		{"low", state.IntPtr(3), th.Warning},
		{"plenty", state.IntPtr(4), th.Success},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := th.AvailabilityColor(tc.count); got != tc.want {
				t.Fatalf("AvailabilityColor = %q, want %q", got, tc.want)
			}
		})
	}
}
