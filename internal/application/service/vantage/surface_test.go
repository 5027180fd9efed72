package vantage

import (
	"strings"
	"testing"
)

func TestCountSurfaceMarkers(t *testing.T) {
	counts := CountSurfaceMarkers("Maybe I think this is great, perhaps awesome too.")
	if counts.Hedges != 3 {
		t.Fatalf("hedges = %d, want 3", counts.Hedges)
	}
	if counts.Compliments != 2 {
		t.Fatalf("compliments = %d, want 2", counts.Compliments)
	}
}

func TestEnforceSurfaceCapsToBudget(t *testing.T) {
	text := "Maybe this works, perhaps it could also fail, I think."
	params := Params{HedgeBudget: 1, AffirmBudget: 0, ComplimentBudget: 0}

	out := EnforceSurface(text, params)
	if CountSurfaceMarkers(out).Hedges != 1 {
		t.Fatalf("expected exactly 1 hedge marker to survive, got text: %q", out)
	}
}

func TestEnforceSurfaceStripsDeferenceRegardlessOfBudget(t *testing.T) {
	text := "As you wish, I will proceed."
	params := Params{HedgeBudget: 10, AffirmBudget: 10, ComplimentBudget: 10}

	out := EnforceSurface(text, params)
	if strings.Contains(strings.ToLower(out), "as you wish") {
		t.Fatalf("expected deference marker to be stripped, got: %q", out)
	}
}
