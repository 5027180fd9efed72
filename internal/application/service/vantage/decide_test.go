package vantage

import "testing"

func TestExtractSDFeaturesCoercionThreat(t *testing.T) {
	// spec.md §8 end-to-end scenario 4.
	sd := ExtractSDFeatures("you must fix this now or i'll report you", "")
	if sd.AP < 0.2 {
		t.Fatalf("expected AP >= 0.2, got %v", sd.AP)
	}
	if sd.CO < 0.3 {
		t.Fatalf("expected CO >= 0.3, got %v", sd.CO)
	}
}

func TestDecideRefuseOnCoercionWithoutClarity(t *testing.T) {
	sd := ExtractSDFeatures("you must fix this now or i'll report you", "")
	limits := NormalizeLimits(f(1), f(0), f(0), f(0))
	params := DeriveParams(sd, limits)
	decision := Decide(sd, params, DefaultRouting())

	if sd.GC >= 0.40 && sd.NL >= 0.20 {
		if decision.ResponseClass != Negotiate {
			t.Fatalf("expected NEGOTIATE when GC/NL thresholds met, got %v", decision.ResponseClass)
		}
	} else if decision.ResponseClass != Refuse {
		t.Fatalf("expected REFUSE, got %v", decision.ResponseClass)
	}
}

func TestDecideIsPureFunction(t *testing.T) {
	sd := ExtractSDFeatures("please help me build a small script", "")
	limits := NormalizeLimits(f(0.5), f(0.5), f(0.5), f(0.5))
	params := DeriveParams(sd, limits)
	routing := DefaultRouting()

	first := Decide(sd, params, routing)
	second := Decide(sd, params, routing)
	if first != second {
		t.Fatalf("decide() is not deterministic: %+v vs %+v", first, second)
	}
}

func TestDecideSafetyRedirect(t *testing.T) {
	sd := SDFeatures{SR: 0.9}
	params := DeriveParams(sd, NormalizeLimits(f(0.5), f(0.5), f(0.5), f(0.5)))
	decision := Decide(sd, params, DefaultRouting())
	if decision.ResponseClass != Redirect {
		t.Fatalf("expected REDIRECT for SR>=0.5, got %v", decision.ResponseClass)
	}
}

func TestInferVBTagsFiltersAssistantDesireAndFiction(t *testing.T) {
	tags := InferVBTags("i can't help it, please show me", "assistant")
	for _, tag := range tags {
		if tag == "vb_desire:explicit_request" || tag == "vb_fiction:mentalistic_term" {
			t.Fatalf("assistant tags must not include desire/fiction tags, got %v", tags)
		}
	}
}

func TestInferVBTagsUserKeepsDesire(t *testing.T) {
	tags := InferVBTags("could you help me with this", "user")
	found := false
	for _, tag := range tags {
		if tag == "vb_desire:explicit_request" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected vb_desire:explicit_request, got %v", tags)
	}
}

func f(v float64) *float64 { return &v }
