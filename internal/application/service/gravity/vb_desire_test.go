package gravity

import "testing"

func TestScoreBucketSmoothsSmallSamples(t *testing.T) {
	got := scoreBucket(bucket{count: 1, pos: 1, neg: 0})
	want := 1.0 / 3.0 // (1-0)/(1+2)
	if diff := got - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("scoreBucket = %v, want %v", got, want)
	}
}

func TestTopNSortsByScoreThenCount(t *testing.T) {
	buckets := map[string]*bucket{
		"a": {count: 10, pos: 10, neg: 0},
		"b": {count: 2, pos: 10, neg: 0},
		"c": {count: 1, pos: 0, neg: 5},
	}
	rows := topN(buckets, 2)
	if len(rows) != 2 {
		t.Fatalf("expected top 2 rows, got %d", len(rows))
	}
	if rows[0].Score < rows[1].Score {
		t.Fatalf("expected rows sorted descending by score, got %+v", rows)
	}
}

func TestVBDesireBiasMapClampsAndScales(t *testing.T) {
	profile := map[string]interface{}{
		"request_patterns": map[string]interface{}{
			"by_format": []interface{}{
				map[string]interface{}{"key": "format:skeleton", "score": 1.0},
			},
			"by_topic": []interface{}{
				map[string]interface{}{"key": "topic:workout", "score": -2.0},
			},
		},
	}
	bias := VBDesireBiasMap(profile)
	if bias["format:skeleton"] != 0.12 {
		t.Fatalf("expected format bias 0.12, got %v", bias["format:skeleton"])
	}
	if bias["topic:workout"] != -0.10 {
		t.Fatalf("expected topic bias clamped via score clamp to -0.10, got %v", bias["topic:workout"])
	}
}

func TestInferPreferencesSummarizeAndAnalyze(t *testing.T) {
	intents := []BucketRow{
		{Key: "intent:summarize", Score: 0.5},
		{Key: "intent:analyze", Score: 0.2},
	}
	got := inferPreferences(intents, nil, nil)
	if got.PreferredAnswerLength != "short" {
		t.Fatalf("expected short answer length, got %s", got.PreferredAnswerLength)
	}
	if got.PreferredDensity != "high" {
		t.Fatalf("expected high density, got %s", got.PreferredDensity)
	}
}
