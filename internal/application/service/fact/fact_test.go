package fact

import "testing"

func TestNormalizeKVKey(t *testing.T) {
	cases := map[string]string{
		"Favorite Color":   "favorite_color",
		"  leading/spaces ": "leading_spaces",
		"UPPER--CASE":      "upper_case",
		"":                 "unknown",
		"!!!":               "unknown",
	}
	for in, want := range cases {
		if got := normalizeKVKey(in); got != want {
			t.Errorf("normalizeKVKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeKVKeyCapsLength(t *testing.T) {
	long := ""
	for i := 0; i < 100; i++ {
		long += "a"
	}
	got := normalizeKVKey(long)
	if len(got) != normalizedKeyMaxLen {
		t.Fatalf("expected normalized key capped at %d chars, got %d", normalizedKeyMaxLen, len(got))
	}
}

func TestIsKVLineMatchesRestrictedKeyChars(t *testing.T) {
	if !isKVLine("Favorite Color: blue") {
		t.Fatalf("expected a simple KV line to match")
	}
	if isKVLine("just a sentence with no colon structure") {
		t.Fatalf("expected a non-KV sentence not to match")
	}
	if isKVLine(": missing key") {
		t.Fatalf("expected a line with an empty key not to match")
	}
	if !isKVLine("  Mood: calm, focused  ") {
		t.Fatalf("expected a KV line with leading/trailing whitespace to match")
	}
}

func TestQuoteJSONLiteralEscapesQuotesAndBackslashes(t *testing.T) {
	got := quoteJSONLiteral(`say "hi"\there`)
	want := `"say \"hi\"\\there"`
	if got != want {
		t.Fatalf("quoteJSONLiteral = %s, want %s", got, want)
	}
}
