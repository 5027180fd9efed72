package vantage

import (
	"regexp"
	"sort"
	"strings"
)

// Surface marker sets (spec.md's SUPPLEMENTED FEATURES "surface marker
// budgets"), ported from original_source/rag_engine/vantage_engine.py's
// HEDGE_MARKERS/AFFIRMATION_MARKERS/COMPLIMENT_MARKERS/DEFERENCE_MARKERS.
var (
	hedgeMarkers = []string{
		"maybe", "perhaps", "might", "could", "i think", "i guess", "sort of", "kind of",
		"it seems", "it appears", "possibly",
	}
	affirmationMarkers = []string{
		"i understand", "that makes sense", "got it", "fair", "i hear you", "understood",
	}
	complimentMarkers = []string{
		"great", "awesome", "amazing", "brilliant", "excellent", "perfect", "incredible",
	}
	deferenceMarkers = []string{
		"as you wish", "at your command", "yes sir", "certainly sir",
	}

	excessWhitespaceRe = regexp.MustCompile(`[ \t]{2,}`)
)

// SurfaceCounts are occurrence counts of each ornament category in a piece
// of text (original_source's count_surface_markers).
type SurfaceCounts struct {
	Hedges       int
	Affirmations int
	Compliments  int
	Deference    int
}

// CountSurfaceMarkers counts every marker occurrence, case-insensitively.
func CountSurfaceMarkers(text string) SurfaceCounts {
	t := normText(text)
	return SurfaceCounts{
		Hedges:       countMarkerOccurrences(t, hedgeMarkers),
		Affirmations: countMarkerOccurrences(t, affirmationMarkers),
		Compliments:  countMarkerOccurrences(t, complimentMarkers),
		Deference:    countMarkerOccurrences(t, deferenceMarkers),
	}
}

func countMarkerOccurrences(t string, markers []string) int {
	n := 0
	for _, m := range markers {
		n += strings.Count(t, m)
	}
	return n
}

type markerSpan struct{ start, end int }

// findMarkerSpans locates every case-insensitive occurrence of markers in
// text, in left-to-right order, as byte offsets into the original
// (unmodified) text.
func findMarkerSpans(text string, markers []string) []markerSpan {
	lower := strings.ToLower(text)
	var spans []markerSpan
	for _, m := range markers {
		if m == "" {
			continue
		}
		for i := 0; ; {
			idx := strings.Index(lower[i:], m)
			if idx < 0 {
				break
			}
			start := i + idx
			spans = append(spans, markerSpan{start, start + len(m)})
			i = start + len(m)
		}
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	return spans
}

// EnforceSurface is the post-generation enforcer: it caps how many hedge,
// affirmation, and compliment markers survive in generated text to the
// caller's derived budgets, and always strips deference markers outright
// (spec.md §4.I overlay text: "no deference/flattery"). Unlike
// enforceClarifyShape (chatpath/query.go), which reshapes a whole answer,
// this trims markers in place so the rest of the answer is untouched.
func EnforceSurface(text string, params Params) string {
	out := text
	out = trimMarkersToBudget(out, deferenceMarkers, 0)
	out = trimMarkersToBudget(out, hedgeMarkers, params.HedgeBudget)
	out = trimMarkersToBudget(out, affirmationMarkers, params.AffirmBudget)
	out = trimMarkersToBudget(out, complimentMarkers, params.ComplimentBudget)
	return excessWhitespaceRe.ReplaceAllString(out, " ")
}

// trimMarkersToBudget keeps the first budget occurrences of markers (in
// left-to-right order) and deletes the rest.
func trimMarkersToBudget(text string, markers []string, budget int) string {
	if budget < 0 {
		budget = 0
	}
	spans := findMarkerSpans(text, markers)
	if len(spans) <= budget {
		return text
	}
	toDrop := spans[budget:]

	var b strings.Builder
	last := 0
	for _, sp := range toDrop {
		if sp.start < last {
			continue
		}
		b.WriteString(text[last:sp.start])
		last = sp.end
	}
	b.WriteString(text[last:])
	return b.String()
}
