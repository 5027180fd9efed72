// Package vantage ports the deterministic style/constraint engine
// (spec.md §4.I) from original_source/rag_engine/vantage_engine.py: lexical
// SD-feature extraction, parameter derivation, and the decide() state
// machine, kept pure and dependency-free so it can be exercised as a unit.
package vantage

import (
	"math"
	"regexp"
	"strings"
)

// SDFeatures holds the eight deterministic lexical pressure scalars
// (spec.md §4.I "SD feature extraction"), each in [0,1].
type SDFeatures struct {
	AP float64 // authority pressure
	CO float64 // coercion
	TH float64 // threat
	RS float64 // respect (centered 0.5)
	NL float64 // negotiation language
	AQ float64 // argument quality
	GC float64 // goal clarity
	SR float64 // safety risk (v0 stub, always 0)
}

var (
	authorityMarkers = []string{
		"do it now", "do this now", "immediately",
		"you must", "you have to", "required",
		"i command", "obey",
		"as your boss", "as your manager",
	}
	coercionMarkers = []string{
		"or else",
		"if you don't comply", "if you do not comply",
		"if you don't do", "if you do not do",
		"you'll regret it", "you will regret it",
		"i'll report you", "i will report you",
		"i'll punish you", "i will punish you",
		"ban you", "fire you", "get you fired",
	}
	threatMarkers = []string{
		"i will hurt you", "i'm going to hurt you",
		"i will kill you", "i'm going to kill you",
	}
	politeMarkers = []string{"please", "thanks", "thank you", "appreciate", "could you", "can you"}
	insultMarkers = []string{"idiot", "stupid", "moron", "shut up", "trash", "worthless"}

	negotiationMarkers = []string{
		"tradeoff", "trade-off", "compromise",
		"option", "options", "either", "instead",
		"unless", "what if", "could we", "can we",
	}
	evidenceMarkers = []string{"evidence", "data", "benchmark", "logs", "trace", "repro", "metrics"}

	deliverableMarkers = []string{
		"build", "implement", "patch", "edit", "fix", "refactor", "write",
		"create", "add", "remove", "change", "run", "commands", "steps",
		"update", "revise", "revision", "correct", "amend", "reconsider", "retract",
	}
	constraintMarkers = []string{
		"python", "sql", "bash", "linux", "systemd", "fastapi", "qdrant", "postgres",
		"seebx", "verbal sage", "/opt/", "port ", "curl", "grep", "rg ",
	}
	explainMarkers = []string{"tell me about", "explain", "overview", "describe", "from a", "perspective"}

	numberRe = regexp.MustCompile(`\b\d+(\.\d+)?\b`)
	pathRe   = regexp.MustCompile(`/[A-Za-z0-9_\-./]+`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

func normText(text string) string {
	t := strings.ToLower(text)
	t = whitespaceRe.ReplaceAllString(t, " ")
	return strings.TrimSpace(t)
}

func countMarkerHits(t string, markers []string) int {
	n := 0
	for _, m := range markers {
		if m != "" && strings.Contains(t, m) {
			n++
		}
	}
	return n
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

func containsAny(t string, words []string) bool {
	for _, w := range words {
		if strings.Contains(t, w) {
			return true
		}
	}
	return false
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// ExtractSDFeatures ports extract_sd_features verbatim from
// original_source/rag_engine/vantage_engine.py.
func ExtractSDFeatures(text, context string) SDFeatures {
	t := normText(context + "\n" + text)

	apHits := countMarkerHits(t, authorityMarkers)
	coHits := countMarkerHits(t, coercionMarkers)
	thHits := countMarkerHits(t, threatMarkers)

	ap := clamp(0.22*float64(apHits), 0, 1)
	co := clamp(0.30*float64(coHits), 0, 1)
	th := clamp(0.55*float64(thHits), 0, 1)

	rs := 0.5
	rs += 0.18 * float64(minInt(2, countMarkerHits(t, politeMarkers)))
	rs -= 0.30 * float64(minInt(2, countMarkerHits(t, insultMarkers)))
	rs = clamp(rs, 0, 1)

	nl := clamp(0.18*float64(countMarkerHits(t, negotiationMarkers)), 0, 1)

	aq := 0.0
	if containsAny(t, []string{"because", "therefore", "so that", "reason is"}) {
		aq += 0.25
	}
	if numberRe.MatchString(t) {
		aq += 0.15
	}
	if countMarkerHits(t, evidenceMarkers) > 0 {
		aq += 0.25
	}
	if containsAny(t, []string{"however", "on the other hand", "counterexample", "tradeoff", "trade-off"}) {
		aq += 0.15
	}
	if containsAny(t, []string{"for example", "e.g.", "such as"}) {
		aq += 0.10
	}
	aq = clamp(aq, 0, 1)

	gc := 0.0
	if countMarkerHits(t, deliverableMarkers) > 0 {
		gc += 0.35
	}
	if countMarkerHits(t, constraintMarkers) > 0 {
		gc += 0.25
	}
	if pathRe.MatchString(t) {
		gc += 0.15
	}
	if containsAny(t, []string{"output", "return", "exit code", "error", "expected", "must not"}) {
		gc += 0.15
	}
	if countMarkerHits(t, explainMarkers) > 0 {
		gc += 0.35
	}
	gc = clamp(gc, 0, 1)

	return SDFeatures{AP: ap, CO: co, TH: th, RS: rs, NL: nl, AQ: aq, GC: gc, SR: 0.0}
}

// Limits are the caller-provided concession limits (spec.md §4.I "Inputs").
type Limits struct {
	Y, R, C, S float64
}

// NormalizeLimits clamps each field to [0,1], defaulting missing input to 0.5
// the way normalize_limits does in the original.
func NormalizeLimits(y, r, c, s *float64) Limits {
	pick := func(v *float64) float64 {
		if v == nil {
			return 0.5
		}
		return clamp(*v, 0, 1)
	}
	return Limits{Y: pick(y), R: pick(r), C: pick(c), S: pick(s)}
}

// Params is the derived controller/realization parameter set
// (spec.md §4.I "Parameter derivation").
type Params struct {
	P                 float64
	ComplyCap         float64
	RevisionGate      float64
	RevisionAllowed   bool
	DeltaStrengthMax  float64
	Eta, Lambda       float64
	EtaPolicy         float64
	EtaSurface        float64
	TokenTarget       int
	HedgeBudget       int
	AffirmBudget      int
	ComplimentBudget  int
}

// DeriveParams ports derive_params verbatim.
func DeriveParams(sd SDFeatures, limits Limits) Params {
	P := math.Max(sd.AP, math.Max(sd.CO, sd.TH))

	complyCap := (0.05 + 0.95*limits.Y) * (1.0 - 0.8*P)
	if sd.CO > 0.50 || sd.TH > 0.40 {
		complyCap = 0
	}
	complyCap = clamp(complyCap, 0, 1)

	revisionGate := limits.R
	revisionAllowed := sd.AQ >= (0.85-0.35*revisionGate) && P < 0.20 && sd.RS > 0.30
	deltaStrengthMax := 0.05 + 0.40*revisionGate

	eta := 0.01 + 0.10*limits.C
	lam := 0.25 - 0.20*limits.C
	etaPolicy := eta * (1.0 - P)
	etaSurface := eta

	tokenTarget := int(math.Round(120 + 600*limits.S))
	hedgeBudget := int(math.Round(1 + 10*limits.S))
	affirmBudget := int(math.Round((0 + 8*limits.S) * (1.0 - P)))
	complimentBudget := int(math.Round((0 + 4*limits.S) * (1.0 - P)))

	return Params{
		P:                P,
		ComplyCap:        complyCap,
		RevisionGate:     revisionGate,
		RevisionAllowed:  revisionAllowed,
		DeltaStrengthMax: deltaStrengthMax,
		Eta:              eta,
		Lambda:           lam,
		EtaPolicy:        etaPolicy,
		EtaSurface:       etaSurface,
		TokenTarget:      tokenTarget,
		HedgeBudget:      hedgeBudget,
		AffirmBudget:     affirmBudget,
		ComplimentBudget: complimentBudget,
	}
}
