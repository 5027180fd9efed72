package vantage

import "strings"

// InferVBTags ports infer_vb_tags verbatim from
// original_source/rag_engine/vb_tagging.py: lightweight lexical
// verbal-behavior functional tagging (GLOSSARY "VB tags").
func InferVBTags(text, source string) []string {
	t := strings.ToLower(text)
	var tags []string

	if containsAny(t, []string{"can you", "could you", "please", "i want", "i need", "show me", "help me"}) {
		tags = append(tags, "vb_desire:explicit_request")
	}

	if containsAny(t, []string{"pattern", "field", "vantage", "identity", "system", "constraint", "fractal"}) {
		tags = append(tags, "vb_ontology:high_abstraction")
	} else if containsAny(t, []string{"thing", "stuff", "that one", "it is like"}) {
		tags = append(tags, "vb_ontology:low_abstraction")
	}

	if containsAny(t, []string{"i think", "maybe", "sort of", "kinda", "possibly"}) {
		tags = append(tags, "vb_stance:hedged")
	}
	if containsAny(t, []string{"clearly", "obviously", "definitely", "for sure"}) {
		tags = append(tags, "vb_stance:high_certainty")
	}

	if containsAny(t, []string{"because", "so", "therefore", "thus"}) {
		tags = append(tags, "vb_relation:causal")
	}
	if containsAny(t, []string{"but", "however", "yet"}) {
		tags = append(tags, "vb_relation:contrast")
	}

	if containsAny(t, []string{"lazy", "unmotivated", "wired this way", "i can't help", "that's just who i am"}) {
		tags = append(tags, "vb_fiction:mentalistic_term")
	}

	if source != "user" {
		filtered := tags[:0]
		for _, tag := range tags {
			if strings.HasPrefix(tag, "vb_desire:") || strings.HasPrefix(tag, "vb_fiction:") {
				continue
			}
			filtered = append(filtered, tag)
		}
		tags = filtered
	}

	return tags
}
