package retrieval

import "strings"

// InferQueryTags ports infer_query_tags + infer_vb_tags verbatim: simple
// substring heuristics over the lowercased query text, producing
// format/tone/topic/intent/vb tags used to rescore both personal and
// corpus hits.
func InferQueryTags(text string) []string {
	t := strings.ToLower(strings.TrimSpace(text))
	var tags []string

	if containsAny(t, "bullet", "bulleted", "outline", "skeleton", "list") {
		tags = append(tags, "format:skeleton")
	}
	if containsAny(t, "paragraph", "prose", "story", "narrative") {
		tags = append(tags, "format:prose")
	}

	if strings.Contains(t, "testing memory") || (strings.Contains(t, "shape") && strings.Contains(t, "behavior")) || strings.Contains(t, "rag") {
		tags = append(tags, "tone:meta")
	}

	if containsAny(t, "hammer strength", "hammer plate", "workout", "lifting", "gym routine") {
		tags = append(tags, "topic:workout")
	}
	if containsAny(t, "fractal monism", "monistic field", "self-deception", "lucifer", "undivided field") {
		tags = append(tags, "topic:fm")
	}
	if containsAny(t, "human vantage", "hv axioms", "human vantage axioms") {
		tags = append(tags, "topic:hv")
	}

	if containsAny(t, "explain", "what is", "why is", "how does", "could you describe") {
		tags = append(tags, "intent:explain")
	}
	if containsAny(t, "how do i", "how can i", "show me how", "step by step", "steps", "instructions") {
		tags = append(tags, "intent:instruct")
	}
	if strings.Contains(t, "summary") || strings.Contains(t, "summarize") || strings.Contains(t, "short version") {
		tags = append(tags, "intent:summarize")
	}
	if strings.Contains(t, "analyze") || strings.Contains(t, "analysis") || strings.Contains(t, "break down") {
		tags = append(tags, "intent:analyze")
	}
	if strings.Contains(t, "compare") || strings.Contains(t, "difference between") || strings.Contains(t, "vs.") {
		tags = append(tags, "intent:compare")
	}
	if containsAny(t, "i feel", "why do i", "help me understand", "reflect on", "what does it mean for me", "in my life") {
		tags = append(tags, "intent:reflect")
	}
	if containsAny(t, "write", "create", "make a", "generate", "draft", "compose") {
		tags = append(tags, "intent:generate")
	}
	if strings.Contains(t, "rewrite") || strings.Contains(t, "edit this") || strings.Contains(t, "make this better") {
		tags = append(tags, "intent:rewrite")
	}
	if containsAny(t, "evaluate", "critique", "what do you think of", "rate this") {
		tags = append(tags, "intent:evaluate")
	}

	tags = append(tags, inferVBTags(t)...)
	return tags
}

// inferVBTags ports infer_vb_tags for source == "user" (the only caller in
// the retrieval path; assistant-authored text never reaches query tagging).
func inferVBTags(t string) []string {
	var tags []string

	if containsAny(t, "can you", "could you", "please", "i want", "i need", "show me", "help me") {
		tags = append(tags, "vb_desire:explicit_request")
	}

	switch {
	case containsAny(t, "pattern", "field", "vantage", "identity", "system", "constraint", "fractal"):
		tags = append(tags, "vb_ontology:high_abstraction")
	case containsAny(t, "thing", "stuff", "that one", "it is like"):
		tags = append(tags, "vb_ontology:low_abstraction")
	}

	if containsAny(t, "i think", "maybe", "sort of", "kinda", "possibly") {
		tags = append(tags, "vb_stance:hedged")
	}
	if containsAny(t, "clearly", "obviously", "definitely", "for sure") {
		tags = append(tags, "vb_stance:high_certainty")
	}

	if containsAny(t, "because", "so", "therefore", "thus") {
		tags = append(tags, "vb_relation:causal")
	}
	if containsAny(t, "but", "however", "yet") {
		tags = append(tags, "vb_relation:contrast")
	}

	if containsAny(t, "lazy", "unmotivated", "wired this way", "i can't help", "that's just who i am") {
		tags = append(tags, "vb_fiction:mentalistic_term")
	}

	return tags
}

func containsAny(haystack string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
