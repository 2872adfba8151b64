package summarize

import (
	"context"
	"fmt"
	"strings"

	"consult-worker/dto"
)

// FailureNotice is emitted when even the rule-based extractor finds
// nothing to say.
const FailureNotice = "Automatic summary generation failed for this recording. Please refer to the raw transcript."

// sectionKeywords drives the rule-based fallback: a sentence lands in a
// section when it contains any of the section's keywords.
var sectionKeywords = map[string][]string{
	"Chief Complaint": {"complain", "here for", "here because", "presents with", "came in", "problem", "pain", "symptom"},
	"History":         {"history", "previously", "diagnosed", "years ago", "last visit", "past", "chronic", "family"},
	"Medications":     {"medication", "taking", "prescribed", "dose", "milligram", "mg", "tablet", "pill", "refill"},
	"Assessment":      {"assessment", "likely", "consistent with", "diagnosis", "appears", "suspect", "exam", "blood pressure", "test"},
	"Plan":            {"plan", "follow up", "follow-up", "schedule", "refer", "recommend", "start", "continue", "stop", "order", "prescri"},
}

// RuleBased is the deterministic fallback summarizer. It never calls out
// anywhere and never returns an error.
type RuleBased struct {
	Sections []string
}

func NewRuleBased(sections []string) *RuleBased {
	return &RuleBased{Sections: sections}
}

func (r *RuleBased) Summarize(ctx context.Context, accessToken, transcript string, session dto.SessionInfo) (string, error) {
	sentences := splitSentences(transcript)

	var b strings.Builder
	matchedAny := false
	for _, section := range r.Sections {
		fmt.Fprintf(&b, "# %s\n", section)
		matches := matchSentences(sentences, sectionKeywords[section])
		if len(matches) == 0 {
			b.WriteString("- Not discussed.\n")
		} else {
			matchedAny = true
			for _, m := range matches {
				fmt.Fprintf(&b, "- %s\n", m)
			}
		}
		b.WriteString("\n")
	}

	if !matchedAny {
		return FailureNotice, nil
	}
	return strings.TrimSpace(b.String()), nil
}

func matchSentences(sentences, keywords []string) []string {
	var matches []string
	for _, sentence := range sentences {
		lower := strings.ToLower(sentence)
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				matches = append(matches, sentence)
				break
			}
		}
		if len(matches) >= 5 {
			break
		}
	}
	return matches
}

func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder
	for _, r := range text {
		current.WriteRune(r)
		if r == '.' || r == '?' || r == '!' {
			if s := strings.TrimSpace(current.String()); s != "" {
				sentences = append(sentences, s)
			}
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}
