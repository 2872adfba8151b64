// Package format renders transcripts and summaries as plain text and
// HTML. All functions here are pure.
package format

import (
	"fmt"
	"strings"

	"consult-worker/speech"
)

// SpeakerLabel maps an opaque diarization tag to a human role. roles are
// assigned in first-seen tag order; tags beyond the configured role list
// render as "Speaker N". The order convention (first voice heard is the
// clinician) is a heuristic, not a guarantee.
func SpeakerLabel(order int, roles []string) string {
	if order < len(roles) {
		return roles[order]
	}
	return fmt.Sprintf("Speaker %d", order+1)
}

// RenderTranscript groups words into contiguous runs of the same speaker
// tag and emits one labeled line per run. Whitespace inside runs is
// normalized.
func RenderTranscript(words []speech.Word, roles []string) string {
	if len(words) == 0 {
		return ""
	}

	// First-seen order decides which role a tag gets.
	tagOrder := make(map[int]int)
	for _, w := range words {
		if _, seen := tagOrder[w.SpeakerTag]; !seen {
			tagOrder[w.SpeakerTag] = len(tagOrder)
		}
	}

	var b strings.Builder
	var run []string
	currentTag := words[0].SpeakerTag

	flush := func(tag int) {
		if len(run) == 0 {
			return
		}
		label := SpeakerLabel(tagOrder[tag], roles)
		fmt.Fprintf(&b, "%s: %s\n", label, strings.Join(run, " "))
		run = run[:0]
	}

	for _, w := range words {
		if w.SpeakerTag != currentTag {
			flush(currentTag)
			currentTag = w.SpeakerTag
		}
		if token := strings.TrimSpace(w.Word); token != "" {
			run = append(run, token)
		}
	}
	flush(currentTag)

	return NormalizeWhitespace(b.String())
}

// NormalizeWhitespace collapses repeated spaces and squeezes blank-line
// runs down to a single blank line.
func NormalizeWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	var out []string
	blank := false
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, strings.Join(fields, " "))
	}
	// Trim a trailing blank line.
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n")
}
