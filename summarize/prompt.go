package summarize

import (
	"fmt"
	"strings"

	"consult-worker/dto"
)

// BuildPrompt embeds the transcript and any available session metadata
// into the summarization instruction. Sections come from configuration
// so deployments can tune the note structure.
func BuildPrompt(transcript string, session dto.SessionInfo, sections []string) string {
	var b strings.Builder

	b.WriteString("You are a medical scribe. Summarize the following doctor-patient consultation transcript into a structured clinical note.\n\n")

	if session.PatientName != "" || session.PatientID != "" || session.VisitType != "" {
		b.WriteString("Session details:\n")
		if session.PatientName != "" {
			fmt.Fprintf(&b, "- Patient: %s\n", session.PatientName)
		}
		if session.PatientID != "" {
			fmt.Fprintf(&b, "- Patient ID: %s\n", session.PatientID)
		}
		if session.VisitType != "" {
			fmt.Fprintf(&b, "- Visit type: %s\n", session.VisitType)
		}
		b.WriteString("\n")
	}

	b.WriteString("Organize the note under exactly these headings, using '# ' before each heading and '- ' before each point:\n")
	for _, section := range sections {
		fmt.Fprintf(&b, "# %s\n", section)
	}
	b.WriteString("\nIf the transcript contains nothing relevant to a section, write '- Not discussed.' under it. Do not invent findings.\n\n")
	b.WriteString("Transcript:\n")
	b.WriteString(transcript)

	return b.String()
}
