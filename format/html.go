package format

import (
	"fmt"
	"html"
	"strings"

	"consult-worker/dto"
)

var speakerColors = []string{"#1a66b3", "#b33a1a", "#1ab35e", "#8f1ab3"}

func speakerColor(roleIndex int) string {
	return speakerColors[roleIndex%len(speakerColors)]
}

// TranscriptHTML renders the speaker-labeled transcript as a standalone
// document with a patient-info table and one colored paragraph per
// speaker run.
func TranscriptHTML(transcript string, session dto.SessionInfo, roles []string) string {
	var b strings.Builder
	writeHead(&b, "Consultation Transcript")
	writePatientTable(&b, session)

	roleIndex := make(map[string]int)
	for i, role := range roles {
		roleIndex[role] = i
	}

	for _, line := range strings.Split(transcript, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		label, rest, found := strings.Cut(line, ": ")
		if found {
			idx, known := roleIndex[label]
			if !known && strings.HasPrefix(label, "Speaker ") {
				known = true
				idx = len(roles)
			}
			if known {
				fmt.Fprintf(&b, "<p><strong style=\"color:%s\">%s:</strong> %s</p>\n",
					speakerColor(idx), html.EscapeString(label), html.EscapeString(rest))
				continue
			}
		}
		fmt.Fprintf(&b, "<p>%s</p>\n", html.EscapeString(line))
	}

	writeFoot(&b)
	return b.String()
}

// SummaryHTML renders the structured summary through the markup
// converter.
func SummaryHTML(summary string, session dto.SessionInfo) string {
	var b strings.Builder
	writeHead(&b, "Consultation Summary")
	writePatientTable(&b, session)
	b.WriteString(ConvertMarkup(summary))
	writeFoot(&b)
	return b.String()
}

func writeHead(b *strings.Builder, title string) {
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n")
	fmt.Fprintf(b, "<meta charset=\"utf-8\">\n<title>%s</title>\n", html.EscapeString(title))
	b.WriteString("<style>body{font-family:sans-serif;max-width:48em;margin:2em auto;line-height:1.5}table{border-collapse:collapse}td,th{border:1px solid #ccc;padding:4px 10px;text-align:left}</style>\n")
	b.WriteString("</head>\n<body>\n")
	fmt.Fprintf(b, "<h1>%s</h1>\n", html.EscapeString(title))
}

func writePatientTable(b *strings.Builder, session dto.SessionInfo) {
	if session.PatientName == "" && session.PatientID == "" && session.VisitType == "" {
		return
	}
	b.WriteString("<table>\n")
	if session.PatientName != "" {
		fmt.Fprintf(b, "<tr><th>Patient</th><td>%s</td></tr>\n", html.EscapeString(session.PatientName))
	}
	if session.PatientID != "" {
		fmt.Fprintf(b, "<tr><th>Patient ID</th><td>%s</td></tr>\n", html.EscapeString(session.PatientID))
	}
	if session.VisitType != "" {
		fmt.Fprintf(b, "<tr><th>Visit</th><td>%s</td></tr>\n", html.EscapeString(session.VisitType))
	}
	b.WriteString("</table>\n")
}

func writeFoot(b *strings.Builder) {
	b.WriteString("</body>\n</html>\n")
}
