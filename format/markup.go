package format

import (
	"fmt"
	"html"
	"strings"
	"unicode/utf8"
)

// ConvertMarkup turns the lightweight summary markup into HTML using a
// line scanner with an explicit grammar: '#'-prefixed headings (depth by
// marker count, capped at h4), '-'/'*'/'•' bullet lists, and blank-line
// separated paragraphs. Input that is not valid UTF-8 is rendered
// preformatted instead of being parsed.
func ConvertMarkup(text string) string {
	if !utf8.ValidString(text) {
		return renderPre(text)
	}

	var b strings.Builder
	var para []string
	inList := false

	closeList := func() {
		if inList {
			b.WriteString("</ul>\n")
			inList = false
		}
	}
	flushPara := func() {
		if len(para) > 0 {
			fmt.Fprintf(&b, "<p>%s</p>\n", html.EscapeString(strings.Join(para, " ")))
			para = para[:0]
		}
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			flushPara()
			closeList()
		case strings.HasPrefix(trimmed, "#"):
			flushPara()
			closeList()
			level := 0
			for level < len(trimmed) && trimmed[level] == '#' {
				level++
			}
			heading := strings.TrimSpace(trimmed[level:])
			if level > 4 {
				level = 4
			}
			if heading == "" {
				continue
			}
			fmt.Fprintf(&b, "<h%d>%s</h%d>\n", level, html.EscapeString(heading), level)
		case isBullet(trimmed):
			flushPara()
			if !inList {
				b.WriteString("<ul>\n")
				inList = true
			}
			item := strings.TrimSpace(trimmed[bulletLen(trimmed):])
			fmt.Fprintf(&b, "<li>%s</li>\n", html.EscapeString(item))
		default:
			closeList()
			para = append(para, trimmed)
		}
	}
	flushPara()
	closeList()

	out := b.String()
	if strings.TrimSpace(out) == "" {
		return renderPre(text)
	}
	return out
}

func isBullet(line string) bool {
	return strings.HasPrefix(line, "- ") ||
		strings.HasPrefix(line, "* ") ||
		strings.HasPrefix(line, "• ")
}

func bulletLen(line string) int {
	if strings.HasPrefix(line, "• ") {
		return len("• ")
	}
	return 2
}

func renderPre(text string) string {
	return fmt.Sprintf("<pre>%s</pre>\n", html.EscapeString(text))
}
