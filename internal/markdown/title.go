package markdown

import "strings"

// Title returns the text of the document's first-line "# " heading, or fallback
// when the first non-blank line is not a level-one heading.
func Title(text, fallback string) string {
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "# ") {
			if t := strings.TrimSpace(line[2:]); t != "" {
				return t
			}
		}
		break
	}
	return fallback
}
