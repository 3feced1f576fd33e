package markdown

import "strings"

// mergeQuotes folds each run of consecutive blockquote marker lines into one
// blockquote. Any other line, blank ones included, ends the run.
func mergeQuotes(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	var run []string
	flush := func() {
		if run != nil {
			out = append(out, "<blockquote>"+strings.Join(run, "<br>")+"</blockquote>")
			run = nil
		}
	}
	for _, line := range lines {
		if body, ok := cutMarker(line, quoteOpen, quoteClose); ok {
			run = append(run, body)
			continue
		}
		flush()
		out = append(out, line)
	}
	flush()
	return strings.Join(out, "\n")
}

// mergeLists folds consecutive list item markers into list containers. Bullet and
// numbered items never share a container: a change of marker kind closes the
// current list and opens a new one.
func mergeLists(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	current := ""
	closeList := func() {
		if current != "" {
			out = append(out, "</"+current+">")
			current = ""
		}
	}
	for _, line := range lines {
		kind := ""
		body, ok := cutMarker(line, ulOpen, ulClose)
		if ok {
			kind = "ul"
		} else if body, ok = cutMarker(line, olOpen, olClose); ok {
			kind = "ol"
		}
		if kind == "" {
			closeList()
			out = append(out, line)
			continue
		}
		if kind != current {
			closeList()
			out = append(out, "<"+kind+">")
			current = kind
		}
		out = append(out, "<li>"+body+"</li>")
	}
	closeList()
	return strings.Join(out, "\n")
}

func cutMarker(line, open, close string) (string, bool) {
	if !strings.HasPrefix(line, open) || !strings.HasSuffix(line, close) || len(line) < len(open)+len(close) {
		return "", false
	}
	return line[len(open) : len(line)-len(close)], true
}
