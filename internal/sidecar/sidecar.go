// Package sidecar reads the small key/value metadata files that sit beside content items.
//
// The format is a deliberately tiny YAML subset:
//
//	published_at: 2024-03-01
//	description: Autumn walk along the canal
//	dependencies:
//	  - demo/app.js
//	  - demo/data.json
//
// Each non-blank, non-comment line is either "key: value" or, directly after a key
// with an empty value, a "- item" entry of that key's list. There is no nesting, no
// quoting and no multi-line scalar. Only published_at is interpreted as a date.
package sidecar

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// DateKey is the only key whose value is parsed as a date.
const DateKey = "published_at"

// Kind tags the variant held by a Value.
type Kind int

const (
	Scalar Kind = iota
	Date
	List
)

func (k Kind) String() string {
	switch k {
	case Scalar:
		return "scalar"
	case Date:
		return "date"
	case List:
		return "list"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Value is one of a string, a date, or a list of strings, as selected by Kind.
type Value struct {
	Kind  Kind
	Str   string
	Time  time.Time
	Items []string
}

// Document maps keys to values.
type Document map[string]Value

// String returns the scalar stored under key, or "" if key is absent or not a scalar.
func (d Document) String(key string) string {
	v, ok := d[key]
	if !ok || v.Kind != Scalar {
		return ""
	}
	return v.Str
}

// Time returns the date stored under key.
func (d Document) Time(key string) (time.Time, bool) {
	v, ok := d[key]
	if !ok || v.Kind != Date {
		return time.Time{}, false
	}
	return v.Time, true
}

// List returns the list stored under key, or nil.
func (d Document) List(key string) []string {
	v, ok := d[key]
	if !ok || v.Kind != List {
		return nil
	}
	return v.Items
}

// ParseError reports the line that could not be understood.
type ParseError struct {
	Line int
	Text string
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s: %q", e.Line, e.Msg, e.Text)
}

// Parse parses text into a Document.
func Parse(text string) (Document, error) {
	doc := make(Document)
	var (
		listKey string
		items   []string
		inList  bool
	)
	commit := func() {
		if inList {
			doc[listKey] = Value{Kind: List, Items: items}
		}
		inList, listKey, items = false, "", nil
	}
	for i, raw := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if line == "-" || strings.HasPrefix(line, "- ") {
			if !inList {
				return nil, &ParseError{Line: i + 1, Text: raw, Msg: "list item without a list key"}
			}
			items = append(items, strings.TrimSpace(strings.TrimPrefix(line, "-")))
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, &ParseError{Line: i + 1, Text: raw, Msg: "expected key: value"}
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" {
			return nil, &ParseError{Line: i + 1, Text: raw, Msg: "empty key"}
		}
		commit()
		if value == "" {
			inList, listKey, items = true, key, []string{}
			continue
		}
		if key == DateKey {
			t, err := parseDate(value)
			if err != nil {
				return nil, &ParseError{Line: i + 1, Text: raw, Msg: "invalid date"}
			}
			doc[key] = Value{Kind: Date, Time: t}
			continue
		}
		doc[key] = Value{Kind: Scalar, Str: value}
	}
	commit()
	return doc, nil
}

// ReadFile parses the sidecar at path. A missing file is not an error: it returns (nil, nil).
func ReadFile(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	doc, err := Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// ParseDate parses the loosely formatted dates found in content: ISO dates,
// RFC 3339 timestamps and written-out forms such as "March 1, 2024".
// Dates without a zone are taken as UTC.
func ParseDate(s string) (time.Time, error) {
	return parseDate(s)
}

func parseDate(s string) (time.Time, error) {
	return dateparse.ParseIn(strings.TrimSpace(s), time.UTC)
}
