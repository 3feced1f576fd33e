// Package feed reads and writes the site's RSS 2.0 feed.
package feed

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Item categories.
const (
	CategoryBlog    = "blog"
	CategoryGallery = "gallery"
)

// RSS is the document root.
type RSS struct {
	XMLName xml.Name `xml:"rss"`
	Version string   `xml:"version,attr"`
	Channel Channel  `xml:"channel"`
}

// Channel describes the site and holds its items.
type Channel struct {
	Title         string `xml:"title"`
	Link          string `xml:"link"`
	Description   string `xml:"description"`
	Language      string `xml:"language,omitempty"`
	LastBuildDate string `xml:"lastBuildDate,omitempty"`
	Items         []Item `xml:"item"`
}

// Item is one post or gallery.
type Item struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	GUID        GUID   `xml:"guid"`
	PubDate     string `xml:"pubDate"`
	Category    string `xml:"category,omitempty"`
	Description string `xml:"description,omitempty"`
}

// GUID is an item's permanent identifier.
type GUID struct {
	IsPermaLink string `xml:"isPermaLink,attr,omitempty"`
	Value       string `xml:",chardata"`
}

// Site holds channel-level settings.
type Site struct {
	Title       string
	BaseURL     string
	Description string
}

// Entry is the input for one feed item.
type Entry struct {
	Title     string
	Route     string
	Category  string
	Summary   string
	Published time.Time
}

// URL joins the base URL and an output route.
func URL(baseURL, route string) string {
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(route, "/")
}

// Build returns a feed of entries ordered newest first. The channel's
// lastBuildDate is the newest entry's date, so an unchanged site yields an
// identical feed.
func Build(site Site, entries []Entry) *RSS {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Published.Equal(sorted[j].Published) {
			return sorted[i].Published.After(sorted[j].Published)
		}
		return sorted[i].Route < sorted[j].Route
	})
	ch := Channel{
		Title:       site.Title,
		Link:        URL(site.BaseURL, ""),
		Description: site.Description,
		Language:    "en",
	}
	if len(sorted) > 0 {
		ch.LastBuildDate = FormatDate(sorted[0].Published)
	}
	for _, e := range sorted {
		link := URL(site.BaseURL, e.Route)
		ch.Items = append(ch.Items, Item{
			Title:       e.Title,
			Link:        link,
			GUID:        GUID{IsPermaLink: "true", Value: link},
			PubDate:     FormatDate(e.Published),
			Category:    e.Category,
			Description: e.Summary,
		})
	}
	return &RSS{Version: "2.0", Channel: ch}
}

// FormatDate renders t in RFC 822 form with a numeric zone.
func FormatDate(t time.Time) string {
	return t.UTC().Format(time.RFC1123Z)
}

// ParseDate reads a pubDate. RFC 822 forms are tried first.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC1123Z, time.RFC1123} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return dateparse.ParseIn(s, time.UTC)
}

// Marshal encodes the feed with an XML declaration.
func Marshal(f *RSS) ([]byte, error) {
	out, err := xml.MarshalIndent(f, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode feed: %w", err)
	}
	return append([]byte(xml.Header), append(out, '\n')...), nil
}

// Write encodes the feed to path.
func Write(path string, f *RSS) error {
	data, err := Marshal(f)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write feed: %w", err)
	}
	return nil
}

// ReadPublished maps each guid in a previously written feed to its pubDate.
// A missing file yields an empty map. Items with an unreadable date are left out.
func ReadPublished(path string) (map[string]time.Time, error) {
	published := make(map[string]time.Time)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return published, nil
		}
		return nil, fmt.Errorf("read feed: %w", err)
	}
	var f RSS
	if err := xml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", path, err)
	}
	for _, it := range f.Channel.Items {
		id := strings.TrimSpace(it.GUID.Value)
		if id == "" {
			id = strings.TrimSpace(it.Link)
		}
		if id == "" {
			continue
		}
		t, err := ParseDate(it.PubDate)
		if err != nil {
			continue
		}
		published[id] = t
	}
	return published, nil
}
