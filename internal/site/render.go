package site

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"path"
	"strings"
	"time"

	"github.com/hyperjump/folio/internal/catalog"
	"github.com/hyperjump/folio/internal/config"
	"github.com/hyperjump/folio/internal/markdown"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/styles.css
var stylesheet []byte

//go:embed static/script.js
var script []byte

var templates = template.Must(template.New("").Funcs(template.FuncMap{
	"date":    func(t time.Time) string { return t.UTC().Format("2 January 2006") },
	"isodate": func(t time.Time) string { return t.UTC().Format("2006-01-02") },
}).ParseFS(templateFS, "templates/*.html"))

// pageData is what every template receives.
type pageData struct {
	Site  config.SiteConfig
	Title string
	// Root leads from the page back to the output root, e.g. "../".
	Root  string
	Class string
	Year  int
	Body  template.HTML

	Item      *catalog.Item
	Items     []*catalog.Item
	Projects  []*catalog.Item
	Galleries []*catalog.Gallery
	Gallery   *catalog.Gallery
	Photos    []*photoView
	Photo     *photoView
}

type photoView struct {
	Image string
	// Page is the viewer's file name inside the gallery directory.
	Page  string
	Prev  string
	Next  string
	Index int
	Count int
}

func stem(name string) string {
	return strings.TrimSuffix(name, path.Ext(name))
}

// rootFor returns the relative prefix from route back to the output root.
func rootFor(route string) string {
	return strings.Repeat("../", markdown.PageDepth("", "root/"+route))
}

func render(name string, data *pageData) ([]byte, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, fmt.Errorf("render %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

// photoViews builds one viewer per image; neighbours wrap around at both ends.
func photoViews(g *catalog.Gallery) []*photoView {
	n := len(g.Images)
	pages := viewerPages(g.Images)
	views := make([]*photoView, n)
	for i, img := range g.Images {
		views[i] = &photoView{
			Image: img,
			Page:  pages[i],
			Prev:  pages[(i-1+n)%n],
			Next:  pages[(i+1)%n],
			Index: i + 1,
			Count: n,
		}
	}
	return views
}

// viewerPages names each image's viewer page <stem>.html. A stem equal to
// "index" (the gallery page) or to an earlier image's page gets its extension
// folded in, index.jpg -> index-jpg.html, then a numeric suffix if still taken.
// Names are compared case-insensitively.
func viewerPages(images []string) []string {
	taken := map[string]bool{"index": true}
	pages := make([]string, len(images))
	for i, img := range images {
		name := stem(img)
		if taken[strings.ToLower(name)] {
			base := name + "-" + strings.TrimPrefix(path.Ext(img), ".")
			name = base
			for n := 2; taken[strings.ToLower(name)]; n++ {
				name = fmt.Sprintf("%s-%d", base, n)
			}
		}
		taken[strings.ToLower(name)] = true
		pages[i] = name + ".html"
	}
	return pages
}
