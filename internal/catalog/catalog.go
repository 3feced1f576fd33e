// Package catalog turns the content tree into ordered lists of rendered items and galleries.
package catalog

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/hyperjump/folio/internal/markdown"
	"github.com/hyperjump/folio/internal/sidecar"
	"go.uber.org/zap"
)

// Content tree layout.
const (
	HomepageFile = "homepage.md"
	AboutFile    = "about.md"
	BlogDir      = "blog"
	ProjectsDir  = "projects"
	PhotosDir    = "photos"

	sidecarSuffix  = ".meta.yaml"
	gallerySidecar = "meta.yaml"
)

// Output routes, relative to the output root.
const (
	HomepageRoute = "index.html"
	AboutRoute    = "about-this-site.html"
	PostsRoute    = "updates"
	ProjectsRoute = "projects"
	PhotosRoute   = "photos"
)

// Sidecar keys.
const (
	keyDescription    = "description"
	keyDependencies   = "dependencies"
	keyAdditionalHTML = "additional_html"
)

// DateSource records where an item's publish date came from.
type DateSource int

const (
	DateFromNow DateSource = iota
	DateFromModTime
	DateFromMarker
	DateFromSidecar
	// DateFromFeed marks a date recovered from a previously published feed.
	DateFromFeed
)

func (d DateSource) String() string {
	switch d {
	case DateFromSidecar:
		return "sidecar"
	case DateFromMarker:
		return "last-updated"
	case DateFromModTime:
		return "mtime"
	case DateFromFeed:
		return "feed"
	default:
		return "now"
	}
}

// Item is a blog post, project, or standalone page.
type Item struct {
	Slug       string
	Title      string
	Body       string
	SourceDir  string
	SourcePath string
	// Route is the output path relative to the output root, with forward slashes.
	Route      string
	HTML       string
	Summary    string
	Published  time.Time
	DateSource DateSource
	Assets     []markdown.Asset

	// Projects only. Dependencies are relative to SourceDir; AdditionalHTML is a path
	// relative to SourceDir whose contents are appended after the body.
	Dependencies   []string
	AdditionalHTML string
}

// Explicit reports whether the publish date was set by the author.
func (it *Item) Explicit() bool {
	return it.DateSource == DateFromSidecar
}

// Builder reads content items from a content root.
type Builder struct {
	contentDir string
	outputDir  string
	conv       *markdown.Converter
	logger     *zap.Logger
	now        func() time.Time
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithLogger sets a logger for skipped items and metadata problems.
func WithLogger(l *zap.Logger) BuilderOption {
	return func(b *Builder) { b.logger = l }
}

// WithClock replaces time.Now as the last-resort publish date.
func WithClock(now func() time.Time) BuilderOption {
	return func(b *Builder) { b.now = now }
}

// NewBuilder returns a Builder for the given roots. conv may be shared with other builders.
func NewBuilder(contentDir, outputDir string, conv *markdown.Converter, opts ...BuilderOption) *Builder {
	b := &Builder{
		contentDir: contentDir,
		outputDir:  outputDir,
		conv:       conv,
		logger:     zap.NewNop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = zap.NewNop()
	}
	return b
}

// LoadPage reads a single top-level markdown file and renders it for route.
// It returns (nil, nil) when the file does not exist.
func (b *Builder) LoadPage(name, route string) (*Item, error) {
	path := filepath.Join(b.contentDir, name)
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	slug := strings.TrimSuffix(name, filepath.Ext(name))
	item, _, err := b.loadItem(path, slug, route, info)
	return item, err
}

// LoadPosts renders every blog post, newest first.
func (b *Builder) LoadPosts() ([]*Item, error) {
	items, err := b.loadDir(BlogDir, PostsRoute)
	if err != nil {
		return nil, err
	}
	SortItems(items)
	return items, nil
}

// LoadProjects renders every project, newest first.
func (b *Builder) LoadProjects() ([]*Item, error) {
	items, err := b.loadDir(ProjectsDir, ProjectsRoute)
	if err != nil {
		return nil, err
	}
	SortItems(items)
	return items, nil
}

// loadDir renders each *.md file directly inside contentDir/dir. A missing
// directory yields no items.
func (b *Builder) loadDir(dir, routeDir string) ([]*Item, error) {
	root := filepath.Join(b.contentDir, dir)
	entries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", root, err)
	}
	var items []*Item
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.EqualFold(filepath.Ext(name), ".md") {
			continue
		}
		path := filepath.Join(root, name)
		info, err := e.Info()
		if err != nil {
			b.logger.Warn("skipping unreadable item", zap.String("path", path), zap.Error(err))
			continue
		}
		slug := strings.TrimSuffix(name, filepath.Ext(name))
		item, meta, err := b.loadItem(path, slug, routeDir+"/"+slug+".html", info)
		if err != nil {
			b.logger.Warn("skipping item", zap.String("path", path), zap.Error(err))
			continue
		}
		if dir == ProjectsDir {
			attachProjectMeta(item, meta)
		}
		items = append(items, item)
	}
	return items, nil
}

// loadItem renders one markdown file and returns it with its sidecar, which is
// nil when absent or malformed.
func (b *Builder) loadItem(path, slug, route string, info fs.FileInfo) (*Item, sidecar.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", path, err)
	}
	text := string(data)
	dir := filepath.Dir(path)
	res, err := b.conv.Convert(text, markdown.Ref{
		SourceDir:  dir,
		OutputRoot: b.outputDir,
		OutputPath: filepath.Join(b.outputDir, filepath.FromSlash(route)),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("convert %s: %w", path, err)
	}
	item := &Item{
		Slug:       slug,
		Title:      markdown.Title(text, slug),
		Body:       text,
		SourceDir:  dir,
		SourcePath: path,
		Route:      route,
		HTML:       res.HTML,
		Summary:    Summary(res.HTML),
		Assets:     res.Assets,
	}
	meta := b.readSidecar(filepath.Join(dir, slug+sidecarSuffix))
	item.Published, item.DateSource = b.resolveDate(meta, text, info)
	return item, meta, nil
}

// readSidecar returns the parsed sidecar, or nil when it is absent or malformed.
func (b *Builder) readSidecar(path string) sidecar.Document {
	doc, err := sidecar.ReadFile(path)
	if err != nil {
		b.logger.Warn("ignoring malformed metadata", zap.String("path", path), zap.Error(err))
		return nil
	}
	return doc
}

func attachProjectMeta(item *Item, meta sidecar.Document) {
	if meta == nil {
		return
	}
	item.Dependencies = meta.List(keyDependencies)
	item.AdditionalHTML = meta.String(keyAdditionalHTML)
}

// resolveDate picks the first available of: sidecar published_at, the body's
// last-updated marker, the file's modification time, the current time.
func (b *Builder) resolveDate(meta sidecar.Document, body string, info fs.FileInfo) (time.Time, DateSource) {
	if t, ok := meta.Time(sidecar.DateKey); ok {
		return t, DateFromSidecar
	}
	if t, ok := LastUpdated(body); ok {
		return t, DateFromMarker
	}
	if info != nil && !info.ModTime().IsZero() {
		return info.ModTime(), DateFromModTime
	}
	return b.now(), DateFromNow
}

var lastUpdatedRe = regexp.MustCompile(`_Last updated ([^_\n]+)_`)

// LastUpdated finds an "_Last updated <date>_" marker in body and parses its date.
func LastUpdated(body string) (time.Time, bool) {
	m := lastUpdatedRe.FindStringSubmatch(body)
	if m == nil {
		return time.Time{}, false
	}
	t, err := sidecar.ParseDate(m[1])
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// SortItems orders items newest first; equal dates fall back to slug order.
func SortItems(items []*Item) {
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].Published.Equal(items[j].Published) {
			return items[i].Published.After(items[j].Published)
		}
		return items[i].Slug < items[j].Slug
	})
}
