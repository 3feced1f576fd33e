// Package site assembles the static website from the content tree.
package site

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/folio/internal/catalog"
	"github.com/hyperjump/folio/internal/config"
	"github.com/hyperjump/folio/internal/feed"
	"github.com/hyperjump/folio/internal/markdown"
	"github.com/hyperjump/folio/internal/models"
	"github.com/hyperjump/folio/pkg/utils"
	"go.uber.org/zap"
)

// Generated file routes.
const (
	FeedRoute       = "feed.xml"
	StylesRoute     = "styles.css"
	ScriptRoute     = "script.js"
	PostsIndexRoute = "updates/index.html"
	PhotosIndex     = "photos/index.html"
)

// Recorder stores a summary of each finished build.
type Recorder interface {
	RecordBuild(ctx context.Context, report *models.BuildReport) error
}

// Assembler builds the site described by a Config. It holds no state between
// builds, so Build may be called repeatedly (but not concurrently on one output dir).
type Assembler struct {
	cfg      *config.Config
	logger   *zap.Logger
	recorder Recorder
	now      func() time.Time
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Assembler) { a.logger = l }
}

// WithRecorder stores build summaries in r.
func WithRecorder(r Recorder) Option {
	return func(a *Assembler) { a.recorder = r }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *Assembler) { a.now = now }
}

// New returns an Assembler for cfg.
func New(cfg *config.Config, opts ...Option) *Assembler {
	a := &Assembler{cfg: cfg, logger: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = zap.NewNop()
	}
	return a
}

// copyJob is a file copied verbatim into the output tree.
type copyJob struct {
	src   string
	route string
}

// build is the state of one Build call.
type build struct {
	a      *Assembler
	log    *zap.Logger
	outDir string
	// assetsDir is the converter's shared image folder, relative to outDir.
	assetsDir string
	pages     map[string][]byte
	copies    []copyJob
	claimed   map[string]int // route -> index in copies
	assets    int
}

// Build renders the whole site into the output directory.
func (a *Assembler) Build(ctx context.Context) (*models.BuildReport, error) {
	started := a.now()
	var warns utils.WarnCounter
	log := warns.Wrap(a.logger)
	report := &models.BuildReport{BuildID: uuid.NewString(), StartedAt: started}

	contentDir, outDir := a.cfg.Paths.ContentDir, a.cfg.Paths.OutputDir
	if info, err := os.Stat(contentDir); err != nil {
		return nil, fmt.Errorf("content dir: %w", err)
	} else if !info.IsDir() {
		return nil, fmt.Errorf("content dir %s is not a directory", contentDir)
	}

	conv := markdown.NewConverter(markdown.WithLogger(log))
	cb := catalog.NewBuilder(contentDir, outDir, conv, catalog.WithLogger(log), catalog.WithClock(a.now))

	home, err := cb.LoadPage(catalog.HomepageFile, catalog.HomepageRoute)
	if err != nil {
		return nil, err
	}
	about, err := cb.LoadPage(catalog.AboutFile, catalog.AboutRoute)
	if err != nil {
		return nil, err
	}
	posts, err := cb.LoadPosts()
	if err != nil {
		return nil, err
	}
	projects, err := cb.LoadProjects()
	if err != nil {
		return nil, err
	}
	galleries, err := cb.LoadGalleries()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.restoreFeedDates(log, filepath.Join(outDir, FeedRoute), posts, galleries)

	b := &build{
		a:         a,
		log:       log,
		outDir:    outDir,
		assetsDir: conv.AssetsDir(),
		pages:     make(map[string][]byte),
		claimed:   make(map[string]int),
	}
	if err := b.renderAll(home, about, posts, projects, galleries); err != nil {
		return nil, err
	}
	if err := b.addFeed(posts, galleries); err != nil {
		return nil, err
	}
	b.addPage(StylesRoute, stylesheet)
	b.addPage(ScriptRoute, script)

	expected := make(map[string]bool, len(b.pages)+len(b.copies))
	for route := range b.pages {
		expected[route] = true
	}
	for _, job := range b.copies {
		expected[job.route] = true
	}

	inv, err := ScanOutput(outDir)
	if err != nil {
		return nil, err
	}
	exempt := append([]string{b.assetsDir}, a.cfg.Paths.Preserve...)
	removed, err := ApplySweep(outDir, PlanSweep(inv, expected, exempt))
	if err != nil {
		return nil, err
	}
	for _, r := range removed {
		log.Debug("removed stale output", zap.String("path", r))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	written, err := b.writePages()
	if err != nil {
		return nil, err
	}
	b.flushCopies()

	for route := range expected {
		report.Pages = append(report.Pages, route)
	}
	sort.Strings(report.Pages)
	report.Written = written
	report.Assets = b.assets
	report.Removed = removed
	report.Posts = len(posts)
	report.Projects = len(projects)
	report.Galleries = len(galleries)
	report.Duration = a.now().Sub(started).Milliseconds()
	report.Warnings = warns.Count()

	if a.recorder != nil {
		if err := a.recorder.RecordBuild(ctx, report); err != nil {
			a.logger.Warn("failed to record build", zap.Error(err))
			report.Warnings++
		}
	}
	a.logger.Info("site built",
		zap.String("build_id", report.BuildID),
		zap.Int("files", len(report.Pages)),
		zap.Int("written", report.Written),
		zap.Int("removed", len(report.Removed)),
		zap.Int("warnings", report.Warnings),
		zap.Int64("duration_ms", report.Duration))
	return report, nil
}

// restoreFeedDates gives items without an author-supplied date the pubDate they
// were first published with, then re-sorts them.
func (a *Assembler) restoreFeedDates(log *zap.Logger, feedPath string, posts []*catalog.Item, galleries []*catalog.Gallery) {
	published, err := feed.ReadPublished(feedPath)
	if err != nil {
		log.Warn("ignoring previous feed", zap.String("path", feedPath), zap.Error(err))
		return
	}
	if len(published) == 0 {
		return
	}
	base := a.cfg.Site.BaseURL
	for _, p := range posts {
		if !inferred(p.DateSource) {
			continue
		}
		if t, ok := published[feed.URL(base, p.Route)]; ok {
			p.Published, p.DateSource = t, catalog.DateFromFeed
		}
	}
	for _, g := range galleries {
		if !inferred(g.DateSource) {
			continue
		}
		if t, ok := published[feed.URL(base, g.Route())]; ok {
			g.Published, g.DateSource = t, catalog.DateFromFeed
		}
	}
	catalog.SortItems(posts)
	catalog.SortGalleries(galleries)
}

func inferred(src catalog.DateSource) bool {
	return src == catalog.DateFromModTime || src == catalog.DateFromNow
}

func (b *build) page(title, route, class string) *pageData {
	return &pageData{
		Site:  b.a.cfg.Site,
		Title: title,
		Root:  rootFor(route),
		Class: class,
		Year:  b.a.now().Year(),
	}
}

func (b *build) addPage(route string, data []byte) {
	if _, dup := b.pages[route]; dup {
		b.log.Warn("two pages share an output path", zap.String("route", route))
	}
	b.pages[route] = data
}

func (b *build) renderPage(tmpl, route string, data *pageData) error {
	out, err := render(tmpl, data)
	if err != nil {
		return err
	}
	b.addPage(route, out)
	return nil
}

// addCopy queues src for copying to route. A later claim on the same route wins.
func (b *build) addCopy(src, route string) {
	if i, ok := b.claimed[route]; ok {
		if b.copies[i].src != src {
			b.log.Warn("output file claimed twice, last one wins",
				zap.String("route", route), zap.String("previous", b.copies[i].src), zap.String("source", src))
		}
		b.copies[i].src = src
		return
	}
	b.claimed[route] = len(b.copies)
	b.copies = append(b.copies, copyJob{src: src, route: route})
}

func (b *build) queueAssets(assets []markdown.Asset) {
	for _, as := range assets {
		rel, err := filepath.Rel(b.outDir, as.Destination)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			b.log.Warn("asset outside output dir", zap.String("path", as.Destination))
			continue
		}
		b.addCopy(as.Source, filepath.ToSlash(rel))
	}
}

func (b *build) renderAll(home, about *catalog.Item, posts, projects []*catalog.Item, galleries []*catalog.Gallery) error {
	cfg := b.a.cfg

	hd := b.page("", catalog.HomepageRoute, "home")
	if home != nil {
		hd.Body = template.HTML(home.HTML)
		b.queueAssets(home.Assets)
	}
	hd.Items = head(posts, cfg.Home.RecentPosts)
	hd.Galleries = headGalleries(galleries, cfg.Home.RecentGalleries)
	hd.Projects = projects
	if err := b.renderPage("home", catalog.HomepageRoute, hd); err != nil {
		return err
	}

	if about != nil {
		d := b.page(about.Title, about.Route, "about")
		d.Body = template.HTML(about.HTML)
		if err := b.renderPage("page", about.Route, d); err != nil {
			return err
		}
		b.queueAssets(about.Assets)
	} else {
		b.log.Debug("no about page", zap.String("file", catalog.AboutFile))
	}

	idx := b.page("Updates", PostsIndexRoute, "updates")
	idx.Items = posts
	if err := b.renderPage("updates", PostsIndexRoute, idx); err != nil {
		return err
	}
	for _, p := range posts {
		d := b.page(p.Title, p.Route, "post")
		d.Body = template.HTML(p.HTML)
		d.Item = p
		if err := b.renderPage("page", p.Route, d); err != nil {
			return err
		}
		b.queueAssets(p.Assets)
	}

	for _, p := range projects {
		d := b.page(p.Title, p.Route, "project")
		d.Body = template.HTML(p.HTML + b.additionalHTML(p))
		d.Item = p
		if err := b.renderPage("page", p.Route, d); err != nil {
			return err
		}
		b.queueAssets(p.Assets)
		b.queueDependencies(p)
	}

	pi := b.page("Photos", PhotosIndex, "photos")
	pi.Galleries = galleries
	if err := b.renderPage("photos", PhotosIndex, pi); err != nil {
		return err
	}
	for _, g := range galleries {
		if err := b.renderGallery(g); err != nil {
			return err
		}
	}
	return nil
}

func (b *build) renderGallery(g *catalog.Gallery) error {
	dir := catalog.PhotosRoute + "/" + g.Slug + "/"
	d := b.page(g.Name, g.Route(), "gallery")
	d.Gallery = g
	d.Photos = photoViews(g)
	if err := b.renderPage("gallery", g.Route(), d); err != nil {
		return err
	}
	for _, v := range d.Photos {
		route := dir + v.Page
		pd := b.page(g.Name, route, "photo")
		pd.Gallery = g
		pd.Photo = v
		if err := b.renderPage("photo", route, pd); err != nil {
			return err
		}
		b.addCopy(filepath.Join(g.Dir, v.Image), dir+v.Image)
	}
	return nil
}

// additionalHTML returns the project's extra fragment, or a comment when it cannot be read.
func (b *build) additionalHTML(p *catalog.Item) string {
	if p.AdditionalHTML == "" {
		return ""
	}
	data, err := os.ReadFile(filepath.Join(p.SourceDir, filepath.FromSlash(p.AdditionalHTML)))
	if err != nil {
		b.log.Warn("failed to read additional html", zap.String("slug", p.Slug), zap.String("path", p.AdditionalHTML), zap.Error(err))
		return "\n<!-- failed to include " + strings.ReplaceAll(p.AdditionalHTML, "--", "- -") + " -->"
	}
	return "\n" + strings.TrimRight(string(data), "\n")
}

// queueDependencies copies a project's declared files next to its page.
func (b *build) queueDependencies(p *catalog.Item) {
	dir := path.Dir(p.Route)
	for _, dep := range p.Dependencies {
		clean := path.Clean(strings.TrimPrefix(filepath.ToSlash(dep), "./"))
		if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") || path.IsAbs(clean) {
			b.log.Warn("dependency escapes the project dir", zap.String("slug", p.Slug), zap.String("dependency", dep))
			continue
		}
		b.addCopy(filepath.Join(p.SourceDir, filepath.FromSlash(clean)), dir+"/"+clean)
	}
}

func (b *build) addFeed(posts []*catalog.Item, galleries []*catalog.Gallery) error {
	var entries []feed.Entry
	for _, p := range posts {
		entries = append(entries, feed.Entry{
			Title: p.Title, Route: p.Route, Category: feed.CategoryBlog,
			Summary: p.Summary, Published: p.Published,
		})
	}
	for _, g := range galleries {
		entries = append(entries, feed.Entry{
			Title: g.Name, Route: g.Route(), Category: feed.CategoryGallery,
			Summary: g.Description, Published: g.Published,
		})
	}
	site := b.a.cfg.Site
	data, err := feed.Marshal(feed.Build(feed.Site{Title: site.Title, BaseURL: site.BaseURL, Description: site.Description}, entries))
	if err != nil {
		return err
	}
	b.addPage(FeedRoute, data)
	return nil
}

// writePages writes every rendered page whose bytes changed and returns how many it wrote.
func (b *build) writePages() (int, error) {
	routes := make([]string, 0, len(b.pages))
	for r := range b.pages {
		routes = append(routes, r)
	}
	sort.Strings(routes)
	written := 0
	for _, r := range routes {
		changed, err := writeIfChanged(filepath.Join(b.outDir, filepath.FromSlash(r)), b.pages[r])
		if err != nil {
			return written, err
		}
		if changed {
			written++
		}
	}
	return written, nil
}

// flushCopies copies queued files. Missing sources are logged and skipped.
func (b *build) flushCopies() {
	assetsPrefix := b.assetsDir + "/"
	for _, job := range b.copies {
		dst := filepath.Join(b.outDir, filepath.FromSlash(job.route))
		if _, err := copyIfChanged(job.src, dst); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				b.log.Warn("referenced file is missing", zap.String("path", job.src), zap.String("route", job.route))
			} else {
				b.log.Warn("failed to copy file", zap.String("path", job.src), zap.Error(err))
			}
			continue
		}
		if strings.HasPrefix(job.route, assetsPrefix) {
			b.assets++
		}
	}
}

func head(items []*catalog.Item, n int) []*catalog.Item {
	if n >= 0 && len(items) > n {
		return items[:n]
	}
	return items
}

func headGalleries(gs []*catalog.Gallery, n int) []*catalog.Gallery {
	if n >= 0 && len(gs) > n {
		return gs[:n]
	}
	return gs
}
