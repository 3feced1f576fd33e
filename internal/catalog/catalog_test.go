package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/folio/internal/markdown"
	"github.com/hyperjump/folio/pkg/utils"
	"go.uber.org/zap"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func setModTime(t *testing.T, path string, mt time.Time) {
	t.Helper()
	if err := os.Chtimes(path, mt, mt); err != nil {
		t.Fatal(err)
	}
}

func newBuilder(t *testing.T, content string, opts ...BuilderOption) *Builder {
	t.Helper()
	return NewBuilder(content, filepath.Join(t.TempDir(), "dist"), markdown.NewConverter(), opts...)
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestLoadPosts_dateResolutionAndOrder(t *testing.T) {
	content := t.TempDir()
	blog := filepath.Join(content, "blog")
	writeFile(t, filepath.Join(blog, "explicit.md"), "# Explicit\n\nBody.\n")
	writeFile(t, filepath.Join(blog, "explicit.meta.yaml"), "published_at: 2024-03-01\n")
	writeFile(t, filepath.Join(blog, "marker.md"), "# Marker\n\n_Last updated 2024-05-10_\n")
	writeFile(t, filepath.Join(blog, "mtime.md"), "No heading here.\n")
	setModTime(t, filepath.Join(blog, "mtime.md"), date(2023, 1, 2))
	writeFile(t, filepath.Join(blog, "notes.txt"), "ignored")

	items, err := newBuilder(t, content).LoadPosts()
	if err != nil {
		t.Fatalf("LoadPosts: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("len = %d, want 3", len(items))
	}
	want := []struct {
		slug   string
		date   time.Time
		source DateSource
	}{
		{"marker", date(2024, 5, 10), DateFromMarker},
		{"explicit", date(2024, 3, 1), DateFromSidecar},
		{"mtime", date(2023, 1, 2), DateFromModTime},
	}
	for i, w := range want {
		it := items[i]
		if it.Slug != w.slug {
			t.Errorf("items[%d].Slug = %q, want %q", i, it.Slug, w.slug)
			continue
		}
		if !it.Published.Equal(w.date) {
			t.Errorf("%s: Published = %v, want %v", w.slug, it.Published, w.date)
		}
		if it.DateSource != w.source {
			t.Errorf("%s: DateSource = %v, want %v", w.slug, it.DateSource, w.source)
		}
	}
	if items[2].Title != "mtime" {
		t.Errorf("fallback title = %q, want slug", items[2].Title)
	}
	if items[1].Route != "updates/explicit.html" {
		t.Errorf("Route = %q", items[1].Route)
	}
	if !items[1].Explicit() || items[0].Explicit() {
		t.Error("Explicit should only hold for sidecar dates")
	}
}

func TestLoadPosts_missingDir(t *testing.T) {
	items, err := newBuilder(t, t.TempDir()).LoadPosts()
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 0 {
		t.Fatalf("len = %d, want 0", len(items))
	}
}

func TestLoadPosts_malformedSidecarWarns(t *testing.T) {
	content := t.TempDir()
	blog := filepath.Join(content, "blog")
	writeFile(t, filepath.Join(blog, "post.md"), "# Post\n")
	writeFile(t, filepath.Join(blog, "post.meta.yaml"), "published_at: not a date at all\n")
	setModTime(t, filepath.Join(blog, "post.md"), date(2022, 6, 1))

	var warns utils.WarnCounter
	items, err := newBuilder(t, content, WithLogger(warns.Wrap(zap.NewNop()))).LoadPosts()
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 {
		t.Fatalf("len = %d, want 1", len(items))
	}
	if items[0].DateSource != DateFromModTime {
		t.Errorf("DateSource = %v, want mtime", items[0].DateSource)
	}
	if warns.Count() != 1 {
		t.Errorf("warnings = %d, want 1", warns.Count())
	}
}

func TestLoadProjects_malformedSidecarWarnsOnce(t *testing.T) {
	content := t.TempDir()
	projects := filepath.Join(content, "projects")
	writeFile(t, filepath.Join(projects, "tool.md"), "# Tool\n")
	writeFile(t, filepath.Join(projects, "tool.meta.yaml"), "dependencies:\nno colon here\n")

	var warns utils.WarnCounter
	items, err := newBuilder(t, content, WithLogger(warns.Wrap(zap.NewNop()))).LoadProjects()
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 {
		t.Fatalf("len = %d, want 1", len(items))
	}
	if items[0].Dependencies != nil || items[0].AdditionalHTML != "" {
		t.Errorf("malformed metadata applied: %+v", items[0])
	}
	if warns.Count() != 1 {
		t.Errorf("warnings = %d, want 1", warns.Count())
	}
}

func TestLoadPosts_imageAssets(t *testing.T) {
	content := t.TempDir()
	writeFile(t, filepath.Join(content, "blog", "trip.md"), "# Trip\n\n![view](./view.jpg)\n")
	out := filepath.Join(t.TempDir(), "dist")
	items, err := NewBuilder(content, out, markdown.NewConverter()).LoadPosts()
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || len(items[0].Assets) != 1 {
		t.Fatalf("unexpected items: %+v", items)
	}
	a := items[0].Assets[0]
	if a.Source != filepath.Join(content, "blog", "view.jpg") {
		t.Errorf("Source = %q", a.Source)
	}
	if a.Destination != filepath.Join(out, "assets", "view.jpg") {
		t.Errorf("Destination = %q", a.Destination)
	}
	if a.Link != "../assets/view.jpg" {
		t.Errorf("Link = %q", a.Link)
	}
}

func TestLoadProjects_metadata(t *testing.T) {
	content := t.TempDir()
	projects := filepath.Join(content, "projects")
	writeFile(t, filepath.Join(projects, "tool.md"), "# Tool\n\nA tool.\n")
	writeFile(t, filepath.Join(projects, "tool.meta.yaml"), strings.Join([]string{
		"published_at: 2024-01-15",
		"dependencies:",
		"- tool/app.js",
		"- tool/data.json",
		"additional_html: tool/demo.html",
		"",
	}, "\n"))

	items, err := newBuilder(t, content).LoadProjects()
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 {
		t.Fatalf("len = %d, want 1", len(items))
	}
	it := items[0]
	if it.Route != "projects/tool.html" {
		t.Errorf("Route = %q", it.Route)
	}
	if got := strings.Join(it.Dependencies, ","); got != "tool/app.js,tool/data.json" {
		t.Errorf("Dependencies = %q", got)
	}
	if it.AdditionalHTML != "tool/demo.html" {
		t.Errorf("AdditionalHTML = %q", it.AdditionalHTML)
	}
	if it.Summary != "A tool." {
		t.Errorf("Summary = %q", it.Summary)
	}
}

func TestLoadPage(t *testing.T) {
	content := t.TempDir()
	writeFile(t, filepath.Join(content, "about.md"), "# About\n\nHello.\n")
	b := newBuilder(t, content)

	page, err := b.LoadPage(AboutFile, AboutRoute)
	if err != nil {
		t.Fatal(err)
	}
	if page == nil || page.Title != "About" || page.Route != AboutRoute {
		t.Fatalf("page = %+v", page)
	}

	missing, err := b.LoadPage(HomepageFile, HomepageRoute)
	if err != nil {
		t.Fatal(err)
	}
	if missing != nil {
		t.Fatalf("missing page = %+v, want nil", missing)
	}
}

func TestLastUpdated(t *testing.T) {
	tests := []struct {
		name string
		body string
		want time.Time
		ok   bool
	}{
		{"iso", "text\n_Last updated 2024-02-03_\n", date(2024, 2, 3), true},
		{"written", "_Last updated March 1, 2024_", date(2024, 3, 1), true},
		{"absent", "nothing here", time.Time{}, false},
		{"garbage", "_Last updated whenever_", time.Time{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := LastUpdated(tt.body)
			if ok != tt.ok || !got.Equal(tt.want) {
				t.Errorf("LastUpdated = %v, %v; want %v, %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestSortItems_tieBreaksBySlug(t *testing.T) {
	d := date(2024, 1, 1)
	items := []*Item{{Slug: "b", Published: d}, {Slug: "a", Published: d}, {Slug: "c", Published: d.Add(time.Hour)}}
	SortItems(items)
	var got []string
	for _, it := range items {
		got = append(got, it.Slug)
	}
	if strings.Join(got, ",") != "c,a,b" {
		t.Errorf("order = %v", got)
	}
}

func TestSummary(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{"first paragraph", "<h1>T</h1>\n<p>One <em>two</em>\nthree.</p>\n<p>Next.</p>", "One two three."},
		{"no paragraph", "<h1>Only</h1>", ""},
		{"long", "<p>" + strings.Repeat("a", 250) + "</p>", strings.Repeat("a", SummaryLength) + "..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Summary(tt.html); got != tt.want {
				t.Errorf("Summary = %q, want %q", got, tt.want)
			}
		})
	}
}
