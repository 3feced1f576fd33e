package markdown

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"golang.org/x/tools/txtar"
	"pgregory.net/rapid"
)

var postRef = Ref{
	SourceDir:  filepath.Join("content", "blog"),
	OutputRoot: "dist",
	OutputPath: filepath.Join("dist", "updates", "post.html"),
}

func TestGolden(t *testing.T) {
	files, err := filepath.Glob("testdata/*.txt")
	if err != nil {
		t.Fatal(err)
	}
	if len(files) == 0 {
		t.Fatal("no golden files")
	}
	c := NewConverter()
	for _, file := range files {
		t.Run(strings.TrimSuffix(filepath.Base(file), ".txt"), func(t *testing.T) {
			a, err := txtar.ParseFile(file)
			if err != nil {
				t.Fatal(err)
			}
			for i := 0; i+2 <= len(a.Files); i += 2 {
				md, html := a.Files[i], a.Files[i+1]
				name := strings.TrimSuffix(md.Name, ".md")
				if name != strings.TrimSuffix(html.Name, ".html") {
					t.Fatalf("mismatched file pair: %s and %s", md.Name, html.Name)
				}
				t.Run(name, func(t *testing.T) {
					res, err := c.Convert(string(md.Data), postRef)
					if err != nil {
						t.Fatal(err)
					}
					if got, want := res.HTML+"\n", string(html.Data); got != want {
						t.Fatalf("input %q\nhave %q\nwant %q", md.Data, got, want)
					}
				})
			}
		})
	}
}

func TestConvert_imageQueuesCopy(t *testing.T) {
	c := NewConverter()
	res, err := c.Convert("![x](./pic.jpg)", postRef)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(res.HTML, `src="../assets/pic.jpg"`) {
		t.Errorf("html = %s", res.HTML)
	}
	if len(res.Assets) != 1 {
		t.Fatalf("assets = %+v", res.Assets)
	}
	want := Asset{
		Source:      filepath.Join("content", "blog", "pic.jpg"),
		Destination: filepath.Join("dist", "assets", "pic.jpg"),
		Link:        "../assets/pic.jpg",
	}
	if res.Assets[0] != want {
		t.Errorf("asset = %+v, want %+v", res.Assets[0], want)
	}
}

func TestConvert_imageFlattensSubdirectories(t *testing.T) {
	c := NewConverter(WithAssetsDir("media"))
	ref := Ref{SourceDir: "content", OutputRoot: "dist", OutputPath: filepath.Join("dist", "index.html")}
	res, err := c.Convert("![a](shots/2024/a.png)", ref)
	if err != nil {
		t.Fatal(err)
	}
	if res.HTML != `<img src="media/a.png" alt="a">` {
		t.Errorf("html = %s", res.HTML)
	}
	if got := res.Assets[0].Source; got != filepath.Join("content", "shots", "2024", "a.png") {
		t.Errorf("source = %s", got)
	}
	if got := res.Assets[0].Destination; got != filepath.Join("dist", "media", "a.png") {
		t.Errorf("destination = %s", got)
	}
}

func TestConvert_externalImageHasNoAsset(t *testing.T) {
	res, err := NewConverter().Convert("![a](https://example.com/a.png) ![b](/static/b.png)", postRef)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Assets) != 0 {
		t.Errorf("assets = %+v", res.Assets)
	}
}

func TestConvert_embedHTML(t *testing.T) {
	var read []string
	c := NewConverter(WithReadFile(func(name string) ([]byte, error) {
		read = append(read, name)
		return []byte("<div class=\"widget\">*live*</div>\n"), nil
	}))
	res, err := c.Convert("Intro\n\n![demo](./widget.html)\n\nOutro", postRef)
	if err != nil {
		t.Fatal(err)
	}
	want := "<p>Intro</p>\n\n<div class=\"widget\">*live*</div>\n\n<p>Outro</p>"
	if res.HTML != want {
		t.Errorf("html = %q, want %q", res.HTML, want)
	}
	if len(read) != 1 || read[0] != filepath.Join("content", "blog", "widget.html") {
		t.Errorf("read = %v", read)
	}
	if len(res.Assets) != 0 {
		t.Errorf("embed must not queue a copy: %+v", res.Assets)
	}
}

func TestConvert_embedFailureLeavesComment(t *testing.T) {
	c := NewConverter(WithReadFile(func(string) ([]byte, error) {
		return nil, errors.New("no such file")
	}))
	res, err := c.Convert("![demo](./gone.html)", postRef)
	if err != nil {
		t.Fatal(err)
	}
	if res.HTML != "<!-- failed to embed ./gone.html: no such file -->" {
		t.Errorf("html = %q", res.HTML)
	}
}

func TestConvert_codeIsProtected(t *testing.T) {
	res, err := NewConverter().Convert("```\n**not bold**\n- not a list\n> not a quote\n```", postRef)
	if err != nil {
		t.Fatal(err)
	}
	want := "<pre><code>**not bold**\n- not a list\n> not a quote</code></pre>"
	if res.HTML != want {
		t.Errorf("html = %q, want %q", res.HTML, want)
	}
}

func TestConvert_codeIsVerbatim(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"fenced", "```html\n<b>hi</b> & co\n```", `<pre><code class="language-html"><b>hi</b> & co</code></pre>`},
		{"inline", "Use `a<b` here", "<p>Use <code>a<b</code> here</p>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := NewConverter().Convert(tt.in, postRef)
			if err != nil {
				t.Fatal(err)
			}
			if res.HTML != tt.want {
				t.Errorf("html = %q, want %q", res.HTML, tt.want)
			}
		})
	}
}

func TestConvert_unterminatedRunsClose(t *testing.T) {
	res, err := NewConverter().Convert("text\n> q1\n> q2\n- a\n- b", postRef)
	if err != nil {
		t.Fatal(err)
	}
	want := "<p>text</p>\n<blockquote>q1<br>q2</blockquote>\n<ul>\n<li>a</li>\n<li>b</li>\n</ul>"
	if res.HTML != want {
		t.Errorf("html = %q, want %q", res.HTML, want)
	}
}

func TestConvert_requiresOutputPath(t *testing.T) {
	if _, err := NewConverter().Convert("x", Ref{}); err == nil {
		t.Error("expected error for empty output path")
	}
}

func TestConvert_concurrentCallsAgree(t *testing.T) {
	c := NewConverter()
	text := "# T\n\n`a` `a` `a`\n\n```\nsame\n```\n\n```\nsame\n```\n"
	first, err := c.Convert(text, postRef)
	if err != nil {
		t.Fatal(err)
	}
	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := c.Convert(text, postRef)
			if err != nil {
				errs <- err
				return
			}
			if res.HTML != first.HTML {
				errs <- fmt.Errorf("got %q, want %q", res.HTML, first.HTML)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestPageDepth(t *testing.T) {
	tests := []struct {
		root, page string
		want       int
	}{
		{"dist", "dist/index.html", 0},
		{"dist", "dist/updates/post.html", 1},
		{"dist", "dist/photos/autumn/a.html", 2},
		{"/srv/site", "/srv/site/projects/x.html", 1},
		{"", "dist/updates/post.html", 1},
		{"other", "dist/photos/autumn/index.html", 2},
	}
	for _, tt := range tests {
		if got := PageDepth(filepath.FromSlash(tt.root), filepath.FromSlash(tt.page)); got != tt.want {
			t.Errorf("PageDepth(%q, %q) = %d, want %d", tt.root, tt.page, got, tt.want)
		}
	}
}

func TestTitle(t *testing.T) {
	tests := []struct {
		text, want string
	}{
		{"# Hello World\n\nbody", "Hello World"},
		{"\n\n#  Spaced  \n", "Spaced"},
		{"## Not level one\n", "fallback"},
		{"intro\n# Later heading", "fallback"},
		{"", "fallback"},
	}
	for _, tt := range tests {
		if got := Title(tt.text, "fallback"); got != tt.want {
			t.Errorf("Title(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

var fragments = []string{
	"# ", "## ", "- ", "1. ", "> ", "*", "**", "_", "__", "`", "```\n", "```go\n",
	"[a](https://a.test/x_y)", "![c](https://img.test/c.png)", "![p](./p_1.jpg)",
	"![w](./w.html)", "word", "other", " ", "\n", "\n\n", "<", "&",
}

func TestConvert_idempotentProperty(t *testing.T) {
	c := NewConverter(WithReadFile(func(string) ([]byte, error) {
		return []byte("<section>w</section>"), nil
	}))
	rapid.Check(t, func(t *rapid.T) {
		parts := rapid.SliceOf(rapid.SampledFrom(fragments)).Draw(t, "parts")
		text := strings.Join(parts, "")
		a, err := c.Convert(text, postRef)
		if err != nil {
			t.Fatal(err)
		}
		b, err := c.Convert(text, postRef)
		if err != nil {
			t.Fatal(err)
		}
		if a.HTML != b.HTML {
			t.Fatalf("not idempotent for %q:\n%q\n%q", text, a.HTML, b.HTML)
		}
		if strings.ContainsAny(a.HTML, "\x02\x03") {
			t.Fatalf("placeholder leaked for %q: %q", text, a.HTML)
		}
	})
}

func TestConvert_listGroupingProperty(t *testing.T) {
	c := NewConverter()
	rapid.Check(t, func(t *rapid.T) {
		items := rapid.SliceOfN(rapid.StringMatching(`[a-z][a-z0-9]{0,8}`), 1, 20).Draw(t, "items")
		lines := make([]string, len(items))
		for i, it := range items {
			lines[i] = "- " + it
		}
		res, err := c.Convert(strings.Join(lines, "\n"), postRef)
		if err != nil {
			t.Fatal(err)
		}
		if n := strings.Count(res.HTML, "<ul>"); n != 1 {
			t.Fatalf("want one <ul>, got %d in %q", n, res.HTML)
		}
		if n := strings.Count(res.HTML, "<li>"); n != len(items) {
			t.Fatalf("want %d <li>, got %d in %q", len(items), n, res.HTML)
		}
		if strings.Contains(res.HTML, "<ol>") || strings.Contains(res.HTML, "<p>") {
			t.Fatalf("unexpected wrapper in %q", res.HTML)
		}
	})
}
