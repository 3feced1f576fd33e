// Package markdown converts the site's markdown dialect into HTML fragments.
//
// Conversion is a sequence of text rewrites over the whole document. Anything that
// later rewrites must not touch (fenced code, inline code, embedded HTML fragments,
// generated tags carrying URLs) is first swapped for an opaque placeholder token and
// put back verbatim as the last step. Local images are not copied here: they are
// reported in Result.Assets so the caller can copy them in one pass after rendering.
package markdown

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultAssetsDir is the output folder, relative to the output root, that receives
// every image referenced from markdown.
const DefaultAssetsDir = "assets"

// Ref locates a document: SourceDir resolves relative image and fragment references,
// OutputPath is where the rendered page will be written and OutputRoot is the root of
// the output tree. Asset links are computed relative to OutputPath.
type Ref struct {
	SourceDir  string
	OutputRoot string
	OutputPath string
}

// Asset is a pending copy of a referenced local file into the output tree.
type Asset struct {
	Source      string // file inside the content tree
	Destination string // file inside the output tree
	Link        string // src attribute emitted in the page
}

// Result is the outcome of converting one document.
type Result struct {
	HTML   string
	Assets []Asset
}

// Converter renders markdown. It keeps no per-document state, so one Converter may be
// shared by many goroutines.
type Converter struct {
	assetsDir string
	readFile  func(name string) ([]byte, error)
	logger    *zap.Logger
	calls     atomic.Uint64
}

// Option configures a Converter.
type Option func(*Converter)

// WithAssetsDir sets the output-relative folder for markdown images.
func WithAssetsDir(dir string) Option {
	return func(c *Converter) { c.assetsDir = strings.Trim(filepath.ToSlash(dir), "/") }
}

// WithLogger sets the logger used for embed failures.
func WithLogger(l *zap.Logger) Option {
	return func(c *Converter) { c.logger = l }
}

// WithReadFile replaces the function used to read embedded HTML fragments.
func WithReadFile(fn func(name string) ([]byte, error)) Option {
	return func(c *Converter) { c.readFile = fn }
}

// NewConverter returns a Converter with the given options applied.
func NewConverter(opts ...Option) *Converter {
	c := &Converter{
		assetsDir: DefaultAssetsDir,
		readFile:  os.ReadFile,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c
}

// AssetsDir returns the output-relative folder receiving markdown images.
func (c *Converter) AssetsDir() string {
	return c.assetsDir
}

// Token kinds. Block tokens stand for a whole block and lose any paragraph wrapping;
// media tokens are images, which lose it only when alone on their line; inline tokens
// stay where they are.
const (
	kindBlock  = 'B'
	kindMedia  = 'M'
	kindInline = 'I'
)

// Tokens look like \x02B12x3x<32 hex>\x03. None of their bytes are markdown syntax.
var (
	blockTokenPattern = `\x02[BM][0-9]+x[0-9]+x[0-9a-f]+\x03`
	unwrapBlockRe     = regexp.MustCompile(`(?m)^<p>(` + blockTokenPattern + `)</p>$`)
	fenceRe           = regexp.MustCompile("(?ms)^```[ \\t]*([^\\n`]*)\\n(.*?)^```[ \\t]*$")
	inlineCodeRe      = regexp.MustCompile("`([^`\\n]+)`")
	trailingWSRe      = regexp.MustCompile(`(?m)[ \t]+$`)
	embedRe           = regexp.MustCompile(`!\[([^\]\n]*)\]\(\./([^)\s]+\.html)\)`)
	headingRe         = regexp.MustCompile(`(?m)^(#{1,4}) +(.*?)[ \t]*$`)
	imageRe           = regexp.MustCompile(`!\[([^\]\n]*)\]\(([^)\s]+)\)`)
	linkRe            = regexp.MustCompile(`\[([^\]\n]+)\]\(([^)\s]+)\)`)
	boldStarRe        = regexp.MustCompile(`\*\*([^*\n]+)\*\*`)
	boldUnderRe       = regexp.MustCompile(`__([^_\n]+)__`)
	italicStarRe      = regexp.MustCompile(`\*([^*\n]+)\*`)
	italicUnderRe     = regexp.MustCompile(`(?m)(^|[^\pL\pN_])_([^_\n]+)_([^\pL\pN_]|$)`)
	quoteLineRe       = regexp.MustCompile(`(?m)^>[ \t]?(.*)$`)
	bulletItemRe      = regexp.MustCompile(`(?m)^[ \t]*[-] +(.*)$`)
	numberedItemRe    = regexp.MustCompile(`(?m)^[ \t]*[0-9]+\. +(.*)$`)
	paragraphRe       = regexp.MustCompile(`(?m)^[ \t]*(\S.*?)[ \t]*$`)
	unwrapHeadRe      = regexp.MustCompile(`(?m)^<p>(<h[1-4]>.*</h[1-4]>)</p>$`)
	unwrapMarkRe      = regexp.MustCompile(`(?m)^<p>(<(x-quote|x-li-ul|x-li-ol)>.*</(x-quote|x-li-ul|x-li-ol)>)</p>$`)
	emptyParaRe       = regexp.MustCompile(`<p>[ \t]*</p>`)
	blankLinesRe      = regexp.MustCompile(`\n{3,}`)
)

// Marker pseudo-elements exist only between tagging and merging.
const (
	quoteOpen  = "<x-quote>"
	quoteClose = "</x-quote>"
	ulOpen     = "<x-li-ul>"
	ulClose    = "</x-li-ul>"
	olOpen     = "<x-li-ol>"
	olClose    = "</x-li-ol>"
)

// state is owned by a single Convert call.
type state struct {
	c         *Converter
	ref       Ref
	nonce     string
	seq       int
	protected map[string]string
	assets    []Asset
}

func (st *state) protect(kind byte, html string) string {
	st.seq++
	tok := "\x02" + string(kind) + strconv.Itoa(st.seq) + "x" + st.nonce + "\x03"
	st.protected[tok] = html
	return tok
}

// expand restores any tokens inside s. It is used when protected text ends up
// inside another protected value, for example inline code in an image's alt text.
func (st *state) expand(s string) string {
	if !strings.Contains(s, "\x02") {
		return s
	}
	for tok, html := range st.protected {
		s = strings.ReplaceAll(s, tok, html)
	}
	return s
}

// Convert renders text. The error is non-nil only when ref cannot be interpreted;
// unreadable fragments are reported inside the HTML and in the log.
func (c *Converter) Convert(text string, ref Ref) (*Result, error) {
	if ref.OutputPath == "" {
		return nil, fmt.Errorf("markdown: output path is required")
	}
	st := &state{
		c:         c,
		ref:       ref,
		nonce:     strconv.FormatUint(c.calls.Add(1), 10) + "x" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		protected: make(map[string]string),
	}
	s := strings.ReplaceAll(text, "\r\n", "\n")

	s = st.extractFences(s)
	s = st.extractInlineCode(s)
	s = st.extractEmbeds(s)
	s = trailingWSRe.ReplaceAllString(s, "")
	s = headingRe.ReplaceAllStringFunc(s, func(m string) string {
		sub := headingRe.FindStringSubmatch(m)
		n := strconv.Itoa(len(sub[1]))
		return "<h" + n + ">" + sub[2] + "</h" + n + ">"
	})
	s = st.replaceImages(s)
	s = st.replaceLinks(s)
	s = emphasize(s)
	s = quoteLineRe.ReplaceAllString(s, quoteOpen+"${1}"+quoteClose)
	s = bulletItemRe.ReplaceAllString(s, ulOpen+"${1}"+ulClose)
	s = numberedItemRe.ReplaceAllString(s, olOpen+"${1}"+olClose)
	s = paragraphRe.ReplaceAllString(s, "<p>${1}</p>")
	s = unwrapHeadRe.ReplaceAllString(s, "${1}")
	s = unwrapBlockRe.ReplaceAllString(s, "${1}")
	s = unwrapMarkRe.ReplaceAllString(s, "${1}")
	s = mergeQuotes(s)
	s = mergeLists(s)
	s = emptyParaRe.ReplaceAllString(s, "")
	s = st.restore(s)
	s = blankLinesRe.ReplaceAllString(strings.TrimSpace(s), "\n\n")

	return &Result{HTML: s, Assets: st.assets}, nil
}

func (st *state) restore(s string) string {
	if len(st.protected) == 0 {
		return s
	}
	pairs := make([]string, 0, 2*len(st.protected))
	for tok, html := range st.protected {
		pairs = append(pairs, tok, html)
	}
	return strings.NewReplacer(pairs...).Replace(s)
}

func (st *state) extractFences(s string) string {
	return fenceRe.ReplaceAllStringFunc(s, func(m string) string {
		sub := fenceRe.FindStringSubmatch(m)
		info := strings.TrimSpace(sub[1])
		body := strings.TrimSuffix(sub[2], "\n")
		open := "<pre><code>"
		if info != "" {
			lang := strings.Fields(info)[0]
			open = `<pre><code class="language-` + escapeAttr(lang) + `">`
		}
		return st.protect(kindBlock, open+body+"</code></pre>")
	})
}

func (st *state) extractInlineCode(s string) string {
	return inlineCodeRe.ReplaceAllStringFunc(s, func(m string) string {
		code := m[1 : len(m)-1]
		return st.protect(kindInline, "<code>"+code+"</code>")
	})
}

func (st *state) extractEmbeds(s string) string {
	return embedRe.ReplaceAllStringFunc(s, func(m string) string {
		name := embedRe.FindStringSubmatch(m)[2]
		full := filepath.Join(st.ref.SourceDir, filepath.FromSlash(name))
		data, err := st.c.readFile(full)
		if err != nil {
			st.c.logger.Warn("embedded html unavailable",
				zap.String("path", full), zap.String("page", st.ref.OutputPath), zap.Error(err))
			return st.protect(kindBlock, fmt.Sprintf("<!-- failed to embed ./%s: %s -->", name, commentSafe(err.Error())))
		}
		return st.protect(kindBlock, strings.TrimRight(string(data), "\n"))
	})
}

func (st *state) replaceImages(s string) string {
	return imageRe.ReplaceAllStringFunc(s, func(m string) string {
		sub := imageRe.FindStringSubmatch(m)
		alt, src := st.expand(sub[1]), st.expand(sub[2])
		if isExternal(src) {
			return st.protect(kindMedia, `<img src="`+escapeAttr(src)+`" alt="`+escapeAttr(alt)+`">`)
		}
		rel := strings.TrimPrefix(src, "./")
		base := path.Base(rel)
		link := st.assetLink(base)
		st.assets = append(st.assets, Asset{
			Source:      filepath.Join(st.ref.SourceDir, filepath.FromSlash(rel)),
			Destination: filepath.Join(st.ref.OutputRoot, filepath.FromSlash(st.c.assetsDir), base),
			Link:        link,
		})
		return st.protect(kindMedia, `<img src="`+escapeAttr(link)+`" alt="`+escapeAttr(alt)+`">`)
	})
}

// assetLink returns the path from the page at ref.OutputPath to name in the shared
// assets folder: one "../" per directory between the page and the output root.
func (st *state) assetLink(name string) string {
	return strings.Repeat("../", PageDepth(st.ref.OutputRoot, st.ref.OutputPath)) + st.c.assetsDir + "/" + name
}

// PageDepth returns the number of directories between the output root and the page
// at outputPath. When outputPath is not inside root, the first path segment is taken
// to be the root.
func PageDepth(root, outputPath string) int {
	if root != "" {
		if rel, err := filepath.Rel(root, outputPath); err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return strings.Count(filepath.ToSlash(rel), "/")
		}
	}
	segments := strings.Split(strings.Trim(filepath.ToSlash(outputPath), "/"), "/")
	if d := len(segments) - 2; d > 0 {
		return d
	}
	return 0
}

func (st *state) replaceLinks(s string) string {
	return linkRe.ReplaceAllStringFunc(s, func(m string) string {
		sub := linkRe.FindStringSubmatch(m)
		href := st.expand(sub[2])
		open := st.protect(kindInline, `<a href="`+escapeAttr(href)+`" target="_blank" rel="noopener noreferrer">`)
		return open + sub[1] + "</a>"
	})
}

func emphasize(s string) string {
	s = boldStarRe.ReplaceAllString(s, "<strong>${1}</strong>")
	s = boldUnderRe.ReplaceAllString(s, "<strong>${1}</strong>")
	s = italicStarRe.ReplaceAllString(s, "<em>${1}</em>")
	// A delimiter consumed by one match cannot open the next; a second pass catches
	// runs like "_a_ _b_".
	for i := 0; i < 2; i++ {
		s = italicUnderRe.ReplaceAllString(s, "${1}<em>${2}</em>${3}")
	}
	return s
}

func isExternal(src string) bool {
	return strings.Contains(src, "://") ||
		strings.HasPrefix(src, "//") ||
		strings.HasPrefix(src, "/") ||
		strings.HasPrefix(src, "data:")
}

var (
	attrEscaper    = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
	commentEscaper = strings.NewReplacer("--", "- -")
)

func escapeAttr(s string) string  { return attrEscaper.Replace(s) }
func commentSafe(s string) string { return commentEscaper.Replace(s) }
