package catalog

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/hyperjump/folio/internal/sidecar"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ImageExtensions are the photo file types recognized in galleries.
var ImageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}

// Gallery is a directory of photos under photos/.
type Gallery struct {
	Slug        string
	Name        string
	Description string
	Dir         string
	// Images holds file names in lexicographic order.
	Images     []string
	Published  time.Time
	DateSource DateSource
}

// Count returns the number of photos.
func (g *Gallery) Count() int { return len(g.Images) }

// Preview returns the first photo in sorted order.
func (g *Gallery) Preview() string {
	if len(g.Images) == 0 {
		return ""
	}
	return g.Images[0]
}

// Route returns the gallery index route.
func (g *Gallery) Route() string {
	return PhotosRoute + "/" + g.Slug + "/index.html"
}

// IsImage reports whether name has a recognized image extension, ignoring case.
func IsImage(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range ImageExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// DisplayName turns a gallery slug into a title: "autumn-in-kyoto" -> "Autumn In Kyoto".
func DisplayName(slug string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(slug, "-", " "))
}

// LoadGalleries returns every photos/ subdirectory holding at least one image,
// newest first.
func (b *Builder) LoadGalleries() ([]*Gallery, error) {
	root := filepath.Join(b.contentDir, PhotosDir)
	entries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", root, err)
	}
	var galleries []*Gallery
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		g, err := b.loadGallery(filepath.Join(root, e.Name()), e.Name())
		if err != nil {
			b.logger.Warn("skipping gallery", zap.String("gallery", e.Name()), zap.Error(err))
			continue
		}
		if g == nil {
			b.logger.Debug("gallery has no images", zap.String("gallery", e.Name()))
			continue
		}
		galleries = append(galleries, g)
	}
	SortGalleries(galleries)
	return galleries, nil
}

func (b *Builder) loadGallery(dir, slug string) (*Gallery, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var images []string
	for _, e := range entries {
		if e.Type().IsRegular() && IsImage(e.Name()) {
			images = append(images, e.Name())
		}
	}
	if len(images) == 0 {
		return nil, nil
	}
	sort.Strings(images)
	g := &Gallery{
		Slug:   slug,
		Name:   DisplayName(slug),
		Dir:    dir,
		Images: images,
	}
	meta := b.readSidecar(filepath.Join(dir, gallerySidecar))
	g.Description = meta.String(keyDescription)
	if t, ok := meta.Time(sidecar.DateKey); ok {
		g.Published, g.DateSource = t, DateFromSidecar
		return g, nil
	}
	if info, err := os.Stat(dir); err == nil {
		g.Published, g.DateSource = info.ModTime(), DateFromModTime
		return g, nil
	}
	g.Published, g.DateSource = b.now(), DateFromNow
	return g, nil
}

// SortGalleries orders galleries newest first; equal dates fall back to slug order.
func SortGalleries(galleries []*Gallery) {
	sort.SliceStable(galleries, func(i, j int) bool {
		if !galleries[i].Published.Equal(galleries[j].Published) {
			return galleries[i].Published.After(galleries[j].Published)
		}
		return galleries[i].Slug < galleries[j].Slug
	})
}
