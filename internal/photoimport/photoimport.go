// Package photoimport copies photographs into a gallery of the content tree,
// resizing them with an external tool when one is available.
package photoimport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/hyperjump/folio/internal/catalog"
	"github.com/hyperjump/folio/internal/models"
	"go.uber.org/zap"
)

// ErrSourceMissing is returned when the source directory does not exist.
var ErrSourceMissing = errors.New("source directory does not exist")

// Options describes one import.
type Options struct {
	SourceDir  string
	ContentDir string
	Gallery    string
	MaxWidth   int
	MaxHeight  int
	Quality    int
}

// Importer imports photos one at a time.
type Importer struct {
	resizer Resizer
	logger  *zap.Logger
}

// Option configures an Importer.
type Option func(*Importer)

// WithResizer sets the resizer. Without one, photos are copied unresized.
func WithResizer(r Resizer) Option {
	return func(im *Importer) { im.resizer = r }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(im *Importer) { im.logger = l }
}

// New returns an Importer.
func New(opts ...Option) *Importer {
	im := &Importer{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(im)
	}
	if im.logger == nil {
		im.logger = zap.NewNop()
	}
	return im
}

// IsJPEG reports whether name ends in .jpg or .jpeg, ignoring case.
func IsJPEG(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return true
	}
	return false
}

func validGallery(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid gallery name %q", name)
	}
	return nil
}

// Import copies every JPEG directly inside opts.SourceDir into
// <ContentDir>/photos/<Gallery>. A file that fails is recorded in the report and
// the rest continue. Finding no JPEGs is not an error.
func (im *Importer) Import(ctx context.Context, opts Options) (*models.ImportReport, error) {
	if err := validGallery(opts.Gallery); err != nil {
		return nil, err
	}
	info, err := os.Stat(opts.SourceDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSourceMissing, opts.SourceDir)
		}
		return nil, fmt.Errorf("stat source: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source %s is not a directory", opts.SourceDir)
	}

	entries, err := os.ReadDir(opts.SourceDir)
	if err != nil {
		return nil, fmt.Errorf("read source: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && IsJPEG(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	dest := filepath.Join(opts.ContentDir, catalog.PhotosDir, opts.Gallery)
	report := &models.ImportReport{Gallery: opts.Gallery, Destination: dest}
	if im.resizer != nil {
		report.Resizer = im.resizer.Name()
	}
	if len(names) == 0 {
		im.logger.Info("no photos to import", zap.String("source", opts.SourceDir))
		return report, nil
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return nil, fmt.Errorf("create gallery: %w", err)
	}

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		f := im.importOne(ctx, filepath.Join(opts.SourceDir, name), filepath.Join(dest, name), opts)
		f.Name = name
		report.Files = append(report.Files, f)
		if f.Error != "" {
			report.Failed++
			continue
		}
		report.Imported++
		im.logger.Debug("imported photo",
			zap.String("name", name),
			zap.String("from", humanize.Bytes(uint64(f.SourceBytes))),
			zap.String("to", humanize.Bytes(uint64(f.DestBytes))))
	}
	return report, nil
}

func (im *Importer) importOne(ctx context.Context, src, dst string, opts Options) *models.ImportedFile {
	f := &models.ImportedFile{}
	fail := func(err error) *models.ImportedFile {
		im.logger.Error("failed to import photo", zap.String("path", src), zap.Error(err))
		f.Error = err.Error()
		return f
	}
	si, err := os.Stat(src)
	if err != nil {
		return fail(err)
	}
	f.SourceBytes = si.Size()

	if im.resizer != nil {
		if err := im.resizer.Resize(ctx, src, dst, opts.MaxWidth, opts.MaxHeight, opts.Quality); err != nil {
			return fail(err)
		}
		f.Resized = true
	} else if err := copyFile(src, dst); err != nil {
		return fail(err)
	}

	di, err := os.Stat(dst)
	if err != nil {
		return fail(err)
	}
	f.DestBytes = di.Size()
	return f
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
