package main

import (
	"errors"
	"flag"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/hyperjump/folio/internal/config"
	"github.com/hyperjump/folio/internal/photoimport"
)

func TestParseInterspersed(t *testing.T) {
	tests := []struct {
		name       string
		args       []string
		positional []string
		quality    int
	}{
		{"flags after positionals", []string{"src", "trip", "-quality", "70"}, []string{"src", "trip"}, 70},
		{"flags first", []string{"-quality", "70", "src", "trip"}, []string{"src", "trip"}, 70},
		{"flag between positionals", []string{"src", "-quality", "70", "trip"}, []string{"src", "trip"}, 70},
		{"positionals only", []string{"src", "trip"}, []string{"src", "trip"}, 0},
		{"empty", []string{}, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := flag.NewFlagSet("import", flag.ContinueOnError)
			quality := fs.Int("quality", 0, "")
			got, err := parseInterspersed(fs, tt.args)
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(got, tt.positional) {
				t.Errorf("positional = %v, want %v", got, tt.positional)
			}
			if *quality != tt.quality {
				t.Errorf("quality = %d, want %d", *quality, tt.quality)
			}
		})
	}
}

func TestParseInterspersed_unknownFlag(t *testing.T) {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	fs.SetOutput(discard{})
	if _, err := parseInterspersed(fs, []string{"src", "-bogus"}); err == nil {
		t.Error("expected error for unknown flag")
	}
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func TestLoadConfig_missingFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := loadConfig(&commonFlags{config: filepath.Join(dir, "folio.yaml")})
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if want := filepath.Join(dir, "content"); cfg.Paths.ContentDir != want {
		t.Errorf("content_dir = %s, want %s", cfg.Paths.ContentDir, want)
	}
	if want := filepath.Join(dir, "dist"); cfg.Paths.OutputDir != want {
		t.Errorf("output_dir = %s, want %s", cfg.Paths.OutputDir, want)
	}
	if cfg.Debug {
		t.Error("debug should default to false")
	}
}

func TestLoadConfig_flagOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "folio.yaml")
	if err := os.WriteFile(path, []byte("paths:\n  content_dir: ./site\n  output_dir: ./public\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(&commonFlags{config: path})
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(dir, "site"); cfg.Paths.ContentDir != want {
		t.Errorf("content_dir = %s, want %s", cfg.Paths.ContentDir, want)
	}

	other := t.TempDir()
	cfg, err = loadConfig(&commonFlags{config: path, content: other, output: filepath.Join(other, "out"), debug: true})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Paths.ContentDir != other {
		t.Errorf("content_dir = %s, want %s", cfg.Paths.ContentDir, other)
	}
	if want := filepath.Join(other, "out"); cfg.Paths.OutputDir != want {
		t.Errorf("output_dir = %s, want %s", cfg.Paths.OutputDir, want)
	}
	if !cfg.Debug {
		t.Error("debug flag not applied")
	}
}

func TestLoadConfig_invalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "folio.yaml")
	if err := os.WriteFile(path, []byte("paths: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := loadConfig(&commonFlags{config: path}); err == nil {
		t.Error("expected parse error")
	}
}

func TestRunBuild(t *testing.T) {
	dir := t.TempDir()
	content := filepath.Join(dir, "content")
	if err := os.MkdirAll(filepath.Join(content, "blog"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(content, "homepage.md"), []byte("# Hello\n\nWelcome.\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(content, "blog", "first.md"), []byte("# First\n\nA post.\n"), 0644); err != nil {
		t.Fatal(err)
	}

	args := []string{"-config", filepath.Join(dir, "folio.yaml")}
	if err := runBuild(args); err != nil {
		t.Fatalf("runBuild: %v", err)
	}
	for _, route := range []string{"index.html", "updates/first.html", "feed.xml"} {
		if _, err := os.Stat(filepath.Join(dir, "dist", route)); err != nil {
			t.Errorf("missing %s: %v", route, err)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, ".folio", "builds.db")); err != nil {
		t.Errorf("build ledger not created: %v", err)
	}
	if err := runStatus(append(args, "-format", "json")); err != nil {
		t.Errorf("runStatus: %v", err)
	}
}

func TestRunBuild_badFormat(t *testing.T) {
	if err := runBuild([]string{"-config", filepath.Join(t.TempDir(), "folio.yaml"), "-format", "xml"}); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestRunImport(t *testing.T) {
	dir := t.TempDir()
	args := []string{"-config", filepath.Join(dir, "folio.yaml"), "-converter", "folio-no-such-converter"}

	err := runImport(append([]string{filepath.Join(dir, "missing"), "trip"}, args...))
	if !errors.Is(err, photoimport.ErrSourceMissing) {
		t.Errorf("err = %v, want ErrSourceMissing", err)
	}

	src := filepath.Join(dir, "camera")
	if err := os.MkdirAll(src, 0755); err != nil {
		t.Fatal(err)
	}
	if err := runImport(append([]string{src, "trip"}, args...)); err != nil {
		t.Errorf("empty source should succeed: %v", err)
	}

	if err := os.WriteFile(filepath.Join(src, "IMG_1.JPG"), []byte("jpeg"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := runImport(append([]string{src, "trip"}, args...)); err != nil {
		t.Fatalf("runImport: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "content", "photos", "trip", "IMG_1.JPG")); err != nil {
		t.Errorf("photo not imported: %v", err)
	}

	if err := runImport(append([]string{src}, args...)); err == nil {
		t.Error("expected usage error with one positional")
	}
}

func TestRunInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "folio.yaml")
	if err := runInit([]string{"-config", path}); err != nil {
		t.Fatalf("runInit: %v", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("written config does not load: %v", err)
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("port = %d, want 8000", cfg.Server.Port)
	}
	if err := runInit([]string{"-config", path}); err == nil {
		t.Error("expected error when config exists")
	}
	if err := runInit([]string{"-config", path, "-force"}); err != nil {
		t.Errorf("runInit -force: %v", err)
	}
}

func TestFirstPositive(t *testing.T) {
	if got := firstPositive(0, 80); got != 80 {
		t.Errorf("firstPositive(0, 80) = %d", got)
	}
	if got := firstPositive(70, 80); got != 70 {
		t.Errorf("firstPositive(70, 80) = %d", got)
	}
	if got := firstPositive(0, 0); got != 0 {
		t.Errorf("firstPositive(0, 0) = %d", got)
	}
}
