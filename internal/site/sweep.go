package site

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// Inventory is the state of an output tree: slash-separated paths relative to its root.
type Inventory struct {
	Files []string
	Dirs  []string
}

// SweepPlan lists what to delete, files first, then directories deepest first.
type SweepPlan struct {
	Files []string
	Dirs  []string
}

// Empty reports whether the plan deletes nothing.
func (p SweepPlan) Empty() bool {
	return len(p.Files) == 0 && len(p.Dirs) == 0
}

// PlanSweep decides which existing outputs to delete so that only expected files
// remain. Paths equal to or beneath an exempt entry are never touched. A directory
// is removed when nothing it contains survives and no expected file lives under it.
func PlanSweep(existing Inventory, expected map[string]bool, exempt []string) SweepPlan {
	isExempt := func(p string) bool {
		for _, e := range exempt {
			e = strings.Trim(e, "/")
			if e != "" && (p == e || strings.HasPrefix(p, e+"/")) {
				return true
			}
		}
		return false
	}

	var plan SweepPlan
	occupied := make(map[string]bool)
	markParents := func(p string) {
		for dir := path.Dir(p); dir != "." && dir != "/"; dir = path.Dir(dir) {
			occupied[dir] = true
		}
	}
	for p := range expected {
		markParents(p)
	}
	for _, f := range existing.Files {
		if expected[f] || isExempt(f) {
			markParents(f)
			continue
		}
		plan.Files = append(plan.Files, f)
	}
	for _, d := range existing.Dirs {
		if isExempt(d) {
			markParents(d)
		}
	}
	for _, d := range existing.Dirs {
		if occupied[d] || isExempt(d) {
			continue
		}
		plan.Dirs = append(plan.Dirs, d)
	}

	sort.Strings(plan.Files)
	sort.Slice(plan.Dirs, func(i, j int) bool {
		di, dj := strings.Count(plan.Dirs[i], "/"), strings.Count(plan.Dirs[j], "/")
		if di != dj {
			return di > dj
		}
		return plan.Dirs[i] < plan.Dirs[j]
	})
	return plan
}

// ScanOutput walks root and returns its files and directories. A missing root
// is an empty inventory.
func ScanOutput(root string) (Inventory, error) {
	var inv Inventory
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == root && errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return err
		}
		if p == root {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			inv.Dirs = append(inv.Dirs, rel)
		} else {
			inv.Files = append(inv.Files, rel)
		}
		return nil
	})
	if err != nil {
		return Inventory{}, fmt.Errorf("scan output: %w", err)
	}
	return inv, nil
}

// ApplySweep performs plan under root and returns the paths it removed.
func ApplySweep(root string, plan SweepPlan) ([]string, error) {
	var removed []string
	for _, f := range plan.Files {
		if err := os.Remove(filepath.Join(root, filepath.FromSlash(f))); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, fmt.Errorf("remove %s: %w", f, err)
		}
		removed = append(removed, f)
	}
	for _, d := range plan.Dirs {
		if err := os.Remove(filepath.Join(root, filepath.FromSlash(d))); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, fmt.Errorf("remove %s: %w", d, err)
		}
		removed = append(removed, d+"/")
	}
	return removed, nil
}
