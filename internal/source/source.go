// Package source discovers candidate sequence files and drops the ones a
// previous run already finished.
package source

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// DefaultExtensions are the suffixes screened when none are configured.
var DefaultExtensions = []string{".faa", ".fasta"}

// ErrNoInput is returned by callers when enumeration finds nothing to screen.
var ErrNoInput = errors.New("no input files found")

// Enumerate lists regular files directly inside dir whose names end in one of
// exts (case-insensitive). A file matching several suffixes is listed once.
// The result is sorted so repeated runs see the same order.
func Enumerate(dir string, exts []string) ([]string, error) {
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	fi, err := os.Stat(dir)
	if err != nil {
		return nil, errors.Wrap(err, "input directory")
	}
	if !fi.IsDir() {
		return nil, errors.Errorf("input directory: %s is not a directory", dir)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "input directory")
	}

	lower := make([]string, len(exts))
	for i, e := range exts {
		lower[i] = strings.ToLower(e)
	}

	var files []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			// follow symlinks to regular files
			if e.Type()&os.ModeSymlink == 0 {
				continue
			}
			if st, err := os.Stat(filepath.Join(dir, e.Name())); err != nil || !st.Mode().IsRegular() {
				continue
			}
		}
		if hasAnySuffix(strings.ToLower(e.Name()), lower) {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

func hasAnySuffix(name string, suffixes []string) bool {
	for _, s := range suffixes {
		if s != "" && strings.HasSuffix(name, s) {
			return true
		}
	}
	return false
}

// FilterPending keeps the files whose basename is not in done, in order.
func FilterPending(all []string, done map[string]struct{}) []string {
	out := make([]string, 0, len(all))
	for _, f := range all {
		if _, ok := done[filepath.Base(f)]; !ok {
			out = append(out, f)
		}
	}
	return out
}
