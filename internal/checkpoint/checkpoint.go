// Package checkpoint persists the set of input files a run has fully
// processed. The file is newline-delimited basenames and is always replaced
// as a whole, never appended to.
package checkpoint

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Suffix is appended to the output path to name its checkpoint.
const Suffix = ".checkpoint"

// Set holds basenames of fully processed files.
type Set map[string]struct{}

// Path returns the checkpoint location that belongs to an output file.
func Path(output string) string { return output + Suffix }

func (s Set) Add(names ...string) {
	for _, n := range names {
		s[n] = struct{}{}
	}
}

func (s Set) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Sorted returns the names in lexical order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Load reads a checkpoint. A missing file yields an empty set and found=false.
func Load(path string) (set Set, found bool, err error) {
	set = Set{}
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return set, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "load checkpoint")
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	for sc.Scan() {
		name := strings.TrimSpace(sc.Text())
		if name != "" {
			set[name] = struct{}{}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, false, errors.Wrapf(err, "load checkpoint %s", path)
	}
	return set, true, nil
}

// Save atomically replaces the checkpoint at path with the full set:
// write to a temp file in the same directory, fsync, rename over path.
func Save(path string, set Set) error {
	var buf bytes.Buffer
	for _, n := range set.Sorted() {
		buf.WriteString(n)
		buf.WriteByte('\n')
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return errors.Wrap(err, "save checkpoint")
	}
	tmpPath := tmp.Name()
	_ = os.Chmod(tmpPath, 0o644)

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return errors.Wrap(err, "save checkpoint")
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return errors.Wrap(err, "save checkpoint")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return errors.Wrap(err, "save checkpoint")
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return errors.Wrap(err, "save checkpoint")
	}
	// best effort: persist the rename itself
	_ = syncDir(dir)
	return nil
}

func syncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}

// Policy decides when the driver persists the in-memory set. Saving is
// measured in files processed since the last save, not in batches.
type Policy struct {
	Every int // files between saves; <= 0 saves after every batch
}

// Due reports whether a save should happen after sinceSave more files.
func (p Policy) Due(sinceSave int) bool {
	if sinceSave <= 0 {
		return false
	}
	return p.Every <= 0 || sinceSave >= p.Every
}
