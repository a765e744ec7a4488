// internal/writers/sink.go
package writers

import (
	"bufio"
	"bytes"
	"io"
	"os"

	"github.com/pkg/errors"

	"argscreen/internal/predict"
)

// DefaultFormat is used when no format is configured.
const DefaultFormat = "tsv"

// Sink receives result batches for the lifetime of a run. Append returns
// only after the rows are flushed and fsync'd.
type Sink interface {
	Append(results []predict.Result) error
	Close() error
}

// Open prepares path for a run. A fresh run truncates the file; a resumed
// run drops any torn trailing line and appends. The header is written only
// when the file ends up empty.
func Open(path, format string, resume bool) (Sink, error) {
	fn, err := lookup(format)
	if err != nil {
		return nil, err
	}
	f, empty, err := openOutput(path, resume)
	if err != nil {
		return nil, err
	}
	s, err := fn(f, empty)
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "open %s", path)
	}
	return s, nil
}

func openOutput(path string, resume bool) (*os.File, bool, error) {
	if !resume {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, false, errors.Wrap(err, "create output")
		}
		return f, true, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, false, errors.Wrap(err, "open output")
	}
	size, err := repairTail(f)
	if err == nil {
		_, err = f.Seek(0, io.SeekEnd)
	}
	if err != nil {
		f.Close()
		return nil, false, errors.Wrapf(err, "repair %s", path)
	}
	return f, size == 0, nil
}

// repairTail truncates f after its last newline when a hard crash left a
// partial row behind. It returns the resulting size.
func repairTail(f *os.File) (int64, error) {
	st, err := f.Stat()
	if err != nil {
		return 0, err
	}
	size := st.Size()
	if size == 0 {
		return 0, nil
	}
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, size-1); err != nil {
		return 0, err
	}
	if last[0] == '\n' {
		return size, nil
	}

	const chunk = 64 << 10
	buf := make([]byte, chunk)
	for end := size; end > 0; {
		start := max(end-chunk, 0)
		n := int(end - start)
		if _, err := f.ReadAt(buf[:n], start); err != nil && err != io.EOF {
			return 0, err
		}
		if i := bytes.LastIndexByte(buf[:n], '\n'); i >= 0 {
			keep := start + int64(i) + 1
			return keep, f.Truncate(keep)
		}
		end = start
	}
	return 0, f.Truncate(0)
}

// fileSink is the buffered, fsync-on-commit file shared by all formats.
type fileSink struct {
	f  *os.File
	bw *bufio.Writer
}

func newFileSink(f *os.File) fileSink {
	return fileSink{f: f, bw: bufio.NewWriterSize(f, 64<<10)}
}

func (s *fileSink) commit() error {
	if err := s.bw.Flush(); err != nil {
		return errors.Wrap(err, "flush output")
	}
	return errors.Wrap(s.f.Sync(), "sync output")
}

func (s *fileSink) Close() error {
	err := s.commit()
	if cerr := s.f.Close(); err == nil {
		err = cerr
	}
	return err
}
