// internal/fasta/reader.go
package fasta

import (
	"context"
	"io"
	"path/filepath"

	"github.com/biogo/biogo/alphabet"
	"github.com/biogo/biogo/io/seqio/fasta"
	"github.com/biogo/biogo/seq/linear"
	"github.com/pkg/errors"
)

// Record is one cleaned protein sequence and the file it came from.
type Record struct {
	SourceFile string // basename of the input file
	ID         string
	Seq        []byte // upper-case, stop/gap markers removed; may be empty
}

// ReadFile parses every record of a (possibly gzipped) FASTA file.
// Any parse error fails the whole file.
func ReadFile(ctx context.Context, path string) ([]Record, error) {
	rc, err := openReader(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return Read(ctx, rc, filepath.Base(path))
}

// Read parses FASTA from r, tagging records with source.
func Read(ctx context.Context, r io.Reader, source string) ([]Record, error) {
	fr := fasta.NewReader(r, linear.NewSeq("", nil, alphabet.Protein))
	var out []Record
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s, err := fr.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, errors.Wrapf(err, "parse %s", source)
		}
		ls, ok := s.(*linear.Seq)
		if !ok {
			return nil, errors.Errorf("parse %s: unexpected sequence type %T", source, s)
		}
		out = append(out, Record{SourceFile: source, ID: ls.Name(), Seq: Clean(ls.Seq)})
	}
}

// Clean upper-cases residues and drops stop (*) and gap (-) markers.
func Clean[T ~byte](seq []T) []byte {
	out := make([]byte, 0, len(seq))
	for _, l := range seq {
		c := byte(l)
		if c == '*' || c == '-' {
			continue
		}
		if 'a' <= c && c <= 'z' {
			c -= 'a' - 'A'
		}
		out = append(out, c)
	}
	return out
}
