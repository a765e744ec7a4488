// internal/jsonutil/json.go
package jsonutil

import (
	"encoding/json"
	"io"

	"github.com/pkg/errors"
)

var errTrailing = errors.New("unexpected data after JSON document")

// Encode writes v as one JSON document to w, indented when pretty.
func Encode(w io.Writer, v any, pretty bool) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

// DecodeStrict reads one JSON document from r into v, rejecting unknown
// fields and trailing data.
func DecodeStrict(r io.Reader, v any) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errTrailing
	}
	return nil
}

