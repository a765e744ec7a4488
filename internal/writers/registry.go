// internal/writers/registry.go
package writers

import (
	"fmt"
	"os"
	"sort"
)

// SinkFactory wraps an already-positioned output file. header is true when
// the file is empty and any header must be written first.
type SinkFactory func(f *os.File, header bool) (Sink, error)

// Sink registry (format → factory). Formats register in init() blocks.
var sinkFactories = map[string]SinkFactory{}

// RegisterSink adds a format (idempotent last-wins).
func RegisterSink(format string, fn SinkFactory) { sinkFactories[format] = fn }

// Formats lists registered formats, sorted.
func Formats() []string {
	out := make([]string, 0, len(sinkFactories))
	for f := range sinkFactories {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Known reports whether a format is registered.
func Known(format string) bool {
	_, ok := sinkFactories[format]
	return ok
}

func lookup(format string) (SinkFactory, error) {
	if format == "" {
		format = DefaultFormat
	}
	fn, ok := sinkFactories[format]
	if !ok {
		return nil, fmt.Errorf("unknown output format %q (no sink registered)", format)
	}
	return fn, nil
}
