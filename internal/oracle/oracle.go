// Package oracle defines the scoring contract the predictor needs from the
// pretrained models. Implementations must be stateless across calls and
// deterministic for fixed weights; callers chunk inputs to at most the
// configured batch size.
package oracle

import (
	"context"
	"errors"

	"argscreen/internal/encode"
)

var (
	// ErrBatchTooLarge is returned when a call exceeds the scorer's batch limit.
	ErrBatchTooLarge = errors.New("oracle: batch exceeds maximum size")
	// ErrBadInput is returned for inputs whose shape does not match the model.
	ErrBadInput = errors.New("oracle: input shape mismatch")
)

// Binary scores the ARG gate: one sigmoid probability per item.
type Binary interface {
	ScoreBinary(ctx context.Context, batch []encode.Tokens) ([]float64, error)
	MaxLen() int
}

// Multi scores the class distribution for each item over Classes().
type Multi interface {
	ScoreMulti(ctx context.Context, batch []encode.OneHot) ([][]float64, error)
	MaxLen() int
	Classes() ClassList
}

// Chunks splits [0,n) into consecutive [lo,hi) ranges of at most size items.
func Chunks(n, size int) [][2]int {
	if n <= 0 {
		return nil
	}
	if size <= 0 {
		size = n
	}
	out := make([][2]int, 0, (n+size-1)/size)
	for lo := 0; lo < n; lo += size {
		out = append(out, [2]int{lo, min(lo+size, n)})
	}
	return out
}
