// Package bilstm is the CPU reference implementation of the scoring oracles:
// the trained bidirectional LSTM models evaluated with gonum.
package bilstm

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"argscreen/internal/encode"
	"argscreen/internal/oracle"
)

// DefaultMaxLength applies when a binary bundle does not state its own.
const DefaultMaxLength = 1000

// Options tune evaluation, not the model.
type Options struct {
	Threads  int // batch items evaluated concurrently; <1 means 1
	MaxBatch int // largest accepted batch; 0 means unlimited
}

// Binary scores the ARG gate. It implements oracle.Binary.
type Binary struct {
	net    *network
	table  [2]*mat.Dense // per direction: vocab x 4H layer-0 projections
	vocab  int
	maxLen int
	opts   Options
}

// Multi scores ARG classes. It implements oracle.Multi.
type Multi struct {
	net     *network
	classes oracle.ClassList
	maxLen  int
	opts    Options
}

var (
	_ oracle.Binary = (*Binary)(nil)
	_ oracle.Multi  = (*Multi)(nil)
)

// LoadBinary reads a binary-gate bundle from path.
func LoadBinary(path string, opts Options) (*Binary, error) {
	b, err := ReadBundle(path)
	if err != nil {
		return nil, err
	}
	m, err := NewBinary(b, opts)
	return m, errors.WithMessage(err, path)
}

// LoadMulti reads a multiclass bundle from path.
func LoadMulti(path string, opts Options) (*Multi, error) {
	b, err := ReadBundle(path)
	if err != nil {
		return nil, err
	}
	m, err := NewMulti(b, opts)
	return m, errors.WithMessage(err, path)
}

// NewBinary builds the gate model from a decoded bundle.
func NewBinary(b *Bundle, opts Options) (*Binary, error) {
	cfg := b.Config
	if cfg == nil {
		return nil, errors.Wrap(ErrBundleFormat, "binary bundle has no config")
	}
	vocab, embDim := int(cfg["vocab_size"]), int(cfg["embedding_dim"])
	hidden, layers := int(cfg["hidden_size"]), int(cfg["num_layers"])
	if vocab <= encode.UnknownToken {
		return nil, errors.Wrapf(ErrBundleFormat, "vocab_size %d cannot hold token %d", vocab, encode.UnknownToken)
	}
	maxLen := int(cfg["max_length"])
	if maxLen == 0 {
		maxLen = b.MaxLength
	}
	if maxLen == 0 {
		maxLen = DefaultMaxLength
	}
	if maxLen < 0 {
		return nil, errors.Wrapf(ErrBundleFormat, "max_length %d", maxLen)
	}

	st := state(b.State)
	emb, err := st.matrix("embedding.weight", vocab, embDim)
	if err != nil {
		return nil, err
	}
	net, err := buildNetwork(st, embDim, hidden, layers, 1)
	if err != nil {
		return nil, err
	}
	m := &Binary{net: net, vocab: vocab, maxLen: maxLen, opts: opts}
	// every layer-0 input is an embedding row, so project the whole table once
	for d := range m.table {
		m.table[d] = net.layers[0].dirs[d].project(emb)
	}
	return m, nil
}

// NewMulti builds the class model from a decoded bundle.
func NewMulti(b *Bundle, opts Options) (*Multi, error) {
	cfg := b.ModelConfig
	if cfg == nil {
		return nil, errors.Wrap(ErrBundleFormat, "multiclass bundle has no model_config")
	}
	if in := int(cfg["embedding_size"]); in != encode.Width {
		return nil, errors.Wrapf(ErrBundleFormat, "embedding_size %d, want %d", in, encode.Width)
	}
	if b.MaxLength <= 0 {
		return nil, errors.Wrap(ErrBundleFormat, "multiclass bundle has no max_length")
	}
	classes, err := oracle.NewClassList(b.ClassNames)
	if err != nil {
		return nil, errors.Wrap(ErrBundleFormat, err.Error())
	}
	net, err := buildNetwork(state(b.State), encode.Width, int(cfg["hidden_size"]), int(cfg["num_layers"]), classes.Len())
	if err != nil {
		return nil, err
	}
	return &Multi{net: net, classes: classes, maxLen: b.MaxLength, opts: opts}, nil
}

func (m *Binary) MaxLen() int { return m.maxLen }

// ScoreBinary returns sigmoid(logit) per item, position-stable.
func (m *Binary) ScoreBinary(ctx context.Context, batch []encode.Tokens) ([]float64, error) {
	if m.opts.MaxBatch > 0 && len(batch) > m.opts.MaxBatch {
		return nil, errors.Wrapf(oracle.ErrBatchTooLarge, "%d > %d", len(batch), m.opts.MaxBatch)
	}
	for i, toks := range batch {
		if len(toks) != m.maxLen {
			return nil, errors.Wrapf(oracle.ErrBadInput, "item %d has length %d, want %d", i, len(toks), m.maxLen)
		}
		for _, tok := range toks {
			if tok < 0 || int(tok) >= m.vocab {
				return nil, errors.Wrapf(oracle.ErrBadInput, "item %d has token %d outside vocabulary", i, tok)
			}
		}
	}

	out := make([]float64, len(batch))
	err := forEach(ctx, len(batch), m.opts.Threads, func(i int) {
		var p0 [2]*mat.Dense
		for d := range p0 {
			h4 := 4 * m.net.hidden
			p := mat.NewDense(len(batch[i]), h4, nil)
			for t, tok := range batch[i] {
				copy(p.RawRowView(t), m.table[d].RawRowView(int(tok)))
			}
			p0[d] = p
		}
		out[i] = sigmoid(m.net.forward(p0)[0])
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (m *Multi) MaxLen() int               { return m.maxLen }
func (m *Multi) Classes() oracle.ClassList { return m.classes }

// ScoreMulti returns a softmax distribution over Classes() per item.
func (m *Multi) ScoreMulti(ctx context.Context, batch []encode.OneHot) ([][]float64, error) {
	if m.opts.MaxBatch > 0 && len(batch) > m.opts.MaxBatch {
		return nil, errors.Wrapf(oracle.ErrBatchTooLarge, "%d > %d", len(batch), m.opts.MaxBatch)
	}
	for i, x := range batch {
		if x.Len != m.maxLen || len(x.Data) != x.Len*encode.Width {
			return nil, errors.Wrapf(oracle.ErrBadInput, "item %d has %d positions, want %d", i, x.Len, m.maxLen)
		}
	}

	out := make([][]float64, len(batch))
	err := forEach(ctx, len(batch), m.opts.Threads, func(i int) {
		x := mat.NewDense(batch[i].Len, encode.Width, widen(batch[i].Data))
		var p0 [2]*mat.Dense
		for d := range p0 {
			p0[d] = m.net.layers[0].dirs[d].project(x)
		}
		out[i] = softmax(m.net.forward(p0))
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// forEach runs body(0..n-1) on at most limit goroutines and stops handing
// out indices once ctx is done.
func forEach(ctx context.Context, n, limit int, body func(i int)) error {
	if limit < 1 {
		limit = 1
	}
	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			wg.Wait()
			return ctx.Err()
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			body(i)
		}(i)
	}
	wg.Wait()
	return ctx.Err()
}
