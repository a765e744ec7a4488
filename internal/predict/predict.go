// Package predict runs the two-stage screening protocol: a binary ARG gate
// over every record, then class scoring for the records the gate accepts.
package predict

import (
	"context"
	"math"
	"sort"

	"github.com/pkg/errors"

	"argscreen/internal/encode"
	"argscreen/internal/fasta"
	"argscreen/internal/oracle"
)

const (
	DefaultThreshold = 0.5
	DefaultBatchSize = 2048
	DefaultTopK      = 5
)

// ClassProb is one class name with its probability.
type ClassProb struct {
	Name string
	Prob float64
}

// Classification is the top-1 class of an accepted record.
type Classification = ClassProb

// Result is the outcome for one input record. Class is set iff IsARG.
type Result struct {
	File       string
	SequenceID string
	IsARG      bool
	BinaryProb float64
	Class      *Classification
	TopClasses []ClassProb // single-record API only
}

// Predictor holds the two oracles and the gate settings.
type Predictor struct {
	Binary    oracle.Binary
	Multi     oracle.Multi
	Threshold float64 // accept iff p >= Threshold
	BatchSize int     // max items per oracle call
}

// Predict scores recs and returns one Result per record, in input order.
func (p *Predictor) Predict(ctx context.Context, recs []fasta.Record) ([]Result, error) {
	return p.run(ctx, recs, 0)
}

// PredictOne screens a single raw sequence and also reports up to k classes
// for an accepted record. residues are cleaned like ingested FASTA.
func (p *Predictor) PredictOne(ctx context.Context, id string, residues []byte, k int) (Result, error) {
	if k < 1 {
		k = 1
	}
	rs, err := p.run(ctx, []fasta.Record{{ID: id, Seq: fasta.Clean(residues)}}, k)
	if err != nil {
		return Result{}, err
	}
	return rs[0], nil
}

// PredictTop is Predict with top-k classes attached to accepted records.
func (p *Predictor) PredictTop(ctx context.Context, recs []fasta.Record, k int) ([]Result, error) {
	if k < 1 {
		k = 1
	}
	return p.run(ctx, recs, k)
}

func (p *Predictor) run(ctx context.Context, recs []fasta.Record, k int) ([]Result, error) {
	out := make([]Result, len(recs))
	if len(recs) == 0 {
		return out, nil
	}
	for i, r := range recs {
		out[i] = Result{File: r.SourceFile, SequenceID: r.ID}
	}

	// stage 1: binary gate over all records
	binLen := p.Binary.MaxLen()
	var accepted []int
	for _, c := range oracle.Chunks(len(recs), p.BatchSize) {
		batch := make([]encode.Tokens, 0, c[1]-c[0])
		for _, r := range recs[c[0]:c[1]] {
			batch = append(batch, encode.Binary(r.Seq, binLen))
		}
		probs, err := p.Binary.ScoreBinary(ctx, batch)
		if err != nil {
			return nil, oracleErr(ctx, err, "binary oracle")
		}
		if len(probs) != len(batch) {
			return nil, errors.Wrapf(oracle.ErrBadInput, "binary oracle returned %d scores for %d inputs", len(probs), len(batch))
		}
		for j, pr := range probs {
			i := c[0] + j
			out[i].BinaryProb = pr
			if pr >= p.Threshold {
				out[i].IsARG = true
				accepted = append(accepted, i)
			}
		}
	}
	if len(accepted) == 0 {
		return out, nil
	}

	// stage 2: classes for accepted records only
	classes := p.Multi.Classes()
	multiLen := p.Multi.MaxLen()
	for _, c := range oracle.Chunks(len(accepted), p.BatchSize) {
		idx := accepted[c[0]:c[1]]
		batch := make([]encode.OneHot, 0, len(idx))
		for _, i := range idx {
			batch = append(batch, encode.Multi(recs[i].Seq, multiLen))
		}
		vecs, err := p.Multi.ScoreMulti(ctx, batch)
		if err != nil {
			return nil, oracleErr(ctx, err, "multiclass oracle")
		}
		if len(vecs) != len(batch) {
			return nil, errors.Wrapf(oracle.ErrBadInput, "multiclass oracle returned %d vectors for %d inputs", len(vecs), len(batch))
		}
		for j, v := range vecs {
			if len(v) != classes.Len() {
				return nil, errors.Wrapf(oracle.ErrBadInput, "probability vector has %d entries for %d classes", len(v), classes.Len())
			}
			i := idx[j]
			n := k
			if n < 1 {
				n = 1
			}
			top := TopK(v, classes, n)
			best := top[0]
			out[i].Class = &best
			if k > 0 {
				out[i].TopClasses = top
			}
		}
	}
	return out, nil
}

func oracleErr(ctx context.Context, err error, what string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return errors.WithMessage(err, what)
}

// TopK returns min(k, classes.Len()) classes by descending probability.
// Equal probabilities keep class registration order.
func TopK(probs []float64, classes oracle.ClassList, k int) []ClassProb {
	n := min(len(probs), classes.Len())
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return probs[idx[a]] > probs[idx[b]] })
	if k > n {
		k = n
	}
	if k < 0 {
		k = 0
	}
	out := make([]ClassProb, k)
	for i := 0; i < k; i++ {
		out[i] = ClassProb{Name: classes.Name(idx[i]), Prob: probs[idx[i]]}
	}
	return out
}

// Round4 rounds to 4 decimal places for presentation.
func Round4(x float64) float64 {
	return math.Round(x*1e4) / 1e4
}
