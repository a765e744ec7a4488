// Package bilstmtest writes small hand-wired model bundles with predictable
// outputs, for tests that need real bundle files on disk.
package bilstmtest

import (
	"path/filepath"
	"strings"

	"argscreen/internal/bilstm"
	"argscreen/internal/encode"
)

const (
	// MarkerARG makes the binary bundle accept a sequence that contains it.
	MarkerARG = 'W'
	// MarkerFirstClass makes the multiclass bundle prefer class 0.
	MarkerFirstClass = 'C'

	// MaxLen is the input length of both bundles.
	MaxLen = 64
)

// Bundles writes a binary and a multiclass bundle into dir and returns
// their paths.
//
// The binary model scores about 0.99995 for sequences containing MarkerARG
// and about 0.0067 otherwise. The multiclass model puts most mass on
// classes[0] when MarkerFirstClass occurs and on classes[1] otherwise.
func Bundles(dir string, classes []string) (binPath, multiPath string, err error) {
	binPath = filepath.Join(dir, "binary.bundle")
	multiPath = filepath.Join(dir, "multi.bundle.gz")
	if err := bilstm.WriteBundle(binPath, BinaryBundle(), false); err != nil {
		return "", "", err
	}
	if err := bilstm.WriteBundle(multiPath, MultiBundle(classes), true); err != nil {
		return "", "", err
	}
	return binPath, multiPath, nil
}

// BinaryBundle is a one-unit network whose pooled forward state is
// ~tanh(tanh(5)) at a MarkerARG position and 0 elsewhere.
func BinaryBundle() *bilstm.Bundle {
	vocab := encode.UnknownToken + 1
	emb := make([]float32, vocab)
	emb[strings.IndexByte(encode.Alphabet, MarkerARG)+1] = 1

	st := saturatedLSTM(1)
	st["embedding.weight"] = bilstm.Tensor{Shape: []int{vocab, 1}, Data: emb}
	head(st, []float32{20}, []float32{-5})
	return &bilstm.Bundle{
		Format: bilstm.Format,
		Config: map[string]float64{
			"vocab_size": float64(vocab), "embedding_dim": 1,
			"hidden_size": 1, "num_layers": 1, "dropout": 0.3,
			"max_length": MaxLen,
		},
		State: st,
	}
}

// MultiBundle reads the MarkerFirstClass column of the one-hot input.
func MultiBundle(classes []string) *bilstm.Bundle {
	st := saturatedLSTM(encode.Width)
	w := make([]float32, len(classes))
	b := make([]float32, len(classes))
	for i := range b {
		b[i] = -5
	}
	w[0], b[0] = 10, -3
	if len(b) > 1 {
		b[1] = 0
	}
	head(st, w, b)
	return &bilstm.Bundle{
		Format: bilstm.Format,
		ModelConfig: map[string]float64{
			"embedding_size": encode.Width, "hidden_size": 1,
			"num_layers": 1, "dropout": 0.3,
		},
		ClassNames: append([]string(nil), classes...),
		MaxLength:  MaxLen,
		State:      st,
	}
}

// saturatedLSTM opens the input and output gates, shuts the forget gate and
// lets the cell gate read one input column, in both directions.
func saturatedLSTM(in int) map[string]bilstm.Tensor {
	col := 0
	if in == encode.Width {
		col = strings.IndexByte(encode.Alphabet, MarkerFirstClass)
	}
	st := map[string]bilstm.Tensor{}
	for _, sfx := range []string{"", "_reverse"} {
		wih := make([]float32, 4*in)
		wih[2*in+col] = 5 // cell gate row
		st["lstm.weight_ih_l0"+sfx] = bilstm.Tensor{Shape: []int{4, in}, Data: wih}
		st["lstm.weight_hh_l0"+sfx] = bilstm.Tensor{Shape: []int{4, 1}, Data: make([]float32, 4)}
		st["lstm.bias_ih_l0"+sfx] = bilstm.Tensor{Shape: []int{4}, Data: []float32{20, -20, 0, 20}}
		st["lstm.bias_hh_l0"+sfx] = bilstm.Tensor{Shape: []int{4}, Data: make([]float32, 4)}
	}
	return st
}

// head wires the forward-direction max-pool feature into the output logits.
func head(st map[string]bilstm.Tensor, w, b []float32) {
	st["classifier.0.weight"] = bilstm.Tensor{Shape: []int{1, 4}, Data: []float32{1, 0, 0, 0}}
	st["classifier.0.bias"] = bilstm.Tensor{Shape: []int{1}, Data: []float32{0}}
	st["classifier.3.weight"] = bilstm.Tensor{Shape: []int{len(w), 1}, Data: w}
	st["classifier.3.bias"] = bilstm.Tensor{Shape: []int{len(b)}, Data: b}
}
