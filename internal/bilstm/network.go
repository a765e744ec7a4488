// internal/bilstm/network.go
package bilstm

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// direction is one half of a bidirectional LSTM layer. PyTorch stacks the
// four gates as input, forget, cell, output.
type direction struct {
	wih  *mat.Dense // 4H x in
	whh  *mat.Dense // 4H x H
	bias []float64  // bias_ih + bias_hh
}

type layer struct {
	dirs [2]direction // forward, reverse
}

// network is the shared body of both models: a stacked bidirectional LSTM,
// max+mean pooling over time, and a two-layer classifier head.
type network struct {
	hidden int
	input  int // layer-0 input width
	layers []layer
	fc1W   *mat.Dense // H x 4H
	fc1B   []float64
	fc2W   *mat.Dense // out x H
	fc2B   []float64
}

type state map[string]Tensor

func (s state) matrix(name string, rows, cols int) (*mat.Dense, error) {
	t, ok := s[name]
	if !ok {
		return nil, errors.Wrapf(ErrBundleFormat, "missing tensor %s", name)
	}
	if len(t.Shape) != 2 || t.Shape[0] != rows || t.Shape[1] != cols || len(t.Data) != rows*cols {
		return nil, errors.Wrapf(ErrBundleFormat, "tensor %s has shape %v, want [%d %d]", name, t.Shape, rows, cols)
	}
	return mat.NewDense(rows, cols, widen(t.Data)), nil
}

func (s state) vector(name string, n int) ([]float64, error) {
	t, ok := s[name]
	if !ok {
		return nil, errors.Wrapf(ErrBundleFormat, "missing tensor %s", name)
	}
	if len(t.Shape) != 1 || t.Shape[0] != n || len(t.Data) != n {
		return nil, errors.Wrapf(ErrBundleFormat, "tensor %s has shape %v, want [%d]", name, t.Shape, n)
	}
	return widen(t.Data), nil
}

func widen(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

func buildNetwork(st state, input, hidden, numLayers, outputs int) (*network, error) {
	if hidden <= 0 || numLayers <= 0 || input <= 0 || outputs <= 0 {
		return nil, errors.Wrapf(ErrBundleFormat, "bad dimensions input=%d hidden=%d layers=%d outputs=%d", input, hidden, numLayers, outputs)
	}
	n := &network{hidden: hidden, input: input, layers: make([]layer, numLayers)}
	for l := 0; l < numLayers; l++ {
		in := input
		if l > 0 {
			in = 2 * hidden
		}
		for d, suffix := range [2]string{"", "_reverse"} {
			var err error
			dir := &n.layers[l].dirs[d]
			if dir.wih, err = st.matrix(fmt.Sprintf("lstm.weight_ih_l%d%s", l, suffix), 4*hidden, in); err != nil {
				return nil, err
			}
			if dir.whh, err = st.matrix(fmt.Sprintf("lstm.weight_hh_l%d%s", l, suffix), 4*hidden, hidden); err != nil {
				return nil, err
			}
			bih, err := st.vector(fmt.Sprintf("lstm.bias_ih_l%d%s", l, suffix), 4*hidden)
			if err != nil {
				return nil, err
			}
			bhh, err := st.vector(fmt.Sprintf("lstm.bias_hh_l%d%s", l, suffix), 4*hidden)
			if err != nil {
				return nil, err
			}
			for i := range bih {
				bih[i] += bhh[i]
			}
			dir.bias = bih
		}
	}
	var err error
	if n.fc1W, err = st.matrix("classifier.0.weight", hidden, 4*hidden); err != nil {
		return nil, err
	}
	if n.fc1B, err = st.vector("classifier.0.bias", hidden); err != nil {
		return nil, err
	}
	if n.fc2W, err = st.matrix("classifier.3.weight", outputs, hidden); err != nil {
		return nil, err
	}
	if n.fc2B, err = st.vector("classifier.3.bias", outputs); err != nil {
		return nil, err
	}
	return n, nil
}

// project returns x·Wihᵀ + bias for one direction.
func (d *direction) project(x mat.Matrix) *mat.Dense {
	var p mat.Dense
	p.Mul(x, d.wih.T())
	rows, _ := p.Dims()
	for t := 0; t < rows; t++ {
		row := p.RawRowView(t)
		for j, b := range d.bias {
			row[j] += b
		}
	}
	return &p
}

// scan runs the recurrence over precomputed input projections p and writes
// hidden states into out[:, col:col+H].
func (d *direction) scan(p *mat.Dense, reverse bool, out *mat.Dense, col int) {
	steps, _ := p.Dims()
	H := d.whh.RawMatrix().Cols
	h := mat.NewVecDense(H, nil)
	g := mat.NewVecDense(4*H, nil)
	c := make([]float64, H)
	for s := 0; s < steps; s++ {
		t := s
		if reverse {
			t = steps - 1 - s
		}
		g.MulVec(d.whh, h)
		gr := g.RawVector().Data
		pr := p.RawRowView(t)
		hr := h.RawVector().Data
		orow := out.RawRowView(t)
		for j := 0; j < H; j++ {
			ig := sigmoid(gr[j] + pr[j])
			fg := sigmoid(gr[H+j] + pr[H+j])
			cg := math.Tanh(gr[2*H+j] + pr[2*H+j])
			og := sigmoid(gr[3*H+j] + pr[3*H+j])
			c[j] = fg*c[j] + ig*cg
			hr[j] = og * math.Tanh(c[j])
			orow[col+j] = hr[j]
		}
	}
}

// forward takes the layer-0 input projections for both directions and
// returns the classifier logits.
func (n *network) forward(p0 [2]*mat.Dense) []float64 {
	steps, _ := p0[0].Dims()
	H := n.hidden
	var out *mat.Dense
	for l := range n.layers {
		next := mat.NewDense(steps, 2*H, nil)
		for d := range n.layers[l].dirs {
			dir := &n.layers[l].dirs[d]
			p := p0[d]
			if l > 0 {
				p = dir.project(out)
			}
			dir.scan(p, d == 1, next, d*H)
		}
		out = next
	}

	// [max over time | mean over time]
	feat := make([]float64, 4*H)
	for j := 0; j < 2*H; j++ {
		feat[j] = math.Inf(-1)
	}
	for t := 0; t < steps; t++ {
		row := out.RawRowView(t)
		for j, v := range row {
			if v > feat[j] {
				feat[j] = v
			}
			feat[2*H+j] += v
		}
	}
	for j := 2 * H; j < 4*H; j++ {
		feat[j] /= float64(steps)
	}

	hid := mat.NewVecDense(H, nil)
	hid.MulVec(n.fc1W, mat.NewVecDense(4*H, feat))
	hv := hid.RawVector().Data
	for j := range hv {
		hv[j] = math.Max(0, hv[j]+n.fc1B[j])
	}
	outs, _ := n.fc2W.Dims()
	logits := mat.NewVecDense(outs, nil)
	logits.MulVec(n.fc2W, hid)
	lv := logits.RawVector().Data
	for j := range lv {
		lv[j] += n.fc2B[j]
	}
	return lv
}

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

func softmax(z []float64) []float64 {
	m := math.Inf(-1)
	for _, v := range z {
		m = math.Max(m, v)
	}
	out := make([]float64, len(z))
	var sum float64
	for i, v := range z {
		out[i] = math.Exp(v - m)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
