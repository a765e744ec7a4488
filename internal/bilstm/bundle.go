// internal/bilstm/bundle.go
package bilstm

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"io"
	"math"
	"os"
	"sort"

	"github.com/pkg/errors"
	"github.com/tinylib/msgp/msgp"
)

// Format tags every bundle this package reads or writes.
const Format = "argscreen-bundle/1"

// ErrBundleFormat reports a bundle that is unreadable or does not describe
// the expected network.
var ErrBundleFormat = errors.New("bilstm: bad model bundle")

// Tensor is a dense float32 array in row-major order.
type Tensor struct {
	Shape []int
	Data  []float32
}

// Bundle mirrors the exported training checkpoint. Binary bundles carry
// Config; multiclass bundles carry ModelConfig, ClassNames and MaxLength.
type Bundle struct {
	Format      string
	Config      map[string]float64
	ModelConfig map[string]float64
	ClassNames  []string
	MaxLength   int
	State       map[string]Tensor
}

// ReadBundle decodes a bundle file, gunzipping it when it starts with the
// gzip magic.
func ReadBundle(path string) (*Bundle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open model bundle")
	}
	defer f.Close()

	br := bufio.NewReader(f)
	var r io.Reader = br
	if magic, _ := br.Peek(2); len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, errors.Wrapf(err, "gunzip %s", path)
		}
		defer gz.Close()
		r = gz
	}

	var b Bundle
	if err := msgp.Decode(r, &b); err != nil {
		return nil, errors.Wrapf(ErrBundleFormat, "%s: %v", path, err)
	}
	if b.Format != Format {
		return nil, errors.Wrapf(ErrBundleFormat, "%s: format %q, want %q", path, b.Format, Format)
	}
	return &b, nil
}

// WriteBundle encodes b to path, optionally gzip-compressed.
func WriteBundle(path string, b *Bundle, compress bool) error {
	if b.Format == "" {
		b.Format = Format
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create model bundle")
	}
	var w io.Writer = f
	var gz *gzip.Writer
	if compress {
		gz = gzip.NewWriter(f)
		w = gz
	}
	if err := msgp.Encode(w, b); err != nil {
		f.Close()
		return errors.Wrapf(err, "encode %s", path)
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			f.Close()
			return errors.Wrapf(err, "encode %s", path)
		}
	}
	return f.Close()
}

// EncodeMsg implements msgp.Encodable
func (b *Bundle) EncodeMsg(en *msgp.Writer) error {
	n := uint32(2) // format, model_state_dict
	if b.Config != nil {
		n++
	}
	if b.ModelConfig != nil {
		n++
	}
	if b.ClassNames != nil {
		n++
	}
	if b.MaxLength > 0 {
		n++
	}
	if err := en.WriteMapHeader(n); err != nil {
		return err
	}
	if err := en.WriteString("format"); err != nil {
		return err
	}
	if err := en.WriteString(b.Format); err != nil {
		return err
	}
	if b.Config != nil {
		if err := en.WriteString("config"); err != nil {
			return err
		}
		if err := writeNumbers(en, b.Config); err != nil {
			return err
		}
	}
	if b.ModelConfig != nil {
		if err := en.WriteString("model_config"); err != nil {
			return err
		}
		if err := writeNumbers(en, b.ModelConfig); err != nil {
			return err
		}
	}
	if b.ClassNames != nil {
		if err := en.WriteString("class_names"); err != nil {
			return err
		}
		if err := en.WriteArrayHeader(uint32(len(b.ClassNames))); err != nil {
			return err
		}
		for _, c := range b.ClassNames {
			if err := en.WriteString(c); err != nil {
				return err
			}
		}
	}
	if b.MaxLength > 0 {
		if err := en.WriteString("max_length"); err != nil {
			return err
		}
		if err := en.WriteInt(b.MaxLength); err != nil {
			return err
		}
	}

	if err := en.WriteString("model_state_dict"); err != nil {
		return err
	}
	names := make([]string, 0, len(b.State))
	for k := range b.State {
		names = append(names, k)
	}
	sort.Strings(names)
	if err := en.WriteMapHeader(uint32(len(names))); err != nil {
		return err
	}
	for _, k := range names {
		if err := en.WriteString(k); err != nil {
			return err
		}
		if err := b.State[k].encode(en); err != nil {
			return err
		}
	}
	return nil
}

// DecodeMsg implements msgp.Decodable
func (b *Bundle) DecodeMsg(dc *msgp.Reader) error {
	sz, err := dc.ReadMapHeader()
	if err != nil {
		return err
	}
	for sz > 0 {
		sz--
		key, err := dc.ReadString()
		if err != nil {
			return err
		}
		switch key {
		case "format":
			if b.Format, err = dc.ReadString(); err != nil {
				return err
			}
		case "config":
			if b.Config, err = readNumbers(dc); err != nil {
				return errors.WithMessage(err, "config")
			}
		case "model_config":
			if b.ModelConfig, err = readNumbers(dc); err != nil {
				return errors.WithMessage(err, "model_config")
			}
		case "class_names":
			n, err := dc.ReadArrayHeader()
			if err != nil {
				return err
			}
			b.ClassNames = make([]string, n)
			for i := range b.ClassNames {
				if b.ClassNames[i], err = dc.ReadString(); err != nil {
					return err
				}
			}
		case "max_length":
			v, err := readNumber(dc)
			if err != nil {
				return errors.WithMessage(err, "max_length")
			}
			b.MaxLength = int(v)
		case "model_state_dict":
			n, err := dc.ReadMapHeader()
			if err != nil {
				return err
			}
			b.State = make(map[string]Tensor, n)
			for n > 0 {
				n--
				name, err := dc.ReadString()
				if err != nil {
					return err
				}
				var t Tensor
				if err := t.decode(dc); err != nil {
					return errors.WithMessage(err, name)
				}
				b.State[name] = t
			}
		default:
			if err := dc.Skip(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t Tensor) encode(en *msgp.Writer) error {
	if err := en.WriteMapHeader(2); err != nil {
		return err
	}
	if err := en.WriteString("shape"); err != nil {
		return err
	}
	if err := en.WriteArrayHeader(uint32(len(t.Shape))); err != nil {
		return err
	}
	for _, d := range t.Shape {
		if err := en.WriteInt(d); err != nil {
			return err
		}
	}
	if err := en.WriteString("data"); err != nil {
		return err
	}
	raw := make([]byte, 4*len(t.Data))
	for i, v := range t.Data {
		binary.LittleEndian.PutUint32(raw[4*i:], math.Float32bits(v))
	}
	return en.WriteBytes(raw)
}

func (t *Tensor) decode(dc *msgp.Reader) error {
	sz, err := dc.ReadMapHeader()
	if err != nil {
		return err
	}
	for sz > 0 {
		sz--
		key, err := dc.ReadString()
		if err != nil {
			return err
		}
		switch key {
		case "shape":
			n, err := dc.ReadArrayHeader()
			if err != nil {
				return err
			}
			t.Shape = make([]int, n)
			for i := range t.Shape {
				v, err := readNumber(dc)
				if err != nil {
					return err
				}
				t.Shape[i] = int(v)
			}
		case "data":
			raw, err := dc.ReadBytes(nil)
			if err != nil {
				return err
			}
			if len(raw)%4 != 0 {
				return errors.Errorf("tensor data has %d bytes, not a multiple of 4", len(raw))
			}
			t.Data = make([]float32, len(raw)/4)
			for i := range t.Data {
				t.Data[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[4*i:]))
			}
		default:
			if err := dc.Skip(); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeNumbers(en *msgp.Writer, m map[string]float64) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if err := en.WriteMapHeader(uint32(len(keys))); err != nil {
		return err
	}
	for _, k := range keys {
		if err := en.WriteString(k); err != nil {
			return err
		}
		if err := en.WriteFloat64(m[k]); err != nil {
			return err
		}
	}
	return nil
}

func readNumbers(dc *msgp.Reader) (map[string]float64, error) {
	sz, err := dc.ReadMapHeader()
	if err != nil {
		return nil, err
	}
	m := make(map[string]float64, sz)
	for sz > 0 {
		sz--
		k, err := dc.ReadString()
		if err != nil {
			return nil, err
		}
		switch typ, err := dc.NextType(); {
		case err != nil:
			return nil, err
		case typ == msgp.IntType || typ == msgp.UintType || typ == msgp.Float32Type || typ == msgp.Float64Type:
			v, err := readNumber(dc)
			if err != nil {
				return nil, err
			}
			m[k] = v
		default:
			// non-numeric settings (optimizer names etc.) are not needed
			if err := dc.Skip(); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

// readNumber accepts any msgpack numeric encoding; exporters write
// integers for sizes and floats for rates.
func readNumber(dc *msgp.Reader) (float64, error) {
	typ, err := dc.NextType()
	if err != nil {
		return 0, err
	}
	switch typ {
	case msgp.IntType:
		v, err := dc.ReadInt64()
		return float64(v), err
	case msgp.UintType:
		v, err := dc.ReadUint64()
		return float64(v), err
	case msgp.Float32Type:
		v, err := dc.ReadFloat32()
		return float64(v), err
	case msgp.Float64Type:
		return dc.ReadFloat64()
	}
	return 0, errors.Errorf("expected a number, got %s", typ)
}
