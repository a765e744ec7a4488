// internal/writers/jsonl.go
package writers

import (
	"encoding/json"
	"os"

	"argscreen/internal/predict"
	"argscreen/pkg/api"
)

func init() { RegisterSink("jsonl", newJSONLSink) }

// ToV1 converts a result to the stable wire schema, rounding probabilities.
func ToV1(r predict.Result) api.PredictionV1 {
	v := api.PredictionV1{
		File:       r.File,
		SequenceID: r.SequenceID,
		IsARG:      r.IsARG,
		BinaryProb: predict.Round4(r.BinaryProb),
	}
	if r.Class != nil {
		name, p := r.Class.Name, predict.Round4(r.Class.Prob)
		v.ARGClass, v.ClassProb = &name, &p
	}
	for _, c := range r.TopClasses {
		v.TopClasses = append(v.TopClasses, api.ClassProbV1{Class: c.Name, Prob: predict.Round4(c.Prob)})
	}
	return v
}

// jsonlSink writes one PredictionV1 per line. It has no header.
type jsonlSink struct {
	fileSink
	enc *json.Encoder
}

func newJSONLSink(f *os.File, _ bool) (Sink, error) {
	s := &jsonlSink{fileSink: newFileSink(f)}
	s.enc = json.NewEncoder(s.bw)
	return s, nil
}

func (s *jsonlSink) Append(results []predict.Result) error {
	if len(results) == 0 {
		return nil
	}
	for _, r := range results {
		if err := s.enc.Encode(ToV1(r)); err != nil {
			return err
		}
	}
	return s.commit()
}
