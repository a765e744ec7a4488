// internal/writers/tsv.go
package writers

import (
	"encoding/csv"
	"io"
	"os"

	"github.com/gocarina/gocsv"

	"argscreen/internal/predict"
)

func init() { RegisterSink("tsv", newTSVSink) }

// tsvRow is one line of the screening table.
type tsvRow struct {
	FileName   string  `csv:"FileName"`
	SequenceID string  `csv:"SequenceID"`
	IsARG      pyBool  `csv:"IsARG"`
	BinaryProb prob    `csv:"BinaryProb"`
	ARGClass   string  `csv:"ARGClass"`
	ClassProb  optProb `csv:"ClassProb"`
}

type tsvSink struct {
	fileSink
	cw *gocsv.SafeCSVWriter
}

func newTabWriter(out io.Writer) *gocsv.SafeCSVWriter {
	w := csv.NewWriter(out)
	w.Comma = '\t'
	return gocsv.NewSafeCSVWriter(w)
}

func newTSVSink(f *os.File, header bool) (Sink, error) {
	s := &tsvSink{fileSink: newFileSink(f)}
	s.cw = newTabWriter(s.bw)
	if header {
		if err := gocsv.MarshalCSV(&[]tsvRow{}, s.cw); err != nil {
			return nil, err
		}
		if err := s.commit(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *tsvSink) Append(results []predict.Result) error {
	if len(results) == 0 {
		return nil
	}
	rows := make([]tsvRow, len(results))
	for i, r := range results {
		cls, p := classCells(r.Class)
		rows[i] = tsvRow{
			FileName:   r.File,
			SequenceID: r.SequenceID,
			IsARG:      pyBool(r.IsARG),
			BinaryProb: prob(r.BinaryProb),
			ARGClass:   cls,
			ClassProb:  p,
		}
	}
	if err := gocsv.MarshalCSVWithoutHeaders(&rows, s.cw); err != nil {
		return err
	}
	s.cw.Flush()
	if err := s.cw.Error(); err != nil {
		return err
	}
	return s.commit()
}
