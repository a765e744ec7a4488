// internal/writers/report.go
package writers

import (
	"fmt"
	"io"
	"strings"

	"github.com/biogo/biogo/alphabet"
	biofasta "github.com/biogo/biogo/io/seqio/fasta"
	"github.com/biogo/biogo/seq/linear"
	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"

	"argscreen/internal/fasta"
	"argscreen/internal/predict"
)

// reportRow is one line of all_predictions.tsv / arg_predictions.tsv.
type reportRow struct {
	ID         string   `csv:"id"`
	IsARG      pyBool   `csv:"is_arg"`
	BinaryProb prob     `csv:"binary_prob"`
	ARGClass   string   `csv:"arg_class"`
	ClassProb  optProb  `csv:"class_prob"`
	TopClasses topClass `csv:"top_classes"`
}

// topClass renders as "name:prob;name:prob".
type topClass []predict.ClassProb

func (t topClass) MarshalCSV() (string, error) {
	parts := make([]string, len(t))
	for i, c := range t {
		parts[i] = c.Name + ":" + FormatProb(c.Prob)
	}
	return strings.Join(parts, ";"), nil
}

type classRow struct {
	Class string `csv:"arg_class"`
	Count int    `csv:"count"`
}

// WriteReport writes a tab-separated table of results; with onlyARG the
// rejected records are left out. The header is always written.
func WriteReport(w io.Writer, results []predict.Result, onlyARG bool) error {
	rows := make([]reportRow, 0, len(results))
	for _, r := range results {
		if onlyARG && !r.IsARG {
			continue
		}
		cls, p := classCells(r.Class)
		rows = append(rows, reportRow{
			ID:         r.SequenceID,
			IsARG:      pyBool(r.IsARG),
			BinaryProb: prob(r.BinaryProb),
			ARGClass:   cls,
			ClassProb:  p,
			TopClasses: topClass(r.TopClasses),
		})
	}
	cw := newTabWriter(w)
	if err := gocsv.MarshalCSV(&rows, cw); err != nil {
		return errors.Wrap(err, "write report")
	}
	cw.Flush()
	return cw.Error()
}

// WriteClassSummary writes class → count, most frequent first.
func WriteClassSummary(w io.Writer, counts []predict.ClassCount) error {
	rows := make([]classRow, len(counts))
	for i, c := range counts {
		rows[i] = classRow{Class: c.Name, Count: c.Count}
	}
	cw := newTabWriter(w)
	if err := gocsv.MarshalCSV(&rows, cw); err != nil {
		return errors.Wrap(err, "write class summary")
	}
	cw.Flush()
	return cw.Error()
}

// WriteARGFasta writes the accepted records as FASTA with the prediction in
// the description line. results[i] must belong to recs[i].
func WriteARGFasta(w io.Writer, recs []fasta.Record, results []predict.Result) (int, error) {
	if len(recs) != len(results) {
		return 0, errors.Errorf("have %d records for %d results", len(recs), len(results))
	}
	fw := biofasta.NewWriter(w, 60)
	n := 0
	for i, r := range results {
		if !r.IsARG {
			continue
		}
		s := linear.NewSeq(r.SequenceID, alphabet.BytesToLetters(recs[i].Seq), alphabet.Protein)
		s.Desc = fmt.Sprintf("| ARG_class=%s | class_prob=%s | binary_prob=%s",
			r.Class.Name, FormatProb(r.Class.Prob), FormatProb(r.BinaryProb))
		if _, err := fw.Write(s); err != nil {
			return n, errors.Wrap(err, "write fasta")
		}
		n++
	}
	return n, nil
}
