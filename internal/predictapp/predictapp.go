// internal/predictapp/predictapp.go
package predictapp

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	arg "github.com/alexflint/go-arg"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"argscreen/internal/cliutil"
	"argscreen/internal/cmdutil"
	"argscreen/internal/fasta"
	"argscreen/internal/predict"
	"argscreen/internal/runutil"
	"argscreen/internal/version"
	"argscreen/internal/writers"
)

const program = "argscreen-predict"

// Output file names inside --out-dir.
const (
	AllPredictions = "all_predictions.tsv"
	ARGPredictions = "arg_predictions.tsv"
	ARGSequences   = "arg_sequences.fasta"
	ClassSummary   = "class_summary.tsv"
)

// DefaultBatchSize is smaller than the batch run's; one file rarely fills more.
const DefaultBatchSize = 256

type options struct {
	Input         string  `arg:"--input" help:"FASTA file to screen (gzip allowed) [*]"`
	OutDir        string  `arg:"--out-dir" help:"directory for the four report files [*]"`
	BinaryModel   string  `arg:"--binary-model,env:ARGSCREEN_BINARY_MODEL" help:"binary gate bundle [*]"`
	MultiModel    string  `arg:"--multi-model,env:ARGSCREEN_MULTI_MODEL" help:"class model bundle [*]"`
	Threshold     float64 `arg:"--threshold,env:ARGSCREEN_THRESHOLD" help:"ARG probability cut-off, inclusive [0.5]"`
	TopK          int     `arg:"--top-k" help:"classes listed per ARG [5]"`
	BatchSize     int     `arg:"--batch-size" help:"sequences per oracle call [256]"`
	OracleThreads int     `arg:"--oracle-threads" help:"scoring goroutines (default: physical cores)"`
	Quiet         bool    `arg:"--quiet" help:"log warnings and errors only"`
	Verbose       bool    `arg:"--verbose" help:"log debug records"`
}

func (options) Description() string {
	return "argscreen-predict: screen one FASTA file and write ARG reports\n"
}

func (options) Version() string { return program + " " + version.Version }

func (o options) validate() error {
	switch {
	case o.Input == "":
		return errors.New("--input is required")
	case o.OutDir == "":
		return errors.New("--out-dir is required")
	case o.BinaryModel == "" || o.MultiModel == "":
		return errors.New("--binary-model and --multi-model are required")
	case math.IsNaN(o.Threshold) || o.Threshold < 0 || o.Threshold > 1:
		return fmt.Errorf("--threshold must be in [0,1], got %g", o.Threshold)
	case o.TopK < 1:
		return errors.New("--top-k must be ≥ 1")
	case o.BatchSize < 1:
		return errors.New("--batch-size must be ≥ 1")
	case o.OracleThreads < 0:
		return errors.New("--oracle-threads must be ≥ 0")
	}
	return nil
}

func parse(argv []string) (options, *arg.Parser, error) {
	o := options{
		Threshold: predict.DefaultThreshold,
		TopK:      predict.DefaultTopK,
		BatchSize: DefaultBatchSize,
	}
	p, err := arg.NewParser(arg.Config{Program: program}, &o)
	if err != nil {
		return o, nil, err
	}
	if err := p.Parse(argv); err != nil {
		return o, p, err
	}
	return o, p, o.validate()
}

// RunContext screens one FASTA file end to end.
func RunContext(ctx context.Context, argv []string, stdout, stderr io.Writer) int {
	opts, p, err := parse(argv)
	if err != nil {
		return cliutil.ParseOutcome(p, err, program, stdout, stderr)
	}
	log, closeLog, err := cmdutil.NewLogger(stderr, cmdutil.LogOptions{Quiet: opts.Quiet, Verbose: opts.Verbose})
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return cmdutil.ExitUsage
	}
	defer func() { _ = closeLog() }()
	if opts.OracleThreads == 0 {
		opts.OracleThreads = runutil.DefaultOracleThreads()
	}

	err = run(ctx, opts, stdout, log)
	code := cmdutil.ExitCode(ctx, err)
	if err != nil && code != cmdutil.ExitCancelled {
		log.Error("prediction failed", zap.Error(err))
	}
	return code
}

func run(ctx context.Context, o options, stdout io.Writer, log *zap.Logger) error {
	if _, err := os.Stat(o.Input); err != nil {
		return cmdutil.Setup(errors.Wrap(err, "input"))
	}
	pred, err := cmdutil.LoadPredictor(cmdutil.ModelOptions{
		BinaryModel: o.BinaryModel,
		MultiModel:  o.MultiModel,
		Threshold:   o.Threshold,
		BatchSize:   o.BatchSize,
		Threads:     o.OracleThreads,
	}, log)
	if err != nil {
		return err
	}

	recs, err := fasta.ReadFile(ctx, o.Input)
	if err != nil {
		return cmdutil.Setup(err)
	}
	log.Info("sequences read", zap.String("input", o.Input), zap.Int("sequences", len(recs)))
	if len(recs) == 0 {
		log.Warn("input file has no sequences; nothing written", zap.String("input", o.Input))
		return nil
	}
	if err := os.MkdirAll(o.OutDir, 0o755); err != nil {
		return cmdutil.Setup(errors.Wrap(err, "output directory"))
	}

	results, err := pred.PredictTop(ctx, recs, o.TopK)
	if err != nil {
		return err
	}
	counts := predict.SortedCounts(predict.CountClasses(results, nil))

	if err := writeFile(filepath.Join(o.OutDir, AllPredictions), func(w io.Writer) error {
		return writers.WriteReport(w, results, false)
	}); err != nil {
		return err
	}
	if err := writeFile(filepath.Join(o.OutDir, ARGPredictions), func(w io.Writer) error {
		return writers.WriteReport(w, results, true)
	}); err != nil {
		return err
	}
	var positives int
	if err := writeFile(filepath.Join(o.OutDir, ARGSequences), func(w io.Writer) error {
		n, err := writers.WriteARGFasta(w, recs, results)
		positives = n
		return err
	}); err != nil {
		return err
	}
	if err := writeFile(filepath.Join(o.OutDir, ClassSummary), func(w io.Writer) error {
		return writers.WriteClassSummary(w, counts)
	}); err != nil {
		return err
	}

	return printSummary(stdout, len(results), positives, counts, o.OutDir)
}

// writeFile creates path and hands fill a buffered writer on it.
func writeFile(path string, fill func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create report")
	}
	bw := bufio.NewWriter(f)
	if err := fill(bw); err != nil {
		f.Close()
		return errors.WithMessage(err, path)
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return errors.Wrap(err, path)
	}
	return errors.Wrap(f.Close(), path)
}

func printSummary(stdout io.Writer, total, positives int, counts []predict.ClassCount, dir string) error {
	outw := bufio.NewWriter(stdout)
	fmt.Fprintf(outw, "sequences\t%d\n", total)
	fmt.Fprintf(outw, "ARG\t%d\n", positives)
	fmt.Fprintf(outw, "non-ARG\t%d\n", total-positives)
	if len(counts) > 0 {
		fmt.Fprintln(outw, "\nARG class distribution:")
		for _, c := range counts {
			fmt.Fprintf(outw, "  %s: %d\n", c.Name, c.Count)
		}
	}
	fmt.Fprintf(outw, "\nresults written to %s\n", dir)
	if err := outw.Flush(); err != nil && !writers.IsBrokenPipe(err) {
		return err
	}
	return nil
}
