// internal/cli/options.go
package cli

import (
	"fmt"
	"math"
	"os"

	arg "github.com/alexflint/go-arg"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"argscreen/internal/cliutil"
	"argscreen/internal/pipeline"
	"argscreen/internal/predict"
	"argscreen/internal/runutil"
	"argscreen/internal/source"
	"argscreen/internal/version"
	"argscreen/internal/writers"
)

// Program is the batch screening binary's name.
const Program = "argscreen"

// Defaults for the batch run surface.
const (
	DefaultFileBatch       = 100
	DefaultCheckpointEvery = 1000
)

// Options holds every setting of a batch run. Each field can come from
// the YAML file named by --config, the environment, or a flag; later
// sources win.
type Options struct {
	// Input / output
	InputDir string   `arg:"--input-dir" yaml:"input_dir" help:"directory of FASTA files to screen [*]"`
	Output   string   `arg:"--output" yaml:"output" help:"results file; <output>.checkpoint sits next to it [*]"`
	Ext      []string `arg:"--ext,separate" yaml:"ext" help:"input extension (repeatable) [.faa .fasta]"`
	Format   string   `arg:"--format" yaml:"format" help:"output format: tsv | jsonl [tsv]"`
	Resume   bool     `arg:"--resume" yaml:"resume" help:"skip files listed in the checkpoint and append"`

	// Models
	BinaryModel string  `arg:"--binary-model,env:ARGSCREEN_BINARY_MODEL" yaml:"binary_model" help:"binary gate bundle [*]"`
	MultiModel  string  `arg:"--multi-model,env:ARGSCREEN_MULTI_MODEL" yaml:"multi_model" help:"class model bundle [*]"`
	Threshold   float64 `arg:"--threshold,env:ARGSCREEN_THRESHOLD" yaml:"threshold" help:"ARG probability cut-off, inclusive [0.5]"`

	// Performance
	BatchSize       int `arg:"--batch-size" yaml:"batch_size" help:"sequences per oracle call [2048]"`
	Workers         int `arg:"--workers" yaml:"workers" help:"file reader goroutines [8]"`
	FileBatch       int `arg:"--file-batch" yaml:"file_batch" help:"files per batch [100]"`
	CheckpointEvery int `arg:"--checkpoint-every" yaml:"checkpoint_every" help:"files between checkpoint saves [1000]"`
	OracleThreads   int `arg:"--oracle-threads" yaml:"oracle_threads" help:"scoring goroutines (default: physical cores)"`

	// Logging
	LogFile string `arg:"--log-file" yaml:"log_file" help:"also write JSON logs to this file"`
	Quiet   bool   `arg:"--quiet" yaml:"quiet" help:"console shows warnings and errors only"`
	Verbose bool   `arg:"--verbose" yaml:"verbose" help:"console shows debug records"`

	Config string `arg:"--config" yaml:"-" help:"YAML file with any of the options above"`
}

// Description is shown at the top of --help.
func (Options) Description() string {
	return "argscreen: batch antibiotic-resistance gene screening of protein FASTA\n"
}

// Version enables --version.
func (Options) Version() string { return Program + " " + version.Version }

// Defaults returns the options of a run with no configuration at all.
func Defaults() Options {
	return Options{
		Ext:             append([]string(nil), source.DefaultExtensions...),
		Format:          writers.DefaultFormat,
		Threshold:       predict.DefaultThreshold,
		BatchSize:       predict.DefaultBatchSize,
		Workers:         runutil.DefaultIngestWorkers,
		FileBatch:       DefaultFileBatch,
		CheckpointEvery: DefaultCheckpointEvery,
		OracleThreads:   runutil.DefaultOracleThreads(),
	}
}

// LoadYAML overlays the file at path onto o. Unknown keys are errors.
func LoadYAML(path string, o *Options) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "config")
	}
	if err := yaml.UnmarshalStrict(raw, o); err != nil {
		return errors.Wrapf(err, "config %s", path)
	}
	return nil
}

// NewParser binds a go-arg parser to o.
func NewParser(o *Options) (*arg.Parser, error) {
	return arg.NewParser(arg.Config{Program: Program}, o)
}

// Parse resolves options from defaults, then --config, then the
// environment and flags. The parser is returned for help output; it is
// nil only if the Options struct itself is malformed. arg.ErrHelp and
// arg.ErrVersion are passed through untouched.
func Parse(argv []string) (Options, *arg.Parser, error) {
	o := Defaults()
	p, err := NewParser(&o)
	if err != nil {
		return o, nil, err
	}
	if path, ok := cliutil.FindFlagValue(argv, "config"); ok {
		if err := LoadYAML(path, &o); err != nil {
			return o, p, err
		}
	}
	// --ext appends; flags replace the defaults or YAML list
	if cliutil.HasFlag(argv, "ext") {
		o.Ext = nil
	}
	if err := p.Parse(argv); err != nil {
		return o, p, err
	}
	return o, p, o.Validate()
}

// Validate checks required settings and ranges.
func (o Options) Validate() error {
	switch {
	case o.InputDir == "":
		return errors.New("--input-dir is required")
	case o.Output == "":
		return errors.New("--output is required")
	case o.BinaryModel == "":
		return errors.New("--binary-model is required")
	case o.MultiModel == "":
		return errors.New("--multi-model is required")
	}
	if math.IsNaN(o.Threshold) || o.Threshold < 0 || o.Threshold > 1 {
		return fmt.Errorf("--threshold must be in [0,1], got %g", o.Threshold)
	}
	if o.BatchSize < 1 {
		return errors.New("--batch-size must be ≥ 1")
	}
	if o.Workers < 1 {
		return errors.New("--workers must be ≥ 1")
	}
	if o.FileBatch < 1 {
		return errors.New("--file-batch must be ≥ 1")
	}
	if o.CheckpointEvery < 1 {
		return errors.New("--checkpoint-every must be ≥ 1")
	}
	if o.OracleThreads < 0 {
		return errors.New("--oracle-threads must be ≥ 0")
	}
	if !writers.Known(o.Format) {
		return fmt.Errorf("invalid --format %q (want one of %v)", o.Format, writers.Formats())
	}
	if len(o.Ext) == 0 {
		return errors.New("at least one --ext is required")
	}
	if o.Quiet && o.Verbose {
		return errors.New("--quiet conflicts with --verbose")
	}
	return nil
}

// PipelineConfig is the run configuration for pipeline.Run.
func (o Options) PipelineConfig() pipeline.Config {
	return pipeline.Config{
		InputDir:        o.InputDir,
		Extensions:      o.Ext,
		Output:          o.Output,
		Format:          o.Format,
		Resume:          o.Resume,
		FileBatch:       o.FileBatch,
		Workers:         o.Workers,
		CheckpointEvery: o.CheckpointEvery,
	}
}
