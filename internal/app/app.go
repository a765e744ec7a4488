// internal/app/app.go
package app

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"argscreen/internal/cli"
	"argscreen/internal/cliutil"
	"argscreen/internal/cmdutil"
	"argscreen/internal/pipeline"
	"argscreen/internal/runutil"
	"argscreen/internal/version"
)

// RunContext runs one batch screening and returns the process exit code.
func RunContext(parent context.Context, argv []string, stdout, stderr io.Writer) int {
	opts, p, err := cli.Parse(argv)
	if err != nil {
		return cliutil.ParseOutcome(p, err, cli.Program, stdout, stderr)
	}

	log, closeLog, err := cmdutil.NewLogger(stderr, cmdutil.LogOptions{
		LogFile: opts.LogFile, Quiet: opts.Quiet, Verbose: opts.Verbose,
	})
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return cmdutil.ExitUsage
	}
	defer func() { _ = closeLog() }()
	if opts.OracleThreads == 0 {
		opts.OracleThreads = runutil.DefaultOracleThreads()
	}

	log.Info("argscreen starting",
		zap.String("version", version.Version),
		zap.String("platform", runutil.Platform()),
		zap.String("cpu", runutil.CPUSummary()),
		zap.Int("oracle_threads", opts.OracleThreads),
		zap.Int("workers", opts.Workers),
		zap.Int("batch_size", opts.BatchSize),
		zap.Float64("threshold", opts.Threshold))

	pred, err := cmdutil.LoadPredictor(cmdutil.ModelOptions{
		BinaryModel: opts.BinaryModel,
		MultiModel:  opts.MultiModel,
		Threshold:   opts.Threshold,
		BatchSize:   opts.BatchSize,
		Threads:     opts.OracleThreads,
	}, log)
	if err != nil {
		log.Error("loading models failed", zap.Error(err))
		return cmdutil.ExitCode(parent, err)
	}

	_, err = pipeline.Run(parent, opts.PipelineConfig(), pred, log)
	code := cmdutil.ExitCode(parent, err)
	if err != nil && code != cmdutil.ExitCancelled {
		log.Error("run failed", zap.Error(err), zap.Int("exit_code", code))
	}
	return code
}

func Run(argv []string, stdout, stderr io.Writer) int {
	return RunContext(context.Background(), argv, stdout, stderr)
}
