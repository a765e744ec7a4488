// internal/serveapp/serveapp.go
package serveapp

import (
	"context"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"time"

	arg "github.com/alexflint/go-arg"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"argscreen/internal/cliutil"
	"argscreen/internal/cmdutil"
	"argscreen/internal/predict"
	"argscreen/internal/runutil"
	"argscreen/internal/server"
	"argscreen/internal/version"
)

const program = "argscreen-serve"

const shutdownGrace = 10 * time.Second

type options struct {
	Addr          string  `arg:"--addr,env:ARGSCREEN_ADDR" help:"listen address [:8080]"`
	BinaryModel   string  `arg:"--binary-model,env:ARGSCREEN_BINARY_MODEL" help:"binary gate bundle [*]"`
	MultiModel    string  `arg:"--multi-model,env:ARGSCREEN_MULTI_MODEL" help:"class model bundle [*]"`
	Threshold     float64 `arg:"--threshold,env:ARGSCREEN_THRESHOLD" help:"default ARG probability cut-off [0.5]"`
	BatchSize     int     `arg:"--batch-size" help:"sequences per oracle call [256]"`
	OracleThreads int     `arg:"--oracle-threads" help:"scoring goroutines (default: physical cores)"`
	CacheSize     int     `arg:"--cache-size" help:"cached predictions [8192]"`
	MaxBody       string  `arg:"--max-body" help:"largest accepted request body [4MiB]"`
	MaxSequences  int     `arg:"--max-sequences" help:"sequences per request [1000]"`
	LogFile       string  `arg:"--log-file" help:"also write JSON logs to this file"`
	Quiet         bool    `arg:"--quiet" help:"log warnings and errors only"`
	Verbose       bool    `arg:"--verbose" help:"log debug records"`
}

func (options) Description() string {
	return "argscreen-serve: HTTP API for screening individual sequences\n"
}

func (options) Version() string { return program + " " + version.Version }

func parse(argv []string) (options, server.Options, *arg.Parser, error) {
	o := options{
		Addr:         ":8080",
		Threshold:    predict.DefaultThreshold,
		BatchSize:    256,
		CacheSize:    server.DefaultCacheSize,
		MaxBody:      "4MiB",
		MaxSequences: server.DefaultMaxSequences,
	}
	p, err := arg.NewParser(arg.Config{Program: program}, &o)
	if err != nil {
		return o, server.Options{}, nil, err
	}
	if err := p.Parse(argv); err != nil {
		return o, server.Options{}, p, err
	}
	switch {
	case o.BinaryModel == "" || o.MultiModel == "":
		return o, server.Options{}, p, errors.New("--binary-model and --multi-model are required")
	case math.IsNaN(o.Threshold) || o.Threshold < 0 || o.Threshold > 1:
		return o, server.Options{}, p, fmt.Errorf("--threshold must be in [0,1], got %g", o.Threshold)
	case o.BatchSize < 1 || o.CacheSize < 1 || o.MaxSequences < 1:
		return o, server.Options{}, p, errors.New("--batch-size, --cache-size and --max-sequences must be ≥ 1")
	}
	maxBody, err := humanize.ParseBytes(o.MaxBody)
	if err != nil || maxBody == 0 {
		return o, server.Options{}, p, fmt.Errorf("invalid --max-body %q", o.MaxBody)
	}
	return o, server.Options{
		MaxBodyBytes: int64(maxBody),
		MaxSequences: o.MaxSequences,
		CacheSize:    o.CacheSize,
	}, p, nil
}

// RunContext serves until ctx is cancelled, then drains in-flight requests.
func RunContext(ctx context.Context, argv []string, stdout, stderr io.Writer) int {
	opts, sopts, p, err := parse(argv)
	if err != nil {
		return cliutil.ParseOutcome(p, err, program, stdout, stderr)
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

	err = serve(ctx, opts, sopts, log)
	if err != nil {
		log.Error("server failed", zap.Error(err))
		return cmdutil.ExitCode(ctx, err)
	}
	return cmdutil.ExitOK
}

func serve(ctx context.Context, o options, so server.Options, log *zap.Logger) error {
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
	srv, err := server.New(pred, so, log)
	if err != nil {
		return cmdutil.Setup(err)
	}
	ln, err := net.Listen("tcp", o.Addr)
	if err != nil {
		return cmdutil.Setup(errors.Wrap(err, "listen"))
	}

	hs := &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Info("listening",
		zap.String("addr", ln.Addr().String()),
		zap.String("max_body", humanize.Bytes(uint64(so.MaxBodyBytes))),
		zap.Int("cache_size", so.CacheSize))

	errc := make(chan error, 1)
	go func() { errc <- hs.Serve(ln) }()

	select {
	case err := <-errc:
		return errors.Wrap(err, "serve")
	case <-ctx.Done():
	}
	log.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := hs.Shutdown(sctx); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	return nil
}
