// internal/pipeline/pipeline.go
package pipeline

import (
	"context"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"argscreen/internal/checkpoint"
	"argscreen/internal/cmdutil"
	"argscreen/internal/fasta"
	"argscreen/internal/ingest"
	"argscreen/internal/predict"
	"argscreen/internal/source"
	"argscreen/internal/writers"
)

// Scorer is the minimal capability the pipeline needs.
// predict.Predictor (and fakes in tests) satisfy it.
type Scorer interface {
	Predict(ctx context.Context, recs []fasta.Record) ([]predict.Result, error)
}

var _ Scorer = (*predict.Predictor)(nil)

// Config controls one run.
type Config struct {
	InputDir        string
	Extensions      []string // nil means source.DefaultExtensions
	Output          string
	Format          string // writers format, "" means tsv
	Resume          bool
	FileBatch       int // files per batch (>=1)
	Workers         int // ingestion goroutines (>=1)
	CheckpointEvery int // files between checkpoint saves
}

// Run screens every pending file under cfg.InputDir.
//
// Errors before the first batch are cmdutil setup errors. On cancellation
// the in-flight batch is dropped, completed batches are checkpointed, and
// the context error is returned.
func Run(ctx context.Context, cfg Config, sc Scorer, log *zap.Logger) (Stats, error) {
	start := time.Now()
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.FileBatch < 1 {
		cfg.FileBatch = 1
	}
	st := Stats{Classes: map[string]int{}}

	all, err := source.Enumerate(cfg.InputDir, cfg.Extensions)
	if err != nil {
		return st, cmdutil.Setup(err)
	}
	if len(all) == 0 {
		return st, cmdutil.Setup(errors.Wrapf(source.ErrNoInput, "in %s", cfg.InputDir))
	}

	cpPath := checkpoint.Path(cfg.Output)
	done := checkpoint.Set{}
	resume := false
	if cfg.Resume {
		set, found, err := checkpoint.Load(cpPath)
		if err != nil {
			return st, cmdutil.Setup(err)
		}
		if found {
			done, resume = set, true
		} else {
			log.Info("no checkpoint found, starting a fresh run", zap.String("checkpoint", cpPath))
		}
	}
	pending := source.FilterPending(all, done)
	st.FilesTotal = len(all)
	st.FilesSkipped = len(all) - len(pending)

	// the old checkpoint is cleared before the old output is truncated
	if !resume {
		if err := checkpoint.Save(cpPath, done); err != nil {
			return st, cmdutil.Setup(err)
		}
	}
	sink, err := writers.Open(cfg.Output, cfg.Format, resume)
	if err != nil {
		return st, cmdutil.Setup(err)
	}

	log.Info("starting run",
		zap.Int("files", st.FilesTotal),
		zap.Int("pending", len(pending)),
		zap.Int("skipped", st.FilesSkipped),
		zap.Int("file_batch", cfg.FileBatch),
		zap.Bool("resume", resume))

	policy := checkpoint.Policy{Every: cfg.CheckpointEvery}
	sinceSave := 0
	var runErr error

	for lo := 0; lo < len(pending); lo += cfg.FileBatch {
		if ctx.Err() != nil {
			break
		}
		batch := pending[lo:min(lo+cfg.FileBatch, len(pending))]
		t0 := time.Now()

		recs, rep := ingest.LoadBatch(ctx, batch, cfg.Workers, log)
		if ctx.Err() != nil {
			break
		}
		results, err := sc.Predict(ctx, recs)
		if err != nil {
			if ctx.Err() == nil {
				runErr = errors.WithMessage(err, "predict")
			}
			break
		}
		if err := sink.Append(results); err != nil {
			runErr = errors.WithMessage(err, "append results")
			break
		}

		for _, f := range batch {
			done.Add(filepath.Base(f))
		}
		sinceSave += len(batch)
		st.addBatch(rep, results, time.Since(t0))

		if policy.Due(sinceSave) {
			if err := checkpoint.Save(cpPath, done); err != nil {
				runErr = err
				break
			}
			sinceSave = 0
		}
		st.Elapsed = time.Since(start)
		logProgress(log, st)
	}

	// done only holds files whose rows were appended
	if err := checkpoint.Save(cpPath, done); err != nil && runErr == nil {
		runErr = err
	}
	if err := sink.Close(); err != nil && runErr == nil {
		runErr = errors.WithMessage(err, "close output")
	}
	st.Elapsed = time.Since(start)

	if runErr != nil {
		return st, runErr
	}
	if err := ctx.Err(); err != nil {
		log.Warn("run interrupted; resume with --resume",
			zap.Int("files_done", st.FilesProcessed+st.FilesSkipped),
			zap.Int("files_total", st.FilesTotal))
		return st, err
	}
	logSummary(log, st)
	return st, nil
}
