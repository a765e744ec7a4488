// internal/pipeline/stats.go
package pipeline

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"argscreen/internal/ingest"
	"argscreen/internal/predict"
	"argscreen/internal/runutil"
)

// Stats summarises a run. Counts cover this invocation only; files
// skipped by resume are counted in FilesSkipped.
type Stats struct {
	FilesTotal     int
	FilesSkipped   int
	FilesProcessed int
	FilesFailed    int
	Sequences      int
	Positives      int
	Classes        map[string]int
	Batches        runutil.Latencies
	Elapsed        time.Duration
}

func (s *Stats) addBatch(rep ingest.Report, results []predict.Result, took time.Duration) {
	s.FilesProcessed += rep.FilesRead + rep.FilesFailed
	s.FilesFailed += rep.FilesFailed
	s.Sequences += len(results)
	for _, r := range results {
		if r.IsARG {
			s.Positives++
		}
	}
	s.Classes = predict.CountClasses(results, s.Classes)
	s.Batches = append(s.Batches, took)
}

// Rate is sequences per second over the elapsed time.
func (s Stats) Rate() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.Sequences) / s.Elapsed.Seconds()
}

// PositiveRatio is Positives/Sequences, 0 when nothing was screened.
func (s Stats) PositiveRatio() float64 {
	if s.Sequences == 0 {
		return 0
	}
	return float64(s.Positives) / float64(s.Sequences)
}

func logProgress(log *zap.Logger, s Stats) {
	fields := []zap.Field{
		zap.String("files", fmt.Sprintf("%d/%d", s.FilesProcessed+s.FilesSkipped, s.FilesTotal)),
		zap.String("sequences", humanize.Comma(int64(s.Sequences))),
		zap.String("args", humanize.Comma(int64(s.Positives))),
		zap.String("seqs_per_sec", humanize.Comma(int64(s.Rate()))),
	}
	if u, ok := runutil.Sample(); ok {
		fields = append(fields,
			zap.String("rss", humanize.Bytes(u.RSS)),
			zap.String("cpu", fmt.Sprintf("%.1f%%", u.CPUPercent)))
	}
	log.Info("progress", fields...)
}

func logSummary(log *zap.Logger, s Stats) {
	med, p95 := s.Batches.Summary()
	log.Info("run complete",
		zap.Int("files_total", s.FilesTotal),
		zap.Int("files_processed", s.FilesProcessed),
		zap.Int("files_skipped", s.FilesSkipped),
		zap.Int("files_failed", s.FilesFailed),
		zap.String("sequences", humanize.Comma(int64(s.Sequences))),
		zap.String("args", humanize.Comma(int64(s.Positives))),
		zap.String("arg_ratio", fmt.Sprintf("%.4f%%", 100*s.PositiveRatio())),
		zap.String("elapsed_hours", fmt.Sprintf("%.2f", s.Elapsed.Hours())),
		zap.String("seqs_per_sec", fmt.Sprintf("%.1f", s.Rate())),
		zap.Duration("batch_median", med),
		zap.Duration("batch_p95", p95))
	for _, c := range predict.SortedCounts(s.Classes) {
		log.Info("class", zap.String("name", c.Name), zap.Int("count", c.Count))
	}
}
