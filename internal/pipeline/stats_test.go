package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"argscreen/internal/runutil"
)

func TestLogProgressFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logProgress(zap.New(core), Stats{
		FilesTotal: 5, FilesSkipped: 1, FilesProcessed: 2,
		Sequences: 12000, Positives: 30, Elapsed: 2 * time.Second,
	})

	entries := logs.FilterMessage("progress").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.Equal(t, "3/5", fields["files"])
	require.Equal(t, "12,000", fields["sequences"])
	require.Equal(t, "6,000", fields["seqs_per_sec"])
	if _, ok := runutil.Sample(); ok {
		require.Contains(t, fields, "rss")
		require.Contains(t, fields, "cpu")
	}
}

func TestStatsRatios(t *testing.T) {
	require.Zero(t, Stats{}.Rate())
	require.Zero(t, Stats{}.PositiveRatio())
	s := Stats{Sequences: 8, Positives: 2, Elapsed: 4 * time.Second}
	require.Equal(t, 2.0, s.Rate())
	require.Equal(t, 0.25, s.PositiveRatio())
}
