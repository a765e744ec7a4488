package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"argscreen/internal/checkpoint"
	"argscreen/internal/cmdutil"
	"argscreen/internal/fasta"
	"argscreen/internal/predict"
	"argscreen/internal/source"
)

// markerScorer accepts sequences containing W. It can cancel the run
// on a given call, or fail.
type markerScorer struct {
	calls     int
	cancelOn  int
	cancel    context.CancelFunc
	failOn    int
	totalSeqs int
}

func (m *markerScorer) Predict(ctx context.Context, recs []fasta.Record) ([]predict.Result, error) {
	m.calls++
	if m.calls == m.cancelOn {
		m.cancel()
		return nil, ctx.Err()
	}
	if m.calls == m.failOn {
		return nil, errors.New("oracle exploded")
	}
	m.totalSeqs += len(recs)
	out := make([]predict.Result, len(recs))
	for i, r := range recs {
		out[i] = predict.Result{File: r.SourceFile, SequenceID: r.ID, BinaryProb: 0.1}
		if bytes.IndexByte(r.Seq, 'W') >= 0 {
			out[i].IsARG, out[i].BinaryProb = true, 0.9
			out[i].Class = &predict.Classification{Name: "beta_lactam", Prob: 0.8}
		}
	}
	return out, nil
}

func writeInputs(t *testing.T, n int) string {
	t.Helper()
	dir := t.TempDir()
	for i := 0; i < n; i++ {
		body := fmt.Sprintf(">f%d_a\nMKW\n>f%d_b\nMKV\n", i, i)
		require.NoError(t, os.WriteFile(filepath.Join(dir, fmt.Sprintf("f%02d.faa", i)), []byte(body), 0o644))
	}
	return dir
}

func rows(t *testing.T, p string) []string {
	t.Helper()
	b, err := os.ReadFile(p)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(b), "\n"), "\n")
	require.True(t, strings.HasPrefix(lines[0], "FileName\t"))
	body := lines[1:]
	sort.Strings(body)
	return body
}

func cfgFor(in, out string) Config {
	return Config{InputDir: in, Output: out, FileBatch: 2, Workers: 3, CheckpointEvery: 1000}
}

func TestRun_Fresh(t *testing.T) {
	in := writeInputs(t, 5)
	out := filepath.Join(t.TempDir(), "out.tsv")
	sc := &markerScorer{}

	st, err := Run(context.Background(), cfgFor(in, out), sc, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.Equal(t, 5, st.FilesTotal)
	require.Equal(t, 5, st.FilesProcessed)
	require.Equal(t, 10, st.Sequences)
	require.Equal(t, 5, st.Positives)
	require.Equal(t, map[string]int{"beta_lactam": 5}, st.Classes)
	require.Len(t, st.Batches, 3)
	require.Equal(t, 3, sc.calls)

	require.Len(t, rows(t, out), 10)
	set, found, err := checkpoint.Load(checkpoint.Path(out))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []string{"f00.faa", "f01.faa", "f02.faa", "f03.faa", "f04.faa"}, set.Sorted())
}

func TestRun_ResumeAfterCancelMatchesUninterrupted(t *testing.T) {
	in := writeInputs(t, 7)
	ref := filepath.Join(t.TempDir(), "ref.tsv")
	_, err := Run(context.Background(), cfgFor(in, ref), &markerScorer{}, zaptest.NewLogger(t))
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "out.tsv")
	ctx, cancel := context.WithCancel(context.Background())
	sc := &markerScorer{cancelOn: 3, cancel: cancel}
	st, err := Run(ctx, cfgFor(in, out), sc, zaptest.NewLogger(t))
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 4, st.FilesProcessed)

	set, _, err := checkpoint.Load(checkpoint.Path(out))
	require.NoError(t, err)
	require.Equal(t, []string{"f00.faa", "f01.faa", "f02.faa", "f03.faa"}, set.Sorted())

	cfg := cfgFor(in, out)
	cfg.Resume = true
	resumed := &markerScorer{}
	st, err = Run(context.Background(), cfg, resumed, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.Equal(t, 4, st.FilesSkipped)
	require.Equal(t, 3, st.FilesProcessed)
	require.Equal(t, 6, resumed.totalSeqs)

	require.Equal(t, rows(t, ref), rows(t, out))
	set, _, err = checkpoint.Load(checkpoint.Path(out))
	require.NoError(t, err)
	require.Len(t, set, 7)
}

func TestRun_FreshIgnoresStaleCheckpoint(t *testing.T) {
	in := writeInputs(t, 3)
	out := filepath.Join(t.TempDir(), "out.tsv")
	stale := checkpoint.Set{}
	stale.Add("f00.faa", "f01.faa", "f02.faa")
	require.NoError(t, checkpoint.Save(checkpoint.Path(out), stale))

	st, err := Run(context.Background(), cfgFor(in, out), &markerScorer{}, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.Zero(t, st.FilesSkipped)
	require.Len(t, rows(t, out), 6)
}

func TestRun_ResumeWithoutCheckpointIsFresh(t *testing.T) {
	in := writeInputs(t, 2)
	out := filepath.Join(t.TempDir(), "out.tsv")
	require.NoError(t, os.WriteFile(out, []byte("junk from another run\n"), 0o644))

	cfg := cfgFor(in, out)
	cfg.Resume = true
	_, err := Run(context.Background(), cfg, &markerScorer{}, zaptest.NewLogger(t))
	require.NoError(t, err)
	got := rows(t, out)
	require.Len(t, got, 4)
}

func TestRun_NoInputIsSetupError(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.tsv")
	_, err := Run(context.Background(), cfgFor(t.TempDir(), out), &markerScorer{}, nil)
	require.ErrorIs(t, err, source.ErrNoInput)
	require.Equal(t, cmdutil.ExitUsage, cmdutil.ExitCode(context.Background(), err))
	_, statErr := os.Stat(out)
	require.True(t, os.IsNotExist(statErr), "nothing written before failing")
}

func TestRun_ScorerErrorKeepsCompletedBatches(t *testing.T) {
	in := writeInputs(t, 6)
	out := filepath.Join(t.TempDir(), "out.tsv")
	_, err := Run(context.Background(), cfgFor(in, out), &markerScorer{failOn: 2}, zaptest.NewLogger(t))
	require.Error(t, err)
	require.Equal(t, cmdutil.ExitRuntime, cmdutil.ExitCode(context.Background(), err))

	set, _, err := checkpoint.Load(checkpoint.Path(out))
	require.NoError(t, err)
	require.Equal(t, []string{"f00.faa", "f01.faa"}, set.Sorted())
	require.Len(t, rows(t, out), 4)
}

func TestRun_EmptyFilesAreStillCheckpointed(t *testing.T) {
	in := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(in, "empty.faa"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(in, "broken.fasta"), []byte("no header\n"), 0o644))
	out := filepath.Join(t.TempDir(), "out.tsv")

	st, err := Run(context.Background(), cfgFor(in, out), &markerScorer{}, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.Equal(t, 2, st.FilesProcessed)
	require.Equal(t, 1, st.FilesFailed)
	require.Zero(t, st.Sequences)

	set, _, err := checkpoint.Load(checkpoint.Path(out))
	require.NoError(t, err)
	require.Equal(t, []string{"broken.fasta", "empty.faa"}, set.Sorted())
}

func TestRun_FreshClearsCheckpointBeforeTruncating(t *testing.T) {
	in := writeInputs(t, 3)
	out := filepath.Join(t.TempDir(), "out.tsv")
	_, err := Run(context.Background(), cfgFor(in, out), &markerScorer{}, zaptest.NewLogger(t))
	require.NoError(t, err)

	// a directory in place of the output makes the fresh run stop right
	// after the checkpoint reset
	require.NoError(t, os.Remove(out))
	require.NoError(t, os.Mkdir(out, 0o755))
	_, err = Run(context.Background(), cfgFor(in, out), &markerScorer{}, zaptest.NewLogger(t))
	require.Error(t, err)
	require.Equal(t, cmdutil.ExitUsage, cmdutil.ExitCode(context.Background(), err))

	set, found, err := checkpoint.Load(checkpoint.Path(out))
	require.NoError(t, err)
	require.True(t, found)
	require.Empty(t, set, "no file stays marked done once its rows may be gone")

	require.NoError(t, os.Remove(out))
	cfg := cfgFor(in, out)
	cfg.Resume = true
	st, err := Run(context.Background(), cfg, &markerScorer{}, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.Zero(t, st.FilesSkipped)
	require.Len(t, rows(t, out), 6)
}
