package predictapp

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"argscreen/internal/bilstm/bilstmtest"
	"argscreen/internal/cmdutil"
)

var classes = []string{"beta_lactam", "glycopeptide", "tetracycline"}

func setup(t *testing.T, fastaBody string) (argv []string, outDir string) {
	t.Helper()
	dir := t.TempDir()
	bin, multi, err := bilstmtest.Bundles(dir, classes)
	require.NoError(t, err)
	in := filepath.Join(dir, "in.fasta")
	require.NoError(t, os.WriteFile(in, []byte(fastaBody), 0o644))
	outDir = filepath.Join(dir, "out")
	return []string{
		"--input", in, "--out-dir", outDir,
		"--binary-model", bin, "--multi-model", multi,
		"--oracle-threads", "2", "--quiet",
	}, outDir
}

func read(t *testing.T, p string) string {
	t.Helper()
	b, err := os.ReadFile(p)
	require.NoError(t, err)
	return string(b)
}

func TestRunWritesReports(t *testing.T) {
	argv, out := setup(t, ">a1 first\nMKWCLL\n>n1\nMKVALL\n>a2\nmkwall*\n")
	var stdout, stderr bytes.Buffer
	code := RunContext(context.Background(), argv, &stdout, &stderr)
	require.Equal(t, cmdutil.ExitOK, code, stderr.String())

	all := strings.Split(strings.TrimSpace(read(t, filepath.Join(out, AllPredictions))), "\n")
	require.Len(t, all, 4)
	require.Equal(t, "id\tis_arg\tbinary_prob\targ_class\tclass_prob\ttop_classes", all[0])
	require.True(t, strings.HasPrefix(all[1], "a1\tTrue\t"))
	require.True(t, strings.HasPrefix(all[2], "n1\tFalse\t"))
	require.True(t, strings.HasSuffix(all[2], "\t\t\t"))

	argRows := strings.Split(strings.TrimSpace(read(t, filepath.Join(out, ARGPredictions))), "\n")
	require.Len(t, argRows, 3)
	require.Contains(t, argRows[1], "\tbeta_lactam\t")
	require.Contains(t, argRows[2], "\tglycopeptide\t")

	fa := read(t, filepath.Join(out, ARGSequences))
	require.Equal(t, 2, strings.Count(fa, ">"))
	require.Contains(t, fa, ">a1 | ARG_class=beta_lactam | class_prob=")
	require.Contains(t, fa, "MKWALL")

	require.Equal(t, "arg_class\tcount\nbeta_lactam\t1\nglycopeptide\t1\n",
		read(t, filepath.Join(out, ClassSummary)))

	require.Contains(t, stdout.String(), "sequences\t3\n")
	require.Contains(t, stdout.String(), "ARG\t2\n")
}

func TestRunEmptyInput(t *testing.T) {
	argv, out := setup(t, "")
	var stdout, stderr bytes.Buffer
	require.Equal(t, cmdutil.ExitOK, RunContext(context.Background(), argv, &stdout, &stderr))
	_, err := os.Stat(out)
	require.True(t, os.IsNotExist(err))
	require.Contains(t, stderr.String(), "no sequences")
}

func TestRunSetupErrors(t *testing.T) {
	argv, _ := setup(t, ">a\nMK\n")
	bad := append([]string(nil), argv...)
	bad[5] = filepath.Join(t.TempDir(), "missing.bundle")
	require.Equal(t, cmdutil.ExitUsage, RunContext(context.Background(), bad, &bytes.Buffer{}, &bytes.Buffer{}))

	missingIn := append([]string(nil), argv...)
	missingIn[1] = filepath.Join(t.TempDir(), "nope.fasta")
	require.Equal(t, cmdutil.ExitUsage, RunContext(context.Background(), missingIn, &bytes.Buffer{}, &bytes.Buffer{}))

	require.Equal(t, cmdutil.ExitUsage, RunContext(context.Background(), append(argv, "--top-k", "0"), &bytes.Buffer{}, &bytes.Buffer{}))
}

func TestHelp(t *testing.T) {
	var stdout bytes.Buffer
	require.Equal(t, cmdutil.ExitOK, RunContext(context.Background(), []string{"--help"}, &stdout, &bytes.Buffer{}))
	require.Contains(t, stdout.String(), "--top-k")
}
