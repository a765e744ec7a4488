package cliutil

import (
	"bytes"
	"errors"
	"testing"

	arg "github.com/alexflint/go-arg"
	"github.com/stretchr/testify/require"

	"argscreen/internal/cmdutil"
)

func TestFindFlagValue(t *testing.T) {
	argv := []string{"--resume", "--config", "a.yaml", "--output", "o.tsv", "--config=b.yaml"}
	v, ok := FindFlagValue(argv, "config")
	require.True(t, ok)
	require.Equal(t, "b.yaml", v)

	_, ok = FindFlagValue([]string{"--config"}, "config")
	require.False(t, ok, "dangling flag has no value")

	_, ok = FindFlagValue([]string{"--", "--config", "x"}, "config")
	require.False(t, ok)

	v, ok = FindFlagValue([]string{"--configs", "x", "--config", "y"}, "config")
	require.True(t, ok)
	require.Equal(t, "y", v)
}

func TestHasFlag(t *testing.T) {
	require.True(t, HasFlag([]string{"--ext", ".fa"}, "ext"))
	require.True(t, HasFlag([]string{"--ext=.fa"}, "ext"))
	require.False(t, HasFlag([]string{"--extra"}, "ext"))
	require.False(t, HasFlag([]string{"--", "--ext"}, "ext"))
}

func TestParseOutcome(t *testing.T) {
	var opts struct {
		Name string `arg:"--name" help:"a name"`
	}
	p, err := arg.NewParser(arg.Config{Program: "tool"}, &opts)
	require.NoError(t, err)

	var out, errb bytes.Buffer
	require.Equal(t, cmdutil.ExitOK, ParseOutcome(p, p.Parse([]string{"--help"}), "tool", &out, &errb))
	require.Contains(t, out.String(), "--name")

	out.Reset()
	require.Equal(t, cmdutil.ExitOK, ParseOutcome(p, arg.ErrVersion, "tool", &out, &errb))
	require.Contains(t, out.String(), "tool version")

	out.Reset()
	require.Equal(t, cmdutil.ExitUsage, ParseOutcome(p, errors.New("bad"), "tool", &out, &errb))
	require.Empty(t, out.String())
	require.Contains(t, errb.String(), "tool: bad")
}
