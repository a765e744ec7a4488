// internal/cliutil/cliutil.go
package cliutil

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	arg "github.com/alexflint/go-arg"

	"argscreen/internal/cmdutil"
	"argscreen/internal/version"
	"argscreen/internal/writers"
)

// FindFlagValue returns the value given to --name (as "--name v" or
// "--name=v") before flags are parsed. The last occurrence wins.
func FindFlagValue(argv []string, name string) (string, bool) {
	long := "--" + name
	val, found := "", false
	for i := 0; i < len(argv); i++ {
		a := argv[i]
		if a == "--" {
			break
		}
		switch {
		case a == long:
			if i+1 < len(argv) {
				val, found = argv[i+1], true
				i++
			}
		case strings.HasPrefix(a, long+"="):
			val, found = a[len(long)+1:], true
		}
	}
	return val, found
}

// HasFlag reports whether --name appears in argv, with or without a value.
func HasFlag(argv []string, name string) bool {
	long := "--" + name
	for _, a := range argv {
		if a == "--" {
			return false
		}
		if a == long || strings.HasPrefix(a, long+"=") {
			return true
		}
	}
	return false
}

// ParseOutcome turns a parse error into an exit code. Help and version
// go to stdout and exit 0; anything else prints the error and usage to
// stderr and is a usage error.
func ParseOutcome(p *arg.Parser, err error, prog string, stdout, stderr io.Writer) int {
	outw := bufio.NewWriter(stdout)
	switch err {
	case arg.ErrHelp:
		p.WriteHelp(outw)
	case arg.ErrVersion:
		_, _ = fmt.Fprintf(outw, "%s version %s\n", prog, version.Version)
	default:
		_, _ = fmt.Fprintf(stderr, "%s: %v\n", prog, err)
		if p != nil {
			p.WriteUsage(stderr)
		}
		return cmdutil.ExitUsage
	}
	if e := outw.Flush(); e != nil && !writers.IsBrokenPipe(e) {
		_, _ = fmt.Fprintln(stderr, e)
		return cmdutil.ExitRuntime
	}
	return cmdutil.ExitOK
}
