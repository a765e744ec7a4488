// internal/arch/arch_test.go
package arch

import (
	"bytes"
	"encoding/json"
	"io"
	"os/exec"
	"strings"
	"testing"
)

type pkg struct {
	ImportPath string
	Imports    []string
	Standard   bool
}

const mod = "argscreen/"

var tools = []string{
	mod + "internal/cli", mod + "internal/app", mod + "internal/predictapp",
	mod + "internal/serveapp", mod + "cmd/",
}

func with(extra ...string) []string { return append(append([]string(nil), tools...), extra...) }

func TestImportBoundaries(t *testing.T) {
	cmd := exec.Command("go", "list", "-json", "./...")
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		t.Fatalf("go list: %v", err)
	}
	dec := json.NewDecoder(&out)

	bans := map[string][]string{
		// the scoring core knows nothing about runs, files on disk or models
		mod + "internal/encode":     with(mod+"internal/pipeline", mod+"internal/writers", mod+"internal/bilstm", mod+"internal/predict"),
		mod + "internal/oracle":     with(mod+"internal/pipeline", mod+"internal/writers", mod+"internal/bilstm", mod+"internal/predict"),
		mod + "internal/predict":    with(mod+"internal/pipeline", mod+"internal/writers", mod+"internal/bilstm", mod+"internal/server"),
		mod + "internal/bilstm":     with(mod+"internal/pipeline", mod+"internal/writers", mod+"internal/predict", mod+"internal/server"),
		mod + "internal/fasta":      with(mod+"internal/pipeline", mod+"internal/writers", mod+"internal/predict"),
		mod + "internal/source":     with(mod+"internal/pipeline", mod+"internal/writers"),
		mod + "internal/checkpoint": with(mod+"internal/pipeline", mod+"internal/writers"),
		mod + "internal/ingest":     with(mod+"internal/pipeline", mod+"internal/writers", mod+"internal/predict"),
		mod + "internal/writers":    with(mod+"internal/pipeline", mod+"internal/server", mod+"internal/bilstm"),
		mod + "internal/pipeline":   with(mod+"internal/server", mod+"internal/bilstm"),
		mod + "internal/server":     with(mod+"internal/pipeline", mod+"internal/bilstm"),
		mod + "pkg/api":             {mod + "internal/"},
	}

	var violations []string
	for {
		var p pkg
		if err := dec.Decode(&p); err == io.EOF {
			break
		} else if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !strings.HasPrefix(p.ImportPath, mod) {
			continue
		}
		imp := p.ImportPath
		for prefix, forbidden := range bans {
			if imp != prefix && !strings.HasPrefix(imp, prefix+"/") {
				continue
			}
			for _, dep := range p.Imports {
				if !strings.HasPrefix(dep, mod) {
					continue
				}
				for _, ban := range forbidden {
					if dep == ban || strings.HasPrefix(dep, strings.TrimSuffix(ban, "/")+"/") {
						violations = append(violations, imp+" → "+dep)
					}
				}
			}
		}
	}

	if len(violations) > 0 {
		t.Fatalf("import boundary violations:\n  %s", strings.Join(violations, "\n  "))
	}
}
