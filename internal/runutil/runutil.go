// internal/runutil/runutil.go
package runutil

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/klauspost/cpuid/v2"
	"github.com/shirou/gopsutil/host"
	"github.com/shirou/gopsutil/process"
)

// DefaultIngestWorkers is the FASTA reader pool size.
const DefaultIngestWorkers = 8

// DefaultOracleThreads is one model goroutine per physical core.
func DefaultOracleThreads() int {
	if n := cpuid.CPU.PhysicalCores; n > 0 {
		return n
	}
	return runtime.NumCPU()
}

// CPUSummary is a one-line description of the host CPU for the startup log.
func CPUSummary() string {
	var feats []string
	for _, f := range []struct {
		id   cpuid.FeatureID
		name string
	}{{cpuid.AVX2, "avx2"}, {cpuid.FMA3, "fma3"}, {cpuid.AVX512F, "avx512f"}} {
		if cpuid.CPU.Supports(f.id) {
			feats = append(feats, f.name)
		}
	}
	if len(feats) == 0 {
		feats = []string{"no simd"}
	}
	brand := strings.TrimSpace(cpuid.CPU.BrandName)
	if brand == "" {
		brand = runtime.GOARCH
	}
	return fmt.Sprintf("%s (%d physical / %d logical cores; %s)",
		brand, cpuid.CPU.PhysicalCores, runtime.NumCPU(), strings.Join(feats, ","))
}

// Platform reports the OS family and version, falling back to GOOS.
func Platform() string {
	_, family, version, err := host.PlatformInformation()
	if err != nil || family == "" {
		return runtime.GOOS
	}
	return family + " " + version
}

// Usage is a point-in-time sample of this process.
type Usage struct {
	RSS        uint64  // resident set size, bytes
	CPUPercent float64 // since process start
}

// Sample reads RSS and CPU for the current process. ok is false when the
// platform does not expose them.
func Sample() (u Usage, ok bool) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return Usage{}, false
	}
	mem, err := p.MemoryInfo()
	if err != nil || mem == nil {
		return Usage{}, false
	}
	u.RSS = mem.RSS
	if cpu, err := p.CPUPercent(); err == nil {
		u.CPUPercent = cpu
	}
	return u, true
}
