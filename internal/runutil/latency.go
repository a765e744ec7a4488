// internal/runutil/latency.go
package runutil

import (
	"time"

	"github.com/montanaflynn/stats"
)

// Latencies collects per-batch wall times.
type Latencies []time.Duration

// Summary returns the median and 95th percentile; zero when empty.
func (l Latencies) Summary() (median, p95 time.Duration) {
	if len(l) == 0 {
		return 0, 0
	}
	data := make(stats.Float64Data, len(l))
	for i, d := range l {
		data[i] = d.Seconds()
	}
	m, err := stats.Median(data)
	if err != nil {
		return 0, 0
	}
	p, err := stats.Percentile(data, 95)
	if err != nil {
		p = m
	}
	return seconds(m), seconds(p)
}

func seconds(s float64) time.Duration { return time.Duration(s * float64(time.Second)) }
