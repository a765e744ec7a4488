package runutil

import (
	"testing"
	"time"
)

func TestDefaultOracleThreads(t *testing.T) {
	if n := DefaultOracleThreads(); n < 1 {
		t.Fatalf("want >=1 thread, got %d", n)
	}
}

func TestCPUSummaryNotEmpty(t *testing.T) {
	if CPUSummary() == "" {
		t.Fatalf("empty CPU summary")
	}
	if Platform() == "" {
		t.Fatalf("empty platform")
	}
}

func TestSample(t *testing.T) {
	u, ok := Sample()
	if ok && u.RSS == 0 {
		t.Fatalf("sample reported ok with zero RSS")
	}
}

func TestLatenciesSummary(t *testing.T) {
	var l Latencies
	if m, p := l.Summary(); m != 0 || p != 0 {
		t.Fatalf("empty: got %v %v", m, p)
	}
	for i := 1; i <= 20; i++ {
		l = append(l, time.Duration(i)*time.Second)
	}
	m, p := l.Summary()
	if m != 10500*time.Millisecond {
		t.Fatalf("median = %v", m)
	}
	if p < 18*time.Second || p > 20*time.Second {
		t.Fatalf("p95 = %v", p)
	}
}
