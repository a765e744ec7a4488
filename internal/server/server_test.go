package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"argscreen/internal/bilstm"
	"argscreen/internal/bilstm/bilstmtest"
	"argscreen/internal/encode"
	"argscreen/internal/oracle"
	"argscreen/internal/predict"
	"argscreen/pkg/api"
)

var classes = []string{"beta_lactam", "glycopeptide", "tetracycline"}

type countingBinary struct {
	oracle.Binary
	items int64
}

func (c *countingBinary) ScoreBinary(ctx context.Context, batch []encode.Tokens) ([]float64, error) {
	atomic.AddInt64(&c.items, int64(len(batch)))
	return c.Binary.ScoreBinary(ctx, batch)
}

func newTestServer(t *testing.T, opts Options) (*httptest.Server, *countingBinary) {
	t.Helper()
	bin, err := bilstm.NewBinary(bilstmtest.BinaryBundle(), bilstm.Options{Threads: 2})
	require.NoError(t, err)
	multi, err := bilstm.NewMulti(bilstmtest.MultiBundle(classes), bilstm.Options{Threads: 2})
	require.NoError(t, err)
	cb := &countingBinary{Binary: bin}
	s, err := New(&predict.Predictor{Binary: cb, Multi: multi, Threshold: 0.5, BatchSize: 8}, opts, zaptest.NewLogger(t))
	require.NoError(t, err)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts, cb
}

func postJSON(t *testing.T, url, body string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var raw json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))
	return resp, raw
}

func TestHealthAndClasses(t *testing.T) {
	ts, _ := newTestServer(t, Options{})

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/v1/classes")
	require.NoError(t, err)
	defer resp.Body.Close()
	var got api.ClassesV1
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Equal(t, classes, got.Classes)

	resp, err = http.Post(ts.URL+"/healthz", "text/plain", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestPredictJSON(t *testing.T) {
	ts, _ := newTestServer(t, Options{})
	resp, raw := postJSON(t, ts.URL+"/v1/predict",
		`{"sequences":[{"id":"a","sequence":"mkwc*"},{"id":"b","sequence":"MKVA"}],"top_k":2}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	var got api.PredictResponseV1
	require.NoError(t, json.Unmarshal(raw, &got))
	require.Len(t, got.Predictions, 2)

	a, b := got.Predictions[0], got.Predictions[1]
	require.Equal(t, "a", a.SequenceID)
	require.True(t, a.IsARG)
	require.Equal(t, "beta_lactam", *a.ARGClass)
	require.Len(t, a.TopClasses, 2)
	require.Equal(t, "beta_lactam", a.TopClasses[0].Class)

	require.Equal(t, "b", b.SequenceID)
	require.False(t, b.IsARG)
	require.Nil(t, b.ARGClass)
	require.Nil(t, b.ClassProb)
	require.Empty(t, b.TopClasses)
	require.Contains(t, string(raw), `"arg_class":null`)
}

func TestPredictThresholdOverride(t *testing.T) {
	ts, _ := newTestServer(t, Options{})
	_, raw := postJSON(t, ts.URL+"/v1/predict", `{"sequences":[{"id":"b","sequence":"MKVA"}],"threshold":0}`)
	var got api.PredictResponseV1
	require.NoError(t, json.Unmarshal(raw, &got))
	require.True(t, got.Predictions[0].IsARG, "threshold 0 accepts everything")
}

func TestPredictCache(t *testing.T) {
	ts, cb := newTestServer(t, Options{})
	body := `{"sequences":[{"id":"x1","sequence":"MKWA"},{"id":"x2","sequence":"MKVA"}]}`
	postJSON(t, ts.URL+"/v1/predict", body)
	require.EqualValues(t, 2, atomic.LoadInt64(&cb.items))

	_, raw := postJSON(t, ts.URL+"/v1/predict", `{"sequences":[{"id":"y1","sequence":"mkwa"},{"id":"new","sequence":"MKWW"}]}`)
	require.EqualValues(t, 3, atomic.LoadInt64(&cb.items), "cleaned duplicate served from cache")

	var got api.PredictResponseV1
	require.NoError(t, json.Unmarshal(raw, &got))
	require.Equal(t, "y1", got.Predictions[0].SequenceID)
	require.True(t, got.Predictions[0].IsARG)

	postJSON(t, ts.URL+"/v1/predict", `{"sequences":[{"id":"z","sequence":"MKWA"}],"top_k":3}`)
	require.EqualValues(t, 4, atomic.LoadInt64(&cb.items), "k is part of the key")
}

func TestPredictFASTA(t *testing.T) {
	ts, _ := newTestServer(t, Options{})
	resp, err := http.Post(ts.URL+"/v1/predict/fasta?top_k=1", "text/plain",
		strings.NewReader(">p1 desc\nMKW\nCA\n>p2\nMKV\n"))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got api.PredictResponseV1
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Len(t, got.Predictions, 2)
	require.Equal(t, "p1", got.Predictions[0].SequenceID)
	require.True(t, got.Predictions[0].IsARG)
	require.Len(t, got.Predictions[0].TopClasses, 1)
	require.False(t, got.Predictions[1].IsARG)
}

func TestPredictRejects(t *testing.T) {
	ts, _ := newTestServer(t, Options{MaxBodyBytes: 256, MaxSequences: 2})
	cases := []struct {
		name, path, body string
		status           int
	}{
		{"bad json", "/v1/predict", `{"sequences":`, http.StatusBadRequest},
		{"unknown field", "/v1/predict", `{"seqs":[]}`, http.StatusBadRequest},
		{"threshold range", "/v1/predict", `{"sequences":[],"threshold":1.5}`, http.StatusBadRequest},
		{"top_k", "/v1/predict", `{"sequences":[],"top_k":0}`, http.StatusBadRequest},
		{"too many", "/v1/predict", `{"sequences":[{"id":"1","sequence":"M"},{"id":"2","sequence":"M"},{"id":"3","sequence":"M"}]}`, http.StatusRequestEntityTooLarge},
		{"too big", "/v1/predict", `{"sequences":[{"id":"1","sequence":"` + strings.Repeat("M", 400) + `"}]}`, http.StatusRequestEntityTooLarge},
		{"fasta no header", "/v1/predict/fasta", "MKW\n", http.StatusBadRequest},
		{"fasta bad query", "/v1/predict/fasta?threshold=high", ">a\nM\n", http.StatusBadRequest},
		{"fasta NaN threshold", "/v1/predict/fasta?threshold=NaN", ">a\nM\n", http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, raw := postJSON(t, ts.URL+tc.path, tc.body)
			require.Equal(t, tc.status, resp.StatusCode, string(raw))
			var e api.ErrorV1
			require.NoError(t, json.Unmarshal(raw, &e))
			require.NotEmpty(t, e.Error)
		})
	}
}
