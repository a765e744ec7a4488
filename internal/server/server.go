// Package server exposes single-record screening over HTTP.
//
// Routes:
//
//	GET  /healthz            liveness
//	GET  /v1/classes         class names in model order
//	POST /v1/predict         JSON PredictRequestV1
//	POST /v1/predict/fasta   FASTA body, ?threshold=&top_k=
//
// Both prediction routes answer with PredictResponseV1. Results are cached
// per (cleaned residues, threshold, k).
package server

import (
	"context"
	"math"
	"net/http"
	"strconv"

	"github.com/dgryski/go-spooky"
	"github.com/gorilla/mux"
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"argscreen/internal/fasta"
	"argscreen/internal/jsonutil"
	"argscreen/internal/predict"
	"argscreen/internal/writers"
	"argscreen/pkg/api"
)

// Defaults for Options fields left at zero.
const (
	DefaultMaxBodyBytes = 4 << 20
	DefaultMaxSequences = 1000
	DefaultCacheSize    = 8192
)

// Options bound request size and cache memory.
type Options struct {
	MaxBodyBytes int64
	MaxSequences int
	CacheSize    int
}

func (o Options) withDefaults() Options {
	if o.MaxBodyBytes <= 0 {
		o.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if o.MaxSequences <= 0 {
		o.MaxSequences = DefaultMaxSequences
	}
	if o.CacheSize <= 0 {
		o.CacheSize = DefaultCacheSize
	}
	return o
}

// Server answers prediction requests with a shared predictor.
type Server struct {
	pred  *predict.Predictor
	opts  Options
	cache *lru.Cache
	log   *zap.Logger
}

type cacheKey struct {
	residues  uint64
	length    int
	threshold float64
	k         int
}

// New builds a server around pred. pred.Threshold is the default gate for
// requests that do not set their own.
func New(pred *predict.Predictor, opts Options, log *zap.Logger) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}
	opts = opts.withDefaults()
	cache, err := lru.New(opts.CacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "prediction cache")
	}
	return &Server{pred: pred, opts: opts, cache: cache, log: log}, nil
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/v1/classes", s.handleClasses).Methods(http.MethodGet)
	r.HandleFunc("/v1/predict", s.handlePredictJSON).Methods(http.MethodPost)
	r.HandleFunc("/v1/predict/fasta", s.handlePredictFASTA).Methods(http.MethodPost)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) handleClasses(w http.ResponseWriter, r *http.Request) {
	s.reply(w, r, http.StatusOK, api.ClassesV1{Classes: s.pred.Multi.Classes().Names()})
}

func (s *Server) handlePredictJSON(w http.ResponseWriter, r *http.Request) {
	var req api.PredictRequestV1
	if err := jsonutil.DecodeStrict(http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes), &req); err != nil {
		s.fail(w, r, bodyStatus(err), errors.Wrap(err, "decode request"))
		return
	}
	threshold, k := s.pred.Threshold, predict.DefaultTopK
	if req.Threshold != nil {
		threshold = *req.Threshold
	}
	if req.TopK != nil {
		k = *req.TopK
	}
	recs := make([]fasta.Record, len(req.Sequences))
	for i, sq := range req.Sequences {
		recs[i] = fasta.Record{ID: sq.ID, Seq: fasta.Clean([]byte(sq.Sequence))}
	}
	s.predict(w, r, recs, threshold, k)
}

func (s *Server) handlePredictFASTA(w http.ResponseWriter, r *http.Request) {
	threshold, k := s.pred.Threshold, predict.DefaultTopK
	q := r.URL.Query()
	if v := q.Get("threshold"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			s.fail(w, r, http.StatusBadRequest, errors.Wrap(err, "threshold"))
			return
		}
		threshold = f
	}
	if v := q.Get("top_k"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.fail(w, r, http.StatusBadRequest, errors.Wrap(err, "top_k"))
			return
		}
		k = n
	}
	recs, err := fasta.Read(r.Context(), http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes), "request")
	if err != nil {
		s.fail(w, r, bodyStatus(err), err)
		return
	}
	s.predict(w, r, recs, threshold, k)
}

func (s *Server) predict(w http.ResponseWriter, r *http.Request, recs []fasta.Record, threshold float64, k int) {
	switch {
	case math.IsNaN(threshold) || threshold < 0 || threshold > 1:
		s.fail(w, r, http.StatusBadRequest, errors.Errorf("threshold must be in [0,1], got %g", threshold))
		return
	case k < 1:
		s.fail(w, r, http.StatusBadRequest, errors.Errorf("top_k must be ≥ 1, got %d", k))
		return
	case len(recs) > s.opts.MaxSequences:
		s.fail(w, r, http.StatusRequestEntityTooLarge,
			errors.Errorf("%d sequences exceed the limit of %d", len(recs), s.opts.MaxSequences))
		return
	}
	results, err := s.screen(r.Context(), recs, threshold, k)
	if err != nil {
		s.fail(w, r, http.StatusInternalServerError, err)
		return
	}
	resp := api.PredictResponseV1{Predictions: make([]api.PredictionV1, len(results))}
	for i, res := range results {
		resp.Predictions[i] = writers.ToV1(res)
	}
	s.reply(w, r, http.StatusOK, resp)
}

// screen answers cached records from the cache and scores the rest in one
// predictor call.
func (s *Server) screen(ctx context.Context, recs []fasta.Record, threshold float64, k int) ([]predict.Result, error) {
	out := make([]predict.Result, len(recs))
	keys := make([]cacheKey, len(recs))
	var missIdx []int
	var miss []fasta.Record
	for i, rec := range recs {
		keys[i] = cacheKey{residues: spooky.Hash64(rec.Seq), length: len(rec.Seq), threshold: threshold, k: k}
		if v, ok := s.cache.Get(keys[i]); ok {
			out[i] = v.(predict.Result)
			out[i].SequenceID = rec.ID
			continue
		}
		missIdx = append(missIdx, i)
		miss = append(miss, rec)
	}
	if len(miss) == 0 {
		return out, nil
	}

	p := *s.pred
	p.Threshold = threshold
	scored, err := p.PredictTop(ctx, miss, k)
	if err != nil {
		return nil, err
	}
	for j, i := range missIdx {
		out[i] = scored[j]
		s.cache.Add(keys[i], scored[j])
	}
	s.log.Debug("screened", zap.Int("records", len(recs)), zap.Int("scored", len(miss)))
	return out, nil
}

func (s *Server) reply(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := jsonutil.Encode(w, v, r.URL.Query().Get("pretty") != ""); err != nil && !writers.IsBrokenPipe(err) {
		s.log.Warn("write response", zap.Error(err))
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	s.reply(w, r, status, api.ErrorV1{Error: err.Error()})
}

func bodyStatus(err error) int {
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}
