// internal/cmdutil/models.go
package cmdutil

import (
	"go.uber.org/zap"

	"argscreen/internal/bilstm"
	"argscreen/internal/predict"
)

// ModelOptions name the two bundles and how to evaluate them.
type ModelOptions struct {
	BinaryModel string
	MultiModel  string
	Threshold   float64
	BatchSize   int
	Threads     int
}

// LoadPredictor loads both bundles. Failures are setup errors.
func LoadPredictor(o ModelOptions, log *zap.Logger) (*predict.Predictor, error) {
	eval := bilstm.Options{Threads: o.Threads, MaxBatch: o.BatchSize}
	bin, err := bilstm.LoadBinary(o.BinaryModel, eval)
	if err != nil {
		return nil, Setup(err)
	}
	multi, err := bilstm.LoadMulti(o.MultiModel, eval)
	if err != nil {
		return nil, Setup(err)
	}
	log.Info("models loaded",
		zap.String("binary", o.BinaryModel),
		zap.Int("binary_max_len", bin.MaxLen()),
		zap.String("multi", o.MultiModel),
		zap.Int("multi_max_len", multi.MaxLen()),
		zap.Int("classes", multi.Classes().Len()),
		zap.Int("threads", o.Threads))
	return &predict.Predictor{
		Binary:    bin,
		Multi:     multi,
		Threshold: o.Threshold,
		BatchSize: o.BatchSize,
	}, nil
}
