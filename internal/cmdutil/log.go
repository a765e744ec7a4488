// internal/cmdutil/log.go
package cmdutil

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogOptions selects the logger's sinks and verbosity.
type LogOptions struct {
	LogFile string // JSON lines, appended; empty disables
	Quiet   bool   // console shows warnings and errors only
	Verbose bool   // console shows debug records
}

// NewLogger builds a console logger on dst, teed into a JSON log file when
// LogFile is set. The file always records Info and above. The returned
// closer flushes and closes the file.
func NewLogger(dst io.Writer, o LogOptions) (*zap.Logger, func() error, error) {
	level := zapcore.InfoLevel
	switch {
	case o.Verbose:
		level = zapcore.DebugLevel
	case o.Quiet:
		level = zapcore.WarnLevel
	}

	cc := zap.NewDevelopmentEncoderConfig()
	cc.EncodeTime = zapcore.ISO8601TimeEncoder
	cc.EncodeLevel = zapcore.CapitalLevelEncoder
	cc.CallerKey = ""
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(cc), zapcore.Lock(zapcore.AddSync(dst)), level),
	}

	closer := func() error { return nil }
	if o.LogFile != "" {
		f, err := os.OpenFile(o.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, errors.Wrap(err, "open log file")
		}
		fc := zap.NewProductionEncoderConfig()
		fc.EncodeTime = zapcore.RFC3339TimeEncoder
		fileLevel := zapcore.InfoLevel
		if o.Verbose {
			fileLevel = zapcore.DebugLevel
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fc), zapcore.Lock(f), fileLevel))
		closer = func() error {
			_ = f.Sync()
			return f.Close()
		}
	}

	log := zap.New(zapcore.NewTee(cores...))
	return log, func() error {
		_ = log.Sync()
		return closer()
	}, nil
}
