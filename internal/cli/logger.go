package cli

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// newDebugLogger builds the JSON debug logger used with --verbose. It writes
// to the command's stderr so tests can capture it.
func newDebugLogger(globals *Globals) *zap.SugaredLogger {
	if globals == nil || !globals.Verbose || globals.Stderr == nil {
		return zap.NewNop().Sugar()
	}
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encCfg),
		zapcore.Lock(zapcore.AddSync(globals.Stderr)),
		zap.NewAtomicLevelAt(zap.DebugLevel),
	)
	return zap.New(core).Sugar().With("pid", os.Getpid())
}
