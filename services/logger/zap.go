package logsvc

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewConsoleLogger builds the named zap logger printing to stdout:
// colored and human readable in debug, JSON otherwise.
func NewConsoleLogger(name string, debug bool) (*zap.Logger, error) {
	var config zap.Config
	if debug {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config = zap.NewProductionConfig()
	}
	config.OutputPaths = []string{"stdout"}

	logger, err := config.Build(zap.AddCallerSkip(2)) // skip RollbarLogger frames
	if err != nil {
		return nil, err
	}
	return logger.Named(name), nil
}
