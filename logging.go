package agentlens

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// newLogger builds the diagnostic logger for the pipeline's own operation.
// Diagnostics go to stderr, never through the export pipeline itself, so a
// backend outage can always be seen locally. An externally supplied logger
// takes precedence.
func newLogger(cfg Config) *zap.Logger {
	if cfg.Logger != nil {
		return cfg.Logger.Named("agentlens")
	}

	level := zapcore.InfoLevel
	if parsed, err := zapcore.ParseLevel(cfg.LogLevel); err == nil {
		level = parsed
	}

	var zcfg zap.Config
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.ErrorOutputPaths = []string{"stderr"}

	log, err := zcfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return log.Named("agentlens")
}
