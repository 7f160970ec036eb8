package observability

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggingConfig selects the zap level and encoder
type LoggingConfig struct {
	Level  string
	Format string
}

// ParseLevel returns an atomic level set to name. The level can be changed at
// runtime, e.g. after a configuration reload.
func ParseLevel(name string) (zap.AtomicLevel, error) {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return level, fmt.Errorf("invalid log level %q: %w", name, err)
	}
	return level, nil
}

// NewLogger builds the process logger writing at level
func NewLogger(cfg LoggingConfig, level zap.AtomicLevel) (*zap.Logger, error) {
	var config zap.Config
	if cfg.Format == "console" {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config = zap.NewProductionConfig()
		config.Sampling = &zap.SamplingConfig{
			Initial:    100,
			Thereafter: 100,
		}
	}
	config.Level = level
	config.OutputPaths = []string{"stderr"}
	config.ErrorOutputPaths = []string{"stderr"}

	logger, err := config.Build(zap.AddStacktrace(zap.ErrorLevel))
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, nil
}

// SetLevel changes level, ignoring unknown names
func SetLevel(level zap.AtomicLevel, name string, logger *zap.Logger) {
	var next zapcore.Level
	if err := next.UnmarshalText([]byte(name)); err != nil {
		logger.Warn("ignoring unknown log level", zap.String("level", name))
		return
	}
	if level.Level() != next {
		level.SetLevel(next)
		logger.Info("log level changed", zap.Stringer("level", next))
	}
}
