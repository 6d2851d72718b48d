package probe

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the logger for the given output format: "pretty"
// (console, info), "debug" (console, debug) or "json".
func NewLogger(output string) (*zap.SugaredLogger, error) {
	var cfg zap.Config
	switch output {
	case "", "pretty":
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
		cfg.DisableCaller = true
		cfg.DisableStacktrace = true
	case "debug":
		cfg = zap.NewDevelopmentConfig()
	case "json":
		cfg = zap.NewProductionConfig()
	default:
		return nil, fmt.Errorf("unknown output format %q, want pretty, debug or json", output)
	}
	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return l.Sugar(), nil
}
