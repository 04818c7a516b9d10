package logger

import (
	"go.uber.org/zap"
)

// New builds a named sugared logger writing to stdout.
func New(name string) (*zap.SugaredLogger, error) {
	config := zap.NewProductionConfig()
	config.OutputPaths = []string{"stdout"}
	config.DisableStacktrace = true

	l, err := config.Build()
	if err != nil {
		return nil, err
	}

	return l.Sugar().Named(name), nil
}
