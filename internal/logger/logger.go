package logger

import "go.uber.org/zap"

// New returns a development logger for "development" and "dev", a
// production JSON logger otherwise.
func New(env string) (*zap.Logger, error) {
	switch env {
	case "development", "dev":
		return zap.NewDevelopment()
	default:
		return zap.NewProduction()
	}
}
