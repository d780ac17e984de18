package metrics

import "go.uber.org/zap"

// NewLogger builds the structured logger a node constructs once at
// startup and passes down, the same way storage-node/cmd/storage/main.go
// builds its own: production defaults, info level, synced on shutdown
// by the caller.
func NewLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	return cfg.Build()
}
