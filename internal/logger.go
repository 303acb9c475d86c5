package internal

import (
	"context"

	logutil "github.com/NYCU-SDC/summer/pkg/log"
	"go.uber.org/zap"
)

// WithContext parses the context and adds the migration run ID to the logger if available
func WithContext(ctx context.Context, logger *zap.Logger) *zap.Logger {
	logger = logutil.WithContext(ctx, logger)
	if ctx == nil {
		return logger
	}

	runID, ok := ctx.Value(RunIDContextKey).(string)
	if ok && runID != "" {
		logger = logger.With(zap.String("run_id", runID))
	}

	return logger
}
