package composables

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/shipos/shipos/pkg/configuration"
	"github.com/shipos/shipos/pkg/constants"
)

func WithLogger(ctx context.Context, logger *logrus.Entry) context.Context {
	return context.WithValue(ctx, constants.LoggerKey, logger)
}

// UseLogger returns the request-scoped logger, or an entry on the configured logger
// when ctx carries none (CLI and background work).
func UseLogger(ctx context.Context) *logrus.Entry {
	if logger, ok := ctx.Value(constants.LoggerKey).(*logrus.Entry); ok && logger != nil {
		return logger
	}
	return logrus.NewEntry(configuration.Use().Logger())
}
