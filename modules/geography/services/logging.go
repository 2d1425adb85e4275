package services

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/iota-uz/geo-migrate/pkg/logging"
)

func logWithFields(ctx context.Context, level logrus.Level, msg string, fields logrus.Fields) {
	logger := logging.FromContext(ctx)
	if logger == nil {
		return
	}
	logger.WithFields(fields).Log(level, msg)
}

func logProgress(ctx context.Context, phase Phase, n, total int, fields logrus.Fields) {
	if fields == nil {
		fields = logrus.Fields{}
	}
	fields["phase"] = phase
	fields["progress"] = fmt.Sprintf("%d/%d", n, total)
	logWithFields(ctx, logrus.DebugLevel, "processing row", fields)
}

func logPhaseSummary(ctx context.Context, r *PhaseReport) {
	fields := logrus.Fields{
		"phase":         r.Phase,
		"created":       r.Created,
		"updated":       r.Updated,
		"skipped":       r.SkippedTotal(),
		"rows_affected": r.RowsAffected,
	}
	if r.CapReached {
		fields["cap_reached"] = true
	}
	if r.Err != nil {
		fields["error"] = r.Err.Error()
		logWithFields(ctx, logrus.ErrorLevel, "phase failed", fields)
		return
	}
	logWithFields(ctx, logrus.InfoLevel, "rows affected", fields)
}
