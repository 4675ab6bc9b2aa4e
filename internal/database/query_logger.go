package database

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// QueryRecorder receives per-query metrics. *metrics.Metrics satisfies it.
type QueryRecorder interface {
	RecordDBQuery(operation string, duration time.Duration, err error)
}

// QueryLogger implements pgx.QueryTracer. It logs failed and slow queries
// and reports every query to the recorder.
type QueryLogger struct {
	slowThreshold time.Duration
	recorder      QueryRecorder
	logger        *zap.Logger
}

// NewQueryLogger creates a query tracer. recorder may be nil.
func NewQueryLogger(slowThreshold time.Duration, recorder QueryRecorder, logger *zap.Logger) *QueryLogger {
	if slowThreshold <= 0 {
		slowThreshold = 100 * time.Millisecond
	}
	return &QueryLogger{
		slowThreshold: slowThreshold,
		recorder:      recorder,
		logger:        logger.Named("query"),
	}
}

type queryTraceData struct {
	startTime time.Time
	sql       string
}

type ctxKey struct{}

// TraceQueryStart implements pgx.QueryTracer.
func (ql *QueryLogger) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, ctxKey{}, &queryTraceData{
		startTime: time.Now(),
		sql:       data.SQL,
	})
}

// TraceQueryEnd implements pgx.QueryTracer.
func (ql *QueryLogger) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	traceData, ok := ctx.Value(ctxKey{}).(*queryTraceData)
	if !ok {
		return
	}

	duration := time.Since(traceData.startTime)
	if ql.recorder != nil {
		ql.recorder.RecordDBQuery(operationName(traceData.sql), duration, data.Err)
	}

	switch {
	case data.Err != nil:
		ql.logger.Error("query failed",
			zap.String("sql", truncateSQL(traceData.sql, 500)),
			zap.Duration("duration", duration),
			zap.Error(data.Err),
		)
	case duration >= ql.slowThreshold:
		ql.logger.Warn("slow query detected",
			zap.String("sql", truncateSQL(traceData.sql, 500)),
			zap.Duration("duration", duration),
			zap.Duration("threshold", ql.slowThreshold),
			zap.String("command_tag", data.CommandTag.String()),
		)
	}
}

// operationName returns the lower-cased leading SQL keyword, used as a
// low-cardinality metrics label.
func operationName(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "unknown"
	}
	return strings.ToLower(fields[0])
}

// truncateSQL truncates SQL to a maximum length for logging.
func truncateSQL(sql string, maxLen int) string {
	if len(sql) <= maxLen {
		return sql
	}
	return sql[:maxLen-3] + "..."
}
