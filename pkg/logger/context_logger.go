package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type ctxKey int

const operatorKey ctxKey = iota

// WithOperator records the authenticated operator for request-scoped logs.
func WithOperator(ctx context.Context, operatorID string) context.Context {
	return context.WithValue(ctx, operatorKey, operatorID)
}

// OperatorFromContext returns the operator set by WithOperator.
func OperatorFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(operatorKey).(string)
	return id, ok && id != ""
}

// FromContext returns base with the trace and operator of ctx attached.
func FromContext(ctx context.Context, base *zap.SugaredLogger) *zap.SugaredLogger {
	var fields []interface{}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields, "trace_id", sc.TraceID().String())
	}
	if id, ok := OperatorFromContext(ctx); ok {
		fields = append(fields, "operator_id", id)
	}
	if len(fields) == 0 {
		return base
	}
	return base.With(fields...)
}
