package logger

import "context"

type fieldsKey struct{}

// ContextWithFields returns a copy of ctx carrying fields, appended to any
// already stored. FromContext attaches them to a logger.
func ContextWithFields(ctx context.Context, fields ...Field) context.Context {
	if len(fields) == 0 {
		return ctx
	}
	prev, _ := ctx.Value(fieldsKey{}).([]Field)
	merged := make([]Field, 0, len(prev)+len(fields))
	merged = append(merged, prev...)
	merged = append(merged, fields...)
	return context.WithValue(ctx, fieldsKey{}, merged)
}

// FromContext returns base with the fields stored in ctx attached.
func FromContext(ctx context.Context, base Logger) Logger {
	fields, _ := ctx.Value(fieldsKey{}).([]Field)
	if len(fields) == 0 {
		return base
	}
	return base.With(fields...)
}
