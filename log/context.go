package log

import (
	"context"
	"maps"
)

type contextFieldsKey struct{}

// ContextWithFields attaches structured fields to a context; structured
// outputs pick them up on every entry logged with that context.
func ContextWithFields(ctx context.Context, fields map[string]any) context.Context {
	if existing := FieldsFromContext(ctx); existing != nil {
		merged := maps.Clone(existing)
		maps.Copy(merged, fields)
		fields = merged
	}
	return context.WithValue(ctx, contextFieldsKey{}, fields)
}

// FieldsFromContext returns the structured fields attached to the context,
// or nil.
func FieldsFromContext(ctx context.Context) map[string]any {
	fields, _ := ctx.Value(contextFieldsKey{}).(map[string]any)
	return fields
}
