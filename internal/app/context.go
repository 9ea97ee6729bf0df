package app

import "context"

type queryIDKey struct{}

// WithQueryID attaches the audit query id so alerts raised deeper down can carry it.
func WithQueryID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, queryIDKey{}, id)
}

func QueryIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(queryIDKey{}).(string)
	return id
}
