package actorctx

import "context"

type ctxKey struct{}

// WithSubjectID stamps the verified caller onto ctx so code below the HTTP
// layer (logging, events) can see who acted.
func WithSubjectID(ctx context.Context, subjectID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, subjectID)
}

func SubjectIDFrom(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxKey{}).(string)

	return v, ok && v != ""
}
