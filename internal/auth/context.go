// ABOUTME: Authenticated identity carried through request handlers
// ABOUTME: Provides WithSubject/SubjectFrom for propagating it via context

package auth

import "context"

type subjectKey struct{}

// WithSubject returns a context carrying the authenticated subject.
func WithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, subjectKey{}, subject)
}

// SubjectFrom returns the authenticated subject, or "" for anonymous
// requests.
func SubjectFrom(ctx context.Context) string {
	s, _ := ctx.Value(subjectKey{}).(string)
	return s
}
