package session

import (
	"context"
	"encoding/json"
)

type contextKey struct{}

// WithSession returns a context carrying s.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext returns the session installed by the auth gate, if any.
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(contextKey{}).(*Session)
	return s, ok && s != nil
}

// MustFromContext returns the request's session and panics when called
// outside a gated route.
func MustFromContext(ctx context.Context) *Session {
	s, ok := FromContext(ctx)
	if !ok {
		panic("session: used outside an authenticated request scope")
	}
	return s
}

func encodeFlash(f Flash) string {
	b, _ := json.Marshal(f)
	return string(b)
}

func decodeFlash(v string) (*Flash, error) {
	var f Flash
	if err := json.Unmarshal([]byte(v), &f); err != nil {
		return nil, err
	}
	return &f, nil
}
