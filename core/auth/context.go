package auth

import "context"

type contextKey string

// SessionContextKey carries the *store.SessionRecord of the authenticated
// request through the middleware chain.
const SessionContextKey = contextKey("oficri-session")

// CredentialsContextKey carries the decoded login body from the rate
// limit middleware to the login handler, so the body is read once.
const CredentialsContextKey = contextKey("oficri-credentials")

type Credentials struct {
	CIP      string `json:"cip"`
	Password string `json:"password"`
}

func CredentialsFromContext(ctx context.Context) *Credentials {
	if v := ctx.Value(CredentialsContextKey); v != nil {
		return v.(*Credentials)
	}
	return nil
}
