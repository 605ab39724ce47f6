// Package routegroups wires handler methods onto the chi router behind
// the session and permission guards supplied by the server.
package routegroups

import "net/http"

type Guards struct {
	WithSession       func(http.HandlerFunc) http.HandlerFunc
	RequirePermission func(perm int) func(http.HandlerFunc) http.HandlerFunc
}

// SessionPerm requires an authenticated session holding the permission
// bit before the handler runs.
func (g Guards) SessionPerm(perm int, h http.HandlerFunc) http.HandlerFunc {
	return g.WithSession(g.RequirePermission(perm)(h))
}

// SessionOnly requires an authenticated session with no permission bit.
func (g Guards) SessionOnly(h http.HandlerFunc) http.HandlerFunc {
	return g.WithSession(h)
}
