package testutil

import (
	"net/http"

	"fortaudit/internal/platform/middleware"
)

// WithActor adds the authenticated actor to the request context.
// This simulates what the auth middleware would do for authenticated requests.
func WithActor(req *http.Request, actorID, role string) *http.Request {
	return req.WithContext(middleware.WithActor(req.Context(), actorID, role))
}
