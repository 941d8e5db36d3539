package http

import (
	"net/http"

	"billtracker/internal/auth"
	"billtracker/internal/log"
)

// TokenValidator resolves a bearer token to its claims.
type TokenValidator interface {
	Validate(token string) (*auth.Claims, error)
}

// requireAuth resolves the caller from the bearer token and stores it in
// the request context. The request logger gains the user id.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.deps.Tokens == nil {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "authentication is not configured"})
			return
		}

		token, err := auth.BearerToken(r)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: err.Error()})
			return
		}
		claims, err := s.deps.Tokens.Validate(token)
		if err != nil {
			log.FromContext(r.Context()).DebugContext(r.Context(), "Token rejected", log.FieldError, err)
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: auth.ErrInvalidToken.Error()})
			return
		}

		ctx := auth.WithUserID(r.Context(), claims.Subject)
		ctx = log.NewContext(ctx, log.FromContext(ctx).With(log.FieldUserID, claims.Subject))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
