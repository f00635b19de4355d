package http

import (
	"net/http"

	"saldo/internal/auth"
	"saldo/internal/log"
)

// handleAnonymousSignIn mints a new user scope. The token is returned in the
// body for API clients and set as an HttpOnly cookie for browsers.
func (s *Server) handleAnonymousSignIn(w http.ResponseWriter, r *http.Request) {
	tok, err := s.issuer.IssueAnonymous()
	if err != nil {
		writeError(w, r, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    tok.Token,
		Path:     "/",
		Expires:  tok.ExpiresAt,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	log.FromContext(r.Context()).WithComponent(log.ComponentAuth).InfoContext(r.Context(), "Anonymous sign-in",
		log.FieldScope, tok.Scope)
	NewJSONResponse().Status(http.StatusCreated).Body(tok).Write(w)
}
