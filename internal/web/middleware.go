package web

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hpungsan/willow/internal/errors"
	"github.com/hpungsan/willow/internal/identity"
)

// SessionCookie carries the client's session id.
const SessionCookie = "willow_session"

type sessionKey struct{}

// withIdentity authenticates the bearer token and attaches the user id.
// Static authenticators accept requests without a token.
func withIdentity(auth identity.Authenticator, log *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		userID, err := auth.Authenticate(token)
		if err != nil {
			log.Debug("authentication failed", zap.String("path", r.URL.Path), zap.Error(err))
			renderError(w, log, errors.NewUnauthenticated())
			return
		}
		next.ServeHTTP(w, r.WithContext(identity.WithUser(r.Context(), userID)))
	})
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// withSession reads the session cookie, issuing a fresh one when the client
// has none or presents a malformed id.
func withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sid := ""
		if c, err := r.Cookie(SessionCookie); err == nil {
			if id, err := uuid.Parse(c.Value); err == nil {
				sid = id.String()
			}
		}
		if sid == "" {
			sid = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookie,
				Value:    sid,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
				Secure:   r.TLS != nil,
			})
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, sid)))
	})
}

func sessionFrom(ctx context.Context) string {
	v, _ := ctx.Value(sessionKey{}).(string)
	return v
}
