// Package auth guards the HTTP transport with OpenID Connect bearer tokens.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc"
	"github.com/labstack/echo/v4"
)

// Logger defines the logging interface compatible with the application logger.
type Logger interface {
	Debug(msg any, args ...any)
	Warn(msg any, args ...any)
}

type contextKey struct{}

// Principal is the authenticated caller of a request.
type Principal struct {
	Subject string
	Email   string
}

// PrincipalFrom returns the caller stored by RequireAuth.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(contextKey{}).(Principal)
	return p, ok
}

// Auth verifies bearer access tokens issued by one OIDC provider.
type Auth struct {
	verifier *oidc.IDTokenVerifier
	logger   Logger
}

// New discovers the provider at issuer and prepares a token verifier.
func New(ctx context.Context, issuer string, logger Logger) (*Auth, error) {
	if issuer == "" {
		return nil, errors.New("oidc issuer is required when authentication is enabled")
	}
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, err
	}
	// Access tokens often carry an API audience rather than a client id.
	return NewWithVerifier(provider.Verifier(&oidc.Config{SkipClientIDCheck: true}), logger), nil
}

// NewWithVerifier creates an Auth around an existing verifier.
func NewWithVerifier(verifier *oidc.IDTokenVerifier, logger Logger) *Auth {
	return &Auth{verifier: verifier, logger: logger}
}

// RequireAuth is middleware that rejects requests without a valid bearer token.
func (a *Auth) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			w.Header().Set("WWW-Authenticate", "Bearer")
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}

		token, err := a.verifier.Verify(r.Context(), strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			if a.logger != nil {
				a.logger.Warn("rejected bearer token", "error", err, "path", r.URL.Path)
			}
			http.Error(w, "invalid token: "+err.Error(), http.StatusUnauthorized)
			return
		}

		var claims struct {
			Email string `json:"email"`
		}
		if err := token.Claims(&claims); err != nil {
			http.Error(w, "failed to parse token claims", http.StatusUnauthorized)
			return
		}

		p := Principal{Subject: token.Subject, Email: claims.Email}
		if a.logger != nil {
			a.logger.Debug("authenticated request", "subject", p.Subject, "path", r.URL.Path)
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextKey{}, p)))
	})
}

// Middleware adapts RequireAuth for echo routes.
func (a *Auth) Middleware() echo.MiddlewareFunc {
	return echo.WrapMiddleware(a.RequireAuth)
}
