package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"google.golang.org/api/idtoken"

	"github.com/raterudder/glowmeter/pkg/log"
)

// identity is who a verified bearer token belongs to.
type identity struct {
	Subject string
	Email   string
}

// tokenVerifier validates a bearer token and returns its identity.
type tokenVerifier func(ctx context.Context, rawToken string) (identity, error)

// oidcVerifier adapts an oidc.IDTokenVerifier's Verify method.
func oidcVerifier(verify func(ctx context.Context, rawIDToken string) (*oidc.IDToken, error)) tokenVerifier {
	return func(ctx context.Context, rawToken string) (identity, error) {
		idToken, err := verify(ctx, rawToken)
		if err != nil {
			return identity{}, err
		}
		var claims struct {
			Email string `json:"email"`
		}
		if err := idToken.Claims(&claims); err != nil {
			return identity{}, fmt.Errorf("invalid claims: %w", err)
		}
		return identity{Subject: idToken.Subject, Email: claims.Email}, nil
	}
}

// googleVerifier validates Google-signed ID tokens issued for audience.
// validate is idtoken.Validate outside of tests.
func googleVerifier(audience string, validate func(ctx context.Context, idToken string, audience string) (*idtoken.Payload, error)) tokenVerifier {
	return func(ctx context.Context, rawToken string) (identity, error) {
		payload, err := validate(ctx, rawToken, audience)
		if err != nil {
			return identity{}, err
		}
		email, _ := payload.Claims["email"].(string)
		return identity{Subject: payload.Subject, Email: email}, nil
	}
}

// authMiddleware requires a valid bearer token when any verifier is
// configured and lets every request through otherwise.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ctx = log.With(ctx, log.Ctx(ctx).With(slog.String("reqPath", r.URL.Path)))

		if len(s.verifiers) == 0 {
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			log.Ctx(ctx).WarnContext(ctx, "unauthenticated request")
			writeJSONError(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if !strings.HasPrefix(authHeader, "Bearer ") {
			log.Ctx(ctx).WarnContext(ctx, "invalid auth header")
			writeJSONError(w, "invalid auth header", http.StatusBadRequest)
			return
		}

		id, err := s.authenticateToken(ctx, strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			log.Ctx(ctx).WarnContext(ctx, "token validation failed", slog.Any("error", err))
			writeJSONError(w, "invalid auth token", http.StatusUnauthorized)
			return
		}

		ctx = log.With(ctx, log.Ctx(ctx).With(slog.String("authSubject", id.Subject)))
		log.Ctx(ctx).DebugContext(ctx, "authenticated request", slog.String("email", id.Email))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) authenticateToken(ctx context.Context, token string) (identity, error) {
	var errs []error
	for name, verifier := range s.verifiers {
		id, err := verifier(ctx, token)
		if err == nil {
			return id, nil
		}
		errs = append(errs, fmt.Errorf("%s verifier failed: %v", name, err))
	}

	if len(errs) > 1 {
		return identity{}, errors.Join(errs...)
	}
	if len(errs) == 1 {
		return identity{}, errs[0]
	}
	return identity{}, errors.New("no verifiers configured")
}
