package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"upkeep/internal/engine/auth"
	"upkeep/internal/repo"
)

type AuthConfig struct {
	JWTSecret string
	Logger    *log.Logger
}

// Principal is the authenticated caller. Every request past the middleware
// carries one, resolved against the user store so disabled accounts and
// stale role claims are rejected.
type Principal struct {
	UserID int64
	OrgID  int64
	Role   string
	Source string
}

type principalKey struct{}

func (c AuthConfig) logger() *log.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return log.Default()
}

func withPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func principalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

func principalFromRequest(ctx context.Context) (Principal, huma.StatusError) {
	if p, ok := principalFromContext(ctx); ok && p.UserID != 0 {
		return p, nil
	}
	return Principal{}, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil)
}

// requireRole checks the caller's role against the admin > manager > viewer
// ladder.
func requireRole(ctx context.Context, role string) (Principal, error) {
	p, authErr := principalFromRequest(ctx)
	if authErr != nil {
		return p, authErr
	}
	if !auth.RoleAtLeast(p.Role, role) {
		return p, auth.ForbiddenError{Role: role}
	}
	return p, nil
}

// requireOrg additionally pins the caller to one organization. Cross-tenant
// reads and writes come back as 404 rather than 403 so ids do not leak.
func requireOrg(ctx context.Context, role string, orgID int64) (Principal, error) {
	p, err := requireRole(ctx, role)
	if err != nil {
		return p, err
	}
	if p.OrgID != orgID {
		return p, repo.ErrNotFound
	}
	return p, nil
}

func authenticateBearer(ctx context.Context, r repo.Repo, secret, token string) (Principal, error) {
	claims, err := auth.ParseToken([]byte(secret), token)
	if err != nil {
		return Principal{}, err
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return Principal{}, err
	}
	u, err := r.GetUser(ctx, userID)
	if err != nil {
		return Principal{}, err
	}
	if !u.IsActive {
		return Principal{}, auth.ErrInvalidCredentials
	}
	return Principal{UserID: u.ID, OrgID: u.OrganizationID, Role: u.Role, Source: "jwt"}, nil
}

func authenticateAPIKey(ctx context.Context, r repo.Repo, key string) (Principal, error) {
	u, err := r.GetUserByAPIKey(ctx, key)
	if err != nil {
		return Principal{}, err
	}
	if !u.IsActive {
		return Principal{}, auth.ErrInvalidCredentials
	}
	return Principal{UserID: u.ID, OrgID: u.OrganizationID, Role: u.Role, Source: "api_key"}, nil
}

func bearerToken(authz string) (string, bool) {
	parts := strings.Fields(authz)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

func newAuthMiddleware(basePath string, cfg AuthConfig, r repo.Repo) func(http.Handler) http.Handler {
	open := map[string]bool{
		path.Join(basePath, "health"):        true,
		path.Join(basePath, "auth/login"):    true,
		path.Join(basePath, "auth/register"): true,
		path.Join(basePath, "openapi.json"):  true,
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if basePath != "" && !strings.HasPrefix(req.URL.Path, basePath) {
				next.ServeHTTP(w, req)
				return
			}
			authz := strings.TrimSpace(req.Header.Get("Authorization"))
			apiKeyHeader := strings.TrimSpace(req.Header.Get("X-Api-Key"))

			if open[req.URL.Path] {
				// Open endpoints still honor credentials when offered, so
				// e.g. an admin registering an account keeps their identity.
				if token, ok := bearerToken(authz); ok {
					if principal, err := authenticateBearer(req.Context(), r, cfg.JWTSecret, token); err == nil {
						req = req.WithContext(withPrincipal(req.Context(), principal))
					}
				} else if apiKeyHeader != "" {
					if principal, err := authenticateAPIKey(req.Context(), r, apiKeyHeader); err == nil {
						req = req.WithContext(withPrincipal(req.Context(), principal))
					}
				}
				next.ServeHTTP(w, req)
				return
			}

			if authz != "" {
				token, ok := bearerToken(authz)
				if !ok {
					respondStatusError(w, newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil))
					return
				}
				principal, err := authenticateBearer(req.Context(), r, cfg.JWTSecret, token)
				if err != nil {
					respondStatusError(w, newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil))
					return
				}
				next.ServeHTTP(w, req.WithContext(withPrincipal(req.Context(), principal)))
				return
			}

			if apiKeyHeader != "" {
				principal, err := authenticateAPIKey(req.Context(), r, apiKeyHeader)
				if err != nil {
					respondStatusError(w, newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil))
					return
				}
				next.ServeHTTP(w, req.WithContext(withPrincipal(req.Context(), principal)))
				return
			}

			respondStatusError(w, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil))
		})
	}
}

func respondStatusError(w http.ResponseWriter, err huma.StatusError) {
	status := http.StatusInternalServerError
	if e, ok := err.(interface{ GetStatus() int }); ok {
		status = e.GetStatus()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(err)
}
