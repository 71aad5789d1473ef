package authz

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/hotelly/hotelly/internal/apperr"
)

type contextKey string

const (
	userIDContextKey     contextKey = "authz_user_id"
	propertyIDContextKey contextKey = "authz_property_id"
	roleContextKey       contextKey = "authz_role"
)

// UserID extracts the resolved local user id from request context.
func UserID(ctx context.Context) string {
	v, _ := ctx.Value(userIDContextKey).(string)
	return v
}

// RoleFromContext extracts the caller's role for the request's
// property from context.
func RoleFromContext(ctx context.Context) Role {
	v, _ := ctx.Value(roleContextKey).(Role)
	return v
}

// oidcVerifier is the narrow slice of *oidc.IDTokenVerifier this
// middleware needs, so tests can substitute a fake.
type oidcVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (*oidc.IDToken, error)
}

// remoteKeySetRefresher rebuilds the verifier's key set after a
// verification failure, matching spec §4.11's "refresh-on-failure".
type remoteKeySetRefresher struct {
	issuer   string
	audience string
	jwksURL  string
	verifier oidcVerifier
	rebuild  func(jwksURL string) oidcVerifier
}

// Middleware enforces spec §4.11 on every property-scoped dashboard
// route: bearer token required, subject resolved to a local user,
// role loaded for the property named in the query string, and
// compared against the route's minimum.
type Middleware struct {
	refresher *remoteKeySetRefresher
	store     *Store
}

func NewMiddleware(ctx context.Context, issuer, jwksURL, audience string, store *Store) *Middleware {
	keySet := oidc.NewRemoteKeySet(ctx, jwksURL)
	verifier := oidc.NewVerifier(issuer, keySet, &oidc.Config{ClientID: audience})
	return &Middleware{
		refresher: &remoteKeySetRefresher{
			issuer:   issuer,
			audience: audience,
			jwksURL:  jwksURL,
			verifier: verifier,
			rebuild: func(jwksURL string) oidcVerifier {
				return oidc.NewVerifier(issuer, oidc.NewRemoteKeySet(ctx, jwksURL), &oidc.Config{ClientID: audience})
			},
		},
		store: store,
	}
}

// Require returns middleware that enforces the given minimum role.
// property_id must be present in the query string (spec §4.11).
func (m *Middleware) Require(min Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawToken := bearerToken(r)
			if rawToken == "" {
				writeJSONError(w, http.StatusUnauthorized, apperr.CodeUnauthorized, "missing bearer token")
				return
			}

			idToken, err := m.verify(r.Context(), rawToken)
			if err != nil {
				writeJSONError(w, http.StatusUnauthorized, apperr.CodeUnauthorized, "invalid bearer token")
				return
			}

			var claims struct {
				Email string `json:"email"`
			}
			_ = idToken.Claims(&claims)

			userID, err := m.store.ResolveSubject(r.Context(), idToken.Subject, claims.Email)
			if err != nil {
				writeJSONError(w, http.StatusInternalServerError, apperr.CodeTransientFailure, "subject resolution failed")
				return
			}

			propertyID := r.URL.Query().Get("property_id")
			if propertyID == "" {
				writeJSONError(w, http.StatusBadRequest, apperr.CodeInvalidInput, "property_id is required")
				return
			}

			role, ok, err := m.store.RoleForProperty(r.Context(), userID, propertyID)
			if err != nil {
				writeJSONError(w, http.StatusInternalServerError, apperr.CodeTransientFailure, "role lookup failed")
				return
			}
			if !ok || !Meets(role, min) {
				writeJSONError(w, http.StatusForbidden, apperr.CodeForbidden, "insufficient role for this endpoint")
				return
			}

			ctx := context.WithValue(r.Context(), userIDContextKey, userID)
			ctx = context.WithValue(ctx, propertyIDContextKey, propertyID)
			ctx = context.WithValue(ctx, roleContextKey, role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (m *Middleware) verify(ctx context.Context, rawToken string) (*oidc.IDToken, error) {
	idToken, err := m.refresher.verifier.Verify(ctx, rawToken)
	if err == nil {
		return idToken, nil
	}
	m.refresher.verifier = m.refresher.rebuild(m.refresher.jwksURL)
	return m.refresher.verifier.Verify(ctx, rawToken)
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(h, prefix) {
		return ""
	}
	return strings.TrimPrefix(h, prefix)
}

func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"code": code, "message": message})
}
