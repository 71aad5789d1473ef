package tasks

import (
	"context"
	"crypto/rsa"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/hotelly/hotelly/internal/apperr"
)

// Minter mints the short-lived OIDC identity token attached to every
// task dispatch (by the ingress, and by the worker when it queues a
// send-response task), with audience set to the exact target URL
// (spec §4.8). It signs with the configured task signing RSA key;
// the worker fetches the matching public key from OIDCJWKSURL.
type Minter struct {
	issuer     string
	signingKey *rsa.PrivateKey
	keyID      string
	ttl        time.Duration
}

func NewMinter(issuer, keyID string, signingKey *rsa.PrivateKey) *Minter {
	return &Minter{issuer: issuer, signingKey: signingKey, keyID: keyID, ttl: 5 * time.Minute}
}

// Mint returns a signed JWT whose audience exactly equals targetURL.
func (m *Minter) Mint(ctx context.Context, targetURL string) (string, error) {
	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Issuer:    m.issuer,
		Subject:   "hotelly-ingress",
		Audience:  jwt.ClaimStrings{targetURL},
		ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
		ID:        uuid.NewString(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = m.keyID
	signed, err := token.SignedString(m.signingKey)
	if err != nil {
		return "", apperr.Permanent(apperr.CodeMissingConfig, "task identity token signing failed")
	}
	return signed, nil
}

// Verifier checks an incoming task request's bearer token against the
// OIDC issuer's JWKS (spec §4.8/§4.11): signature, issuer, and an
// exact audience match. On the first verification failure it rebuilds
// the remote key set once in case of key rotation before failing, per
// the spec's "refreshed on verification failure before giving up".
type Verifier struct {
	issuer   string
	jwksURL  string
	audience string

	keySet *oidc.RemoteKeySet
}

func NewVerifier(ctx context.Context, issuer, jwksURL, audience string) *Verifier {
	return &Verifier{
		issuer:   issuer,
		jwksURL:  jwksURL,
		audience: audience,
		keySet:   oidc.NewRemoteKeySet(ctx, jwksURL),
	}
}

// Verify checks rawIDToken's signature, issuer, and expiry, then
// asserts the audience string matches v.audience exactly. An audience
// mismatch after a successful signature check is a hard operational
// incident (spec §4.8): it means a task meant for a different worker
// reached this one.
func (v *Verifier) Verify(ctx context.Context, rawIDToken string) (*oidc.IDToken, error) {
	verifier := oidc.NewVerifier(v.issuer, v.keySet, &oidc.Config{SkipClientIDCheck: true})
	idToken, err := verifier.Verify(ctx, rawIDToken)
	if err != nil {
		// Key rotation can outrun the worker's key-set view; refresh once.
		v.keySet = oidc.NewRemoteKeySet(ctx, v.jwksURL)
		verifier = oidc.NewVerifier(v.issuer, v.keySet, &oidc.Config{SkipClientIDCheck: true})
		idToken, err = verifier.Verify(ctx, rawIDToken)
		if err != nil {
			return nil, apperr.Unauthorized("task identity token verification failed")
		}
	}

	if !audienceMatches(idToken.Audience, v.audience) {
		return nil, apperr.Invariant(apperr.CodeAudienceMismatch, "task identity token audience mismatch", map[string]any{
			"expected": v.audience,
			"got":      idToken.Audience,
		})
	}
	return idToken, nil
}

func audienceMatches(audiences []string, expected string) bool {
	for _, a := range audiences {
		if a == expected {
			return true
		}
	}
	return false
}
