package collab

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// HTTPDoer sends HTTP requests. *http.Client satisfies it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Well-known federated providers.
var (
	AppleProvider = JWTProvider{
		Name:    ProviderApple,
		Issuer:  "https://appleid.apple.com",
		JWKSURL: "https://appleid.apple.com/auth/keys",
	}
	GoogleProvider = JWTProvider{
		Name:    ProviderGoogle,
		Issuer:  "https://accounts.google.com",
		JWKSURL: "https://www.googleapis.com/oauth2/v3/certs",
	}
)

// JWTProvider describes an OpenID provider signing RS256 id tokens.
type JWTProvider struct {
	Name      string
	Issuer    string
	JWKSURL   string
	Audiences []string
}

// keysTTL bounds how long fetched signing keys are trusted.
const keysTTL = time.Hour

// JWTVerifier is a FederatedVerifier for one provider.
type JWTVerifier struct {
	provider JWTProvider
	http     HTTPDoer
	now      func() time.Time

	mu        sync.Mutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
}

// NewJWTVerifier returns a verifier for provider. A nil doer uses a client
// with a short timeout.
func NewJWTVerifier(provider JWTProvider, doer HTTPDoer) *JWTVerifier {
	if doer == nil {
		doer = &http.Client{Timeout: 10 * time.Second}
	}
	return &JWTVerifier{provider: provider, http: doer, now: time.Now}
}

type idClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// VerifyTokenForEmail checks the token's signature, issuer, audience and
// expiry, and returns its email claim.
func (v *JWTVerifier) VerifyTokenForEmail(ctx context.Context, token string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(v.provider.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	}
	claims := &idClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		return v.key(ctx, kid)
	}, opts...)
	if err != nil || !parsed.Valid {
		return "", fmt.Errorf("%w: %s: %v", ErrInvalidToken, v.provider.Name, err)
	}
	if len(v.provider.Audiences) > 0 && !audienceMatches(claims.Audience, v.provider.Audiences) {
		return "", fmt.Errorf("%w: %s: unexpected audience", ErrInvalidToken, v.provider.Name)
	}
	if claims.Email == "" {
		return "", fmt.Errorf("%w: %s: token has no email", ErrInvalidToken, v.provider.Name)
	}
	return claims.Email, nil
}

func audienceMatches(got jwt.ClaimStrings, want []string) bool {
	for _, g := range got {
		for _, w := range want {
			if g == w {
				return true
			}
		}
	}
	return false
}

// key returns the signing key kid, refetching the key set when it is stale
// or does not know kid.
func (v *JWTVerifier) key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if k, ok := v.keys[kid]; ok && v.now().Sub(v.fetchedAt) < keysTTL {
		return k, nil
	}
	keys, err := v.fetchKeys(ctx)
	if err != nil {
		return nil, err
	}
	v.keys, v.fetchedAt = keys, v.now()
	k, ok := keys[kid]
	if !ok {
		return nil, fmt.Errorf("unknown signing key %q", kid)
	}
	return k, nil
}

type jwks struct {
	Keys []struct {
		Kid string `json:"kid"`
		Kty string `json:"kty"`
		N   string `json:"n"`
		E   string `json:"e"`
	} `json:"keys"`
}

func (v *JWTVerifier) fetchKeys(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.provider.JWKSURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := v.http.Do(req)
	if err != nil {
		return nil, wrap(v.provider.Name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, wrap(v.provider.Name, fmt.Errorf("fetch keys: status %d", resp.StatusCode))
	}
	var set jwks
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return nil, wrap(v.provider.Name, fmt.Errorf("decode keys: %w", err))
	}
	keys := make(map[string]*rsa.PublicKey, len(set.Keys))
	for _, k := range set.Keys {
		if k.Kty != "RSA" {
			continue
		}
		pub, err := rsaKey(k.N, k.E)
		if err != nil {
			return nil, fmt.Errorf("key %s: %w", k.Kid, err)
		}
		keys[k.Kid] = pub
	}
	return keys, nil
}

// rsaKey builds a public key from base64url modulus and exponent.
func rsaKey(n, e string) (*rsa.PublicKey, error) {
	nb, err := base64.RawURLEncoding.DecodeString(n)
	if err != nil {
		return nil, err
	}
	eb, err := base64.RawURLEncoding.DecodeString(e)
	if err != nil {
		return nil, err
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nb),
		E: int(new(big.Int).SetBytes(eb).Int64()),
	}, nil
}
