// Package jwt mints and checks the session tokens the verifier hands out
// after a successful re-authentication.
package jwt

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

// ProofScheme names the proof a token was issued for.
const ProofScheme = "schnorr-fs"

var (
	// ErrInvalidToken covers bad signatures, unknown keys and malformed tokens.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired is returned for tokens past their exp claim.
	ErrTokenExpired = errors.New("token expired")
)

// TokenSigner defines the interface for JWT signing
type TokenSigner interface {
	// Sign creates a JWT with the given claims
	Sign(claims *Claims) (string, error)

	// JWKS returns the public keys for JWT verification
	JWKS() jwk.Set

	// Algorithm returns the signing algorithm
	Algorithm() string
}

// Claims of a session token
type Claims struct {
	UserID int64       `json:"uid"`
	Proof  *ProofClaims `json:"zk,omitempty"`
	jwt.RegisteredClaims
}

// ProofClaims describe the verification the token was minted for
type ProofClaims struct {
	Scheme      string `json:"scheme"`
	Group       string `json:"grp"`
	SessionHash string `json:"sid_hash"` // base64url SHA-256 of the session id
}

// ES256Signer signs tokens with an ECDSA P-256 key
type ES256Signer struct {
	privateKey *ecdsa.PrivateKey
	keyID      string
	jwks       jwk.Set
}

// NewES256Signer wraps privateKey and publishes its public half as a JWKS
func NewES256Signer(privateKey *ecdsa.PrivateKey, keyID string) (*ES256Signer, error) {
	if privateKey == nil {
		return nil, fmt.Errorf("signing key is required")
	}

	publicJWK, err := jwk.FromRaw(&privateKey.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create JWK from public key: %w", err)
	}
	for k, v := range map[string]interface{}{
		jwk.KeyIDKey:     keyID,
		jwk.AlgorithmKey: "ES256",
		jwk.KeyUsageKey:  "sig",
	} {
		if err := publicJWK.Set(k, v); err != nil {
			return nil, fmt.Errorf("failed to set %s: %w", k, err)
		}
	}

	jwks := jwk.NewSet()
	if err := jwks.AddKey(publicJWK); err != nil {
		return nil, fmt.Errorf("failed to build JWKS: %w", err)
	}

	return &ES256Signer{
		privateKey: privateKey,
		keyID:      keyID,
		jwks:       jwks,
	}, nil
}

// Sign creates a JWT with the given claims
func (s *ES256Signer) Sign(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	token.Header["kid"] = s.keyID

	signed, err := token.SignedString(s.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT: %w", err)
	}
	return signed, nil
}

// JWKS returns the public keys for JWT verification
func (s *ES256Signer) JWKS() jwk.Set {
	return s.jwks
}

// Algorithm returns the signing algorithm
func (s *ES256Signer) Algorithm() string {
	return "ES256"
}

// Verifier checks tokens against a JWKS
type Verifier struct {
	keys     jwk.Set
	issuer   string
	audience string
	now      func() time.Time
}

// NewVerifier creates a verifier for tokens from issuer addressed to audience
func NewVerifier(keys jwk.Set, issuer, audience string) *Verifier {
	return &Verifier{keys: keys, issuer: issuer, audience: audience, now: time.Now}
}

// Verify parses token and checks its signature, issuer, audience and expiry
func (v *Verifier) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, v.keyFunc,
		jwt.WithValidMethods([]string{"ES256"}),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrTokenExpired
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	case !parsed.Valid:
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (v *Verifier) keyFunc(token *jwt.Token) (interface{}, error) {
	kid, ok := token.Header["kid"].(string)
	if !ok {
		return nil, fmt.Errorf("missing key ID")
	}
	key, ok := v.keys.LookupKeyID(kid)
	if !ok {
		return nil, fmt.Errorf("key not found: %s", kid)
	}
	var raw interface{}
	if err := key.Raw(&raw); err != nil {
		return nil, fmt.Errorf("failed to extract public key: %w", err)
	}
	pub, ok := raw.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("unexpected key type %T", raw)
	}
	return pub, nil
}

// SessionToken describes a token to mint for an accepted verification
type SessionToken struct {
	Issuer    string
	Audience  string
	UserID    int64
	PublicKey string // hex, used for the pairwise subject
	Group     string
	SessionID string
	TTL       time.Duration
	Now       time.Time
}

// MintSessionToken signs a token for t
func MintSessionToken(signer TokenSigner, t SessionToken) (string, error) {
	now := t.Now
	if now.IsZero() {
		now = time.Now()
	}
	sid := sha256.Sum256([]byte(t.SessionID))

	return signer.Sign(&Claims{
		UserID: t.UserID,
		Proof: &ProofClaims{
			Scheme:      ProofScheme,
			Group:       t.Group,
			SessionHash: base64.RawURLEncoding.EncodeToString(sid[:]),
		},
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.Issuer,
			Subject:   PairwiseSubject(t.PublicKey, t.Audience),
			Audience:  jwt.ClaimStrings{t.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.TTL)),
		},
	})
}

// PairwiseSubject derives an opaque, audience-specific subject from a
// public key
func PairwiseSubject(publicKeyHex, audience string) string {
	h := sha256.New()
	h.Write([]byte("zkekyc/1/sub"))
	h.Write([]byte(publicKeyHex))
	h.Write([]byte(audience))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}
