// Package auth verifies identity-provider bearer tokens and carries the
// resolved user through the request context.
//
// Tokens are issued by an external identity provider; this service never
// signs credentials for real users. A token names the caller through the
// "user_id" claim (falling back to "sub"), which is the user's external
// subject. The middleware then maps that subject to the internal user id.
package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// minSecretLen guards against trivially guessable shared secrets.
const minSecretLen = 16

// VerifierConfig selects the key material and the optional audience and
// issuer checks. PublicKeyPEM wins over Secret when both are set.
type VerifierConfig struct {
	Secret       string
	PublicKeyPEM []byte
	Audience     string
	Issuer       string
}

// Verifier validates identity tokens.
//
// The signing algorithm is pinned by the key type: HS256 for a shared secret,
// RS256 for a public key. A token announcing any other algorithm is rejected
// before its signature is even looked at.
type Verifier struct {
	key     any
	method  string
	options []jwt.ParserOption
}

// claims is the token payload. Identity providers such as Firebase put the
// account id in "user_id" and repeat it in "sub".
type claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id,omitempty"`
	Email  string `json:"email,omitempty"`
}

func NewVerifier(cfg VerifierConfig) (*Verifier, error) {
	v := &Verifier{}

	switch {
	case len(cfg.PublicKeyPEM) > 0:
		pub, err := jwt.ParseRSAPublicKeyFromPEM(cfg.PublicKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("auth: parsing public key: %w", err)
		}
		v.key = pub
		v.method = jwt.SigningMethodRS256.Alg()
	case cfg.Secret != "":
		if len(cfg.Secret) < minSecretLen {
			return nil, fmt.Errorf("auth: JWT secret must be at least %d characters", minSecretLen)
		}
		v.key = []byte(cfg.Secret)
		v.method = jwt.SigningMethodHS256.Alg()
	default:
		return nil, errors.New("auth: a shared secret or a public key is required")
	}

	v.options = []jwt.ParserOption{
		jwt.WithValidMethods([]string{v.method}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(30 * time.Second),
	}
	if cfg.Audience != "" {
		v.options = append(v.options, jwt.WithAudience(cfg.Audience))
	}
	if cfg.Issuer != "" {
		v.options = append(v.options, jwt.WithIssuer(cfg.Issuer))
	}
	return v, nil
}

// NewVerifierFromFile reads an RS256 public key from disk, or falls back to
// the shared secret when path is empty.
func NewVerifierFromFile(path, secret, audience, issuer string) (*Verifier, error) {
	cfg := VerifierConfig{Secret: secret, Audience: audience, Issuer: issuer}
	if path != "" {
		pem, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("auth: reading public key: %w", err)
		}
		cfg.PublicKeyPEM = pem
	}
	return NewVerifier(cfg)
}

// Verify parses and checks a token and returns the external subject it names.
func (v *Verifier) Verify(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &claims{}, v.keyFunc, v.options...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", errors.New("auth: token expired")
		}
		return "", fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return "", errors.New("auth: invalid token claims")
	}

	subject := c.UserID
	if subject == "" {
		subject = c.Subject
	}
	if subject == "" {
		return "", errors.New("auth: token has no subject")
	}
	return subject, nil
}

func (v *Verifier) keyFunc(token *jwt.Token) (any, error) {
	switch v.key.(type) {
	case *rsa.PublicKey:
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
		}
	default:
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
		}
	}
	return v.key, nil
}

// SignHS256 mints a shared-secret token for subject. It exists for local
// development and tests; production tokens come from the identity provider.
func SignHS256(secret, subject, audience, issuer string, ttl time.Duration) (string, error) {
	now := time.Now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID: subject,
	}
	if audience != "" {
		c.Audience = jwt.ClaimStrings{audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}
