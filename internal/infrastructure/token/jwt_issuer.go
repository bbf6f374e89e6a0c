// Package token signs the session-scoped keys that unlock export downloads.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/garyjia/approval-bridge/internal/application/port"
)

const issuer = "approval-bridge"

// downloadClaims is the JWT body of a download key.
type downloadClaims struct {
	SessionID string `json:"sid"`
	Location  string `json:"loc"`
	FileName  string `json:"fn"`
	jwt.RegisteredClaims
}

// JWTIssuer implements port.DownloadTokenIssuer with HS256 tokens.
type JWTIssuer struct {
	secret []byte
	now    func() time.Time
}

// NewJWTIssuer creates an issuer; the secret must not be empty.
func NewJWTIssuer(secret string) (*JWTIssuer, error) {
	if secret == "" {
		return nil, errors.New("token secret is required")
	}
	return &JWTIssuer{secret: []byte(secret), now: time.Now}, nil
}

func (i *JWTIssuer) Issue(c port.DownloadClaims) (string, error) {
	now := i.now()
	claims := downloadClaims{
		SessionID: c.SessionID,
		Location:  c.Location,
		FileName:  c.FileName,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Subject:   c.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(c.ExpiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign download key: %w", err)
	}
	return signed, nil
}

// Verify checks signature, algorithm, issuer and expiry.
func (i *JWTIssuer) Verify(token string) (*port.DownloadClaims, error) {
	var claims downloadClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, fmt.Errorf("verify download key: %w", err)
	}

	return &port.DownloadClaims{
		UserID:    claims.Subject,
		SessionID: claims.SessionID,
		Location:  claims.Location,
		FileName:  claims.FileName,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

var _ port.DownloadTokenIssuer = (*JWTIssuer)(nil)
