package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type TokenConfig struct {
	Secret   string
	Issuer   string
	Audience string
	TTL      time.Duration
}

type Claims struct {
	AccountID string
	TokenID   string
	ExpiresAt time.Time
}

type tokenClaims struct {
	jwt.RegisteredClaims
	AccountID string `json:"account_id"`
}

var errMissingAccountID = errors.New("missing account_id claim")

func GenerateToken(accountID string, cfg TokenConfig) (string, *Claims, error) {
	now := time.Now()
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    cfg.Issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.TTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		AccountID: accountID,
	}
	if cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{cfg.Audience}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", nil, fmt.Errorf("GenerateToken: %w", err)
	}
	return signed, &Claims{
		AccountID: accountID,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func ValidateToken(tokenString string, cfg TokenConfig) (*Claims, error) {
	claims, err := parse(tokenString, cfg)
	if err != nil {
		return nil, fmt.Errorf("ValidateToken: %w", err)
	}
	return claims, nil
}

// VerifySignature checks that the token was issued by us, ignoring expiry.
// Tokens echoed back by the payment provider may arrive long after they expired.
func VerifySignature(tokenString string, cfg TokenConfig) (*Claims, error) {
	claims, err := parse(tokenString, cfg, jwt.WithoutClaimsValidation())
	if err != nil {
		return nil, fmt.Errorf("VerifySignature: %w", err)
	}
	return claims, nil
}

func parse(tokenString string, cfg TokenConfig, extra ...jwt.ParserOption) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithIssuedAt()}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	opts = append(opts, extra...)

	token, err := jwt.ParseWithClaims(tokenString, &tokenClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(cfg.Secret), nil
	}, opts...)
	if err != nil {
		return nil, err
	}

	tc, ok := token.Claims.(*tokenClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	if tc.AccountID == "" {
		return nil, errMissingAccountID
	}

	claims := &Claims{AccountID: tc.AccountID, TokenID: tc.ID}
	if tc.ExpiresAt != nil {
		claims.ExpiresAt = tc.ExpiresAt.Time
	}
	return claims, nil
}
