package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/shopfront-backend/pkg/config"
)

const clockLeeway = 30 * time.Second

var (
	jwtSigningMethod = jwt.SigningMethodHS256

	// ErrTokenTooOld is returned for expired tokens that outlived any refresh
	// session they could have belonged to.
	ErrTokenTooOld = errors.New("access token too old to refresh")
)

// MintAccessToken signs an HS256 access token valid for cfg.ExpirationMinutes.
func MintAccessToken(cfg config.JWTConfig, now time.Time, payload AccessTokenPayload) (string, error) {
	if err := checkConfig(cfg); err != nil {
		return "", err
	}
	if cfg.ExpirationMinutes <= 0 {
		return "", fmt.Errorf("jwt expiration minutes must be positive")
	}
	if payload.UserID == uuid.Nil {
		return "", fmt.Errorf("user id is required")
	}

	jti := strings.TrimSpace(payload.JTI)
	if jti == "" {
		jti = uuid.NewString()
	}
	registered := jwt.RegisteredClaims{
		Issuer:    cfg.Issuer,
		Subject:   payload.UserID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(cfg.ExpirationMinutes) * time.Minute)),
		ID:        jti,
	}
	if cfg.Audience != "" {
		registered.Audience = jwt.ClaimStrings{cfg.Audience}
	}

	signed, err := jwt.NewWithClaims(jwtSigningMethod, AccessTokenClaims{
		UserID:           payload.UserID,
		Email:            payload.Email,
		RegisteredClaims: registered,
	}).SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("signing jwt: %w", err)
	}
	return signed, nil
}

// ParseAccessToken verifies signature, issuer, audience and lifetime.
func ParseAccessToken(cfg config.JWTConfig, tokenString string) (*AccessTokenClaims, error) {
	return parse(cfg, tokenString, false)
}

// ParseAccessTokenAllowExpired skips the lifetime checks so refresh and logout
// can still read the jti. Tokens that expired longer ago than the refresh
// session TTL are rejected with ErrTokenTooOld.
func ParseAccessTokenAllowExpired(cfg config.JWTConfig, tokenString string) (*AccessTokenClaims, error) {
	claims, err := parse(cfg, tokenString, true)
	if err != nil {
		return nil, err
	}
	if ttl := cfg.RefreshTokenTTL(); ttl > 0 && claims.ExpiresAt != nil && time.Since(claims.ExpiresAt.Time) > ttl {
		return nil, ErrTokenTooOld
	}
	return claims, nil
}

func parse(cfg config.JWTConfig, tokenString string, allowExpired bool) (*AccessTokenClaims, error) {
	if err := checkConfig(cfg); err != nil {
		return nil, err
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwtSigningMethod.Alg()}),
		jwt.WithLeeway(clockLeeway),
	}
	if allowExpired {
		opts = append(opts, jwt.WithoutClaimsValidation())
	} else {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer), jwt.WithExpirationRequired())
		if cfg.Audience != "" {
			opts = append(opts, jwt.WithAudience(cfg.Audience))
		}
	}

	claims := &AccessTokenClaims{}
	if _, err := jwt.NewParser(opts...).ParseWithClaims(tokenString, claims, signingKey(cfg)); err != nil {
		return nil, err
	}
	// claims validation is off for expired tokens, so the issuer is checked here
	if allowExpired && claims.Issuer != cfg.Issuer {
		return nil, fmt.Errorf("token has invalid issuer")
	}
	if claims.UserID == uuid.Nil || claims.Subject != claims.UserID.String() {
		return nil, fmt.Errorf("token subject does not match user id")
	}
	return claims, nil
}

func checkConfig(cfg config.JWTConfig) error {
	if cfg.Secret == "" {
		return fmt.Errorf("jwt secret is required")
	}
	if cfg.Issuer == "" {
		return fmt.Errorf("jwt issuer is required")
	}
	return nil
}

func signingKey(cfg config.JWTConfig) jwt.Keyfunc {
	return func(token *jwt.Token) (any, error) {
		if token.Method != jwtSigningMethod {
			return nil, fmt.Errorf("unexpected signing method %s", token.Header["alg"])
		}
		return []byte(cfg.Secret), nil
	}
}
