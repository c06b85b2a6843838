package services

import (
	"context"
	"errors"
	"strconv"
	"time"

	"metronix/internal/config"
	"metronix/internal/models"
	"metronix/internal/observability"
	contextutils "metronix/internal/utils"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenIssuer is used when auth.jwt_issuer is not configured
const DefaultTokenIssuer = "metronix"

// Claims are carried in bearer tokens issued to API clients
type Claims struct {
	UserID int         `json:"uid"`
	Role   models.Role `json:"role"`
	jwt.RegisteredClaims
}

// Actor returns the identity the claims authenticate
func (c *Claims) Actor() models.Actor {
	return models.Actor{UserID: c.UserID, Role: c.Role}
}

// TokenServiceInterface issues and verifies bearer tokens
type TokenServiceInterface interface {
	IssueToken(ctx context.Context, user *models.User) (token string, expiresAt time.Time, err error)
	ParseToken(ctx context.Context, token string) (*Claims, error)
}

// TokenService signs HS256 tokens with the configured secret
type TokenService struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

var _ TokenServiceInterface = (*TokenService)(nil)

// NewTokenService creates a TokenService. It fails when no signing secret is configured.
func NewTokenService(cfg *config.Config) (*TokenService, error) {
	secret := cfg.TokenSecret()
	if secret == "" {
		return nil, contextutils.WrapError(contextutils.ErrMissingRequired, "jwt secret or session secret is required")
	}
	issuer := cfg.Auth.JWTIssuer
	if issuer == "" {
		issuer = DefaultTokenIssuer
	}
	ttl := cfg.Auth.TokenTTL
	if ttl <= 0 {
		ttl = config.DefaultTokenTTL
	}
	return &TokenService{secret: []byte(secret), issuer: issuer, ttl: ttl, now: time.Now}, nil
}

// IssueToken signs a token for user
func (s *TokenService) IssueToken(ctx context.Context, user *models.User) (token string, expiresAt time.Time, err error) {
	_, span := observability.TraceUserFunction(ctx, "issue_token", observability.AttributeUserID(user.ID))
	defer observability.FinishSpan(span, &err)

	now := s.now()
	expiresAt = now.Add(s.ttl)
	claims := Claims{
		UserID: user.ID,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   strconv.Itoa(user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to sign token: %v", err)
	}
	return token, expiresAt, nil
}

// ParseToken verifies signature, issuer and expiry. Any failure is ErrUnauthorized.
func (s *TokenService) ParseToken(ctx context.Context, token string) (result0 *Claims, err error) {
	_, span := observability.TraceUserFunction(ctx, "parse_token")
	defer observability.FinishSpan(span, &err)

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, contextutils.WrapError(contextutils.ErrUnauthorized, "token expired")
		}
		return nil, contextutils.WrapErrorf(contextutils.ErrUnauthorized, "invalid token: %v", err)
	}
	if !parsed.Valid || claims.UserID <= 0 || !claims.Role.IsValid() {
		return nil, contextutils.WrapError(contextutils.ErrUnauthorized, "invalid token claims")
	}
	return claims, nil
}
