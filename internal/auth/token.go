package auth

import (
	"errors"
	"time"

	"taskmanager/internal/domain"

	"github.com/golang-jwt/jwt/v5"
)

var (
	errInvalidToken = domain.Errorf(domain.ErrInvalidToken, "Invalid token")
	errExpiredToken = domain.Errorf(domain.ErrExpiredToken, "Token has expired")
)

// DefaultTokenTTL is the validity window used when none is configured.
const DefaultTokenTTL = 24 * time.Hour

// TokenConfig holds JWT configuration.
type TokenConfig struct {
	SecretKey string
	TTL       time.Duration
	Issuer    string
}

// Claims is the signed payload of a bearer token.
type Claims struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies HS256 bearer tokens. Verification is
// stateless: a token stays valid until it expires.
type TokenManager struct {
	config TokenConfig
	now    func() time.Time
}

func NewTokenManager(config TokenConfig) *TokenManager {
	if config.TTL <= 0 {
		config.TTL = DefaultTokenTTL
	}
	return &TokenManager{config: config, now: time.Now}
}

// Issue signs a token for the identity, valid for the configured TTL.
func (m *TokenManager) Issue(id domain.Identity) (string, error) {
	now := m.now()
	claims := Claims{
		ID:    id.ID,
		Email: id.Email,
		Name:  id.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.config.Issuer,
			Subject:   id.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.TTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(m.config.SecretKey))
}

// Verify checks signature and expiry. It fails only with an error wrapping
// domain.ErrInvalidToken or domain.ErrExpiredToken.
func (m *TokenManager) Verify(tokenString string) (domain.Identity, error) {
	if tokenString == "" {
		return domain.Identity{}, errInvalidToken
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errInvalidToken
		}
		return []byte(m.config.SecretKey), nil
	}, jwt.WithIssuer(m.config.Issuer), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.Identity{}, errExpiredToken
		}
		return domain.Identity{}, errInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.ID == "" {
		return domain.Identity{}, errInvalidToken
	}
	return domain.Identity{ID: claims.ID, Email: claims.Email, Name: claims.Name}, nil
}

// TTL returns the token validity window.
func (m *TokenManager) TTL() time.Duration {
	return m.config.TTL
}
