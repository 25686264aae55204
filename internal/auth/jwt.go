package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pnp-dms/docflow-api/internal/config"
	"github.com/pnp-dms/docflow-api/internal/domain"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// Claims is the JWT payload carried by access tokens. The portal trusts the
// issuing identity provider for role and unit assignment; no credential
// verification happens here beyond signature and expiry.
type Claims struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Role        string `json:"role"`
	Unit        string `json:"unit,omitempty"`
	Rank        string `json:"rank,omitempty"`
	Designation string `json:"designation,omitempty"`
	jwt.RegisteredClaims
}

// JWTManager issues and validates HMAC-signed access tokens
type JWTManager struct {
	config *config.JWTConfig
}

// NewJWTManager creates a new JWTManager
func NewJWTManager(cfg *config.JWTConfig) *JWTManager {
	return &JWTManager{config: cfg}
}

// Issue creates a signed token for the given user
func (m *JWTManager) Issue(user *domain.User) (string, error) {
	now := time.Now()
	claims := Claims{
		Name:        user.Name,
		Email:       user.Email,
		Role:        string(user.Role),
		Unit:        user.Unit,
		Rank:        user.Rank,
		Designation: user.Designation,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(m.config.ExpiryHours) * time.Hour)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(m.config.Secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken validates a token string and returns the user context it carries
func (m *JWTManager) ValidateToken(tokenString string) (*UserContext, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(m.config.Secret), nil
	}, jwt.WithIssuer(m.config.Issuer))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !token.Valid {
		return nil, ErrInvalidToken
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed subject", ErrInvalidToken)
	}

	role := domain.UserRole(claims.Role)
	if !role.IsValid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, claims.Role)
	}

	return &UserContext{
		UserID:      userID,
		Name:        claims.Name,
		Email:       claims.Email,
		Role:        role,
		Unit:        claims.Unit,
		Rank:        claims.Rank,
		Designation: claims.Designation,
	}, nil
}
