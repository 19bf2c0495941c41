package auth

import (
	"errors"
	"fmt"
	"time"

	"neurodash/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

type Claims struct {
	UserID      int    `json:"user_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
	TokenType   string `json:"token_type,omitempty"` // "access" or "refresh"
	jwt.RegisteredClaims
}

// Identity returns the identity carried by the claims.
func (c *Claims) Identity() *Identity {
	return &Identity{ID: c.UserID, DisplayName: c.DisplayName, Email: c.Email}
}

// TokenIssuer signs and validates access and refresh tokens.
type TokenIssuer struct {
	secret              []byte
	refreshSecret       []byte
	accessTokenMinutes  int
	refreshTokenDays    int
	rememberRefreshDays int
	CookieSecure        bool
}

func NewTokenIssuer(cfg *config.Config) *TokenIssuer {
	return &TokenIssuer{
		secret:              []byte(cfg.JWTSecret),
		refreshSecret:       []byte(cfg.JWTRefreshSecret),
		accessTokenMinutes:  cfg.AccessTokenMinutes,
		refreshTokenDays:    cfg.RefreshTokenDays,
		rememberRefreshDays: cfg.RememberRefreshDays,
		CookieSecure:        cfg.CookieSecure,
	}
}

// GenerateToken creates a short-lived access token.
func (t *TokenIssuer) GenerateToken(id Identity) (string, error) {
	claims := Claims{
		UserID:      id.ID,
		Email:       id.Email,
		DisplayName: id.DisplayName,
		TokenType:   tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Duration(t.accessTokenMinutes) * time.Minute)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// GenerateRefreshToken creates a refresh token that expires after the given number of days
func (t *TokenIssuer) GenerateRefreshToken(id Identity, days int) (string, error) {
	if days <= 0 {
		days = t.refreshTokenDays
	}
	claims := Claims{
		UserID:      id.ID,
		Email:       id.Email,
		DisplayName: id.DisplayName,
		TokenType:   tokenTypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Duration(days) * 24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			// Two refresh tokens minted in the same second must still differ.
			ID: fmt.Sprintf("%d-%d", id.ID, time.Now().UnixNano()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.refreshSecret)
}

func (t *TokenIssuer) ValidateToken(tokenString string) (*Claims, error) {
	return parse(tokenString, t.secret, tokenTypeAccess)
}

// ValidateRefreshToken validates a refresh token
func (t *TokenIssuer) ValidateRefreshToken(tokenString string) (*Claims, error) {
	return parse(tokenString, t.refreshSecret, tokenTypeRefresh)
}

// RefreshDays returns configured refresh token TTL in days depending on remember flag
func (t *TokenIssuer) RefreshDays(remember bool) int {
	if remember {
		return t.rememberRefreshDays
	}
	return t.refreshTokenDays
}

func parse(tokenString string, secret []byte, wantType string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		if claims.TokenType != wantType {
			return nil, errors.New("invalid token type")
		}
		return claims, nil
	}

	return nil, errors.New("invalid token")
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(hash), err
}

func CheckPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}
