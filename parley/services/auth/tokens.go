package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"parley/parley/utils/apperr"
)

type Identity struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type Claims struct {
	UID   string `json:"uid"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// TokenManager signs and verifies the HS256 session tokens handed to the browser.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	return &TokenManager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (m *TokenManager) Issue(id Identity) (string, error) {
	if strings.TrimSpace(id.UID) == "" {
		return "", apperr.New(apperr.InvalidInput, "User ID is required")
	}
	now := m.now()
	claims := Claims{
		UID:   id.UID,
		Email: id.Email,
		Name:  id.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", apperr.Wrap(apperr.Internal, "Failed to issue token", err)
	}
	return signed, nil
}

// Parse returns TokenExpired for a lapsed token and InvalidToken for anything else wrong.
func (m *TokenManager) Parse(tokenStr string) (Identity, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(tokenStr, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return m.secret, nil
	},
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, apperr.Wrap(apperr.TokenExpired, "Token expired. Please login again.", err)
		}
		return Identity{}, apperr.Wrap(apperr.InvalidToken, "Invalid token. Please login again.", err)
	}
	if claims.UID == "" {
		return Identity{}, apperr.New(apperr.InvalidToken, "Invalid token. Please login again.")
	}
	return Identity{UID: claims.UID, Email: claims.Email, Name: claims.Name}, nil
}
