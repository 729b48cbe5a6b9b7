package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token types carried in the "type" claim.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrWrongTokenUse = errors.New("wrong token type")
)

// Claims are the validated contents of an access or refresh token.
type Claims struct {
	UserID int64
	Type   string
	JTI    string
}

type tokenClaims struct {
	Type string `json:"type"`
	jwt.RegisteredClaims
}

// TokenMaker mints and verifies HS256 access/refresh token pairs. Refresh
// tokens carry a jti that must match the one stored on the user row, which
// lets a login or logout revoke every previously issued refresh token.
type TokenMaker struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	parser     *jwt.Parser
}

func NewTokenMaker(secret, issuer string, accessTTL, refreshTTL time.Duration) *TokenMaker {
	return &TokenMaker{
		secret:     []byte(secret),
		issuer:     issuer,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		parser: jwt.NewParser(
			jwt.WithIssuer(issuer),
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		),
	}
}

// AccessTTL returns the access token lifetime (used for the cookie max-age).
func (m *TokenMaker) AccessTTL() time.Duration { return m.accessTTL }

// RefreshTTL returns the refresh token lifetime.
func (m *TokenMaker) RefreshTTL() time.Duration { return m.refreshTTL }

// NewJTI generates a fresh refresh-token rotation id.
func NewJTI() string {
	return uuid.NewString()
}

// NewAccessToken mints a short-lived access token for the user.
func (m *TokenMaker) NewAccessToken(userID int64) (string, error) {
	return m.sign(userID, TokenTypeAccess, "", m.accessTTL)
}

// NewRefreshToken mints a refresh token bound to the given rotation id.
func (m *TokenMaker) NewRefreshToken(userID int64, jti string) (string, error) {
	return m.sign(userID, TokenTypeRefresh, jti, m.refreshTTL)
}

func (m *TokenMaker) sign(userID int64, typ, jti string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := tokenClaims{
		Type: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   strconv.FormatInt(userID, 10),
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses the token and checks that it is of the expected type.
func (m *TokenMaker) Verify(tokenString, expectedType string) (*Claims, error) {
	var claims tokenClaims
	token, err := m.parser.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Type != expectedType {
		return nil, ErrWrongTokenUse
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return nil, ErrInvalidToken
	}
	return &Claims{UserID: userID, Type: claims.Type, JTI: claims.ID}, nil
}
