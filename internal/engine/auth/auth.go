package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"upkeep/internal/domain"
)

// ForbiddenError indicates the caller's role is not sufficient.
type ForbiddenError struct {
	Role string
}

func (e ForbiddenError) Error() string {
	return fmt.Sprintf("role %s required", e.Role)
}

var ErrInvalidCredentials = errors.New("invalid credentials")

var roleRank = map[string]int{
	domain.RoleViewer:  1,
	domain.RoleManager: 2,
	domain.RoleAdmin:   3,
}

// RoleAtLeast reports whether have meets the required role. admin > manager
// > viewer.
func RoleAtLeast(have, required string) bool {
	return roleRank[have] >= roleRank[required]
}

func HashPassword(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func CheckPassword(hashed, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain)) == nil
}

// Claims is the bearer-token payload. Subject carries the user id.
type Claims struct {
	OrgID int64  `json:"org_id"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

func SignToken(secret []byte, u domain.User, ttl time.Duration, now time.Time) (string, error) {
	claims := Claims{
		OrgID: u.OrganizationID,
		Role:  u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", u.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func ParseToken(secret []byte, token string) (Claims, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return claims, err
	}
	if !parsed.Valid {
		return claims, errors.New("invalid token")
	}
	return claims, nil
}
