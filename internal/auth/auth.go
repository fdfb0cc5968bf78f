// Package auth turns bearer tokens into verified identities and hashes
// passwords. It holds no state beyond the signing secret; user records
// live in the store package.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/QuizzityMC/CanaryTalk-Endtoend/internal/canaryerr"
)

// Identity is the verified result of a credential check.
type Identity struct {
	UserID   string
	Username string
}

// UserClaims represents the JWT claim set carried by every token.
type UserClaims struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Gate issues and verifies signed bearer tokens.
type Gate struct {
	secret []byte
	ttl    time.Duration
}

// NewGate returns a Gate signing HS256 tokens with the given secret
// and expiry window.
func NewGate(secret string, ttl time.Duration) *Gate {
	return &Gate{secret: []byte(secret), ttl: ttl}
}

// IssueToken generates a signed token for an identity.
func (g *Gate) IssueToken(userID, username string) (string, error) {
	claims := UserClaims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(g.ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(g.secret)
}

// Verify checks the token's signature and expiry and returns the identity
// it asserts. Any failure maps to canaryerr.ErrAuth.
func (g *Gate) Verify(tokenString string) (Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &UserClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return g.secret, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", canaryerr.ErrAuth, err)
	}

	claims, ok := token.Claims.(*UserClaims)
	if !ok || !token.Valid || claims.UserID == "" {
		return Identity{}, canaryerr.ErrAuth
	}

	return Identity{UserID: claims.UserID, Username: claims.Username}, nil
}

// HashPassword hashes a password with bcrypt.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword compares a stored hash with a candidate password.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
