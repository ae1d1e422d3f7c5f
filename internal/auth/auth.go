// Package auth issues and verifies the bearer tokens presented by HTTP
// requests and WebSocket handshakes.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"
	"golang.org/x/crypto/bcrypt"
)

const (
	userIdClaim = "id"
	expClaim    = "exp"
	issClaim    = "iss"
	iatClaim    = "iat"
)

var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// Verifier validates HS256 tokens signed with a shared key.
type Verifier struct {
	signingKey []byte
	issuer     string
	now        func() time.Time
}

func NewVerifier(signingKey []byte, issuer string) *Verifier {
	return &Verifier{
		signingKey: signingKey,
		issuer:     issuer,
		now:        time.Now,
	}
}

// Issue mints a token for userId that expires after ttl.
func (v *Verifier) Issue(userId int, ttl time.Duration) (string, error) {
	now := v.now()
	claims := jwt.MapClaims{
		userIdClaim: userId,
		iatClaim:    now.Unix(),
		expClaim:    now.Add(ttl).Unix(),
	}
	if v.issuer != "" {
		claims[issClaim] = v.issuer
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.signingKey)
}

// Verify returns the user id carried by tokenString.
func (v *Verifier) Verify(tokenString string) (int, error) {
	if tokenString == "" {
		return 0, ErrMissingToken
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Header["alg"])
		}
		return v.signingKey, nil
	})
	if err != nil {
		var validationErr *jwt.ValidationError
		if errors.As(err, &validationErr) && validationErr.Errors&jwt.ValidationErrorExpired != 0 {
			return 0, ErrExpiredToken
		}
		return 0, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return 0, ErrInvalidToken
	}

	if _, ok := claims[expClaim]; !ok {
		return 0, fmt.Errorf("%w: missing exp claim", ErrInvalidToken)
	}

	if v.issuer != "" && !claims.VerifyIssuer(v.issuer, true) {
		return 0, fmt.Errorf("%w: unexpected issuer", ErrInvalidToken)
	}

	userId, ok := claims[userIdClaim].(float64)
	if !ok || userId <= 0 {
		return 0, fmt.Errorf("%w: invalid user id claim", ErrInvalidToken)
	}

	return int(userId), nil
}

func HashPassword(passwd string) (string, error) {
	passwdHash, err := bcrypt.GenerateFromPassword([]byte(passwd), bcrypt.DefaultCost)
	return string(passwdHash), err
}

func VerifyPassword(passwdHash, passwd string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(passwdHash), []byte(passwd))
	return err == nil
}
