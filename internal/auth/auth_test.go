package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = []byte("test-signing-key")

func TestVerifier_IssueVerify(t *testing.T) {
	v := NewVerifier(testKey, "go-messenger")

	token, err := v.Issue(42, time.Hour)
	require.NoError(t, err, "expected no error issuing token")

	userId, err := v.Verify(token)
	assert.NoError(t, err, "expected token to verify")
	assert.Equal(t, 42, userId)
}

func TestVerifier_Verify(t *testing.T) {
	v := NewVerifier(testKey, "go-messenger")

	sign := func(method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
		s, err := jwt.NewWithClaims(method, claims).SignedString(key)
		require.NoError(t, err)
		return s
	}
	future := time.Now().Add(time.Hour).Unix()

	tcases := []struct {
		name  string
		token string
		err   error
	}{
		{
			name:  "missing token",
			token: "",
			err:   ErrMissingToken,
		},
		{
			name:  "malformed token",
			token: "not-a-jwt",
			err:   ErrInvalidToken,
		},
		{
			name:  "expired token",
			token: sign(jwt.SigningMethodHS256, testKey, jwt.MapClaims{"id": 1, "iss": "go-messenger", "exp": time.Now().Add(-time.Minute).Unix()}),
			err:   ErrExpiredToken,
		},
		{
			name:  "wrong key",
			token: sign(jwt.SigningMethodHS256, []byte("other-key"), jwt.MapClaims{"id": 1, "iss": "go-messenger", "exp": future}),
			err:   ErrInvalidToken,
		},
		{
			name:  "wrong issuer",
			token: sign(jwt.SigningMethodHS256, testKey, jwt.MapClaims{"id": 1, "iss": "someone-else", "exp": future}),
			err:   ErrInvalidToken,
		},
		{
			name:  "missing expiry",
			token: sign(jwt.SigningMethodHS256, testKey, jwt.MapClaims{"id": 1, "iss": "go-messenger"}),
			err:   ErrInvalidToken,
		},
		{
			name:  "missing user id",
			token: sign(jwt.SigningMethodHS256, testKey, jwt.MapClaims{"iss": "go-messenger", "exp": future}),
			err:   ErrInvalidToken,
		},
		{
			name:  "unsigned token",
			token: sign(jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, jwt.MapClaims{"id": 1, "iss": "go-messenger", "exp": future}),
			err:   ErrInvalidToken,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			userId, err := v.Verify(tc.token)
			assert.Zero(t, userId, "expected no user id")
			assert.True(t, errors.Is(err, tc.err), "expected %v, got %v", tc.err, err)
		})
	}
}

func TestVerifier_NoIssuer(t *testing.T) {
	v := NewVerifier(testKey, "")
	token, err := v.Issue(7, time.Minute)
	require.NoError(t, err)

	userId, err := v.Verify(token)
	assert.NoError(t, err)
	assert.Equal(t, 7, userId)
}

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)

	assert.True(t, VerifyPassword(hash, "s3cret"), "expected password to match hash")
	assert.False(t, VerifyPassword(hash, "wrong"), "expected wrong password to fail")
}
