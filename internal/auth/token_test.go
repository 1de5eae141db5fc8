package auth

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerifyAdmin(t *testing.T) {
	now := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	issuer := NewIssuer("secret", func() time.Time { return now })

	token, err := issuer.Issue("ops", time.Hour)
	require.NoError(t, err)

	claims, err := issuer.VerifyAdmin(token)
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Subject)

	_, err = NewIssuer("other", func() time.Time { return now }).VerifyAdmin(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := NewIssuer("secret", func() time.Time { return now.Add(2 * time.Hour) })
	_, err = expired.VerifyAdmin(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyAdminRejectsOtherRoles(t *testing.T) {
	claims := Claims{Role: "staff", RegisteredClaims: jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = NewIssuer("secret", nil).VerifyAdmin(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestBearerToken(t *testing.T) {
	tok, err := BearerToken("Bearer abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)

	_, err = BearerToken("")
	assert.ErrorIs(t, err, ErrMissingToken)

	_, err = BearerToken("Basic abc")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRegistrantEmail(t *testing.T) {
	email, err := RegistrantEmail(base64.StdEncoding.EncodeToString([]byte("a@x.io")))
	require.NoError(t, err)
	assert.Equal(t, "a@x.io", email)

	_, err = RegistrantEmail("%%%")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
