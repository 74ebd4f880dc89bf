package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func TestAccessTokenVerifiesBeforeExpiry(t *testing.T) {
	tok, err := IssueAccessToken("u1", "Jonas", testSecret, time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), tok.Exp, 5*time.Second)

	claims, err := VerifyAccessToken(tok.Token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "u1", claims.Subject)
	assert.Equal(t, "Jonas", claims.Name)
	require.NotNil(t, claims.IssuedAt)
}

func TestAccessTokenFailsAfterExpiry(t *testing.T) {
	tok, err := IssueAccessToken("u1", "Jonas", testSecret, -time.Minute)
	require.NoError(t, err)

	_, err = VerifyAccessToken(tok.Token, testSecret)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestAccessTokenRejectsWrongSecretAndTampering(t *testing.T) {
	tok, err := IssueAccessToken("u1", "Jonas", testSecret, time.Hour)
	require.NoError(t, err)

	_, err = VerifyAccessToken(tok.Token, "other-secret")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = VerifyAccessToken(tok.Token+"x", testSecret)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = VerifyAccessToken("not.a.token", testSecret)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAccessTokenRejectsNonHMACAlgorithms(t *testing.T) {
	claims := Claims{
		UserID: "u1",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = VerifyAccessToken(unsigned, testSecret)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAccessTokenRequiresUserID(t *testing.T) {
	tok, err := IssueAccessToken("", "Nobody", testSecret, time.Hour)
	require.NoError(t, err)

	_, err = VerifyAccessToken(tok.Token, testSecret)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
