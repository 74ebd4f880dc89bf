package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashPasswordIsSaltedAndVerifies(t *testing.T) {
	a, err := HashPassword("pass1234", bcrypt.MinCost)
	require.NoError(t, err)
	b, err := HashPassword("pass1234", bcrypt.MinCost)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.NotContains(t, a, "pass1234")
	assert.True(t, VerifyPassword(a, "pass1234"))
	assert.True(t, VerifyPassword(b, "pass1234"))
}

func TestVerifyPasswordRejectsDifferentPlaintext(t *testing.T) {
	hash, err := HashPassword("pass1234", bcrypt.MinCost)
	require.NoError(t, err)

	for _, other := range []string{"pass12345", "PASS1234", "", " pass1234"} {
		assert.False(t, VerifyPassword(hash, other), other)
		ok, err := ComparePassword(hash, other)
		assert.False(t, ok)
		assert.NoError(t, err)
	}
}

func TestComparePasswordReportsMalformedHash(t *testing.T) {
	ok, err := ComparePassword("not-a-bcrypt-hash", "pass1234")
	assert.False(t, ok)
	assert.Error(t, err)
	assert.False(t, VerifyPassword("not-a-bcrypt-hash", "pass1234"))
}

func TestHashPasswordClampsCost(t *testing.T) {
	hash, err := HashPassword("pass1234", 99)
	require.NoError(t, err)

	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, DefaultBcryptCost, cost)
}
