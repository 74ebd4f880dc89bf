package utils

import (
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewResetToken(t *testing.T) {
	before := time.Now().UTC()
	tok, err := NewResetToken()
	require.NoError(t, err)

	assert.Len(t, tok.Plain, 64)
	assert.Len(t, tok.Hash, 64)
	_, err = hex.DecodeString(tok.Hash)
	assert.NoError(t, err)
	assert.NotEqual(t, tok.Plain, tok.Hash)
	assert.Equal(t, HashResetToken(tok.Plain), tok.Hash)
	assert.WithinDuration(t, before.Add(ResetTokenTTL), tok.Expires, 5*time.Second)

	other, err := NewResetToken()
	require.NoError(t, err)
	assert.NotEqual(t, tok.Plain, other.Plain)
}

func TestHashResetTokenIsDeterministic(t *testing.T) {
	// SHA-256 of "abc".
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", HashResetToken("abc"))
	assert.Equal(t, HashResetToken("abc"), HashResetToken("abc"))
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "the-forest-hiker", Slugify("The Forest Hiker"))
	assert.Equal(t, "the-snow-adventurer", Slugify("  The Snow  Adventurer "))
}
