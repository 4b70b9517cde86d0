package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("admin1234")
	require.NoError(t, err)
	assert.NotEqual(t, "admin1234", hash)
	assert.Contains(t, hash, "$2a$")

	// Same input, different salt, both verify.
	again, err := HashPassword("admin1234")
	require.NoError(t, err)
	assert.NotEqual(t, hash, again)
	assert.True(t, VerifyPassword(hash, "admin1234"))
	assert.True(t, VerifyPassword(again, "admin1234"))
}

func TestVerifyPassword(t *testing.T) {
	hash, err := HashPassword("admin1234")
	require.NoError(t, err)

	assert.True(t, VerifyPassword(hash, "admin1234"))
	assert.False(t, VerifyPassword(hash, "admin12345"))
	assert.False(t, VerifyPassword(hash, ""))
	assert.False(t, VerifyPassword("not-a-bcrypt-hash", "admin1234"))
}
