package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	hash, err := h.Hash("ChangeMe!2024")
	require.NoError(t, err)
	assert.NotEqual(t, "ChangeMe!2024", hash)
	assert.NoError(t, h.Compare(hash, "ChangeMe!2024"))
	assert.Error(t, h.Compare(hash, "wrong-password"))

	_, err = h.Hash("short")
	assert.ErrorIs(t, err, ErrPasswordShort)
}

func TestRandomSuffix(t *testing.T) {
	a, err := RandomSuffix(2)
	require.NoError(t, err)
	assert.Len(t, a, 4)
}
