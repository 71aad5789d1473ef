package identity

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContactHashDeterministicAndNonReversible(t *testing.T) {
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)

	h1 := ContactHash(key, "prop1", "whatsapp", "+5511999999999")
	h2 := ContactHash(key, "prop1", "whatsapp", "+5511999999999")
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 32)
	assert.NotContains(t, h1, "+5511999999999")
}

func TestContactHashDiffersByChannelAndProperty(t *testing.T) {
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)

	base := ContactHash(key, "prop1", "whatsapp", "+5511999999999")
	otherChannel := ContactHash(key, "prop1", "evolution", "+5511999999999")
	otherProperty := ContactHash(key, "prop2", "whatsapp", "+5511999999999")

	assert.NotEqual(t, base, otherChannel)
	assert.NotEqual(t, base, otherProperty)
}

func TestVaultEncryptDecryptRoundTrip(t *testing.T) {
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)

	v, err := NewVault(nil, key)
	require.NoError(t, err)

	ciphertext, err := v.encrypt("+5511999999999")
	require.NoError(t, err)
	assert.NotContains(t, string(ciphertext), "5511999999999")

	plaintext, err := v.decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "+5511999999999", plaintext)
}

func TestVaultDecryptFailsOnKeyMismatch(t *testing.T) {
	key1 := make([]byte, 32)
	key2 := make([]byte, 32)
	_, err := rand.Read(key1)
	require.NoError(t, err)
	_, err = rand.Read(key2)
	require.NoError(t, err)

	v1, err := NewVault(nil, key1)
	require.NoError(t, err)
	v2, err := NewVault(nil, key2)
	require.NoError(t, err)

	ciphertext, err := v1.encrypt("+5511999999999")
	require.NoError(t, err)

	_, err = v2.decrypt(ciphertext)
	assert.Error(t, err)
}

func TestNewVaultRejectsWrongKeyLength(t *testing.T) {
	_, err := NewVault(nil, make([]byte, 16))
	assert.Error(t, err)
}
