package keystore

import (
	"crypto/ed25519"
	"errors"
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIsolated(t *testing.T) *KeyringKeystore {
	t.Helper()
	ks, err := OpenIsolated(t.TempDir())
	require.NoError(t, err)
	return ks
}

func TestKeyringKeystore_GenerateAndSign(t *testing.T) {
	ks := newIsolated(t)

	publicKey, err := ks.GenerateKey("signer")
	require.NoError(t, err)
	assert.Len(t, publicKey, ed25519.PublicKeySize)

	stored, err := ks.PublicKey("signer")
	require.NoError(t, err)
	assert.Equal(t, publicKey, stored)

	msg := []byte("plugin archive digest")
	signature, err := ks.Sign("signer", msg)
	require.NoError(t, err)
	assert.True(t, ed25519.Verify(publicKey, msg, signature))
}

func TestKeyringKeystore_GenerateKey_Exists(t *testing.T) {
	ks := newIsolated(t)

	_, err := ks.GenerateKey("signer")
	require.NoError(t, err)

	_, err = ks.GenerateKey("signer")
	if !errors.Is(err, ErrKeyExists) {
		t.Errorf("GenerateKey() twice error = %v, want ErrKeyExists", err)
	}
}

func TestKeyringKeystore_Missing(t *testing.T) {
	ks := newIsolated(t)

	_, err := ks.PublicKey("missing")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	_, err = ks.Sign("missing", []byte("x"))
	assert.ErrorIs(t, err, ErrKeyNotFound)

	assert.ErrorIs(t, ks.RemoveKey("missing"), ErrKeyNotFound)
}

func TestKeyringKeystore_ListAndRemove(t *testing.T) {
	ks := newIsolated(t)

	for _, id := range []string{"zeta", "alpha", "mid"} {
		_, err := ks.GenerateKey(id)
		require.NoError(t, err)
	}

	keys, err := ks.ListKeys()
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, keys)

	require.NoError(t, ks.RemoveKey("mid"))
	keys, err = ks.ListKeys()
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "zeta"}, keys)
}

func TestOpenIsolated_Persists(t *testing.T) {
	dir := t.TempDir()

	first, err := OpenIsolated(dir)
	require.NoError(t, err)
	publicKey, err := first.GenerateKey("signer")
	require.NoError(t, err)

	second, err := OpenIsolated(dir)
	require.NoError(t, err)
	stored, err := second.PublicKey("signer")
	require.NoError(t, err)
	assert.Equal(t, publicKey, stored)
}

func TestKeyringKeystore_NotEd25519(t *testing.T) {
	ring := keyring.NewArrayKeyring(nil)
	require.NoError(t, ring.Set(keyring.Item{Key: "garbage", Data: []byte("not pem")}))

	_, err := New(ring).PublicKey("garbage")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrKeyNotFound)
}

func TestZeroize(t *testing.T) {
	b := []byte{1, 2, 3}
	zeroize(b)
	assert.Equal(t, []byte{0, 0, 0}, b)
}
