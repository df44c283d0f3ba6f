package keystore

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"io/fs"
	"sort"

	"github.com/99designs/keyring"
)

// isolatedPassword encrypts isolated file keyrings. Those keyrings only
// protect throwaway test keys.
const isolatedPassword = "harnesstest"

// KeyringKeystore implements Keystore on top of a 99designs keyring.
type KeyringKeystore struct {
	ring keyring.Keyring
}

// OpenIsolated opens a file keyring rooted at dir.
func OpenIsolated(dir string) (*KeyringKeystore, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName:      ServiceName,
		AllowedBackends:  []keyring.BackendType{keyring.FileBackend},
		FileDir:          dir,
		FilePasswordFunc: keyring.FixedStringPrompt(isolatedPassword),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open keyring in %s: %w", dir, err)
	}
	return New(ring), nil
}

// OpenSystem opens the platform's default keyring.
func OpenSystem() (*KeyringKeystore, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: ServiceName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open keyring: %w", err)
	}
	return New(ring), nil
}

// New wraps an open keyring.
func New(ring keyring.Keyring) *KeyringKeystore {
	return &KeyringKeystore{ring: ring}
}

// GenerateKey creates an ed25519 key and stores it as a PKCS#8 PEM block.
func (k *KeyringKeystore) GenerateKey(keyID string) (ed25519.PublicKey, error) {
	if _, err := k.ring.Get(keyID); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrKeyExists, keyID)
	} else if !errors.Is(err, keyring.ErrKeyNotFound) {
		return nil, fmt.Errorf("failed to get key from keyring: %w", err)
	}

	publicKey, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	defer zeroize(privateKey)

	privateKeyBytes, err := x509.MarshalPKCS8PrivateKey(privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal private key: %w", err)
	}
	defer zeroize(privateKeyBytes)

	err = k.ring.Set(keyring.Item{
		Key: keyID,
		Data: pem.EncodeToMemory(&pem.Block{
			Type:  "PRIVATE KEY",
			Bytes: privateKeyBytes,
		}),
		Label: "harness signing key " + keyID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store key in keyring: %w", err)
	}
	return publicKey, nil
}

// PublicKey returns the public key stored under keyID.
func (k *KeyringKeystore) PublicKey(keyID string) (ed25519.PublicKey, error) {
	privateKey, err := k.privateKey(keyID)
	if err != nil {
		return nil, err
	}
	defer zeroize(privateKey)
	return privateKey.Public().(ed25519.PublicKey), nil
}

// Sign signs msg with the key stored under keyID.
func (k *KeyringKeystore) Sign(keyID string, msg []byte) ([]byte, error) {
	privateKey, err := k.privateKey(keyID)
	if err != nil {
		return nil, err
	}
	defer zeroize(privateKey)
	return ed25519.Sign(privateKey, msg), nil
}

// ListKeys returns all key IDs stored in the keyring.
func (k *KeyringKeystore) ListKeys() ([]string, error) {
	keys, err := k.ring.Keys()
	if err != nil {
		return nil, fmt.Errorf("failed to list keys from keyring: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}

// RemoveKey deletes the key stored under keyID.
func (k *KeyringKeystore) RemoveKey(keyID string) error {
	if err := k.ring.Remove(keyID); err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) || errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrKeyNotFound, keyID)
		}
		return fmt.Errorf("failed to remove key from keyring: %w", err)
	}
	return nil
}

func (k *KeyringKeystore) privateKey(keyID string) (ed25519.PrivateKey, error) {
	item, err := k.ring.Get(keyID)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, keyID)
		}
		return nil, fmt.Errorf("failed to get key from keyring: %w", err)
	}

	block, _ := pem.Decode(item.Data)
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block for key %s", keyID)
	}

	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	zeroize(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	privateKey, ok := key.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("key %s is not ed25519", keyID)
	}
	return privateKey, nil
}

// zeroize overwrites key material before it is released.
func zeroize(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
