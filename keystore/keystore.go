// Package keystore stores plugin signing keys in a keyring.
//
// Isolated keystores use the keyring file backend inside a caller-owned
// directory, so tests never touch the user's OS keyring.
package keystore

import (
	"crypto/ed25519"
	"errors"
)

var (
	// ErrKeyNotFound is returned when no key is stored under an ID.
	ErrKeyNotFound = errors.New("key not found")
	// ErrKeyExists is returned by GenerateKey when the ID is taken.
	ErrKeyExists = errors.New("key already exists")
)

// ServiceName is the keyring service of the system keystore.
const ServiceName = "harness"

// Keystore holds ed25519 signing keys by ID.
type Keystore interface {
	// GenerateKey creates and stores a new key pair under keyID.
	GenerateKey(keyID string) (ed25519.PublicKey, error)
	// PublicKey returns the public half of the key stored under keyID.
	PublicKey(keyID string) (ed25519.PublicKey, error)
	// Sign signs msg with the key stored under keyID.
	Sign(keyID string, msg []byte) ([]byte, error)
	// ListKeys returns all key IDs in sorted order.
	ListKeys() ([]string, error)
	// RemoveKey deletes the key stored under keyID.
	RemoveKey(keyID string) error
}
