package store

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	sealKeySize   = 32
	sealNonceSize = 24
	sealInfo      = "storefront store v1"
)

// ErrUnsealed is returned when a stored value fails authentication.
var ErrUnsealed = errors.New("store: value could not be unsealed")

// Sealed encrypts values with NaCl secretbox before handing them to the
// wrapped store. Keys are left in clear text.
type Sealed struct {
	inner Store
	key   [sealKeySize]byte
}

// NewSealed derives the box key from secret with HKDF-SHA256.
func NewSealed(inner Store, secret string) (*Sealed, error) {
	if secret == "" {
		return nil, errors.New("store: sealing secret is empty")
	}
	s := &Sealed{inner: inner}
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte(sealInfo))
	if _, err := io.ReadFull(kdf, s.key[:]); err != nil {
		return nil, fmt.Errorf("derive seal key: %w", err)
	}
	return s, nil
}

// Get loads and opens the value stored under key.
func (s *Sealed) Get(ctx context.Context, key string) ([]byte, error) {
	boxed, err := s.inner.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if len(boxed) < sealNonceSize+secretbox.Overhead {
		return nil, ErrUnsealed
	}
	var nonce [sealNonceSize]byte
	copy(nonce[:], boxed[:sealNonceSize])
	plain, ok := secretbox.Open(nil, boxed[sealNonceSize:], &nonce, &s.key)
	if !ok {
		return nil, ErrUnsealed
	}
	return plain, nil
}

// Set seals value under a fresh random nonce.
func (s *Sealed) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var nonce [sealNonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return fmt.Errorf("seal nonce: %w", err)
	}
	boxed := secretbox.Seal(nonce[:], value, &nonce, &s.key)
	return s.inner.Set(ctx, key, boxed, ttl)
}

// Delete removes key from the wrapped store.
func (s *Sealed) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, key)
}

// Ping delegates to the wrapped store.
func (s *Sealed) Ping(ctx context.Context) error {
	return s.inner.Ping(ctx)
}
