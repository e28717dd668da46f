package snapshot

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

// Sealer encrypts payloads with ChaCha20-Poly1305.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer derives a 32-byte key from secret with SHA-256.
func NewSealer(secret string) (*Sealer, error) {
	if secret == "" {
		return nil, fmt.Errorf("snapshot: empty sealing secret")
	}
	key := sha256.Sum256([]byte(secret))
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, fmt.Errorf("create chacha20: %w", err)
	}
	return &Sealer{aead: aead}, nil
}

// Seal encrypts plaintext bound to ad. The nonce is prepended.
func (s *Sealer) Seal(plaintext, ad []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(plaintext)+s.aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return s.aead.Seal(nonce, nonce, plaintext, ad), nil
}

// Open reverses Seal. It fails if ad differs from the one sealed with.
func (s *Sealer) Open(sealed, ad []byte) ([]byte, error) {
	nonceSize := s.aead.NonceSize()
	if len(sealed) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce, ciphertext := sealed[:nonceSize], sealed[nonceSize:]
	plaintext, err := s.aead.Open(nil, nonce, ciphertext, ad)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	return plaintext, nil
}

type sealedStore struct {
	inner  Store
	sealer *Sealer
}

// Seal wraps inner so payloads are encrypted before they reach it.
// The key is used as associated data, so a record copied to another key
// fails to open.
func Seal(inner Store, sealer *Sealer) Store {
	return &sealedStore{inner: inner, sealer: sealer}
}

func (s *sealedStore) Save(ctx context.Context, key string, rec Record) error {
	sealed, err := s.sealer.Seal(rec.Payload, []byte(key))
	if err != nil {
		return fmt.Errorf("snapshot: seal %q: %w", key, err)
	}
	rec.Payload = sealed
	return s.inner.Save(ctx, key, rec)
}

func (s *sealedStore) Load(ctx context.Context, key string) (Record, bool, error) {
	rec, ok, err := s.inner.Load(ctx, key)
	if err != nil || !ok {
		return rec, ok, err
	}
	plain, err := s.sealer.Open(rec.Payload, []byte(key))
	if err != nil {
		return Record{}, false, fmt.Errorf("snapshot: open %q: %w", key, err)
	}
	rec.Payload = plain
	return rec, true, nil
}
