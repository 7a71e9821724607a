package credentials

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/fyrsmithlabs/deployd/internal/config"
)

// secretBox seals credential material with AES-256-GCM. The sealed blob is
// nonce || ciphertext.
type secretBox struct {
	aead cipher.AEAD
}

func newSecretBox(key []byte) (*secretBox, error) {
	if len(key) != 32 {
		return nil, errors.New("credentials: master key must be exactly 32 bytes")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("credentials: cipher init: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("credentials: gcm init: %w", err)
	}
	return &secretBox{aead: aead}, nil
}

// sealedMaterial is the plaintext layout inside the box. Raw strings here,
// not config.Secret: Secret marshals redacted, which would destroy the
// material on seal.
type sealedMaterial struct {
	AccessKeyID     string `json:"k"`
	SecretAccessKey string `json:"s"`
	SessionToken    string `json:"t,omitempty"`
}

func (b *secretBox) seal(material Material) ([]byte, error) {
	plaintext, err := json.Marshal(sealedMaterial{
		AccessKeyID:     material.AccessKeyID.Value(),
		SecretAccessKey: material.SecretAccessKey.Value(),
		SessionToken:    material.SessionToken.Value(),
	})
	if err != nil {
		return nil, fmt.Errorf("credentials: seal: %w", err)
	}

	nonce := make([]byte, b.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("credentials: nonce: %w", err)
	}
	return b.aead.Seal(nonce, nonce, plaintext, nil), nil
}

func (b *secretBox) open(sealed []byte) (Material, error) {
	if len(sealed) < b.aead.NonceSize() {
		return Material{}, errors.New("credentials: sealed blob too short")
	}
	nonce, ciphertext := sealed[:b.aead.NonceSize()], sealed[b.aead.NonceSize():]
	plaintext, err := b.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return Material{}, fmt.Errorf("credentials: open: %w", err)
	}

	var inner sealedMaterial
	if err := json.Unmarshal(plaintext, &inner); err != nil {
		return Material{}, fmt.Errorf("credentials: decode: %w", err)
	}
	return Material{
		AccessKeyID:     config.Secret(inner.AccessKeyID),
		SecretAccessKey: config.Secret(inner.SecretAccessKey),
		SessionToken:    config.Secret(inner.SessionToken),
	}, nil
}
