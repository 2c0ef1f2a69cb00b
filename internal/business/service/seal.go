package service

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"io"
	"strings"

	"github.com/WordpressDesigne/mpesaprompt/internal/business/domain"
	"golang.org/x/crypto/argon2"
)

const sealVersion = 1

// Key derivation parameters. Changing any of them invalidates stored credentials.
const (
	sealKeySalt    = "mpesaprompt/credentials/v1"
	sealKeyTime    = 1
	sealKeyMemory  = 19 * 1024
	sealKeyThreads = 2
	sealKeyLen     = 32
)

type sealedPayload struct {
	Version    int    `json:"version"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// sealer encrypts tenant secrets with AES-GCM under an argon2id key derived from the configured secret.
type sealer struct {
	key []byte
}

func newSealer(secret string) *sealer {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return &sealer{}
	}
	key := argon2.IDKey([]byte(secret), []byte(sealKeySalt), sealKeyTime, sealKeyMemory, sealKeyThreads, sealKeyLen)
	return &sealer{key: key}
}

func (s *sealer) seal(plain string) (string, error) {
	if plain == "" {
		return "", nil
	}
	if len(s.key) == 0 {
		return "", domain.ErrEncryptionKeyMissing
	}
	gcm, err := s.aead()
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	ciphertext := gcm.Seal(nil, nonce, []byte(plain), nil)

	out, err := json.Marshal(sealedPayload{
		Version:    sealVersion,
		Nonce:      base64.RawStdEncoding.EncodeToString(nonce),
		Ciphertext: base64.RawStdEncoding.EncodeToString(ciphertext),
	})
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (s *sealer) open(sealed string) (string, error) {
	if sealed == "" {
		return "", nil
	}
	if len(s.key) == 0 {
		return "", domain.ErrEncryptionKeyMissing
	}

	var payload sealedPayload
	if err := json.Unmarshal([]byte(sealed), &payload); err != nil {
		return "", domain.ErrSealedValueInvalid
	}
	if payload.Version != sealVersion {
		return "", domain.ErrSealedValueInvalid
	}
	nonce, err := base64.RawStdEncoding.DecodeString(payload.Nonce)
	if err != nil {
		return "", domain.ErrSealedValueInvalid
	}
	ciphertext, err := base64.RawStdEncoding.DecodeString(payload.Ciphertext)
	if err != nil {
		return "", domain.ErrSealedValueInvalid
	}

	gcm, err := s.aead()
	if err != nil {
		return "", err
	}
	if len(nonce) != gcm.NonceSize() {
		return "", domain.ErrSealedValueInvalid
	}
	plain, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", domain.ErrSealedValueInvalid
	}
	return string(plain), nil
}

func (s *sealer) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
