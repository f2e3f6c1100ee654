// Package crypto implements AEAD, signing, and hashing primitives, grounded
// in the teacher's pkg/security/advanced_encryption.go (AES-256-GCM via
// crypto/aes + crypto/cipher, zerolog for failure logging) but narrowed to
// three operations: symmetric encryption, peer-identity signing, and
// file-content hashing. Of these, the transfer engine uses only HashFile,
// when a file is registered; nothing outside this package calls the
// encryption or signing functions.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"io"

	"github.com/rs/zerolog/log"
)

// KeySize is the AES-256 key length in bytes.
const KeySize = 32

// nonceSize is the standard GCM nonce length.
const nonceSize = 12

// GenerateSymmetricKey returns a fresh random AES-256 key.
func GenerateSymmetricKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, newErr(ErrKeyGeneration, "generate symmetric key", err)
	}
	return key, nil
}

// Encrypt seals plaintext under key, returning nonce||ciphertext||tag.
func Encrypt(key, plaintext []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, newErr(ErrEncryption, "generate nonce", err)
	}

	sealed := gcm.Seal(nil, nonce, plaintext, nil)
	out := make([]byte, 0, len(nonce)+len(sealed))
	out = append(out, nonce...)
	out = append(out, sealed...)
	return out, nil
}

// Decrypt opens a nonce||ciphertext||tag blob produced by Encrypt.
func Decrypt(key, blob []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(blob) < nonceSize {
		return nil, newErr(ErrDecryption, "ciphertext shorter than nonce", nil)
	}

	nonce, sealed := blob[:nonceSize], blob[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		log.Error().Err(err).Msg("aead decryption failed")
		return nil, newErr(ErrDecryption, "open ciphertext", err)
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, newErr(ErrInvalidKey, "key must be 32 bytes for AES-256", nil)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, newErr(ErrInvalidKey, "construct AES cipher", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, newErr(ErrEncryption, "construct GCM mode", err)
	}
	return gcm, nil
}
