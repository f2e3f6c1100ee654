package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
)

// SigningKeypair holds an Ed25519 keypair used to authenticate peer identity
// claims and file manifests.
type SigningKeypair struct {
	Public  ed25519.PublicKey
	private ed25519.PrivateKey
}

// GenerateSigningKeypair creates a fresh Ed25519 keypair.
func GenerateSigningKeypair() (*SigningKeypair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, newErr(ErrKeyGeneration, "generate ed25519 keypair", err)
	}
	return &SigningKeypair{Public: pub, private: priv}, nil
}

// MarshalPrivateKey encodes the private key as PKCS#8, matching the teacher's
// host identity storage convention.
func (k *SigningKeypair) MarshalPrivateKey() ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(k.private)
	if err != nil {
		return nil, newErr(ErrKeyGeneration, "marshal pkcs8 private key", err)
	}
	return der, nil
}

// LoadSigningKeypair reconstructs a keypair from a PKCS#8-encoded private key.
func LoadSigningKeypair(der []byte) (*SigningKeypair, error) {
	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, newErr(ErrInvalidKey, "parse pkcs8 private key", err)
	}
	priv, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, newErr(ErrInvalidKey, "pkcs8 key is not ed25519", nil)
	}
	pub, ok := priv.Public().(ed25519.PublicKey)
	if !ok {
		return nil, newErr(ErrInvalidKey, "derive ed25519 public key", nil)
	}
	return &SigningKeypair{Public: pub, private: priv}, nil
}

// Sign produces a detached Ed25519 signature over msg.
func (k *SigningKeypair) Sign(msg []byte) ([]byte, error) {
	if len(k.private) != ed25519.PrivateKeySize {
		return nil, newErr(ErrInvalidKey, "private key not initialized", nil)
	}
	return ed25519.Sign(k.private, msg), nil
}

// Verify checks a detached Ed25519 signature against a public key, matching
// spec.md §4.3's "verify(message, signature, public) → bool (never throws
// on cryptographic failure; returns false)" and the teacher's convention of
// separating a boolean outcome from a hard error (e.g.
// pkg/security/security_manager.go's VerifyPassword, mfa.go's VerifyToken,
// both (bool, error)). A malformed key is reported as an error; a genuine
// signature mismatch is reported as (false, nil), never an error.
func Verify(pub ed25519.PublicKey, msg, sig []byte) (bool, error) {
	if len(pub) != ed25519.PublicKeySize {
		return false, newErr(ErrInvalidKey, "public key has wrong length", nil)
	}
	return ed25519.Verify(pub, msg, sig), nil
}
