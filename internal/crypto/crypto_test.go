package crypto

import (
	"bytes"
	"crypto/ed25519"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key, err := GenerateSymmetricKey()
	require.NoError(t, err)

	plaintext := []byte("the quick brown fox jumps over the lazy dog")
	ciphertext, err := Encrypt(key, plaintext)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, ciphertext)

	decrypted, err := Decrypt(key, ciphertext)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestEncryptProducesDistinctCiphertextPerCall(t *testing.T) {
	key, err := GenerateSymmetricKey()
	require.NoError(t, err)

	a, err := Encrypt(key, []byte("same plaintext"))
	require.NoError(t, err)
	b, err := Encrypt(key, []byte("same plaintext"))
	require.NoError(t, err)

	assert.NotEqual(t, a, b, "random nonce should make repeated encryptions differ")
}

func TestDecryptRejectsTamperedCiphertext(t *testing.T) {
	key, err := GenerateSymmetricKey()
	require.NoError(t, err)

	ciphertext, err := Encrypt(key, []byte("authenticate me"))
	require.NoError(t, err)
	ciphertext[len(ciphertext)-1] ^= 0xFF

	_, err = Decrypt(key, ciphertext)
	require.Error(t, err)
	assert.True(t, IsKind(err, ErrDecryption))
}

func TestDecryptRejectsWrongKey(t *testing.T) {
	key1, err := GenerateSymmetricKey()
	require.NoError(t, err)
	key2, err := GenerateSymmetricKey()
	require.NoError(t, err)

	ciphertext, err := Encrypt(key1, []byte("secret"))
	require.NoError(t, err)

	_, err = Decrypt(key2, ciphertext)
	require.Error(t, err)
	assert.True(t, IsKind(err, ErrDecryption))
}

func TestEncryptRejectsWrongKeySize(t *testing.T) {
	_, err := Encrypt([]byte("too-short"), []byte("data"))
	require.Error(t, err)
	assert.True(t, IsKind(err, ErrInvalidKey))
}

func TestSignVerifyRoundTrip(t *testing.T) {
	kp, err := GenerateSigningKeypair()
	require.NoError(t, err)

	msg := []byte("transfer-id:abc123")
	sig, err := kp.Sign(msg)
	require.NoError(t, err)

	ok, err := Verify(kp.Public, msg, sig)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyRejectsTamperedMessage(t *testing.T) {
	kp, err := GenerateSigningKeypair()
	require.NoError(t, err)

	sig, err := kp.Sign([]byte("original"))
	require.NoError(t, err)

	ok, err := Verify(kp.Public, []byte("tampered"), sig)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyRejectsMalformedPublicKey(t *testing.T) {
	_, err := Verify(ed25519.PublicKey([]byte("too-short")), []byte("msg"), []byte("sig"))
	require.Error(t, err)
	assert.True(t, IsKind(err, ErrInvalidKey))
}

func TestMarshalLoadSigningKeypairRoundTrip(t *testing.T) {
	kp, err := GenerateSigningKeypair()
	require.NoError(t, err)

	der, err := kp.MarshalPrivateKey()
	require.NoError(t, err)

	loaded, err := LoadSigningKeypair(der)
	require.NoError(t, err)
	assert.Equal(t, kp.Public, loaded.Public)

	msg := []byte("round trip check")
	sig, err := loaded.Sign(msg)
	require.NoError(t, err)
	ok, err := Verify(kp.Public, msg, sig)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLoadSigningKeypairRejectsGarbage(t *testing.T) {
	_, err := LoadSigningKeypair([]byte("not a valid key"))
	require.Error(t, err)
	assert.True(t, IsKind(err, ErrInvalidKey))
}

func TestHashFileMatchesKnownDigest(t *testing.T) {
	// sha256("hello world") precomputed.
	const want = "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"
	digest, err := HashFile(strings.NewReader("hello world"))
	require.NoError(t, err)
	assert.Equal(t, want, digest)
}

func TestHashFileStreamsAcrossMultipleBlocks(t *testing.T) {
	data := bytes.Repeat([]byte("x"), hashBlockSize*3+17)
	digest, err := HashFile(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Len(t, digest, 64)
}

func TestChunkHasherMatchesHashFile(t *testing.T) {
	data := []byte("chunked content split across writes")
	want, err := HashFile(bytes.NewReader(data))
	require.NoError(t, err)

	ch := NewChunkHasher()
	ch.Write(data[:10])
	ch.Write(data[10:])
	assert.Equal(t, want, ch.Sum())
}
