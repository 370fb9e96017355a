package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/argon2"

	"github.com/ajkula/GoAccessGate/domain/port/outbound"
)

// argon2id parameters for key derivation
const (
	kdfTime    = 1
	kdfMemory  = 64 * 1024
	kdfThreads = 4
	kdfKeyLen  = 32
)

var kdfContext = []byte("goaccessgate-request-store")

type AESCryptoService struct{}

func NewAESCryptoService() outbound.CryptoService {
	return &AESCryptoService{}
}

func (c *AESCryptoService) Encrypt(data []byte, key [32]byte) ([]byte, []byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return gcm.Seal(nil, nonce, data, nil), nonce, nil
}

func (c *AESCryptoService) Decrypt(encrypted []byte, nonce []byte, key [32]byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, fmt.Errorf("invalid nonce length %d", len(nonce))
	}

	return gcm.Open(nil, nonce, encrypted, nil)
}

// DeriveKey stretches secret with argon2id. The salt is a hash of a fixed context
// string so the same secret always yields the same key.
func (c *AESCryptoService) DeriveKey(secret string) [32]byte {
	salt := sha256.Sum256(kdfContext)
	derived := argon2.IDKey([]byte(secret), salt[:16], kdfTime, kdfMemory, kdfThreads, kdfKeyLen)

	var key [32]byte
	copy(key[:], derived)
	return key
}

func newGCM(key [32]byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
