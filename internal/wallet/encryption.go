package wallet

import (
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// ErrWrongPassphrase is returned when a sealed seed fails authentication.
var ErrWrongPassphrase = errors.New("wrong wallet passphrase")

// SaltSize is the Argon2id salt length.
const SaltSize = 32

// KDFParams holds Argon2id cost parameters.
type KDFParams struct {
	Memory      uint32 `json:"memory"` // KiB
	Iterations  uint32 `json:"iterations"`
	Parallelism uint8  `json:"parallelism"`
}

// DefaultKDFParams returns the Argon2id cost used for new wallets.
func DefaultKDFParams() KDFParams {
	return KDFParams{
		Memory:      64 * 1024,
		Iterations:  3,
		Parallelism: 4,
	}
}

// Sealed is an Argon2id + XChaCha20-Poly1305 encrypted blob with everything
// needed to open it except the passphrase.
type Sealed struct {
	KDF        KDFParams `json:"kdf"`
	Salt       []byte    `json:"salt"`
	Nonce      []byte    `json:"nonce"`
	Ciphertext []byte    `json:"ciphertext"`
}

func (p KDFParams) key(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, p.Iterations, p.Memory, p.Parallelism, chacha20poly1305.KeySize)
}

// Seal encrypts plaintext under passphrase.
func Seal(plaintext, passphrase []byte, params KDFParams) (*Sealed, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	key := params.key(passphrase, salt)
	defer zero(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return &Sealed{
		KDF:        params,
		Salt:       salt,
		Nonce:      nonce,
		Ciphertext: aead.Seal(nil, nonce, plaintext, salt),
	}, nil
}

// Open decrypts a sealed blob. The salt is bound as associated data, so a
// blob with a swapped salt fails like a wrong passphrase.
func (s *Sealed) Open(passphrase []byte) ([]byte, error) {
	if len(s.Salt) != SaltSize || len(s.Nonce) != chacha20poly1305.NonceSizeX {
		return nil, fmt.Errorf("malformed sealed data")
	}
	key := s.KDF.key(passphrase, s.Salt)
	defer zero(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	plaintext, err := aead.Open(nil, s.Nonce, s.Ciphertext, s.Salt)
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	return plaintext, nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
