package did

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	KMSLocal      = "local"
	KeyTypeSecp   = "Secp256k1"
	sealedPrefix  = "sb:"
	boxNonceBytes = 24
)

var ErrKeyDecrypt = errors.New("failed to decrypt private key")

// SecretBox шифрует приватные ключи перед записью в хранилище.
// Без ключа (nil) материал хранится в hex как есть.
type SecretBox struct {
	key *[32]byte
}

func NewSecretBox(secret []byte) *SecretBox {
	if len(secret) != 32 {
		return &SecretBox{}
	}
	var k [32]byte
	copy(k[:], secret)
	return &SecretBox{key: &k}
}

func (b *SecretBox) Seal(plain []byte) (string, error) {
	if b.key == nil {
		return hex.EncodeToString(plain), nil
	}

	var nonce [boxNonceBytes]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", err
	}
	sealed := secretbox.Seal(nonce[:], plain, &nonce, b.key)
	return sealedPrefix + hex.EncodeToString(sealed), nil
}

func (b *SecretBox) Open(stored string) ([]byte, error) {
	if !strings.HasPrefix(stored, sealedPrefix) {
		return hex.DecodeString(stored)
	}
	if b.key == nil {
		return nil, fmt.Errorf("%w: KMS secret key is not configured", ErrKeyDecrypt)
	}

	raw, err := hex.DecodeString(strings.TrimPrefix(stored, sealedPrefix))
	if err != nil || len(raw) < boxNonceBytes {
		return nil, ErrKeyDecrypt
	}

	var nonce [boxNonceBytes]byte
	copy(nonce[:], raw[:boxNonceBytes])
	plain, ok := secretbox.Open(nil, raw[boxNonceBytes:], &nonce, b.key)
	if !ok {
		return nil, ErrKeyDecrypt
	}
	return plain, nil
}

// GenerateKey создаёт secp256k1 ключ. Возвращает ключ и сжатый публичный ключ в hex (kid).
func GenerateKey() (*btcec.PrivateKey, string, error) {
	key, err := btcec.NewPrivateKey(btcec.S256())
	if err != nil {
		return nil, "", err
	}
	return key, hex.EncodeToString(key.PubKey().SerializeCompressed()), nil
}

func parsePrivateKey(b []byte) (*btcec.PrivateKey, error) {
	if len(b) != btcec.PrivKeyBytesLen {
		return nil, fmt.Errorf("invalid private key size: %d", len(b))
	}
	key, _ := btcec.PrivKeyFromBytes(btcec.S256(), b)
	return key, nil
}
