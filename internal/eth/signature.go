package eth

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcec"
	"golang.org/x/crypto/sha3"
)

const (
	// PersonalMessagePrefix - префикс EIP-191 (version 0x45, personal_sign).
	// https://eips.ethereum.org/EIPS/eip-191
	PersonalMessagePrefix = "\x19Ethereum Signed Message:\n"

	// SignatureLength - r(32) ++ s(32) ++ v(1).
	SignatureLength = 65
)

// Keccak256 returns the legacy Keccak-256 digest used by Ethereum.
func Keccak256(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}

// HashPersonalMessage хеширует сообщение так же, как кошелёк при personal_sign:
// keccak256("\x19Ethereum Signed Message:\n" ++ len(message) ++ message)
func HashPersonalMessage(message string) []byte {
	prefix := PersonalMessagePrefix + strconv.Itoa(len(message))
	return Keccak256([]byte(prefix), []byte(message))
}

// RecoverPersonalSigner восстанавливает адрес, подписавший message через personal_sign.
//
// signature - hex (с 0x или без) длиной 65 байт: r ++ s ++ v, где v ∈ {0, 1, 27, 28}.
// Возвращает адрес в EIP-55 checksum формате.
func RecoverPersonalSigner(message, signature string) (string, error) {
	sig, err := DecodeHex(signature)
	if err != nil {
		return "", fmt.Errorf("invalid signature hex: %w", err)
	}

	pub, err := RecoverPublicKey(HashPersonalMessage(message), sig)
	if err != nil {
		return "", err
	}

	return PubkeyToAddress(pub), nil
}

// RecoverPublicKey восстанавливает публичный ключ из 65-байтовой подписи r ++ s ++ v над hash.
func RecoverPublicKey(hash, sig []byte) (*btcec.PublicKey, error) {
	if len(sig) != SignatureLength {
		return nil, fmt.Errorf("invalid signature size: %d", len(sig))
	}

	v := sig[64]
	if v >= 27 {
		v -= 27
	}
	if v > 1 {
		return nil, fmt.Errorf("invalid signature recovery id: %d", sig[64])
	}

	// btcec ожидает compact формат: (27 + recid) ++ r ++ s
	compact := make([]byte, SignatureLength)
	compact[0] = 27 + v
	copy(compact[1:], sig[:64])

	pub, _, err := btcec.RecoverCompact(btcec.S256(), compact, hash)
	if err != nil {
		return nil, fmt.Errorf("invalid signature: %w", err)
	}
	return pub, nil
}

// Sign подписывает hash и возвращает r ++ s ++ v (v ∈ {0, 1}).
func Sign(key *btcec.PrivateKey, hash []byte) ([]byte, error) {
	compact, err := btcec.SignCompact(btcec.S256(), key, hash, false)
	if err != nil {
		return nil, err
	}

	sig := make([]byte, SignatureLength)
	copy(sig, compact[1:])
	sig[64] = compact[0] - 27
	return sig, nil
}

// SignPersonalMessage подписывает message так же, как кошелёк (v ∈ {27, 28}).
func SignPersonalMessage(key *btcec.PrivateKey, message string) (string, error) {
	sig, err := Sign(key, HashPersonalMessage(message))
	if err != nil {
		return "", err
	}
	sig[64] += 27
	return "0x" + hex.EncodeToString(sig), nil
}

func DecodeHex(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	return hex.DecodeString(s)
}
