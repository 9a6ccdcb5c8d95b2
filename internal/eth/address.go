package eth

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec"
)

const AddressLength = 20

// PubkeyToAddress - последние 20 байт keccak256 от несжатого ключа без префикса 0x04.
func PubkeyToAddress(pub *btcec.PublicKey) string {
	raw := pub.SerializeUncompressed()
	return ChecksumAddress(Keccak256(raw[1:])[12:])
}

// ChecksumAddress кодирует адрес по EIP-55 (mixed-case checksum).
func ChecksumAddress(addr []byte) string {
	lower := hex.EncodeToString(addr)
	hash := hex.EncodeToString(Keccak256([]byte(lower)))

	out := make([]byte, len(lower))
	for i := 0; i < len(lower); i++ {
		c := lower[i]
		if c >= 'a' && c <= 'f' && hash[i] >= '8' {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return "0x" + string(out)
}

// ParseAddress проверяет, что s - 20-байтовый hex адрес, и возвращает его в checksum формате.
func ParseAddress(s string) (string, error) {
	b, err := DecodeHex(s)
	if err != nil {
		return "", fmt.Errorf("invalid address hex: %w", err)
	}
	if len(b) != AddressLength {
		return "", fmt.Errorf("address must be %d bytes, got %d", AddressLength, len(b))
	}
	return ChecksumAddress(b), nil
}

// NormalizeAddress - ключ сравнения адресов: регистр не важен.
func NormalizeAddress(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// SameAddress сравнивает адреса без учёта регистра.
func SameAddress(a, b string) bool {
	return NormalizeAddress(a) == NormalizeAddress(b)
}
