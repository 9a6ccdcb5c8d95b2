package nonce

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"time"
)

// DefaultTTL - время жизни challenge nonce.
const DefaultTTL = 5 * time.Minute

// nonceBytes - 16 байт энтропии, 32 hex символа.
const nonceBytes = 16

var (
	ErrNotFound = errors.New("nonce not found")
	ErrExpired  = errors.New("nonce expired")
)

// Record - выданный challenge для адреса.
type Record struct {
	Address   string    `json:"address"`
	Nonce     string    `json:"nonce"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the record is past its deadline at now.
func (r Record) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// Store хранит не более одного живого nonce на адрес.
//
// Issue перезаписывает предыдущий неиспользованный nonce (валиден только последний challenge).
// Get возвращает живую запись, ErrNotFound если её нет, ErrExpired (с удалением) если срок истёк.
// Consume удаляет запись, только если она всё ещё содержит тот же nonce; иначе ErrNotFound.
type Store interface {
	Issue(ctx context.Context, address string) (Record, error)
	Get(ctx context.Context, address string) (Record, error)
	Consume(ctx context.Context, rec Record) error
}

// Normalize - адреса сравниваются без учёта регистра.
func Normalize(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

func generate() (string, error) {
	b := make([]byte, nonceBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
