package services

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrNonceNotFound     = errors.New("nonce not found; request a new one")
	ErrNonceExpired      = errors.New("nonce expired; request a new one")
	ErrSignatureMismatch = errors.New("signature mismatch")
	ErrUpstream          = errors.New("upstream failure")
)

// inputError несёт сообщение для клиента и матчится как ErrInvalidInput.
type inputError struct {
	msg string
}

func (e *inputError) Error() string { return e.msg }

func (e *inputError) Is(target error) bool { return target == ErrInvalidInput }

// InvalidInput возвращает ошибку валидации с сообщением, которое уходит клиенту как есть.
func InvalidInput(msg string) error {
	return &inputError{msg: msg}
}

func upstream(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUpstream, op, err)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
