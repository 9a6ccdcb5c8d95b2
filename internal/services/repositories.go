package services

import (
	"context"

	"github.com/pixelgenesis/backend/internal/models"
)

// AuditRepository - журнал действий (Postgres или память).
type AuditRepository interface {
	Log(ctx context.Context, entry models.AuditLog) error
	ListByActor(ctx context.Context, address string, limit, offset int) ([]models.AuditLog, error)
}

// WalletRepository - реестр кошельков, прошедших challenge.
type WalletRepository interface {
	Touch(ctx context.Context, address string) (*models.Wallet, error)
	GetByAddress(ctx context.Context, address string) (*models.Wallet, error)
}
