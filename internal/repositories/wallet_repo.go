package repositories

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pixelgenesis/backend/internal/models"
)

type WalletRepo struct {
	pool *pgxpool.Pool
}

func NewWalletRepo(pool *pgxpool.Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

// Touch регистрирует успешную проверку подписи кошелька.
func (r *WalletRepo) Touch(ctx context.Context, address string) (*models.Wallet, error) {
	var w models.Wallet
	err := r.pool.QueryRow(ctx, `
		INSERT INTO wallets (address) VALUES ($1)
		ON CONFLICT (address) DO UPDATE SET
			login_count = wallets.login_count + 1,
			last_verified_at = now()
		RETURNING address, login_count, first_seen_at, last_verified_at
	`, address).Scan(&w.Address, &w.LoginCount, &w.FirstSeenAt, &w.LastVerifiedAt)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *WalletRepo) GetByAddress(ctx context.Context, address string) (*models.Wallet, error) {
	var w models.Wallet
	err := r.pool.QueryRow(ctx, `
		SELECT address, login_count, first_seen_at, last_verified_at
		FROM wallets WHERE address = $1
	`, address).Scan(&w.Address, &w.LoginCount, &w.FirstSeenAt, &w.LastVerifiedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &w, nil
}
