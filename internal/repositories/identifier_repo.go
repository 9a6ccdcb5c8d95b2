package repositories

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pixelgenesis/backend/internal/models"
)

type IdentifierRepo struct {
	pool *pgxpool.Pool
}

func NewIdentifierRepo(pool *pgxpool.Pool) *IdentifierRepo {
	return &IdentifierRepo{pool: pool}
}

// rowsQuerier - общий интерфейс pool и tx для чтения.
type rowsQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *IdentifierRepo) Create(ctx context.Context, id *models.Identifier, sealedPrivateKey string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := insertIdentifier(ctx, tx, id, sealedPrivateKey); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *IdentifierRepo) List(ctx context.Context) ([]models.Identifier, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT did, alias, provider, controller_key_id, created_at
		FROM identifiers ORDER BY created_at, did
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []models.Identifier
	index := map[string]int{}
	for rows.Next() {
		var id models.Identifier
		if err := rows.Scan(&id.DID, &id.Alias, &id.Provider, &id.ControllerKeyID, &id.CreatedAt); err != nil {
			return nil, err
		}
		id.Keys = []models.Key{}
		id.Services = []models.Service{}
		index[id.DID] = len(ids)
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	keyRows, err := r.pool.Query(ctx, `SELECT kid, kms, type, public_key_hex, did FROM keys ORDER BY kid`)
	if err != nil {
		return nil, err
	}
	defer keyRows.Close()

	for keyRows.Next() {
		var k models.Key
		if err := keyRows.Scan(&k.KID, &k.KMS, &k.Type, &k.PublicKeyHex, &k.DID); err != nil {
			return nil, err
		}
		if i, ok := index[k.DID]; ok {
			ids[i].Keys = append(ids[i].Keys, k)
		}
	}
	return ids, keyRows.Err()
}

func (r *IdentifierRepo) GetByDID(ctx context.Context, did string) (*models.Identifier, error) {
	var id models.Identifier
	err := r.pool.QueryRow(ctx, `
		SELECT did, alias, provider, controller_key_id, created_at
		FROM identifiers WHERE did = $1
	`, did).Scan(&id.DID, &id.Alias, &id.Provider, &id.ControllerKeyID, &id.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}

	id.Keys, err = loadKeys(ctx, r.pool, did)
	if err != nil {
		return nil, err
	}
	id.Services = []models.Service{}
	return &id, nil
}

// FindOrCreateByAlias берёт транзакционную advisory-блокировку на alias, поэтому
// параллельные вызовы (в том числе из разных инстансов) создают не более одного идентификатора.
func (r *IdentifierRepo) FindOrCreateByAlias(
	ctx context.Context,
	alias string,
	create func() (*models.Identifier, string, error),
) (*models.Identifier, bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext('identifier-alias:' || $1))`, alias); err != nil {
		return nil, false, err
	}

	var id models.Identifier
	err = tx.QueryRow(ctx, `
		SELECT did, alias, provider, controller_key_id, created_at
		FROM identifiers WHERE alias = $1
		ORDER BY created_at, did LIMIT 1
	`, alias).Scan(&id.DID, &id.Alias, &id.Provider, &id.ControllerKeyID, &id.CreatedAt)

	switch {
	case err == nil:
		id.Keys, err = loadKeys(ctx, tx, id.DID)
		if err != nil {
			return nil, false, err
		}
		id.Services = []models.Service{}
		return &id, false, tx.Commit(ctx)

	case errors.Is(err, pgx.ErrNoRows):
		created, sealed, err := create()
		if err != nil {
			return nil, false, err
		}
		if err := insertIdentifier(ctx, tx, created, sealed); err != nil {
			return nil, false, err
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, false, err
		}
		return created, true, nil

	default:
		return nil, false, err
	}
}

func (r *IdentifierRepo) PrivateKey(ctx context.Context, kid string) (string, error) {
	var sealed string
	err := r.pool.QueryRow(ctx, `SELECT private_key FROM private_keys WHERE kid = $1`, kid).Scan(&sealed)
	if err != nil {
		return "", notFound(err)
	}
	return sealed, nil
}

func insertIdentifier(ctx context.Context, tx pgx.Tx, id *models.Identifier, sealedPrivateKey string) error {
	err := tx.QueryRow(ctx, `
		INSERT INTO identifiers (did, alias, provider, controller_key_id)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, id.DID, id.Alias, id.Provider, id.ControllerKeyID).Scan(&id.CreatedAt)
	if err != nil {
		return err
	}

	for _, k := range id.Keys {
		if _, err := tx.Exec(ctx, `
			INSERT INTO keys (kid, kms, type, public_key_hex, did)
			VALUES ($1, $2, $3, $4, $5)
		`, k.KID, k.KMS, k.Type, k.PublicKeyHex, id.DID); err != nil {
			return err
		}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO private_keys (kid, private_key) VALUES ($1, $2)
	`, id.ControllerKeyID, sealedPrivateKey)
	return err
}

func loadKeys(ctx context.Context, q rowsQuerier, did string) ([]models.Key, error) {
	rows, err := q.Query(ctx, `
		SELECT kid, kms, type, public_key_hex, did FROM keys WHERE did = $1 ORDER BY kid
	`, did)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := []models.Key{}
	for rows.Next() {
		var k models.Key
		if err := rows.Scan(&k.KID, &k.KMS, &k.Type, &k.PublicKeyHex, &k.DID); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrNotFound
	}
	return err
}
