package repositories

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pixelgenesis/backend/internal/models"
)

// MemoryIdentifierRepo хранит идентификаторы в памяти процесса (STORE_BACKEND=memory, тесты).
type MemoryIdentifierRepo struct {
	mu          sync.Mutex
	identifiers []models.Identifier
	privateKeys map[string]string
	now         func() time.Time
}

func NewMemoryIdentifierRepo() *MemoryIdentifierRepo {
	return &MemoryIdentifierRepo{
		privateKeys: map[string]string{},
		now:         time.Now,
	}
}

func (r *MemoryIdentifierRepo) Create(_ context.Context, id *models.Identifier, sealedPrivateKey string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.insert(id, sealedPrivateKey)
}

func (r *MemoryIdentifierRepo) List(_ context.Context) ([]models.Identifier, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]models.Identifier, len(r.identifiers))
	copy(out, r.identifiers)
	return out, nil
}

func (r *MemoryIdentifierRepo) GetByDID(_ context.Context, did string) (*models.Identifier, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.identifiers {
		if r.identifiers[i].DID == did {
			id := r.identifiers[i]
			return &id, nil
		}
	}
	return nil, models.ErrNotFound
}

func (r *MemoryIdentifierRepo) FindOrCreateByAlias(
	_ context.Context,
	alias string,
	create func() (*models.Identifier, string, error),
) (*models.Identifier, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.identifiers {
		if r.identifiers[i].HasAlias(alias) {
			id := r.identifiers[i]
			return &id, false, nil
		}
	}

	id, sealed, err := create()
	if err != nil {
		return nil, false, err
	}
	if err := r.insert(id, sealed); err != nil {
		return nil, false, err
	}
	return id, true, nil
}

func (r *MemoryIdentifierRepo) PrivateKey(_ context.Context, kid string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sealed, ok := r.privateKeys[kid]
	if !ok {
		return "", models.ErrNotFound
	}
	return sealed, nil
}

func (r *MemoryIdentifierRepo) insert(id *models.Identifier, sealedPrivateKey string) error {
	id.CreatedAt = r.now()
	r.identifiers = append(r.identifiers, *id)
	r.privateKeys[id.ControllerKeyID] = sealedPrivateKey
	return nil
}

// MemoryAuditRepo - журнал аудита в памяти.
type MemoryAuditRepo struct {
	mu      sync.Mutex
	entries []models.AuditLog
}

func NewMemoryAuditRepo() *MemoryAuditRepo {
	return &MemoryAuditRepo{}
}

func (r *MemoryAuditRepo) Log(_ context.Context, entry models.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry.ID = uuid.New()
	entry.CreatedAt = time.Now()
	r.entries = append(r.entries, entry)
	return nil
}

func (r *MemoryAuditRepo) ListByActor(_ context.Context, address string, limit, offset int) ([]models.AuditLog, error) {
	if limit <= 0 {
		limit = 50
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	logs := []models.AuditLog{}
	for i := len(r.entries) - 1; i >= 0; i-- {
		e := r.entries[i]
		if e.ActorAddress == nil || *e.ActorAddress != address {
			continue
		}
		if offset > 0 {
			offset--
			continue
		}
		logs = append(logs, e)
		if len(logs) == limit {
			break
		}
	}
	return logs, nil
}

func (r *MemoryAuditRepo) PurgeOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.entries[:0]
	var purged int64
	for _, e := range r.entries {
		if e.CreatedAt.Before(cutoff) {
			purged++
			continue
		}
		kept = append(kept, e)
	}
	r.entries = kept
	return purged, nil
}

// MemoryWalletRepo - реестр кошельков в памяти.
type MemoryWalletRepo struct {
	mu      sync.Mutex
	wallets map[string]*models.Wallet
}

func NewMemoryWalletRepo() *MemoryWalletRepo {
	return &MemoryWalletRepo{wallets: map[string]*models.Wallet{}}
}

func (r *MemoryWalletRepo) Touch(_ context.Context, address string) (*models.Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	w, ok := r.wallets[address]
	if !ok {
		w = &models.Wallet{Address: address, FirstSeenAt: now}
		r.wallets[address] = w
	}
	w.LoginCount++
	w.LastVerifiedAt = now

	out := *w
	return &out, nil
}

func (r *MemoryWalletRepo) GetByAddress(_ context.Context, address string) (*models.Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.wallets[address]
	if !ok {
		return nil, models.ErrNotFound
	}
	out := *w
	return &out, nil
}
