package did

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/btcsuite/btcd/btcec"
	"go.uber.org/zap"

	"github.com/pixelgenesis/backend/internal/eth"
	"github.com/pixelgenesis/backend/internal/models"
)

var ErrKeyNotManaged = errors.New("no managed key for identifier")

// IdentifierStore - постоянное хранилище идентификаторов и ключей.
type IdentifierStore interface {
	// Create сохраняет идентификатор, его ключи и зашифрованный приватный ключ атомарно.
	Create(ctx context.Context, id *models.Identifier, sealedPrivateKey string) error
	List(ctx context.Context) ([]models.Identifier, error)
	GetByDID(ctx context.Context, did string) (*models.Identifier, error)
	// FindOrCreateByAlias выполняет поиск и создание под одной блокировкой на alias.
	FindOrCreateByAlias(ctx context.Context, alias string, create func() (*models.Identifier, string, error)) (*models.Identifier, bool, error)
	PrivateKey(ctx context.Context, kid string) (string, error)
}

// Manager - DID management: создание/список идентификаторов, подписывающие ключи, резолвинг.
type Manager struct {
	store           IdentifierStore
	box             *SecretBox
	defaultProvider string
	log             *zap.Logger

	// issuerMu сериализует get-or-create внутри процесса; между процессами - блокировка хранилища.
	issuerMu sync.Mutex
}

func NewManager(store IdentifierStore, box *SecretBox, defaultProvider string, log *zap.Logger) *Manager {
	return &Manager{
		store:           store,
		box:             box,
		defaultProvider: defaultProvider,
		log:             log,
	}
}

// Create создаёт новый did:ethr идентификатор. alias может быть пустым.
func (m *Manager) Create(ctx context.Context, alias string) (*models.Identifier, error) {
	id, sealed, err := m.newIdentifier(alias)
	if err != nil {
		return nil, err
	}
	if err := m.store.Create(ctx, id, sealed); err != nil {
		return nil, fmt.Errorf("failed to save identifier: %w", err)
	}

	m.log.Info("identifier created",
		zap.String("did", id.DID),
		zap.String("alias", alias),
	)
	return id, nil
}

// FindOrCreate возвращает первый идентификатор с alias или создаёт его.
// Второе значение - true, если идентификатор был создан.
func (m *Manager) FindOrCreate(ctx context.Context, alias string) (*models.Identifier, bool, error) {
	m.issuerMu.Lock()
	defer m.issuerMu.Unlock()

	id, created, err := m.store.FindOrCreateByAlias(ctx, alias, func() (*models.Identifier, string, error) {
		return m.newIdentifier(alias)
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to find or create %q identifier: %w", alias, err)
	}
	if created {
		m.log.Info("identifier created", zap.String("did", id.DID), zap.String("alias", alias))
	}
	return id, created, nil
}

func (m *Manager) List(ctx context.Context) ([]models.Identifier, error) {
	return m.store.List(ctx)
}

// SigningKey возвращает приватный ключ контроллера управляемого идентификатора.
func (m *Manager) SigningKey(ctx context.Context, did string) (*btcec.PrivateKey, error) {
	id, err := m.store.GetByDID(ctx, did)
	if errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotManaged, did)
	}
	if err != nil {
		return nil, err
	}

	stored, err := m.store.PrivateKey(ctx, id.ControllerKeyID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotManaged, did)
	}
	if err != nil {
		return nil, err
	}

	raw, err := m.box.Open(stored)
	if err != nil {
		return nil, err
	}
	return parsePrivateKey(raw)
}

// ResolveAddress реализует jwtvc.AddressResolver для did:ethr без обращения к сети.
func (m *Manager) ResolveAddress(_ context.Context, did string) (string, error) {
	parsed, err := ParseEthr(did)
	if err != nil {
		return "", err
	}
	return parsed.Address, nil
}

// Resolve возвращает DID документ.
func (m *Manager) Resolve(_ context.Context, did string) (*Document, error) {
	return DefaultDocument(did)
}

func (m *Manager) newIdentifier(alias string) (*models.Identifier, string, error) {
	key, kid, err := GenerateKey()
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate key: %w", err)
	}

	sealed, err := m.box.Seal(key.Serialize())
	if err != nil {
		return nil, "", fmt.Errorf("failed to seal key: %w", err)
	}

	network := strings.TrimPrefix(m.defaultProvider, "did:ethr")
	network = strings.TrimPrefix(network, ":")
	did := EthrDID{Network: network, Address: eth.PubkeyToAddress(key.PubKey())}.String()

	id := &models.Identifier{
		DID:             did,
		Provider:        m.defaultProvider,
		ControllerKeyID: kid,
		Keys: []models.Key{{
			KID:          kid,
			KMS:          KMSLocal,
			Type:         KeyTypeSecp,
			PublicKeyHex: kid,
			DID:          did,
		}},
		Services: []models.Service{},
	}
	if alias != "" {
		id.Alias = &alias
	}
	return id, sealed, nil
}
