package did

import (
	"context"
	"encoding/hex"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pixelgenesis/backend/internal/eth"
	"github.com/pixelgenesis/backend/internal/models"
	"github.com/pixelgenesis/backend/internal/repositories"
)

func TestParseEthr(t *testing.T) {
	key, kid, err := GenerateKey()
	require.NoError(t, err)
	addr := eth.PubkeyToAddress(key.PubKey())

	tests := []struct {
		name    string
		did     string
		network string
		address string
		wantErr bool
	}{
		{"mainnet address", "did:ethr:" + strings.ToLower(addr), "", addr, false},
		{"sepolia address", "did:ethr:sepolia:" + addr, "sepolia", addr, false},
		{"public key", "did:ethr:sepolia:0x" + kid, "sepolia", addr, false},
		{"other method", "did:key:z6Mk", "", "", true},
		{"not a did", "0x2c7536E3605D9C16a7a3D7b1898e529396a65c23", "", "", true},
		{"bad hex", "did:ethr:sepolia:0xzz", "", "", true},
		{"short id", "did:ethr:sepolia:0x1234", "", "", true},
		{"too many parts", "did:ethr:a:b:" + addr, "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, err := ParseEthr(tt.did)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.network, parsed.Network)
			assert.Equal(t, tt.address, parsed.Address)
		})
	}
}

func TestDefaultDocument(t *testing.T) {
	did := "did:ethr:sepolia:0x2c7536E3605D9C16a7a3D7b1898e529396a65c23"

	doc, err := DefaultDocument(did)
	require.NoError(t, err)

	assert.Equal(t, did, doc.ID)
	require.Len(t, doc.VerificationMethod, 1)
	assert.Equal(t, did+"#controller", doc.VerificationMethod[0].ID)
	assert.Equal(t, VerificationMethodRecovery, doc.VerificationMethod[0].Type)
	assert.Equal(t, "eip155:11155111:0x2c7536E3605D9C16a7a3D7b1898e529396a65c23", doc.VerificationMethod[0].BlockchainAccountID)
	assert.Equal(t, []string{did + "#controller"}, doc.AssertionMethod)

	_, err = DefaultDocument("did:ethr:unknownnet:0x2c7536E3605D9C16a7a3D7b1898e529396a65c23")
	assert.Error(t, err)
}

func TestSecretBox(t *testing.T) {
	plain := []byte("private key material")

	t.Run("sealed", func(t *testing.T) {
		box := NewSecretBox(make([]byte, 32))
		sealed, err := box.Seal(plain)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(sealed, sealedPrefix))

		opened, err := box.Open(sealed)
		require.NoError(t, err)
		assert.Equal(t, plain, opened)

		other := NewSecretBox([]byte(strings.Repeat("k", 32)))
		_, err = other.Open(sealed)
		assert.ErrorIs(t, err, ErrKeyDecrypt)
	})

	t.Run("no key", func(t *testing.T) {
		box := NewSecretBox(nil)
		sealed, err := box.Seal(plain)
		require.NoError(t, err)
		assert.Equal(t, hex.EncodeToString(plain), sealed)

		opened, err := box.Open(sealed)
		require.NoError(t, err)
		assert.Equal(t, plain, opened)
	})

	t.Run("sealed value without key", func(t *testing.T) {
		sealed, err := NewSecretBox(make([]byte, 32)).Seal(plain)
		require.NoError(t, err)

		_, err = NewSecretBox(nil).Open(sealed)
		assert.ErrorIs(t, err, ErrKeyDecrypt)
	})
}

func newTestManager() *Manager {
	return NewManager(repositories.NewMemoryIdentifierRepo(), NewSecretBox(make([]byte, 32)), "did:ethr:sepolia", zap.NewNop())
}

func TestManager_CreateAndSigningKey(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	id, err := m.Create(ctx, "citizen")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(id.DID, "did:ethr:sepolia:0x"))
	assert.Equal(t, "did:ethr:sepolia", id.Provider)
	assert.True(t, id.HasAlias("citizen"))
	require.Len(t, id.Keys, 1)
	assert.Equal(t, id.ControllerKeyID, id.Keys[0].KID)

	key, err := m.SigningKey(ctx, id.DID)
	require.NoError(t, err)

	addr, err := m.ResolveAddress(ctx, id.DID)
	require.NoError(t, err)
	assert.Equal(t, addr, eth.PubkeyToAddress(key.PubKey()))

	_, err = m.SigningKey(ctx, "did:ethr:sepolia:0x2c7536E3605D9C16a7a3D7b1898e529396a65c23")
	assert.ErrorIs(t, err, ErrKeyNotManaged)
}

func TestManager_CreateWithoutAlias(t *testing.T) {
	m := newTestManager()

	id, err := m.Create(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, id.Alias)
}

func TestManager_FindOrCreateSingleIssuer(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	const workers = 16
	dids := make([]string, workers)
	created := make([]bool, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, c, err := m.FindOrCreate(ctx, models.AliasIssuer)
			if err != nil {
				t.Error(err)
				return
			}
			dids[i] = id.DID
			created[i] = c
		}(i)
	}
	wg.Wait()

	createdCount := 0
	for i := range dids {
		assert.Equal(t, dids[0], dids[i])
		if created[i] {
			createdCount++
		}
	}
	assert.Equal(t, 1, createdCount)

	list, err := m.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
