package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pixelgenesis/backend/internal/auth"
	"github.com/pixelgenesis/backend/internal/config"
	"github.com/pixelgenesis/backend/internal/did"
	"github.com/pixelgenesis/backend/internal/eth"
	"github.com/pixelgenesis/backend/internal/events"
	"github.com/pixelgenesis/backend/internal/jwtvc"
	"github.com/pixelgenesis/backend/internal/models"
	"github.com/pixelgenesis/backend/internal/nonce"
	"github.com/pixelgenesis/backend/internal/repositories"
)

type fixture struct {
	cfg        *config.Config
	now        time.Time
	nonces     *nonce.MemoryStore
	audit      *repositories.MemoryAuditRepo
	wallets    *repositories.MemoryWalletRepo
	bus        *events.LocalBus
	received   []events.Event
	mu         sync.Mutex
	authSvc    *AuthService
	didSvc     *DIDService
	credSvc    *CredentialService
	sdrSvc     *DisclosureService
	presentSvc *PresentationService
	verifySvc  *VerificationService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		cfg: &config.Config{
			JWTSecret:            "test-secret",
			SessionTTL:           time.Hour,
			UpstreamTimeout:      5 * time.Second,
			PresentationVerifier: "did:example:verifier",
			NonceTTL:             5 * time.Minute,
		},
		now:     time.Now(),
		audit:   repositories.NewMemoryAuditRepo(),
		wallets: repositories.NewMemoryWalletRepo(),
		bus:     events.NewLocalBus(),
	}
	f.nonces = nonce.NewMemoryStore(f.cfg.NonceTTL).WithClock(func() time.Time {
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.now
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, f.bus.Subscribe(ctx, events.Channel, func(e events.Event) {
		f.mu.Lock()
		f.received = append(f.received, e)
		f.mu.Unlock()
	}))

	log := zap.NewNop()
	manager := did.NewManager(repositories.NewMemoryIdentifierRepo(), did.NewSecretBox(make([]byte, 32)), "did:ethr:sepolia", log)

	f.authSvc = NewAuthService(f.nonces, f.wallets, f.audit, f.bus, f.cfg, log)
	f.didSvc = NewDIDService(manager, f.audit, f.bus, f.cfg, log)
	f.credSvc = NewCredentialService(f.didSvc, manager, f.audit, f.bus, f.cfg, log)
	f.sdrSvc = NewDisclosureService()
	f.presentSvc = NewPresentationService(manager, f.audit, f.bus, f.cfg, log)
	f.verifySvc = NewVerificationService(jwtvc.NewVerifier(manager, time.Minute), f.audit, f.bus, f.cfg, log)
	return f
}

func (f *fixture) advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func (f *fixture) eventTypes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.received))
	for _, e := range f.received {
		out = append(out, e.Type)
	}
	return out
}

type wallet struct {
	key     *btcec.PrivateKey
	address string
}

func newWallet(t *testing.T) wallet {
	t.Helper()
	key, err := btcec.NewPrivateKey(btcec.S256())
	require.NoError(t, err)
	return wallet{key: key, address: eth.PubkeyToAddress(key.PubKey())}
}

func (w wallet) sign(t *testing.T, nonceValue string) string {
	t.Helper()
	sig, err := eth.SignPersonalMessage(w.key, auth.ChallengeMessage(nonceValue))
	require.NoError(t, err)
	return sig
}

func TestAuthService_RequestChallenge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	n, err := f.authSvc.RequestChallenge(ctx, "0xAAA")
	require.NoError(t, err)
	assert.Len(t, n, 32)

	rec, err := f.nonces.Get(ctx, "0xaaa")
	require.NoError(t, err)
	assert.Equal(t, "0xaaa", rec.Address)
	assert.Equal(t, n, rec.Nonce)

	_, err = f.authSvc.RequestChallenge(ctx, "   ")
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.EqualError(t, err, "address required")
}

func TestAuthService_VerifyChallenge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := newWallet(t)

	n, err := f.authSvc.RequestChallenge(ctx, w.address)
	require.NoError(t, err)

	session, err := f.authSvc.VerifyChallenge(ctx, strings.ToLower(w.address), w.sign(t, n))
	require.NoError(t, err)
	assert.Equal(t, w.address, session.Address)
	assert.NotEmpty(t, session.Token)
	assert.True(t, session.ExpiresAt.After(time.Now()))

	claims, err := f.authSvc.ParseSession(session.Token)
	require.NoError(t, err)
	assert.Equal(t, strings.ToLower(w.address), claims.Address)

	// nonce погашен: повтор той же подписи не проходит
	_, err = f.authSvc.VerifyChallenge(ctx, w.address, w.sign(t, n))
	assert.ErrorIs(t, err, ErrNonceNotFound)

	info, err := f.authSvc.Session(ctx, claims)
	require.NoError(t, err)
	require.NotNil(t, info.Wallet)
	assert.EqualValues(t, 1, info.Wallet.LoginCount)
	require.Len(t, info.Activity, 1)
	assert.Equal(t, models.AuditWalletVerified, info.Activity[0].Action)

	assert.Contains(t, f.eventTypes(), events.EventWalletVerified)
}

func TestAuthService_VerifyChallenge_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("missing fields", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.authSvc.VerifyChallenge(ctx, "0xabc", "")
		assert.ErrorIs(t, err, ErrInvalidInput)
		assert.EqualError(t, err, "address and signature required")
	})

	t.Run("no challenge", func(t *testing.T) {
		f := newFixture(t)
		w := newWallet(t)
		_, err := f.authSvc.VerifyChallenge(ctx, w.address, w.sign(t, "whatever"))
		assert.ErrorIs(t, err, ErrNonceNotFound)
	})

	t.Run("expired", func(t *testing.T) {
		f := newFixture(t)
		w := newWallet(t)
		n, err := f.authSvc.RequestChallenge(ctx, w.address)
		require.NoError(t, err)

		f.advance(6 * time.Minute)

		_, err = f.authSvc.VerifyChallenge(ctx, w.address, w.sign(t, n))
		assert.ErrorIs(t, err, ErrNonceExpired)

		_, err = f.authSvc.VerifyChallenge(ctx, w.address, w.sign(t, n))
		assert.ErrorIs(t, err, ErrNonceNotFound)
	})

	t.Run("signature mismatch keeps nonce", func(t *testing.T) {
		f := newFixture(t)
		w := newWallet(t)
		other := newWallet(t)
		n, err := f.authSvc.RequestChallenge(ctx, w.address)
		require.NoError(t, err)

		_, err = f.authSvc.VerifyChallenge(ctx, w.address, other.sign(t, n))
		assert.ErrorIs(t, err, ErrSignatureMismatch)

		_, err = f.authSvc.VerifyChallenge(ctx, w.address, w.sign(t, n))
		assert.NoError(t, err)
	})

	t.Run("malformed signature", func(t *testing.T) {
		f := newFixture(t)
		w := newWallet(t)
		_, err := f.authSvc.RequestChallenge(ctx, w.address)
		require.NoError(t, err)

		_, err = f.authSvc.VerifyChallenge(ctx, w.address, "0x1234")
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("rotated nonce", func(t *testing.T) {
		f := newFixture(t)
		w := newWallet(t)
		first, err := f.authSvc.RequestChallenge(ctx, w.address)
		require.NoError(t, err)
		second, err := f.authSvc.RequestChallenge(ctx, w.address)
		require.NoError(t, err)

		_, err = f.authSvc.VerifyChallenge(ctx, w.address, w.sign(t, first))
		assert.ErrorIs(t, err, ErrSignatureMismatch)

		_, err = f.authSvc.VerifyChallenge(ctx, w.address, w.sign(t, second))
		assert.NoError(t, err)
	})
}

func TestAuthService_VerifyChallenge_ConcurrentSingleWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := newWallet(t)

	n, err := f.authSvc.RequestChallenge(ctx, w.address)
	require.NoError(t, err)
	sig := w.sign(t, n)

	const workers = 8
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		go func() {
			_, err := f.authSvc.VerifyChallenge(ctx, w.address, sig)
			results <- err
		}()
	}

	wins := 0
	for i := 0; i < workers; i++ {
		if err := <-results; err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, ErrNonceNotFound)
		}
	}
	assert.Equal(t, 1, wins)
}

func TestDIDService_FindOrCreateIssuer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.didSvc.FindOrCreateIssuer(ctx)
	require.NoError(t, err)
	second, err := f.didSvc.FindOrCreateIssuer(ctx)
	require.NoError(t, err)

	assert.Equal(t, first.DID, second.DID)
	assert.True(t, first.HasAlias(models.AliasIssuer))

	list, err := f.didSvc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	doc, err := f.didSvc.Resolve(ctx, first.DID)
	require.NoError(t, err)
	assert.Equal(t, first.DID, doc.ID)

	_, err = f.didSvc.Resolve(ctx, "did:key:z6Mk")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCredentialFlow_SelectiveDisclosure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	citizen, err := f.didSvc.CreateCitizen(ctx, "alice")
	require.NoError(t, err)

	issued, err := f.credSvc.Issue(ctx, citizen.DID, map[string]any{"name": "Alice", "age": 30})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(issued.Issuer, "did:ethr:sepolia:"))

	vcRes, err := f.verifySvc.VerifyCredential(ctx, issued.JWT)
	require.NoError(t, err)
	assert.True(t, vcRes.Verified, "checks: %+v", vcRes.Checks)
	assert.Equal(t, issued.Issuer, vcRes.Issuer)
	assert.Equal(t, citizen.DID, vcRes.Subject)

	sdr, err := f.sdrSvc.CreateRequest([]string{"name", "country"})
	require.NoError(t, err)

	built, err := f.presentSvc.Present(ctx, issued.JWT, sdr.Requested)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "Alice"}, built.DisclosedClaims)
	assert.Equal(t, citizen.DID, built.Holder)

	decoded, err := jwtvc.DecodePresentation(built.JWT)
	require.NoError(t, err)
	assert.Equal(t, []string{"did:example:verifier"}, decoded.Verifier)
	assert.Equal(t, []string{issued.JWT}, decoded.Body.VerifiableCredential)

	vpRes, err := f.verifySvc.VerifyPresentation(ctx, built.JWT)
	require.NoError(t, err)
	assert.True(t, vpRes.Verified, "checks: %+v", vpRes.Result.Checks)
	assert.Equal(t, map[string]any{"name": "Alice"}, vpRes.Claims)
	assert.Equal(t, citizen.DID, vpRes.Holder)

	types := f.eventTypes()
	assert.Contains(t, types, events.EventCredentialIssued)
	assert.Contains(t, types, events.EventPresentationCreated)
	assert.Contains(t, types, events.EventPresentationVerified)
}

func TestCredentialService_Issue_Invalid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.credSvc.Issue(ctx, "", map[string]any{"name": "Alice"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.EqualError(t, err, "Required fields: subjectDid, claims")

	_, err = f.credSvc.Issue(ctx, "did:ethr:sepolia:0x1", nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.credSvc.Issue(ctx, "did:ethr:sepolia:0x1", map[string]any{"id": 42})
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.EqualError(t, err, "Field 'claims.id' must be a DID string")
}

func TestCredentialService_Issue_ClaimIDOverridesSubject(t *testing.T) {
	f := newFixture(t)

	issued, err := f.credSvc.Issue(context.Background(), "did:example:subject", map[string]any{
		"id":   "did:example:other",
		"name": "Alice",
	})
	require.NoError(t, err)

	decoded, err := jwtvc.DecodeCredential(issued.JWT)
	require.NoError(t, err)
	assert.Equal(t, "did:example:other", decoded.Subject)
	assert.Equal(t, map[string]any{"name": "Alice"}, decoded.Claims())
}

func TestAuthService_Session_IncludesCredentialActivity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := newWallet(t)

	n, err := f.authSvc.RequestChallenge(ctx, w.address)
	require.NoError(t, err)
	session, err := f.authSvc.VerifyChallenge(ctx, w.address, w.sign(t, n))
	require.NoError(t, err)

	_, err = f.credSvc.Issue(ctx, "did:ethr:sepolia:"+w.address, map[string]any{"name": "Alice"})
	require.NoError(t, err)
	_, err = f.credSvc.Issue(ctx, "did:example:someone-else", map[string]any{"name": "Bob"})
	require.NoError(t, err)

	claims, err := f.authSvc.ParseSession(session.Token)
	require.NoError(t, err)
	info, err := f.authSvc.Session(ctx, claims)
	require.NoError(t, err)

	actions := make([]string, 0, len(info.Activity))
	for _, a := range info.Activity {
		actions = append(actions, a.Action)
	}
	assert.Equal(t, []string{models.AuditCredentialIssued, models.AuditWalletVerified}, actions)
}

func TestCredentialService_Issue_EmptyClaims(t *testing.T) {
	f := newFixture(t)

	issued, err := f.credSvc.Issue(context.Background(), "did:example:subject", map[string]any{})
	require.NoError(t, err)

	decoded, err := jwtvc.DecodeCredential(issued.JWT)
	require.NoError(t, err)
	assert.Equal(t, "did:example:subject", decoded.Subject)
	assert.Empty(t, decoded.Claims())
}

func TestPresentationService_Present(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	citizen, err := f.didSvc.CreateCitizen(ctx, "")
	require.NoError(t, err)
	issued, err := f.credSvc.Issue(ctx, citizen.DID, map[string]any{"name": "Alice", "age": 30})
	require.NoError(t, err)

	t.Run("empty request discloses nothing", func(t *testing.T) {
		built, err := f.presentSvc.Present(ctx, issued.JWT, []string{})
		require.NoError(t, err)
		assert.Empty(t, built.DisclosedClaims)
	})

	t.Run("subject id is never disclosed", func(t *testing.T) {
		built, err := f.presentSvc.Present(ctx, issued.JWT, []string{"id", "age"})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"age": float64(30)}, built.DisclosedClaims)
	})

	t.Run("missing fields", func(t *testing.T) {
		_, err := f.presentSvc.Present(ctx, "", []string{"name"})
		assert.ErrorIs(t, err, ErrInvalidInput)
		_, err = f.presentSvc.Present(ctx, issued.JWT, nil)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("undecodable credential", func(t *testing.T) {
		_, err := f.presentSvc.Present(ctx, "not-a-jwt", []string{"name"})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("holder key not managed", func(t *testing.T) {
		foreign, err := f.credSvc.Issue(ctx, "did:ethr:sepolia:0x2c7536E3605D9C16a7a3D7b1898e529396a65c23", map[string]any{"name": "Bob"})
		require.NoError(t, err)

		_, err = f.presentSvc.Present(ctx, foreign.JWT, []string{"name"})
		assert.ErrorIs(t, err, ErrUpstream)
		assert.ErrorIs(t, err, did.ErrKeyNotManaged)
	})
}

func TestVerificationService_Rejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	citizen, err := f.didSvc.CreateCitizen(ctx, "")
	require.NoError(t, err)
	issued, err := f.credSvc.Issue(ctx, citizen.DID, map[string]any{"name": "Alice"})
	require.NoError(t, err)

	t.Run("tampered signature", func(t *testing.T) {
		forged := issued.JWT[:len(issued.JWT)-4] + "AAAA"
		res, err := f.verifySvc.VerifyCredential(ctx, forged)
		require.NoError(t, err)
		assert.False(t, res.Verified)
	})

	t.Run("blank and malformed", func(t *testing.T) {
		_, err := f.verifySvc.VerifyCredential(ctx, "")
		assert.EqualError(t, err, "Missing field: jwt")
		_, err = f.verifySvc.VerifyPresentation(ctx, "")
		assert.EqualError(t, err, "Field 'vp' required")
		_, err = f.verifySvc.VerifyPresentation(ctx, "abc")
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("malformed credential is a format verdict", func(t *testing.T) {
		res, err := f.verifySvc.VerifyCredential(ctx, "abc")
		require.NoError(t, err)
		assert.False(t, res.Verified)
		require.Len(t, res.Checks, 1)
		assert.Equal(t, jwtvc.CheckFormat, res.Checks[0].Check)
	})

	t.Run("unverified presentation still returns claims", func(t *testing.T) {
		built, err := f.presentSvc.Present(ctx, issued.JWT, []string{"name"})
		require.NoError(t, err)

		forged := built.JWT[:len(built.JWT)-4] + "AAAA"
		res, err := f.verifySvc.VerifyPresentation(ctx, forged)
		require.NoError(t, err)
		assert.False(t, res.Verified)
		assert.Equal(t, map[string]any{"name": "Alice"}, res.Claims)
	})
}

func TestDisclosureService_CreateRequest(t *testing.T) {
	s := NewDisclosureService()

	sdr, err := s.CreateRequest([]string{"name", "age"})
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "age"}, sdr.Requested)

	id, err := uuid.Parse(sdr.ID)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())

	other, err := s.CreateRequest([]string{})
	require.NoError(t, err)
	assert.NotEqual(t, sdr.ID, other.ID)
	assert.Empty(t, other.Requested)

	_, err = s.CreateRequest(nil)
	assert.EqualError(t, err, "Field 'requested' must be an array")
}
