package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pixelgenesis/backend/internal/auth"
	"github.com/pixelgenesis/backend/internal/config"
	"github.com/pixelgenesis/backend/internal/eth"
	"github.com/pixelgenesis/backend/internal/events"
	"github.com/pixelgenesis/backend/internal/models"
	"github.com/pixelgenesis/backend/internal/nonce"
)

const sessionActivityLimit = 20

type AuthService struct {
	nonces    nonce.Store
	wallets   WalletRepository
	auditRepo AuditRepository
	publisher events.Publisher
	cfg       *config.Config
	log       *zap.Logger
}

func NewAuthService(
	nonces nonce.Store,
	wallets WalletRepository,
	auditRepo AuditRepository,
	publisher events.Publisher,
	cfg *config.Config,
	log *zap.Logger,
) *AuthService {
	return &AuthService{
		nonces:    nonces,
		wallets:   wallets,
		auditRepo: auditRepo,
		publisher: publisher,
		cfg:       cfg,
		log:       log,
	}
}

// WalletSession - результат успешной проверки подписи.
type WalletSession struct {
	Address   string    `json:"address"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// SessionInfo - данные для GET /auth/session.
type SessionInfo struct {
	Address   string            `json:"address"`
	ExpiresAt time.Time         `json:"expiresAt"`
	Wallet    *models.Wallet    `json:"wallet,omitempty"`
	Activity  []models.AuditLog `json:"activity"`
}

// RequestChallenge выдаёт новый nonce для адреса. Предыдущий неиспользованный nonce перестаёт быть валидным.
func (s *AuthService) RequestChallenge(ctx context.Context, address string) (string, error) {
	if strings.TrimSpace(address) == "" {
		return "", InvalidInput("address required")
	}

	ctx, cancel := withTimeout(ctx, s.cfg.UpstreamTimeout)
	defer cancel()

	rec, err := s.nonces.Issue(ctx, address)
	if err != nil {
		return "", upstream("issue nonce", err)
	}

	s.log.Debug("nonce issued", zap.String("address", rec.Address), zap.Time("expires_at", rec.ExpiresAt))
	return rec.Nonce, nil
}

// VerifyChallenge проверяет personal_sign подпись над последним выданным nonce.
// При несовпадении подписи nonce не удаляется; при успехе он погашается ровно один раз.
func (s *AuthService) VerifyChallenge(ctx context.Context, address, signature string) (*WalletSession, error) {
	if strings.TrimSpace(address) == "" || strings.TrimSpace(signature) == "" {
		return nil, InvalidInput("address and signature required")
	}

	ctx, cancel := withTimeout(ctx, s.cfg.UpstreamTimeout)
	defer cancel()

	rec, err := s.nonces.Get(ctx, address)
	switch {
	case errors.Is(err, nonce.ErrNotFound):
		return nil, ErrNonceNotFound
	case errors.Is(err, nonce.ErrExpired):
		return nil, ErrNonceExpired
	case err != nil:
		return nil, upstream("load nonce", err)
	}

	recovered, err := eth.RecoverPersonalSigner(auth.ChallengeMessage(rec.Nonce), signature)
	if err != nil {
		return nil, InvalidInput("invalid signature")
	}

	if !eth.SameAddress(recovered, rec.Address) {
		s.log.Info("wallet signature mismatch",
			zap.String("address", rec.Address),
			zap.String("recovered", recovered),
		)
		return nil, ErrSignatureMismatch
	}

	if err := s.nonces.Consume(ctx, rec); err != nil {
		if errors.Is(err, nonce.ErrNotFound) {
			return nil, ErrNonceNotFound
		}
		return nil, upstream("consume nonce", err)
	}

	token, expiresAt, err := auth.GenerateJWT(s.cfg.JWTSecret, rec.Address, s.cfg.SessionTTL)
	if err != nil {
		return nil, upstream("sign session token", err)
	}

	if _, err := s.wallets.Touch(ctx, rec.Address); err != nil {
		s.log.Warn("failed to record wallet", zap.String("address", rec.Address), zap.Error(err))
	}

	_ = s.auditRepo.Log(ctx, models.AuditLog{
		ActorAddress: &rec.Address,
		ActorType:    "wallet",
		Action:       models.AuditWalletVerified,
		EntityType:   "wallet",
		EntityID:     &rec.Address,
	})

	_ = s.publisher.Publish(ctx, events.Channel, events.Event{
		Type:    events.EventWalletVerified,
		Address: rec.Address,
		Payload: map[string]any{"address": recovered},
	})

	s.log.Info("wallet verified", zap.String("address", rec.Address))

	return &WalletSession{
		Address:   recovered,
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}

// ParseSession проверяет session токен и возвращает его claims.
func (s *AuthService) ParseSession(token string) (*auth.Claims, error) {
	claims, err := auth.ParseJWT(s.cfg.JWTSecret, token)
	if err != nil {
		return nil, fmt.Errorf("invalid session: %w", err)
	}
	return claims, nil
}

// Session собирает сведения о кошельке текущей сессии.
func (s *AuthService) Session(ctx context.Context, claims *auth.Claims) (*SessionInfo, error) {
	ctx, cancel := withTimeout(ctx, s.cfg.UpstreamTimeout)
	defer cancel()

	info := &SessionInfo{
		Address:  claims.Address,
		Activity: []models.AuditLog{},
	}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
	}

	wallet, err := s.wallets.GetByAddress(ctx, claims.Address)
	switch {
	case err == nil:
		info.Wallet = wallet
	case !errors.Is(err, models.ErrNotFound):
		return nil, upstream("load wallet", err)
	}

	activity, err := s.auditRepo.ListByActor(ctx, claims.Address, sessionActivityLimit, 0)
	if err != nil {
		return nil, upstream("load activity", err)
	}
	info.Activity = activity

	return info, nil
}
