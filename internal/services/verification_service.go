package services

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/pixelgenesis/backend/internal/config"
	"github.com/pixelgenesis/backend/internal/events"
	"github.com/pixelgenesis/backend/internal/jwtvc"
	"github.com/pixelgenesis/backend/internal/models"
)

type VerificationService struct {
	verifier  *jwtvc.Verifier
	auditRepo AuditRepository
	publisher events.Publisher
	cfg       *config.Config
	log       *zap.Logger
}

func NewVerificationService(
	verifier *jwtvc.Verifier,
	auditRepo AuditRepository,
	publisher events.Publisher,
	cfg *config.Config,
	log *zap.Logger,
) *VerificationService {
	return &VerificationService{
		verifier:  verifier,
		auditRepo: auditRepo,
		publisher: publisher,
		cfg:       cfg,
		log:       log,
	}
}

// PresentationVerification - вердикт по VP.
// Claims декодируются из VP независимо от вердикта: при Verified=false им нельзя доверять.
type PresentationVerification struct {
	Verified bool                      `json:"verified"`
	Holder   string                    `json:"holder,omitempty"`
	Claims   map[string]any            `json:"claims"`
	Result   *jwtvc.PresentationResult `json:"results"`
}

// VerifyCredential проверяет формат, подпись и сроки VC. Любой провал проверки (включая
// неразбираемый токен) - это verified=false с причиной в Checks, а не ошибка.
func (s *VerificationService) VerifyCredential(ctx context.Context, token string) (*jwtvc.CredentialResult, error) {
	if strings.TrimSpace(token) == "" {
		return nil, InvalidInput("Missing field: jwt")
	}

	ctx, cancel := withTimeout(ctx, s.cfg.UpstreamTimeout)
	defer cancel()

	res, err := s.verifier.VerifyCredential(ctx, token)
	if err != nil {
		return nil, upstream("verify credential", err)
	}

	s.log.Info("credential verified",
		zap.Bool("verified", res.Verified),
		zap.String("issuer", res.Issuer),
	)
	return res, nil
}

// VerifyPresentation проверяет VP целиком: подпись holder, вложенные VC, привязку holder и раскрытые claims.
func (s *VerificationService) VerifyPresentation(ctx context.Context, token string) (*PresentationVerification, error) {
	if strings.TrimSpace(token) == "" {
		return nil, InvalidInput("Field 'vp' required")
	}
	decoded, err := jwtvc.DecodePresentation(token)
	if err != nil {
		return nil, InvalidInput("invalid presentation: " + err.Error())
	}

	ctx, cancel := withTimeout(ctx, s.cfg.UpstreamTimeout)
	defer cancel()

	res, err := s.verifier.VerifyPresentation(ctx, token)
	if err != nil {
		return nil, upstream("verify presentation", err)
	}

	out := &PresentationVerification{
		Verified: res.Verified,
		Holder:   decoded.Holder,
		Claims:   decoded.DisclosedClaims(),
		Result:   res,
	}

	_ = s.auditRepo.Log(ctx, models.AuditLog{
		ActorAddress: actorOf(decoded.Holder),
		ActorType:    "verifier",
		Action:       models.AuditPresentationVerified,
		EntityType:   "presentation",
		EntityID:     optional(decoded.ID),
		Meta: map[string]any{
			"holder":   decoded.Holder,
			"verified": res.Verified,
			"checks":   res.Checks,
		},
	})

	_ = s.publisher.Publish(ctx, events.Channel, events.Event{
		Type:    events.EventPresentationVerified,
		Address: addressOf(decoded.Holder),
		Payload: map[string]any{"holder": decoded.Holder, "verified": res.Verified},
	})

	s.log.Info("presentation verified",
		zap.String("holder", decoded.Holder),
		zap.Bool("verified", res.Verified),
	)
	return out, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
