package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/pixelgenesis/backend/internal/config"
	"github.com/pixelgenesis/backend/internal/did"
	"github.com/pixelgenesis/backend/internal/events"
	"github.com/pixelgenesis/backend/internal/jwtvc"
	"github.com/pixelgenesis/backend/internal/models"
)

type PresentationService struct {
	manager   *did.Manager
	auditRepo AuditRepository
	publisher events.Publisher
	cfg       *config.Config
	log       *zap.Logger
}

func NewPresentationService(
	manager *did.Manager,
	auditRepo AuditRepository,
	publisher events.Publisher,
	cfg *config.Config,
	log *zap.Logger,
) *PresentationService {
	return &PresentationService{
		manager:   manager,
		auditRepo: auditRepo,
		publisher: publisher,
		cfg:       cfg,
		log:       log,
	}
}

type BuiltPresentation struct {
	JWT             string         `json:"vp"`
	Holder          string         `json:"holder"`
	DisclosedClaims map[string]any `json:"sharedClaims"`
}

// Present строит VP, раскрывающую только запрошенные claims из VC.
// Поля, которых нет в VC, молча пропускаются. Подпись VC здесь не проверяется.
func (s *PresentationService) Present(ctx context.Context, vcJWT string, requested []string) (*BuiltPresentation, error) {
	if strings.TrimSpace(vcJWT) == "" || requested == nil {
		return nil, InvalidInput("Fields 'jwt' and 'requested' required")
	}

	decoded, err := jwtvc.DecodeCredential(vcJWT)
	if err != nil {
		return nil, InvalidInput("invalid credential: " + err.Error())
	}
	if decoded.Subject == "" {
		return nil, InvalidInput("credential has no subject")
	}

	disclosed := lo.PickByKeys(decoded.Claims(), requested)
	holder := decoded.Subject

	ctx, cancel := withTimeout(ctx, s.cfg.UpstreamTimeout)
	defer cancel()

	key, err := s.manager.SigningKey(ctx, holder)
	if err != nil {
		return nil, upstream("load holder key", err)
	}

	presentationID := "urn:uuid:" + uuid.NewString()
	token, err := jwtvc.SignPresentation(jwtvc.Presentation{
		ID:                   presentationID,
		Holder:               holder,
		Verifier:             []string{s.cfg.PresentationVerifier},
		IssuanceDate:         time.Now(),
		VerifiableCredential: []string{vcJWT},
		CredentialSubject:    disclosed,
	}, key)
	if err != nil {
		return nil, upstream("sign presentation", err)
	}

	_ = s.auditRepo.Log(ctx, models.AuditLog{
		ActorAddress: actorOf(holder),
		ActorType:    "holder",
		Action:       models.AuditPresentationCreated,
		EntityType:   "presentation",
		EntityID:     &presentationID,
		Meta: map[string]any{
			"holder":    holder,
			"verifier":  s.cfg.PresentationVerifier,
			"disclosed": claimNames(disclosed),
		},
	})

	_ = s.publisher.Publish(ctx, events.Channel, events.Event{
		Type:    events.EventPresentationCreated,
		Address: addressOf(holder),
		Payload: map[string]any{"id": presentationID, "holder": holder, "disclosed": claimNames(disclosed)},
	})

	s.log.Info("presentation created",
		zap.String("id", presentationID),
		zap.String("holder", holder),
		zap.Int("disclosed", len(disclosed)),
	)

	return &BuiltPresentation{
		JWT:             token,
		Holder:          holder,
		DisclosedClaims: disclosed,
	}, nil
}
