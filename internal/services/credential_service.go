package services

import (
	"context"
	"sort"
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

type CredentialService struct {
	dids      *DIDService
	manager   *did.Manager
	auditRepo AuditRepository
	publisher events.Publisher
	cfg       *config.Config
	log       *zap.Logger
}

func NewCredentialService(
	dids *DIDService,
	manager *did.Manager,
	auditRepo AuditRepository,
	publisher events.Publisher,
	cfg *config.Config,
	log *zap.Logger,
) *CredentialService {
	return &CredentialService{
		dids:      dids,
		manager:   manager,
		auditRepo: auditRepo,
		publisher: publisher,
		cfg:       cfg,
		log:       log,
	}
}

type IssuedCredential struct {
	Issuer string `json:"issuer"`
	JWT    string `json:"vc"`
}

// Issue выпускает VC от имени issuer-идентификатора. credentialSubject = {id: subject} ∪ claims,
// claims перекрывают subject: строковый claims.id становится субъектом VC.
func (s *CredentialService) Issue(ctx context.Context, subjectDID string, claims map[string]any) (*IssuedCredential, error) {
	if strings.TrimSpace(subjectDID) == "" || claims == nil {
		return nil, InvalidInput("Required fields: subjectDid, claims")
	}

	subject := make(map[string]any, len(claims)+1)
	subject["id"] = subjectDID
	for k, v := range claims {
		subject[k] = v
	}
	subjectDID, ok := subject["id"].(string)
	if !ok || strings.TrimSpace(subjectDID) == "" {
		return nil, InvalidInput("Field 'claims.id' must be a DID string")
	}

	issuer, err := s.dids.FindOrCreateIssuer(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx, s.cfg.UpstreamTimeout)
	defer cancel()

	key, err := s.manager.SigningKey(ctx, issuer.DID)
	if err != nil {
		return nil, upstream("load issuer key", err)
	}

	credentialID := "urn:uuid:" + uuid.NewString()
	token, err := jwtvc.SignCredential(jwtvc.Credential{
		ID:                credentialID,
		Issuer:            issuer.DID,
		IssuanceDate:      time.Now(),
		CredentialSubject: subject,
	}, key)
	if err != nil {
		return nil, upstream("sign credential", err)
	}

	_ = s.auditRepo.Log(ctx, models.AuditLog{
		ActorAddress: actorOf(subjectDID),
		ActorType:    "issuer",
		Action:       models.AuditCredentialIssued,
		EntityType:   "credential",
		EntityID:     &credentialID,
		Meta: map[string]any{
			"issuer":  issuer.DID,
			"subject": subjectDID,
			"claims":  claimNames(claims),
		},
	})

	_ = s.publisher.Publish(ctx, events.Channel, events.Event{
		Type:    events.EventCredentialIssued,
		Address: addressOf(subjectDID),
		Payload: map[string]any{"id": credentialID, "issuer": issuer.DID, "subject": subjectDID},
	})

	s.log.Info("credential issued",
		zap.String("id", credentialID),
		zap.String("issuer", issuer.DID),
		zap.String("subject", subjectDID),
	)

	return &IssuedCredential{Issuer: issuer.DID, JWT: token}, nil
}

func claimNames(claims map[string]any) []string {
	names := lo.Keys(claims)
	sort.Strings(names)
	return names
}
