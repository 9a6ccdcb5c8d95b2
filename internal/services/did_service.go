package services

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/pixelgenesis/backend/internal/config"
	"github.com/pixelgenesis/backend/internal/did"
	"github.com/pixelgenesis/backend/internal/eth"
	"github.com/pixelgenesis/backend/internal/events"
	"github.com/pixelgenesis/backend/internal/models"
)

type DIDService struct {
	manager   *did.Manager
	auditRepo AuditRepository
	publisher events.Publisher
	cfg       *config.Config
	log       *zap.Logger
}

func NewDIDService(
	manager *did.Manager,
	auditRepo AuditRepository,
	publisher events.Publisher,
	cfg *config.Config,
	log *zap.Logger,
) *DIDService {
	return &DIDService{
		manager:   manager,
		auditRepo: auditRepo,
		publisher: publisher,
		cfg:       cfg,
		log:       log,
	}
}

// FindOrCreateIssuer возвращает единственный идентификатор с alias "issuer", создавая его при первом вызове.
func (s *DIDService) FindOrCreateIssuer(ctx context.Context) (*models.Identifier, error) {
	ctx, cancel := withTimeout(ctx, s.cfg.UpstreamTimeout)
	defer cancel()

	id, created, err := s.manager.FindOrCreate(ctx, models.AliasIssuer)
	if err != nil {
		return nil, upstream("find or create issuer", err)
	}
	if created {
		s.recordCreated(ctx, id, "issuer")
	}
	return id, nil
}

// CreateCitizen создаёт новый идентификатор субъекта/holder. alias может быть пустым.
func (s *DIDService) CreateCitizen(ctx context.Context, alias string) (*models.Identifier, error) {
	ctx, cancel := withTimeout(ctx, s.cfg.UpstreamTimeout)
	defer cancel()

	id, err := s.manager.Create(ctx, alias)
	if err != nil {
		return nil, upstream("create identifier", err)
	}
	s.recordCreated(ctx, id, "holder")
	return id, nil
}

func (s *DIDService) List(ctx context.Context) ([]models.Identifier, error) {
	ctx, cancel := withTimeout(ctx, s.cfg.UpstreamTimeout)
	defer cancel()

	ids, err := s.manager.List(ctx)
	if err != nil {
		return nil, upstream("list identifiers", err)
	}
	if ids == nil {
		ids = []models.Identifier{}
	}
	return ids, nil
}

// Resolve строит DID документ did:ethr без обращения к сети.
func (s *DIDService) Resolve(ctx context.Context, id string) (*did.Document, error) {
	doc, err := s.manager.Resolve(ctx, id)
	if errors.Is(err, did.ErrNotEthrDID) {
		return nil, InvalidInput("unsupported DID method")
	}
	if err != nil {
		return nil, InvalidInput(err.Error())
	}
	return doc, nil
}

func (s *DIDService) recordCreated(ctx context.Context, id *models.Identifier, actorType string) {
	_ = s.auditRepo.Log(ctx, models.AuditLog{
		ActorAddress: actorOf(id.DID),
		ActorType:    actorType,
		Action:       models.AuditIdentifierCreated,
		EntityType:   "identifier",
		EntityID:     &id.DID,
		Meta:         map[string]any{"alias": id.Alias, "provider": id.Provider},
	})

	_ = s.publisher.Publish(ctx, events.Channel, events.Event{
		Type:    events.EventIdentifierCreated,
		Address: addressOf(id.DID),
		Payload: map[string]any{"did": id.DID, "alias": id.Alias},
	})
}

// addressOf возвращает адрес кошелька did:ethr в нижнем регистре или пустую строку.
func addressOf(id string) string {
	parsed, err := did.ParseEthr(id)
	if err != nil {
		return ""
	}
	return eth.NormalizeAddress(parsed.Address)
}

// actorOf - адрес для audit_log.actor_address, nil если DID не did:ethr.
func actorOf(id string) *string {
	return optional(addressOf(id))
}
