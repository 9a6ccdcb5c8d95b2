package handlers

import (
	"net/url"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/pixelgenesis/backend/internal/http/dto"
	"github.com/pixelgenesis/backend/internal/services"
)

type DIDHandler struct {
	didSvc *services.DIDService
	log    *zap.Logger
}

func NewDIDHandler(didSvc *services.DIDService, log *zap.Logger) *DIDHandler {
	return &DIDHandler{didSvc: didSvc, log: log}
}

// CreateIssuer - POST /did/issuer. Повторный вызов возвращает тот же issuer.
func (h *DIDHandler) CreateIssuer(c *fiber.Ctx) error {
	id, err := h.didSvc.FindOrCreateIssuer(c.UserContext())
	if err != nil {
		return respondError(c, h.log, "create issuer", err)
	}
	return c.JSON(dto.IdentifierResponse{OK: true, Message: "Issuer DID created", DID: id})
}

// CreateCitizen - POST /did/citizen
func (h *DIDHandler) CreateCitizen(c *fiber.Ctx) error {
	var req dto.CreateCitizenRequest
	if err := parseBody(c, &req); err != nil {
		return badRequest(c, "invalid request body")
	}

	id, err := h.didSvc.CreateCitizen(c.UserContext(), req.Alias)
	if err != nil {
		return respondError(c, h.log, "create citizen", err)
	}
	return c.JSON(dto.IdentifierResponse{OK: true, Message: "Citizen DID created", DID: id})
}

// List - GET /did/list
func (h *DIDHandler) List(c *fiber.Ctx) error {
	ids, err := h.didSvc.List(c.UserContext())
	if err != nil {
		return respondError(c, h.log, "list identifiers", err)
	}
	return c.JSON(dto.IdentifierListResponse{OK: true, Count: len(ids), Items: ids})
}

// Resolve - GET /did/resolve/:did
func (h *DIDHandler) Resolve(c *fiber.Ctx) error {
	raw, err := url.PathUnescape(c.Params("did"))
	if err != nil {
		return badRequest(c, "invalid DID")
	}

	doc, err := h.didSvc.Resolve(c.UserContext(), raw)
	if err != nil {
		return respondError(c, h.log, "resolve DID", err)
	}
	return c.JSON(dto.DIDDocumentResponse{OK: true, DIDDocument: doc})
}
