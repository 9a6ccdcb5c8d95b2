package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/pixelgenesis/backend/internal/http/dto"
	"github.com/pixelgenesis/backend/internal/services"
)

type PresentationHandler struct {
	sdrSvc     *services.DisclosureService
	presentSvc *services.PresentationService
	verifySvc  *services.VerificationService
	log        *zap.Logger
}

func NewPresentationHandler(
	sdrSvc *services.DisclosureService,
	presentSvc *services.PresentationService,
	verifySvc *services.VerificationService,
	log *zap.Logger,
) *PresentationHandler {
	return &PresentationHandler{
		sdrSvc:     sdrSvc,
		presentSvc: presentSvc,
		verifySvc:  verifySvc,
		log:        log,
	}
}

// Request - POST /vp/request
func (h *PresentationHandler) Request(c *fiber.Ctx) error {
	var req dto.DisclosureRequest
	if err := parseBody(c, &req); err != nil {
		return badRequest(c, "Field 'requested' must be an array")
	}
	fields, err := req.Fields()
	if err != nil {
		return badRequest(c, err.Error())
	}

	sdr, err := h.sdrSvc.CreateRequest(fields)
	if err != nil {
		return respondError(c, h.log, "create disclosure request", err)
	}

	return c.JSON(dto.DisclosureResponse{
		OK:      true,
		Message: "Selective Disclosure Request (SDR) created",
		SDR:     sdr,
	})
}

// Present - POST /vp/present
func (h *PresentationHandler) Present(c *fiber.Ctx) error {
	var req dto.PresentRequest
	if err := parseBody(c, &req); err != nil {
		return badRequest(c, "Fields 'jwt' and 'requested' required")
	}
	fields, err := req.Fields()
	if err != nil {
		return badRequest(c, err.Error())
	}

	built, err := h.presentSvc.Present(c.UserContext(), req.JWT, fields)
	if err != nil {
		return respondError(c, h.log, "create presentation", err)
	}

	return c.JSON(dto.PresentResponse{
		OK:           true,
		Message:      "Selective Presentation created",
		VP:           built.JWT,
		SharedClaims: built.DisclosedClaims,
	})
}

// Verify - POST /vp/verify
func (h *PresentationHandler) Verify(c *fiber.Ctx) error {
	var req dto.VerifyPresentationRequest
	if err := parseBody(c, &req); err != nil {
		return badRequest(c, "Field 'vp' required")
	}
	if err := req.Validate(); err != nil {
		return badRequest(c, err.Error())
	}

	res, err := h.verifySvc.VerifyPresentation(c.UserContext(), req.VP)
	if err != nil {
		return respondError(c, h.log, "verify presentation", err)
	}

	return c.JSON(dto.VerifyPresentationResponse{
		OK:       true,
		Message:  "Verifiable Presentation verified",
		Verified: res.Verified,
		Claims:   res.Claims,
		Results:  res.Result,
	})
}
