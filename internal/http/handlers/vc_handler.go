package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/pixelgenesis/backend/internal/http/dto"
	"github.com/pixelgenesis/backend/internal/services"
)

type CredentialHandler struct {
	credSvc   *services.CredentialService
	verifySvc *services.VerificationService
	log       *zap.Logger
}

func NewCredentialHandler(credSvc *services.CredentialService, verifySvc *services.VerificationService, log *zap.Logger) *CredentialHandler {
	return &CredentialHandler{credSvc: credSvc, verifySvc: verifySvc, log: log}
}

// Issue - POST /vc/issue
func (h *CredentialHandler) Issue(c *fiber.Ctx) error {
	var req dto.IssueCredentialRequest
	if err := parseBody(c, &req); err != nil {
		return badRequest(c, "Required fields: subjectDid, claims")
	}
	if err := req.Validate(); err != nil {
		return badRequest(c, err.Error())
	}

	issued, err := h.credSvc.Issue(c.UserContext(), req.SubjectDID, req.Claims)
	if err != nil {
		return respondError(c, h.log, "issue credential", err)
	}

	return c.JSON(dto.IssueCredentialResponse{
		OK:      true,
		Message: "VC issued successfully",
		Issuer:  issued.Issuer,
		VC:      issued.JWT,
	})
}

// Verify - POST /vc/verify
func (h *CredentialHandler) Verify(c *fiber.Ctx) error {
	var req dto.VerifyCredentialRequest
	if err := parseBody(c, &req); err != nil {
		return badRequest(c, "Missing field: jwt")
	}
	if err := req.Validate(); err != nil {
		return badRequest(c, err.Error())
	}

	res, err := h.verifySvc.VerifyCredential(c.UserContext(), req.JWT)
	if err != nil {
		return respondError(c, h.log, "verify credential", err)
	}

	return c.JSON(dto.VerifyCredentialResponse{
		OK:       true,
		Message:  "VC verification complete",
		Verified: res.Verified,
		Results:  res,
	})
}
