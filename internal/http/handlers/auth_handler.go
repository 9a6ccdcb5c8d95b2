package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/pixelgenesis/backend/internal/http/dto"
	"github.com/pixelgenesis/backend/internal/middleware"
	"github.com/pixelgenesis/backend/internal/services"
)

type AuthHandler struct {
	authSvc *services.AuthService
	log     *zap.Logger
}

func NewAuthHandler(authSvc *services.AuthService, log *zap.Logger) *AuthHandler {
	return &AuthHandler{authSvc: authSvc, log: log}
}

// Nonce - POST /auth/nonce
func (h *AuthHandler) Nonce(c *fiber.Ctx) error {
	var req dto.NonceRequest
	if err := parseBody(c, &req); err != nil {
		return badRequest(c, "address required")
	}
	if err := req.Validate(); err != nil {
		return badRequest(c, err.Error())
	}

	n, err := h.authSvc.RequestChallenge(c.UserContext(), req.Address)
	if err != nil {
		return respondError(c, h.log, "request challenge", err)
	}

	return c.JSON(dto.NonceResponse{OK: true, Nonce: n})
}

// Verify - POST /auth/verify
func (h *AuthHandler) Verify(c *fiber.Ctx) error {
	var req dto.VerifyWalletRequest
	if err := parseBody(c, &req); err != nil {
		return badRequest(c, "address and signature required")
	}
	if err := req.Validate(); err != nil {
		return badRequest(c, err.Error())
	}

	session, err := h.authSvc.VerifyChallenge(c.UserContext(), req.Address, req.Signature)
	if err != nil {
		return respondError(c, h.log, "verify challenge", err)
	}

	return c.JSON(dto.VerifyWalletResponse{
		OK:        true,
		Message:   "Wallet verified",
		Address:   session.Address,
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
	})
}

// Session - GET /auth/session (Bearer)
func (h *AuthHandler) Session(c *fiber.Ctx) error {
	claims := middleware.GetSession(c)
	if claims == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: "unauthorized"})
	}

	info, err := h.authSvc.Session(c.UserContext(), claims)
	if err != nil {
		return respondError(c, h.log, "load session", err)
	}

	return c.JSON(dto.SessionResponse{
		OK:        true,
		Address:   info.Address,
		ExpiresAt: info.ExpiresAt,
		Wallet:    info.Wallet,
		Activity:  info.Activity,
	})
}
