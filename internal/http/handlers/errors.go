package handlers

import (
	"bytes"
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/pixelgenesis/backend/internal/http/dto"
	"github.com/pixelgenesis/backend/internal/middleware"
	"github.com/pixelgenesis/backend/internal/services"
)

// parseBody разбирает JSON тело; пустое тело - это пустой запрос, а не ошибка.
func parseBody(c *fiber.Ctx, out any) error {
	if len(bytes.TrimSpace(c.Body())) == 0 {
		return nil
	}
	return c.BodyParser(out)
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: msg})
}

// respondError переводит ошибку сервиса в HTTP ответ. Детали upstream ошибок
// только логируются; клиент получает request_id для поиска по логам.
func respondError(c *fiber.Ctx, log *zap.Logger, op string, err error) error {
	switch {
	case errors.Is(err, services.ErrSignatureMismatch):
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: err.Error()})
	case errors.Is(err, services.ErrNonceNotFound),
		errors.Is(err, services.ErrNonceExpired),
		errors.Is(err, services.ErrInvalidInput):
		return badRequest(c, err.Error())
	}

	reqID := middleware.GetRequestID(c)
	log.Error(op+" failed",
		zap.String("request_id", reqID),
		zap.String("path", c.Path()),
		zap.Error(err),
	)
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
		Error:     "internal server error",
		RequestID: reqID,
	})
}
