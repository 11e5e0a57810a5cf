package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/gridwatt/csms-core/internal/domain"
)

// ErrorHandler maps domain sentinels to HTTP statuses. Nothing in the core
// is fatal; every failure comes back as a typed JSON body.
func ErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		errorCode := "Internal"

		switch {
		case errors.Is(err, domain.ErrNotFound):
			code = fiber.StatusNotFound
			errorCode = "NotFound"
		case errors.Is(err, domain.ErrInvalidIdTag):
			code = fiber.StatusUnprocessableEntity
			errorCode = "InvalidIdTag"
		case errors.Is(err, domain.ErrPreconditionFailed):
			code = fiber.StatusConflict
			errorCode = "PreconditionFailed"
		case errors.Is(err, domain.ErrBridgeUnreachable):
			code = fiber.StatusBadGateway
			errorCode = "BridgeUnreachable"
		case errors.Is(err, domain.ErrBridgeError):
			code = fiber.StatusBadGateway
			errorCode = "BridgeError"
		default:
			var fiberErr *fiber.Error
			if errors.As(err, &fiberErr) {
				code = fiberErr.Code
				errorCode = "BadRequest"
			}
		}

		if code == fiber.StatusInternalServerError {
			log.Error("Internal Server Error", zap.Error(err), zap.String("path", c.Path()))
		}

		return c.Status(code).JSON(fiber.Map{
			"errorCode": errorCode,
			"error":     err.Error(),
		})
	}
}
