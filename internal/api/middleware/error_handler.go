package middleware

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/vivo/internal/domain"
)

type errorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		body := errorBody{RequestID: RequestID(c)}
		status := statusFor(err)

		var fiberErr *fiber.Error
		var appErr *domain.AppError

		switch {
		case errors.As(err, &fiberErr):
			body.Code = "HTTP_ERROR"
			body.Message = fiberErr.Message

		case errors.As(err, &appErr):
			body.Code = appErr.Code
			body.Message = appErr.Message

			if appErr.StatusCode >= 500 {
				logger.Error("internal error",
					slog.String("request_id", body.RequestID),
					slog.String("code", appErr.Code),
					slog.Any("error", appErr.Err),
				)
			}

		default:
			logger.Error("unhandled error",
				slog.String("request_id", body.RequestID),
				slog.Any("error", err),
				slog.String("path", c.Path()),
			)

			body.Code = domain.ErrInternal.Code
			body.Message = domain.ErrInternal.Message
		}

		return c.Status(status).JSON(fiber.Map{"error": body})
	}
}

func statusFor(err error) int {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fiberErr.Code
	}

	var appErr *domain.AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	return fiber.StatusInternalServerError
}
