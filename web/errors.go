package web

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/academia"
	"github.com/goliatone/go-errors"
)

// statusFor maps the error taxonomy to HTTP status codes.
func statusFor(err error) int {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	if errors.Is(err, context.DeadlineExceeded) || academia.IsNetworkError(err) {
		return fiber.StatusServiceUnavailable
	}

	richErr, ok := academia.AsRich(err)
	if !ok {
		return fiber.StatusInternalServerError
	}
	if richErr.Code != 0 {
		return richErr.Code
	}

	switch richErr.Category {
	case errors.CategoryNotFound:
		return fiber.StatusNotFound
	case errors.CategoryAuthz:
		return fiber.StatusForbidden
	case errors.CategoryAuth:
		return fiber.StatusUnauthorized
	case errors.CategoryValidation, errors.CategoryBadInput:
		return fiber.StatusUnprocessableEntity
	case errors.CategoryConflict:
		return fiber.StatusConflict
	case errors.CategoryRateLimit:
		return fiber.StatusTooManyRequests
	default:
		return fiber.StatusInternalServerError
	}
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	status := statusFor(err)

	var category errors.Category
	var textCode string
	if richErr, ok := academia.AsRich(err); ok {
		category, textCode = richErr.Category, richErr.TextCode
	}

	if status >= fiber.StatusInternalServerError {
		s.logger.Error("request failed", "error", err, "category", category, "text_code", textCode, "method", c.Method(), "path", c.Path())
	} else {
		s.logger.Debug("request rejected", "error", err, "category", category, "text_code", textCode, "status", status, "path", c.Path())
	}

	if status == fiber.StatusForbidden && academia.IsPermissionDenied(err) {
		return s.renderWarning(c, status, academia.AdvisorySignIn)
	}

	message := academia.ErrorMessage(err)
	var fe *fiber.Error
	if errors.As(err, &fe) {
		message = fe.Message
	}
	if status >= fiber.StatusInternalServerError && status != fiber.StatusServiceUnavailable {
		message = "Algo salió mal, inténtalo de nuevo."
	}

	if rerr := c.Status(status).Render("error", s.view(c, fiber.Map{
		"title":     "Error",
		"status":    status,
		"message":   message,
		"text_code": textCode,
	})); rerr != nil {
		s.logger.Error("render error page", "error", rerr)
		return c.Status(status).SendString(message)
	}
	return nil
}
