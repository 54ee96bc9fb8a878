package controllers

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/entitlement-sync/internal/pkg/billing"
)

var validate = validator.New()

// errorResponse is the JSON body of every non-2xx API response.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func respondError(c *fiber.Ctx, err error) error {
	status, code := statusForError(err)
	msg := err.Error()
	switch status {
	case fiber.StatusInternalServerError:
		log.Errorf("[API] %s %s failed: %v", c.Method(), c.Path(), err)
		msg = "Internal server error"
	case fiber.StatusServiceUnavailable:
		// vendor errors carry response bodies and configuration detail
		log.Warnf("[API] %s %s: %v", c.Method(), c.Path(), err)
		msg = "Subscription status is temporarily unavailable, retry later"
	}
	return c.Status(status).JSON(errorResponse{Error: code, Message: msg})
}

func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, billing.ErrNotFound):
		return fiber.StatusNotFound, "not_found"
	case errors.Is(err, billing.ErrInvalidArgument):
		return fiber.StatusBadRequest, "invalid_argument"
	case errors.Is(err, billing.ErrConflict):
		return fiber.StatusConflict, "conflict"
	case errors.Is(err, billing.ErrInvalidState):
		return fiber.StatusUnprocessableEntity, "invalid_state"
	case errors.Is(err, billing.ErrServiceUnavailable):
		return fiber.StatusServiceUnavailable, "service_unavailable"
	default:
		return fiber.StatusInternalServerError, "internal_server_error"
	}
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "bad_request", Message: msg})
}

// validationMessage flattens validator errors into "field: rule" pairs.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msg := ""
	for i, fe := range verrs {
		if i > 0 {
			msg += ", "
		}
		msg += fe.Field() + ": " + fe.Tag()
	}
	return msg
}
