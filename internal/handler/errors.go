package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/ahmednasr/mapping-assistant/internal/models"
)

const accessDeniedMessage = "Access denied: Your IP address is blocked by Databricks IP ACL. " +
	"Please contact your Databricks admin to allow your IP or use an allowed network."

// ErrorHandler renders every error as {"error": msg}. A *fiber.Error keeps
// its status; anything else is a 500.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

// fail maps a service error onto the HTTP status the client should see.
func fail(err error) error {
	switch {
	case errors.Is(err, models.ErrAccessDenied):
		return fiber.NewError(fiber.StatusForbidden, accessDeniedMessage)
	case errors.Is(err, models.ErrInvalidInput),
		errors.Is(err, models.ErrNoSource),
		errors.Is(err, models.ErrUnsupportedFile):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrLLMUnavailable):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	}
	return fiber.NewError(fiber.StatusInternalServerError, err.Error())
}
