// Package handlers provides HTTP request handling
package handlers

import (
	"errors"

	fiber "github.com/gofiber/fiber/v2"

	"github.com/celestiaorg/maasprov/internal/db/models"
	"github.com/celestiaorg/maasprov/internal/logger"
	"github.com/celestiaorg/maasprov/internal/maas"
	"github.com/celestiaorg/maasprov/internal/services"
	"github.com/celestiaorg/maasprov/internal/types"
)

// Common error messages
const (
	ErrMsgInvalidReqFormat = "Invalid request format"
	ErrMsgShuttingDown     = "Service is shutting down"
)

// Provisioning error messages
const (
	ErrMsgJobNotFound      = "Provisioning job not found"
	ErrMsgJobIDRequired    = "Job id is required"
	ErrMsgJobStatusInvalid = "Invalid job status"
	ErrMsgProvisionFailed  = "Failed to start provisioning"
	ErrMsgJobGetFailed     = "Failed to get provisioning job"
	ErrMsgJobListFailed    = "Failed to list provisioning jobs"
)

// Machine error messages
const (
	ErrMsgMachineIDRequired = "Machine id is required"
	ErrMsgMachineNotFound   = "Machine not found"
	ErrMsgMAASRequestFailed = "MAAS request failed"
)

// Pagination error messages
const (
	ErrMsgInvalidLimit = "limit must be a positive integer"
)

func errorJSON(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(types.ErrorResponse{Error: msg})
}

// respondError maps service errors to HTTP responses. fallback prefixes
// unexpected errors.
func respondError(c *fiber.Ctx, err error, fallback string) error {
	var (
		validation   *types.ValidationError
		insufficient *types.ResourceInsufficientError
		apiErr       *maas.APIError
	)

	switch {
	case errors.As(err, &validation):
		return c.Status(fiber.StatusBadRequest).JSON(types.ValidationErrorResponse{
			Error:   validation.Message,
			Example: validation.Example,
		})
	case errors.As(err, &insufficient):
		return c.Status(fiber.StatusConflict).JSON(types.NewInsufficientResourcesResponse(insufficient))
	case errors.Is(err, models.ErrJobNotFound):
		return errorJSON(c, fiber.StatusNotFound, ErrMsgJobNotFound)
	case errors.Is(err, services.ErrDispatcherClosed):
		return errorJSON(c, fiber.StatusServiceUnavailable, ErrMsgShuttingDown)
	case maas.IsNotFound(err):
		return errorJSON(c, fiber.StatusNotFound, ErrMsgMachineNotFound)
	case errors.As(err, &apiErr):
		logger.ErrorWithFields(fallback, logger.Fields{"error": err, "path": c.Path()})
		return c.Status(fiber.StatusBadGateway).JSON(types.ErrorResponse{
			Error:   ErrMsgMAASRequestFailed,
			Details: err.Error(),
		})
	default:
		logger.ErrorWithFields(fallback, logger.Fields{"error": err, "path": c.Path()})
		return errorJSON(c, fiber.StatusInternalServerError, fallback+": "+err.Error())
	}
}
