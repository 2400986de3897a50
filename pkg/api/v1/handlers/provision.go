package handlers

import (
	"errors"
	"fmt"
	"strconv"

	fiber "github.com/gofiber/fiber/v2"

	"github.com/celestiaorg/maasprov/internal/db/models"
	"github.com/celestiaorg/maasprov/internal/services"
	"github.com/celestiaorg/maasprov/internal/types"
)

// ProvisionHandler handles HTTP requests for provisioning jobs
type ProvisionHandler struct {
	service *services.Provisioning
}

// NewProvisionHandler creates a new provision handler instance
func NewProvisionHandler(service *services.Provisioning) *ProvisionHandler {
	return &ProvisionHandler{service: service}
}

// Provision accepts a manual or auto-select request and starts a job.
// Responds 202 on acceptance, 400 on validation errors and 409 when
// auto-selection finds too few machines.
func (h *ProvisionHandler) Provision(c *fiber.Ctx) error {
	var req types.ProvisionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(types.ValidationErrorResponse{
			Error: ErrMsgInvalidReqFormat + ": " + err.Error(),
		})
	}

	resp, err := h.service.Submit(c.Context(), &req)
	if err != nil {
		return respondError(c, err, ErrMsgProvisionFailed)
	}

	return c.Status(fiber.StatusAccepted).JSON(resp)
}

// GetJob returns the full record of a provisioning job
func (h *ProvisionHandler) GetJob(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return errorJSON(c, fiber.StatusBadRequest, ErrMsgJobIDRequired)
	}

	job, err := h.service.GetJob(c.Context(), id)
	if err != nil {
		return respondError(c, err, ErrMsgJobGetFailed)
	}

	return c.JSON(job)
}

// ListJobs returns jobs newest first, optionally filtered by status
func (h *ProvisionHandler) ListJobs(c *fiber.Ctx) error {
	opts, err := listOptions(c)
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}

	resp, err := h.service.ListJobs(c.Context(), opts)
	if err != nil {
		return respondError(c, err, ErrMsgJobListFailed)
	}

	return c.JSON(resp)
}

// listOptions reads the status and limit query parameters
func listOptions(c *fiber.Ctx) (*models.ListOptions, error) {
	opts := &models.ListOptions{Limit: models.DefaultLimit}

	if statusStr := c.Query("status"); statusStr != "" {
		status, err := models.ParseJobStatus(statusStr)
		// unknown means "no filter" to the stores, never a requestable status
		if err != nil || status == models.JobStatusUnknown {
			return nil, fmt.Errorf("%s: %s", ErrMsgJobStatusInvalid, statusStr)
		}
		opts.Status = status
	}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 {
			return nil, errors.New(ErrMsgInvalidLimit)
		}
		opts.Limit = limit
	}

	return opts, nil
}
