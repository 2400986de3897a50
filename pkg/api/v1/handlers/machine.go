package handlers

import (
	fiber "github.com/gofiber/fiber/v2"

	"github.com/celestiaorg/maasprov/internal/services"
	"github.com/celestiaorg/maasprov/internal/types"
)

// MachineHandler exposes the MAAS inventory, tags, pools and settings
type MachineHandler struct {
	service *services.Machine
}

// NewMachineHandler creates a new machine handler instance
func NewMachineHandler(service *services.Machine) *MachineHandler {
	return &MachineHandler{service: service}
}

// ListMachines returns the machines of the visible pools
func (h *MachineHandler) ListMachines(c *fiber.Ctx) error {
	machines, err := h.service.ListMachines(c.Context())
	if err != nil {
		return respondError(c, err, "Failed to list machines")
	}
	return c.JSON(machines)
}

// GetMachineStatus returns the status summary of one machine
func (h *MachineHandler) GetMachineStatus(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return errorJSON(c, fiber.StatusBadRequest, ErrMsgMachineIDRequired)
	}

	status, err := h.service.GetMachineStatus(c.Context(), id)
	if err != nil {
		return respondError(c, err, "Failed to get machine status")
	}
	return c.JSON(status)
}

// DeployMachine deploys a single machine and relays the MAAS response
func (h *MachineHandler) DeployMachine(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return errorJSON(c, fiber.StatusBadRequest, ErrMsgMachineIDRequired)
	}

	var req types.MachineDeployRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return errorJSON(c, fiber.StatusBadRequest, ErrMsgInvalidReqFormat+": "+err.Error())
		}
	}
	if req.DistroSeries == "" {
		req.DistroSeries = types.DefaultDistroSeries
	}

	resp, err := h.service.DeployMachine(c.Context(), id, &req)
	if err != nil {
		return respondError(c, err, "Failed to deploy machine")
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(resp)
}

// PreviewCloudInit renders the user-data a deployment of the machine would send
func (h *MachineHandler) PreviewCloudInit(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return errorJSON(c, fiber.StatusBadRequest, ErrMsgMachineIDRequired)
	}

	preview, err := h.service.PreviewCloudInit(c.Context(), id, c.Query("distro_series"), c.Query("user_data"))
	if err != nil {
		return respondError(c, err, "Failed to generate cloud-init preview")
	}
	return c.JSON(preview)
}

// RecentDeployments lists recently deployed or deploying machines
func (h *MachineHandler) RecentDeployments(c *fiber.Ctx) error {
	deployments, err := h.service.RecentDeployments(c.Context())
	if err != nil {
		return respondError(c, err, "Failed to list recent deployments")
	}
	return c.JSON(deployments)
}

// ListTags returns every MAAS tag
func (h *MachineHandler) ListTags(c *fiber.Ctx) error {
	tags, err := h.service.ListTags(c.Context())
	if err != nil {
		return respondError(c, err, "Failed to list tags")
	}
	return c.JSON(tags)
}

// ListPools returns every MAAS resource pool
func (h *MachineHandler) ListPools(c *fiber.Ctx) error {
	pools, err := h.service.ListPools(c.Context())
	if err != nil {
		return respondError(c, err, "Failed to list pools")
	}
	return c.JSON(pools)
}

// ListBootSources relays the MAAS boot sources
func (h *MachineHandler) ListBootSources(c *fiber.Ctx) error {
	sources, err := h.service.ListBootSources(c.Context())
	if err != nil {
		return respondError(c, err, "Failed to list boot sources")
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(sources)
}

// ListBootResources relays the MAAS boot resources
func (h *MachineHandler) ListBootResources(c *fiber.Ctx) error {
	resources, err := h.service.ListBootResources(c.Context())
	if err != nil {
		return respondError(c, err, "Failed to list boot resources")
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(resources)
}

// ConfigDefaults reports the MAAS default series and kernel
func (h *MachineHandler) ConfigDefaults(c *fiber.Ctx) error {
	return c.JSON(h.service.ConfigDefaults(c.Context()))
}

// ConfigStatus reports the MAAS connection settings
func (h *MachineHandler) ConfigStatus(c *fiber.Ctx) error {
	return c.JSON(h.service.ConfigStatus())
}

// UserConfig reports the deployment user without its password
func (h *MachineHandler) UserConfig(c *fiber.Ctx) error {
	return c.JSON(h.service.UserConfig())
}
