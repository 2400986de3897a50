// Package client provides the API client for interacting with the maasprov API
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	fiber "github.com/gofiber/fiber/v2"

	"github.com/celestiaorg/maasprov/internal/db/models"
	"github.com/celestiaorg/maasprov/internal/maas"
	"github.com/celestiaorg/maasprov/internal/types"
	"github.com/celestiaorg/maasprov/pkg/api/v1/routes"
)

// DefaultTimeout is the default timeout for API requests
const DefaultTimeout = 30 * time.Second

// Client is the interface for API client
type Client interface {
	// Health Check
	HealthCheck(ctx context.Context) (map[string]string, error)

	// Machine Endpoints
	ListMachines(ctx context.Context) ([]maas.Machine, error)
	GetMachineStatus(ctx context.Context, systemID string) (types.MachineStatus, error)

	// Provisioning Endpoints
	Provision(ctx context.Context, req types.ProvisionRequest) (types.ProvisionResponse, error)
	GetJob(ctx context.Context, id string) (models.ProvisioningJob, error)
	ListJobs(ctx context.Context, opts *models.ListOptions) (types.ListJobsResponse, error)
}

var _ Client = &APIClient{}

// Options contains configuration options for the API client
type Options struct {
	// BaseURL is the base URL of the API
	BaseURL string

	// Timeout is the request timeout
	Timeout time.Duration
}

// DefaultOptions returns the default client options
func DefaultOptions() *Options {
	return &Options{
		BaseURL: routes.DefaultBaseURL,
		Timeout: DefaultTimeout,
	}
}

// APIClient implements the Client interface
type APIClient struct {
	baseURL string
	timeout time.Duration
}

// NewClient creates a new API client with the given options
func NewClient(opts *Options) (Client, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	if _, err := url.Parse(opts.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &APIClient{
		baseURL: opts.BaseURL,
		timeout: timeout,
	}, nil
}

// createAgent creates a new Fiber Agent for the given method and endpoint
func (c *APIClient) createAgent(ctx context.Context, method, endpoint string, body interface{}) (*fiber.Agent, error) {
	fullURL := c.baseURL + endpoint

	var agent *fiber.Agent
	switch method {
	case http.MethodGet:
		agent = fiber.Get(fullURL)
	case http.MethodPost:
		agent = fiber.Post(fullURL)
	default:
		return nil, fmt.Errorf("unsupported HTTP method: %s", method)
	}

	// Set timeout from context or client default
	if deadline, ok := ctx.Deadline(); ok {
		agent.Timeout(time.Until(deadline))
	} else {
		agent.Timeout(c.timeout)
	}

	agent.Set("Content-Type", "application/json")
	agent.Set("Accept", "application/json")

	if body != nil {
		agent.JSON(body)
	}

	return agent, nil
}

// doRequest sends the HTTP request and processes the response
func (c *APIClient) doRequest(agent *fiber.Agent, v interface{}) error {
	statusCode, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("error sending request: %w", errs[0])
	}

	// Error bodies are passed through so callers can show the server's diagnostics
	if statusCode < 200 || statusCode >= 300 {
		return &fiber.Error{
			Code:    statusCode,
			Message: string(body),
		}
	}

	if v != nil && len(body) > 0 {
		if err := json.Unmarshal(body, v); err != nil {
			return fmt.Errorf("error decoding response: %w", err)
		}
	}

	return nil
}

// executeRequest creates an agent, sends the request, and processes the response
func (c *APIClient) executeRequest(ctx context.Context, method, endpoint string, body, response interface{}) error {
	agent, err := c.createAgent(ctx, method, endpoint, body)
	if err != nil {
		return err
	}

	return c.doRequest(agent, response)
}

// HealthCheck checks the health of the API
func (c *APIClient) HealthCheck(ctx context.Context) (map[string]string, error) {
	var response map[string]string
	if err := c.executeRequest(ctx, http.MethodGet, routes.HealthCheckURL(), nil, &response); err != nil {
		return map[string]string{}, err
	}
	return response, nil
}

// ListMachines returns the machines of the server's visible pools
func (c *APIClient) ListMachines(ctx context.Context) ([]maas.Machine, error) {
	var response []maas.Machine
	if err := c.executeRequest(ctx, http.MethodGet, routes.ListMachinesURL(), nil, &response); err != nil {
		return []maas.Machine{}, err
	}
	return response, nil
}

// GetMachineStatus returns the status summary of one machine
func (c *APIClient) GetMachineStatus(ctx context.Context, systemID string) (types.MachineStatus, error) {
	var response types.MachineStatus
	err := c.executeRequest(ctx, http.MethodGet, routes.GetMachineStatusURL(systemID), nil, &response)
	return response, err
}

// Provision submits a provisioning request
func (c *APIClient) Provision(ctx context.Context, req types.ProvisionRequest) (types.ProvisionResponse, error) {
	var response types.ProvisionResponse
	err := c.executeRequest(ctx, http.MethodPost, routes.ProvisionURL(), req, &response)
	return response, err
}

// GetJob retrieves a provisioning job by ID
func (c *APIClient) GetJob(ctx context.Context, id string) (models.ProvisioningJob, error) {
	var response models.ProvisioningJob
	err := c.executeRequest(ctx, http.MethodGet, routes.GetJobURL(id), nil, &response)
	return response, err
}

// ListJobs lists provisioning jobs, newest first
func (c *APIClient) ListJobs(ctx context.Context, opts *models.ListOptions) (types.ListJobsResponse, error) {
	q := url.Values{}
	if opts != nil {
		if opts.Limit > 0 {
			q.Set("limit", strconv.Itoa(opts.Limit))
		}
		if opts.Status != models.JobStatusUnknown {
			q.Set("status", opts.Status.String())
		}
	}

	var response types.ListJobsResponse
	err := c.executeRequest(ctx, http.MethodGet, routes.ListJobsURL(q), nil, &response)
	return response, err
}
