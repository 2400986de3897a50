// Package maas provides a client for the MAAS 2.0 REST API
package maas

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	fiber "github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/celestiaorg/maasprov/internal/metrics"
)

// DefaultTimeout is the default timeout for MAAS API requests
const DefaultTimeout = 30 * time.Second

// apiPath is appended to the MAAS URL for every request
const apiPath = "/api/2.0/"

// ErrInvalidAPIKey is returned when the API key is not consumer_key:token_key:token_secret
var ErrInvalidAPIKey = errors.New("invalid MAAS API key format, expected consumer_key:token_key:token_secret")

// APIError is returned for non-2xx MAAS responses
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("MAAS API error: status %d: %s", e.Status, strings.TrimSpace(e.Body))
}

// IsNotFound reports whether err is a MAAS 404
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// Options contains configuration options for the MAAS client
type Options struct {
	// URL is the MAAS base URL, e.g. http://maas.example.com:5240/MAAS
	URL string
	// APIKey is the MAAS API key, consumer_key:token_key:token_secret
	APIKey string
	// Timeout applies to requests whose context carries no deadline
	Timeout time.Duration
}

// Client talks to a MAAS region controller using OAuth 1.0 PLAINTEXT signing
type Client struct {
	baseURL     string
	consumerKey string
	tokenKey    string
	tokenSecret string
	timeout     time.Duration
}

// NewClient creates a new MAAS client
func NewClient(opts Options) (*Client, error) {
	if opts.URL == "" {
		return nil, errors.New("MAAS URL is required")
	}
	if _, err := url.Parse(opts.URL); err != nil {
		return nil, fmt.Errorf("invalid MAAS URL: %w", err)
	}

	parts := strings.Split(opts.APIKey, ":")
	if len(parts) != 3 {
		return nil, ErrInvalidAPIKey
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		baseURL:     strings.TrimSuffix(opts.URL, "/") + apiPath,
		consumerKey: parts[0],
		tokenKey:    parts[1],
		tokenSecret: parts[2],
		timeout:     timeout,
	}, nil
}

// ListMachines returns every machine known to MAAS in listing order
func (c *Client) ListMachines(ctx context.Context) ([]Machine, error) {
	var machines []Machine
	if err := c.call(ctx, "list_machines", http.MethodGet, "machines/", nil, &machines); err != nil {
		return nil, err
	}
	return machines, nil
}

// GetMachine returns a single machine by system ID
func (c *Client) GetMachine(ctx context.Context, systemID string) (*Machine, error) {
	var machine Machine
	endpoint := "machines/" + url.PathEscape(systemID) + "/"
	if err := c.call(ctx, "get_machine", http.MethodGet, endpoint, nil, &machine); err != nil {
		return nil, err
	}
	return &machine, nil
}

// Deploy starts the deployment of a machine and returns the raw MAAS response
func (c *Client) Deploy(ctx context.Context, systemID string, params DeployParams) (json.RawMessage, error) {
	form := url.Values{}
	form.Set("op", "deploy")
	if params.DistroSeries != "" {
		form.Set("distro_series", params.DistroSeries)
	}
	if params.UserData != "" {
		form.Set("user_data", base64.StdEncoding.EncodeToString([]byte(params.UserData)))
	}

	var result json.RawMessage
	endpoint := "machines/" + url.PathEscape(systemID) + "/"
	if err := c.call(ctx, "deploy", http.MethodPost, endpoint, form, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// ListTags returns all tags defined in MAAS
func (c *Client) ListTags(ctx context.Context) ([]Tag, error) {
	var tags []Tag
	if err := c.call(ctx, "list_tags", http.MethodGet, "tags/", nil, &tags); err != nil {
		return nil, err
	}
	return tags, nil
}

// ListPools returns all resource pools defined in MAAS
func (c *Client) ListPools(ctx context.Context) ([]ResourcePool, error) {
	var pools []ResourcePool
	if err := c.call(ctx, "list_pools", http.MethodGet, "resource-pools/", nil, &pools); err != nil {
		return nil, err
	}
	return pools, nil
}

// ListBootSources returns the configured boot image sources, unchanged
func (c *Client) ListBootSources(ctx context.Context) (json.RawMessage, error) {
	var sources json.RawMessage
	if err := c.call(ctx, "list_boot_sources", http.MethodGet, "boot-sources/", nil, &sources); err != nil {
		return nil, err
	}
	return sources, nil
}

// ListBootResources returns the imported boot images, unchanged
func (c *Client) ListBootResources(ctx context.Context) (json.RawMessage, error) {
	var resources json.RawMessage
	if err := c.call(ctx, "list_boot_resources", http.MethodGet, "boot-resources/", nil, &resources); err != nil {
		return nil, err
	}
	return resources, nil
}

// GetDefaults reads the region configuration from maas/, falling back to
// version/ when that endpoint is unavailable
func (c *Client) GetDefaults(ctx context.Context) (map[string]interface{}, error) {
	config := map[string]interface{}{}
	err := c.call(ctx, "get_config", http.MethodGet, "maas/", nil, &config)
	if err == nil {
		return config, nil
	}

	config = map[string]interface{}{}
	if fallbackErr := c.call(ctx, "get_version", http.MethodGet, "version/", nil, &config); fallbackErr != nil {
		return nil, errors.Join(err, fallbackErr)
	}
	return config, nil
}

// call executes a request and records its outcome
func (c *Client) call(ctx context.Context, operation, method, endpoint string, form url.Values, v interface{}) error {
	start := time.Now()
	err := c.executeRequest(ctx, method, endpoint, form, v)
	metrics.RecordMAASCall(operation, err, time.Since(start))
	if err != nil {
		return fmt.Errorf("%s: %w", operation, err)
	}
	return nil
}

// createAgent creates a new Fiber Agent for the given method and endpoint
func (c *Client) createAgent(ctx context.Context, method, endpoint string, form url.Values) (*fiber.Agent, error) {
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

	agent.Set(fiber.HeaderAuthorization, c.authorization(time.Now()))
	agent.Set(fiber.HeaderAccept, fiber.MIMEApplicationJSON)

	if form != nil {
		args := fiber.AcquireArgs()
		for key, values := range form {
			for _, value := range values {
				args.Add(key, value)
			}
		}
		agent.Form(args)
		fiber.ReleaseArgs(args)
	}

	return agent, nil
}

type agentResult struct {
	status int
	body   []byte
	errs   []error
}

// executeRequest sends the request and decodes a successful response into v
func (c *Client) executeRequest(ctx context.Context, method, endpoint string, form url.Values, v interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	agent, err := c.createAgent(ctx, method, endpoint, form)
	if err != nil {
		return err
	}

	done := make(chan agentResult, 1)
	go func() {
		status, body, errs := agent.Bytes()
		done <- agentResult{status: status, body: body, errs: errs}
	}()

	var res agentResult
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res = <-done:
	}

	if len(res.errs) > 0 {
		return fmt.Errorf("error sending request: %w", res.errs[0])
	}

	if res.status < 200 || res.status >= 300 {
		return &APIError{Status: res.status, Body: string(res.body)}
	}

	if v != nil && len(res.body) > 0 {
		if err := json.Unmarshal(res.body, v); err != nil {
			return fmt.Errorf("error decoding response: %w", err)
		}
	}

	return nil
}

// authorization builds the OAuth 1.0 PLAINTEXT header value
func (c *Client) authorization(now time.Time) string {
	nonce := strings.ReplaceAll(uuid.NewString(), "-", "")
	params := []string{
		`oauth_version="1.0"`,
		`oauth_signature_method="PLAINTEXT"`,
		fmt.Sprintf(`oauth_consumer_key="%s"`, c.consumerKey),
		fmt.Sprintf(`oauth_token="%s"`, c.tokenKey),
		fmt.Sprintf(`oauth_signature="&%s"`, url.QueryEscape(c.tokenSecret)),
		fmt.Sprintf(`oauth_nonce="%s"`, nonce),
		fmt.Sprintf(`oauth_timestamp="%s"`, strconv.FormatInt(now.Unix(), 10)),
	}
	return "OAuth " + strings.Join(params, ", ")
}
