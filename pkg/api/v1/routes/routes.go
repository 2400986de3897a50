// Package routes defines the API routes and URL structure
package routes

import (
	"fmt"
	"net/url"
	"strings"
	"sync"

	fiber "github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/celestiaorg/maasprov/pkg/api/v1/handlers"
)

/*

To keep this file organized, routes should be organized in the following way:

1. Smallest scope first (i.e. machine routes before provision routes)
2. For similar scopes, put the endpoints in alphabetical order
3. Order routes in GET, POST, PUT, DELETE order.
	a. Within this ordering, param urls (ie /:id) should go last, otherwise fiber will interpret the route slug as that param.
	b. After param considerations, order alphabetically.
4. For clarity, naming should match the action (i.e. GetJob, ListJobs)

*/

// API base configuration
const (
	// DefaultPort is the default port for the API
	DefaultPort = "8080"
	// APIv1Prefix is the prefix for all API endpoints
	APIv1Prefix = "/api/v1"
)

// DefaultBaseURL is the default base URL for the API
var DefaultBaseURL = fmt.Sprintf("http://localhost:%s", DefaultPort)

// Route names for lookup
const (
	// Health check and metrics
	HealthCheck = "HealthCheck"
	Metrics     = "Metrics"

	// Settings routes
	ConfigDefaults = "ConfigDefaults"
	ConfigStatus   = "ConfigStatus"
	UserConfig     = "UserConfig"

	// Machine routes
	ListMachines      = "ListMachines"
	GetMachineStatus  = "GetMachineStatus"
	PreviewCloudInit  = "PreviewCloudInit"
	DeployMachine     = "DeployMachine"
	RecentDeployments = "RecentDeployments"
	ListTags          = "ListTags"
	ListPools         = "ListPools"
	BootSources       = "BootSources"
	BootResources     = "BootResources"

	// Provisioning routes
	ListJobs  = "ListJobs"
	GetJob    = "GetJob"
	Provision = "Provision"
)

// routeCache stores extracted routes for use prior to compilation
var (
	routeCache     map[string]string
	routeCacheMu   sync.RWMutex
	routeCacheInit sync.Once
)

// RegisterRoutes configures all the v1 routes
//
// NOTE: route ordering is important because routes will try and match in the order they are registered.
func RegisterRoutes(
	app *fiber.App,
	machineHandler *handlers.MachineHandler,
	provisionHandler *handlers.ProvisionHandler,
) {
	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy"})
	}).Name(HealthCheck)

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler())).Name(Metrics)

	// API v1 routes
	v1 := app.Group(APIv1Prefix)

	v1.Get("/config/defaults", machineHandler.ConfigDefaults).Name(ConfigDefaults)
	v1.Get("/config/status", machineHandler.ConfigStatus).Name(ConfigStatus)
	v1.Get("/user/config", machineHandler.UserConfig).Name(UserConfig)

	// Machine endpoints
	machines := v1.Group("/machines")
	machines.Get("/", machineHandler.ListMachines).Name(ListMachines)
	machines.Get("/:id/cloud-init", machineHandler.PreviewCloudInit).Name(PreviewCloudInit)
	machines.Get("/:id/status", machineHandler.GetMachineStatus).Name(GetMachineStatus)
	machines.Post("/:id/deploy", machineHandler.DeployMachine).Name(DeployMachine)

	v1.Get("/boot-resources", machineHandler.ListBootResources).Name(BootResources)
	v1.Get("/boot-sources", machineHandler.ListBootSources).Name(BootSources)
	v1.Get("/deployments/recent", machineHandler.RecentDeployments).Name(RecentDeployments)
	v1.Get("/pools", machineHandler.ListPools).Name(ListPools)
	v1.Get("/tags", machineHandler.ListTags).Name(ListTags)

	// ---------------------------
	// Provisioning endpoints
	provision := v1.Group("/provision")
	provision.Get("/", provisionHandler.ListJobs).Name(ListJobs)
	provision.Get("/:id", provisionHandler.GetJob).Name(GetJob)
	provision.Post("/", provisionHandler.Provision).Name(Provision)
}

// initRouteCache initializes the route cache by creating a mock app and extracting routes
func initRouteCache() {
	routeCacheInit.Do(func() {
		routeCache = make(map[string]string)

		app := fiber.New()
		RegisterRoutes(app, &handlers.MachineHandler{}, &handlers.ProvisionHandler{})

		for _, route := range app.GetRoutes() {
			if route.Name != "" {
				routeCache[route.Name] = route.Path
			}
		}
	})
}

// GetRoute returns the route pattern for the given route name
func GetRoute(name string) string {
	initRouteCache()

	routeCacheMu.RLock()
	defer routeCacheMu.RUnlock()
	return routeCache[name]
}

// BuildURL builds a URL for the given route name and parameters
func BuildURL(routeName string, params map[string]string, queryParams url.Values) string {
	route := GetRoute(routeName)
	if route == "" {
		return ""
	}

	for param, value := range params {
		route = strings.ReplaceAll(route, ":"+param, url.PathEscape(value))
	}

	// Remove trailing slash if it's a base endpoint with no parameters
	if strings.HasSuffix(route, "/") && !strings.Contains(route, ":") {
		route = strings.TrimSuffix(route, "/")
	}

	if len(queryParams) > 0 {
		route = fmt.Sprintf("%s?%s", route, queryParams.Encode())
	}

	return route
}

// HealthCheckURL returns the URL for the health check endpoint
func HealthCheckURL() string {
	return BuildURL(HealthCheck, nil, nil)
}

// Machine route helpers

// ListMachinesURL returns the URL for listing machines
func ListMachinesURL() string {
	return BuildURL(ListMachines, nil, nil)
}

// GetMachineStatusURL returns the URL for a machine's status
func GetMachineStatusURL(id string) string {
	return BuildURL(GetMachineStatus, map[string]string{"id": id}, nil)
}

// DeployMachineURL returns the URL for deploying a single machine
func DeployMachineURL(id string) string {
	return BuildURL(DeployMachine, map[string]string{"id": id}, nil)
}

// PreviewCloudInitURL returns the URL for a machine's cloud-init preview
func PreviewCloudInitURL(id string, queryParams url.Values) string {
	return BuildURL(PreviewCloudInit, map[string]string{"id": id}, queryParams)
}

// Provisioning route helpers

// ProvisionURL returns the URL for submitting a provisioning job
func ProvisionURL() string {
	return BuildURL(Provision, nil, nil)
}

// ListJobsURL returns the URL for listing provisioning jobs
func ListJobsURL(queryParams url.Values) string {
	return BuildURL(ListJobs, nil, queryParams)
}

// GetJobURL returns the URL for a provisioning job
func GetJobURL(id string) string {
	return BuildURL(GetJob, map[string]string{"id": id}, nil)
}
