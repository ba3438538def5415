package health

import (
	"sync"
	"time"
)

// Status represents the health status of a component
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// severity orders statuses for aggregation.
var severity = map[Status]int{
	StatusHealthy:   0,
	StatusDegraded:  1,
	StatusUnhealthy: 2,
}

// Endpoint selects the endpoints a check reports to. Values combine with |.
type Endpoint uint8

const (
	// EndpointHealth checks appear in /health.
	EndpointHealth Endpoint = 1 << iota
	// EndpointReady checks gate /health/ready: whether appends are accepted.
	EndpointReady
	// EndpointLive checks gate /health/live: whether the process needs a restart.
	EndpointLive
)

func (e Endpoint) String() string {
	switch e {
	case EndpointHealth:
		return "health"
	case EndpointReady:
		return "ready"
	case EndpointLive:
		return "live"
	default:
		return "mixed"
	}
}

// DefaultCheckTimeout bounds a single check run.
const DefaultCheckTimeout = 2 * time.Second

// Check is the result of one named check.
type Check struct {
	Name        string         `json:"name"`
	Status      Status         `json:"status"`
	Message     string         `json:"message,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
	LastChecked time.Time      `json:"last_checked"`
	Duration    time.Duration  `json:"-"`
	DurationMs  float64        `json:"duration_ms"`
}

// CheckFunc is a function that performs a health check
type CheckFunc func() Check

type entry struct {
	fn        CheckFunc
	endpoints Endpoint
}

// HealthChecker runs registered checks for the health, readiness and
// liveness endpoints. Checks of one endpoint run concurrently.
type HealthChecker struct {
	mu        sync.RWMutex
	entries   map[string]entry
	timeout   time.Duration
	startTime time.Time
}

// Response is the body of every health endpoint.
type Response struct {
	Status    Status           `json:"status"`
	Endpoint  string           `json:"endpoint"`
	Timestamp time.Time        `json:"timestamp"`
	Uptime    float64          `json:"uptime_seconds"`
	Checks    map[string]Check `json:"checks"`
}
