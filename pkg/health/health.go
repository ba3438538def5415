package health

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Option configures a HealthChecker.
type Option func(*HealthChecker)

// WithCheckTimeout sets how long a check may run before it is reported
// unhealthy.
func WithCheckTimeout(d time.Duration) Option {
	return func(hc *HealthChecker) {
		if d > 0 {
			hc.timeout = d
		}
	}
}

// NewHealthChecker creates a checker without checks.
func NewHealthChecker(opts ...Option) *HealthChecker {
	hc := &HealthChecker{
		entries:   make(map[string]entry),
		timeout:   DefaultCheckTimeout,
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(hc)
	}
	return hc
}

// Register adds or replaces the check called name. endpoints selects the
// endpoints it reports to; zero means EndpointHealth only.
func (hc *HealthChecker) Register(name string, fn CheckFunc, endpoints Endpoint) {
	if endpoints == 0 {
		endpoints = EndpointHealth
	}
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.entries[name] = entry{fn: fn, endpoints: endpoints}
}

// Check runs the /health checks.
func (hc *HealthChecker) Check() Response {
	return hc.run(EndpointHealth)
}

// CheckReadiness runs the readiness checks.
func (hc *HealthChecker) CheckReadiness() Response {
	return hc.run(EndpointReady)
}

// CheckLiveness runs the liveness checks.
func (hc *HealthChecker) CheckLiveness() Response {
	return hc.run(EndpointLive)
}

func (hc *HealthChecker) run(endpoint Endpoint) Response {
	hc.mu.RLock()
	selected := make(map[string]CheckFunc)
	for name, e := range hc.entries {
		if e.endpoints&endpoint != 0 {
			selected[name] = e.fn
		}
	}
	timeout := hc.timeout
	hc.mu.RUnlock()

	response := Response{
		Status:    StatusHealthy,
		Endpoint:  endpoint.String(),
		Timestamp: time.Now(),
		Uptime:    time.Since(hc.startTime).Seconds(),
		Checks:    make(map[string]Check, len(selected)),
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	for name, fn := range selected {
		g.Go(func() error {
			check := runCheck(name, fn, timeout)
			mu.Lock()
			response.Checks[name] = check
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	for _, check := range response.Checks {
		if severity[check.Status] > severity[response.Status] {
			response.Status = check.Status
		}
	}
	return response
}

// runCheck runs fn with a deadline. A check that panics or overruns is
// reported unhealthy; an overrunning check keeps running in the background.
func runCheck(name string, fn CheckFunc, timeout time.Duration) Check {
	start := time.Now()
	done := make(chan Check, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- Check{Status: StatusUnhealthy, Message: fmt.Sprintf("check panicked: %v", r)}
			}
		}()
		done <- fn()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var check Check
	select {
	case check = <-done:
	case <-timer.C:
		check = Check{Status: StatusUnhealthy, Message: fmt.Sprintf("check timed out after %s", timeout)}
	}
	if check.Name == "" {
		check.Name = name
	}
	if _, known := severity[check.Status]; !known {
		check.Status = StatusUnhealthy
	}
	check.LastChecked = start
	check.Duration = time.Since(start)
	check.DurationMs = float64(check.Duration) / float64(time.Millisecond)
	return check
}
