package monitoring

import (
	"context"
	"sync"
	"time"
)

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// HealthChecker runs readiness probes. A failing critical check makes the
// service unhealthy; a failing soft check only degrades it.
type HealthChecker struct {
	mu     sync.RWMutex
	checks []HealthCheck
}

type HealthCheck struct {
	Name     string
	Check    func(ctx context.Context) error
	Timeout  time.Duration
	Critical bool
}

type CheckResult struct {
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks"`
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{}
}

// AddCheck registers a critical check.
func (h *HealthChecker) AddCheck(name string, check func(ctx context.Context) error, timeout time.Duration) {
	h.add(HealthCheck{Name: name, Check: check, Timeout: timeout, Critical: true})
}

// AddSoftCheck registers a check whose failure only degrades the service.
func (h *HealthChecker) AddSoftCheck(name string, check func(ctx context.Context) error, timeout time.Duration) {
	h.add(HealthCheck{Name: name, Check: check, Timeout: timeout})
}

func (h *HealthChecker) add(check HealthCheck) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = append(h.checks, check)
}

// CheckAll runs every check concurrently, each under its own timeout.
func (h *HealthChecker) CheckAll(ctx context.Context) HealthStatus {
	h.mu.RLock()
	checks := append([]HealthCheck(nil), h.checks...)
	h.mu.RUnlock()

	results := make([]CheckResult, len(checks))
	var wg sync.WaitGroup
	for i, check := range checks {
		wg.Add(1)
		go func(i int, check HealthCheck) {
			defer wg.Done()
			results[i] = runCheck(ctx, check)
		}(i, check)
	}
	wg.Wait()

	status := HealthStatus{
		Status:    StatusHealthy,
		Timestamp: time.Now(),
		Checks:    make(map[string]CheckResult, len(checks)),
	}
	for i, check := range checks {
		result := results[i]
		status.Checks[check.Name] = result
		if result.Status == StatusHealthy {
			continue
		}
		if check.Critical {
			status.Status = StatusUnhealthy
		} else if status.Status == StatusHealthy {
			status.Status = StatusDegraded
		}
	}
	return status
}

func runCheck(ctx context.Context, check HealthCheck) CheckResult {
	checkCtx, cancel := context.WithTimeout(ctx, check.Timeout)
	defer cancel()

	start := time.Now()
	err := check.Check(checkCtx)
	result := CheckResult{Status: StatusHealthy, LatencyMS: time.Since(start).Milliseconds()}
	if err != nil {
		result.Status = StatusUnhealthy
		result.Error = err.Error()
	}
	return result
}

// IsReady reports whether traffic may be routed here. Degraded counts as ready.
func (h *HealthChecker) IsReady(ctx context.Context) bool {
	return h.CheckAll(ctx).Status != StatusUnhealthy
}
