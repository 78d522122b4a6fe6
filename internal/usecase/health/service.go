// Package health aggregates dependency checks for the readiness endpoint.
package health

import (
	"context"
	"sync"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
	// Unhealthy indicates total failure.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	names   []string
	pingers []Pinger
}

// New creates a Service with no checks. It reports Healthy until checks are added.
func New() *Service {
	return &Service{}
}

// WithCheck adds a named dependency.
func (s *Service) WithCheck(name string, p Pinger) *Service {
	if p != nil {
		s.names = append(s.names, name)
		s.pingers = append(s.pingers, p)
	}
	return s
}

// Check pings every dependency concurrently.
func (s *Service) Check(ctx context.Context) Report {
	results := make([]CheckResult, len(s.pingers))

	var wg sync.WaitGroup
	for i, p := range s.pingers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := p.Ping(ctx); err != nil {
				results[i] = CheckError
				return
			}
			results[i] = CheckOK
		}()
	}
	wg.Wait()

	checks := make(map[string]CheckResult, len(results))
	failed := 0
	for i, r := range results {
		checks[s.names[i]] = r
		if r == CheckError {
			failed++
		}
	}

	status := Healthy
	switch {
	case failed > 0 && failed == len(results):
		status = Unhealthy
	case failed > 0:
		status = Degraded
	}
	return Report{Status: status, Checks: checks}
}
