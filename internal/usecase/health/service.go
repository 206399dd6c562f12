// Package health aggregates component health checks for the gateway.
package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
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
	kv      KVPinger
	backend BackendChecker
}

// New creates a Service. backend can be nil.
func New(kv KVPinger, backend BackendChecker) *Service {
	return &Service{kv: kv, backend: backend}
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	if err := s.kv.Ping(ctx); err != nil {
		checks["kv"] = CheckError
	} else {
		checks["kv"] = CheckOK
	}

	if s.backend != nil {
		if err := s.backend.HealthCheck(ctx); err != nil {
			checks["backend"] = CheckError
		} else {
			checks["backend"] = CheckOK
		}
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}

	return Report{Status: status, Checks: checks}
}
