package health

import "context"

// KVPinger checks key-value store availability.
type KVPinger interface {
	Ping(ctx context.Context) error
}

// BackendChecker checks journal backend availability.
type BackendChecker interface {
	HealthCheck(ctx context.Context) error
}
