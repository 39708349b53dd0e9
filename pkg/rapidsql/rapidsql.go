// Package rapidsql is a call-scoped database access runtime on top of
// database/sql. It manages one logical connection and transaction per call
// chain (carried in the context.Context), merges nested transactional calls
// into a single outer transaction, wraps statement execution with parameter
// binding and guaranteed resource release, and materializes result rows into
// plain structs through a field-mapping registry built once at setup.
//
// Connection pooling policy, SQL building and schema management are out of
// scope; connections come from a caller-supplied ConnectionProvider such as
// the one in the dbsource package.
package rapidsql

import (
	"context"
	"database/sql"
	"sync"
)

// ConnectionProvider hands out dedicated database connections. Providers
// are used lazily: a connection is requested only when the first statement
// or transaction of a call chain needs one.
type ConnectionProvider interface {
	Conn(ctx context.Context) (*sql.Conn, error)
}

// Runtime owns the process-wide configuration: the connection provider and
// the entity field registry, both set exactly once at boot. Per-call-chain
// state lives in sessions carried by the context, so the runtime itself is
// safe for concurrent use.
type Runtime struct {
	mu       sync.Mutex
	provider ConnectionProvider
	entities *entityIndex

	logger  Logger
	metrics Metrics
}

func New() *Runtime {
	return &Runtime{}
}

// UseLogger sets the logger the runtime writes statement and error logs to.
func (r *Runtime) UseLogger(logger Logger) {
	r.logger = logger
}

// UseMetrics sets the metrics sink for statement durations.
func (r *Runtime) UseMetrics(metrics Metrics) {
	r.metrics = metrics
}

// SetProvider installs the connection provider. It is a one-shot guard:
// a nil provider or a second call fails, and the first provider stays in
// effect.
func (r *Runtime) SetProvider(provider ConnectionProvider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if provider == nil {
		return r.errorf(KindConfig, nil, "connection provider is nil")
	}
	if r.provider != nil {
		return r.errorf(KindConfig, nil, "connection provider already set")
	}
	r.provider = provider

	return nil
}

func (r *Runtime) connectionProvider() (ConnectionProvider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.provider == nil {
		return nil, r.errorf(KindConfig, nil, "connection provider has not been set")
	}

	return r.provider, nil
}
