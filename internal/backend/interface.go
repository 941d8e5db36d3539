// Package backend opens the configured storage driver and the optional
// event bus for the binaries.
package backend

import (
	"context"

	"billtracker/internal/amqp"
	"billtracker/internal/services"
	"billtracker/internal/storage"
)

// CleanupFunc releases the resources of a Result.
type CleanupFunc func() error

// Result holds the opened store and, when AMQP is configured and
// reachable, the event client.
type Result struct {
	Store   *storage.SQLStore
	Events  *amqp.Client
	Cleanup CleanupFunc
}

// Publisher returns the event client as a publisher, or nil when events
// are disabled.
func (r *Result) Publisher() services.EventPublisher {
	if r.Events == nil {
		return nil
	}
	return r.Events
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for backend creation
type Config struct {
	Driver     DriverType
	DataSource string

	// AMQP is optional; an empty URL disables events.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
	// RequireAMQP turns an unreachable broker into an error instead of a
	// warning.
	RequireAMQP bool
}

// DriverType names a storage driver.
type DriverType string

const (
	SQLiteDriver   DriverType = storage.DriverSQLite
	PostgresDriver DriverType = storage.DriverPostgres
)

func (dt DriverType) String() string {
	return string(dt)
}

func (dt DriverType) IsValid() bool {
	switch dt {
	case SQLiteDriver, PostgresDriver:
		return true
	default:
		return false
	}
}
