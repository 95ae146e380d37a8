package backend

import (
	"context"

	"budget/internal/amqp"
	"budget/internal/ports"
	"budget/internal/services"
)

// Store is what every backend provides: the record store plus the html
// render-cache column written by the worker.
type Store interface {
	ports.RecordStore
	ports.HTMLWriter
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the wired service and the pieces the worker needs
type BackendResult struct {
	Service *services.ItemService
	Store   Store
	// AMQP is nil when AMQP_URL is empty or the broker was unreachable.
	AMQP    *amqp.Client
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Memory backend specific
	DataDirectory string

	// REST specific
	RESTURL    string
	RESTAPIKey string
	RESTTable  string

	// Change events, optional for every backend
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
	RESTBackend   BackendType = "rest"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend, RESTBackend:
		return true
	default:
		return false
	}
}
