package backend

import (
	"context"
	"fmt"

	"budget/internal/amqp"
	"budget/internal/log"
	"budget/internal/services"
	"budget/internal/storage"
	"budget/internal/storage/memory"
	"budget/internal/storage/rest"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		store Store
		err   error
	)
	switch config.Type {
	case SQLiteBackend:
		store, err = f.createSQLiteStore(config)
	case RESTBackend:
		store, err = f.createRESTStore(ctx, config)
	case MemoryBackend:
		store = f.createMemoryStore(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	amqpClient := f.createAMQPClient(config)

	// A nil *amqp.Client must not become a non-nil interface.
	var publisher services.EventPublisher
	if amqpClient != nil {
		publisher = amqpClient
	}
	svc := services.NewItemService(store, publisher)

	return &BackendResult{
		Service: svc,
		Store:   store,
		AMQP:    amqpClient,
		Cleanup: svc.Close,
	}, nil
}

func (f *DefaultFactory) createSQLiteStore(config Config) (Store, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}
	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	return repo, nil
}

func (f *DefaultFactory) createRESTStore(ctx context.Context, config Config) (Store, error) {
	store, err := rest.New(config.RESTURL, config.RESTAPIKey, config.RESTTable)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize REST store: %w", err)
	}
	// Unreachable at startup is not fatal; the list view shows the error
	// and offers a reload.
	if err := store.Ping(ctx); err != nil {
		f.logger.Warn("REST store not reachable at startup", log.FieldError, err)
	}
	f.logger.Info("Initialized REST backend", "url", config.RESTURL, "table", config.RESTTable)
	return store, nil
}

func (f *DefaultFactory) createMemoryStore(config Config) Store {
	dataDir := config.DataDirectory
	if dataDir == "" {
		dataDir = "data"
	}
	store := memory.NewFromFiles(dataDir)
	f.logger.Info("Initialized memory backend", "data_directory", dataDir)
	return store
}

func (f *DefaultFactory) createAMQPClient(config Config) *amqp.Client {
	if config.AMQPURL == "" {
		return nil
	}
	client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue, f.logger)
	if err != nil {
		f.logger.Warn("Failed to initialize AMQP client, continuing without change events", log.FieldError, err)
		return nil
	}
	f.logger.Info("Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)
	return client
}
