package backend

import (
	"context"
	"fmt"
	"strings"

	"saldo/internal/blob/gcs"
	blobmem "saldo/internal/blob/memory"
	"saldo/internal/docstore/dynamo"
	docmem "saldo/internal/docstore/memory"
	"saldo/internal/log"
	"saldo/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Default(log.ComponentBackend)
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentBackend)}
}

// CreateStore implements Factory.CreateStore
func (f *DefaultFactory) CreateStore(ctx context.Context, config Config) (*StoreResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteStore(config)
	case DynamoDBBackend:
		return f.createDynamoStore(ctx, config)
	case MemoryBackend:
		return f.createMemoryStore(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteStore(config Config) (*StoreResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath, config.AppID, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}
	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	return &StoreResult{Store: repo, Cleanup: repo.Close}, nil
}

func (f *DefaultFactory) createDynamoStore(ctx context.Context, config Config) (*StoreResult, error) {
	client, err := dynamo.NewClient(ctx, config.AWSRegion, config.DynamoDBEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize DynamoDB client: %w", err)
	}
	store := dynamo.New(client, config.DynamoDBTable, config.AppID)
	f.logger.Info("Initialized DynamoDB backend",
		"table", config.DynamoDBTable,
		"region", config.AWSRegion,
		"custom_endpoint", config.DynamoDBEndpoint != "")
	return &StoreResult{Store: store, Cleanup: store.Close}, nil
}

func (f *DefaultFactory) createMemoryStore(config Config) (*StoreResult, error) {
	if config.DataDirectory == "" {
		f.logger.Info("Initialized memory backend")
		return &StoreResult{Store: docmem.New()}, nil
	}
	store, err := docmem.NewFromFiles(config.DataDirectory)
	if err != nil {
		return nil, fmt.Errorf("failed to load memory backend seed: %w", err)
	}
	f.logger.Info("Initialized memory backend", "data_directory", config.DataDirectory)
	return &StoreResult{Store: store}, nil
}

// CreateBlobs implements Factory.CreateBlobs
func (f *DefaultFactory) CreateBlobs(ctx context.Context, config Config) (*BlobResult, error) {
	switch config.BlobType {
	case GCSBlobs:
		store, err := gcs.New(ctx, config.GCSBucket, config.GoogleCredentials, config.GCSPublicBaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize GCS blob store: %w", err)
		}
		f.logger.Info("Initialized GCS blob store", "bucket", config.GCSBucket)
		return &BlobResult{Store: store}, nil
	case MemoryBlobs:
		base := strings.TrimRight(config.PublicBaseURL, "/") + "/blobs"
		store := blobmem.New(base)
		f.logger.Info("Initialized memory blob store", "base_url", base)
		return &BlobResult{Store: store, Handler: store}, nil
	default:
		return nil, fmt.Errorf("unsupported blob backend: %s", config.BlobType)
	}
}
