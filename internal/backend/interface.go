// Package backend builds the document store and attachment store selected by
// configuration.
package backend

import (
	"context"
	"net/http"

	"saldo/internal/blob"
	"saldo/internal/docstore"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// StoreResult contains the document store and optional cleanup function
type StoreResult struct {
	Store   docstore.Store
	Cleanup CleanupFunc
}

// BlobResult contains the attachment store. Handler is set when the process
// itself must serve the blobs (the in-memory backend).
type BlobResult struct {
	Store   blob.Store
	Handler http.Handler
}

// Factory creates backends based on configuration
type Factory interface {
	CreateStore(ctx context.Context, config Config) (*StoreResult, error)
	CreateBlobs(ctx context.Context, config Config) (*BlobResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type     BackendType
	BlobType BlobType
	AppID    string

	// SQLite specific
	SQLiteDBPath string

	// DynamoDB specific
	DynamoDBTable    string
	DynamoDBEndpoint string
	AWSRegion        string

	// Memory backend specific; seed.json is read from here when present
	DataDirectory string

	// Attachments
	GCSBucket         string
	GCSPublicBaseURL  string
	GoogleCredentials []byte
	// PublicBaseURL prefixes in-memory blob URLs
	PublicBaseURL string
}

// BackendType represents the type of document store
type BackendType string

const (
	SQLiteBackend   BackendType = "sqlite"
	DynamoDBBackend BackendType = "dynamodb"
	MemoryBackend   BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, DynamoDBBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

// BlobType selects the attachment store.
type BlobType string

const (
	MemoryBlobs BlobType = "memory"
	GCSBlobs    BlobType = "gcs"
)

func (bt BlobType) IsValid() bool {
	return bt == MemoryBlobs || bt == GCSBlobs
}
