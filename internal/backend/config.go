package backend

import (
	"fmt"

	"saldo/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}
	blobType := BlobType(appConfig.BlobBackend)
	if !blobType.IsValid() {
		return Config{}, fmt.Errorf("invalid blob backend in config: %s", appConfig.BlobBackend)
	}

	creds, err := appConfig.GoogleCredentials()
	if err != nil {
		return Config{}, err
	}

	return Config{
		Type:     backendType,
		BlobType: blobType,
		AppID:    appConfig.AppID,

		SQLiteDBPath: appConfig.SQLiteDBPath,

		DynamoDBTable:    appConfig.DynamoDBTable,
		DynamoDBEndpoint: appConfig.DynamoDBEndpoint,
		AWSRegion:        appConfig.AWSRegion,

		DataDirectory: appConfig.DataDir,

		GCSBucket:         appConfig.GCSBucket,
		GCSPublicBaseURL:  appConfig.GCSPublicBaseURL,
		GoogleCredentials: creds,
		PublicBaseURL:     appConfig.PublicBaseURL,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}
	if c.AppID == "" {
		return fmt.Errorf("app id is required")
	}

	switch c.Type {
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}
	case DynamoDBBackend:
		if c.DynamoDBTable == "" {
			return fmt.Errorf("DynamoDB table is required for dynamodb backend")
		}
		if c.AWSRegion == "" {
			return fmt.Errorf("AWS region is required for dynamodb backend")
		}
	case MemoryBackend:
		// DataDirectory is optional; without it the store starts empty
	}

	switch c.BlobType {
	case GCSBlobs:
		if c.GCSBucket == "" {
			return fmt.Errorf("GCS bucket is required for gcs blob backend")
		}
	case MemoryBlobs:
	default:
		return fmt.Errorf("invalid blob backend: %s", c.BlobType)
	}
	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{SQLiteBackend, DynamoDBBackend, MemoryBackend}
}

// GetBackendTypeStrings returns all valid backend type strings
func GetBackendTypeStrings() []string {
	types := GetBackendTypes()
	strings := make([]string, len(types))
	for i, t := range types {
		strings[i] = t.String()
	}
	return strings
}
