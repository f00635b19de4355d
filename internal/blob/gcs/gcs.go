// Package gcs stores attachments in a Google Cloud Storage bucket.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
	gstorage "google.golang.org/api/storage/v1"

	"saldo/internal/blob"
	"saldo/internal/core"
)

const defaultPublicBase = "https://storage.googleapis.com"

type Store struct {
	svc        *gstorage.Service
	bucket     string
	publicBase string
}

var _ blob.Store = (*Store)(nil)

// New creates a bucket client from service account credentials. An empty
// publicBase uses the storage.googleapis.com host.
func New(ctx context.Context, bucket string, credentialsJSON []byte, publicBase string) (*Store, error) {
	if strings.TrimSpace(bucket) == "" {
		return nil, errors.New("missing GCS bucket")
	}
	opts := []goption.ClientOption{goption.WithScopes(gstorage.DevstorageReadWriteScope)}
	if len(credentialsJSON) > 0 {
		opts = append(opts, goption.WithCredentialsJSON(credentialsJSON))
	}
	svc, err := gstorage.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage service: %w", err)
	}
	return NewWithService(svc, bucket, publicBase), nil
}

// NewWithService wraps an existing service, e.g. one pointed at a test endpoint.
func NewWithService(svc *gstorage.Service, bucket, publicBase string) *Store {
	if publicBase == "" {
		publicBase = defaultPublicBase
	}
	return &Store{svc: svc, bucket: bucket, publicBase: strings.TrimRight(publicBase, "/")}
}

func (s *Store) Put(ctx context.Context, path, contentType string, r io.Reader) error {
	obj := &gstorage.Object{Name: path, ContentType: contentType}
	if _, err := s.svc.Objects.Insert(s.bucket, obj).Media(r).Context(ctx).Do(); err != nil {
		return fmt.Errorf("insert object: %w", err)
	}
	return nil
}

func (s *Store) URL(_ context.Context, path string) (string, error) {
	return s.publicBase + "/" + url.PathEscape(s.bucket) + "/" + escapePath(path), nil
}

func (s *Store) Delete(ctx context.Context, path string) error {
	err := s.svc.Objects.Delete(s.bucket, path).Context(ctx).Do()
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
		return core.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
