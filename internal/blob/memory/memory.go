// Package memory keeps blobs in process and serves them over HTTP.
package memory

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"sync"

	"saldo/internal/blob"
	"saldo/internal/core"
)

type object struct {
	data        []byte
	contentType string
}

type Store struct {
	mu      sync.RWMutex
	baseURL string
	objects map[string]object
}

var _ blob.Store = (*Store)(nil)

// New returns a store whose URLs are baseURL + "/" + path. Mount the store
// under the same prefix to serve them.
func New(baseURL string) *Store {
	return &Store{baseURL: strings.TrimRight(baseURL, "/"), objects: map[string]object{}}
}

func (s *Store) Put(ctx context.Context, path, contentType string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[path] = object{data: data, contentType: contentType}
	return nil
}

func (s *Store) URL(_ context.Context, path string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.objects[path]; !ok {
		return "", core.ErrNotFound
	}
	return s.baseURL + "/" + path, nil
}

func (s *Store) Delete(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[path]; !ok {
		return core.ErrNotFound
	}
	delete(s.objects, path)
	return nil
}

// Len reports how many blobs are stored.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

// ServeHTTP serves a blob by the request path relative to the mount point.
func (s *Store) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/")
	s.mu.RLock()
	obj, ok := s.objects[path]
	s.mu.RUnlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	if obj.contentType != "" {
		w.Header().Set("Content-Type", obj.contentType)
	}
	w.Header().Set("Cache-Control", "private, max-age=3600")
	_, _ = io.Copy(w, bytes.NewReader(obj.data))
}
