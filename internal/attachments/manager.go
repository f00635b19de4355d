// Package attachments stores receipt images for records in a blob store.
package attachments

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"
	"unicode"

	"saldo/internal/blob"
	"saldo/internal/core"
	"saldo/internal/log"
)

const DefaultMaxBytes int64 = 5 << 20

var (
	errTooLarge        = errors.New("attachment exceeds size limit")
	errUnsupportedType = errors.New("attachment must be an image")
	errEmpty           = errors.New("attachment is empty")
)

// File is an upload as received from the client.
type File struct {
	Name        string
	ContentType string
	Body        io.Reader
}

type Manager struct {
	store    blob.Store
	appID    string
	maxBytes int64
	logger   *log.Logger
	now      func() time.Time
}

type Option func(*Manager)

func WithMaxBytes(n int64) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxBytes = n
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(m *Manager) { m.logger = l.WithComponent(log.ComponentAttachments) }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func NewManager(store blob.Store, appID string, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		appID:    appID,
		maxBytes: DefaultMaxBytes,
		logger:   log.Default(log.ComponentAttachments),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Path builds artifacts/{app}/users/{scope}/{unixMillis}-{filename}.
func (m *Manager) Path(scope, filename string) string {
	return path.Join("artifacts", m.appID, "users", scope,
		fmt.Sprintf("%d-%s", m.now().UnixMilli(), sanitizeFilename(filename)))
}

// Upload stores the file under the user's scope and returns its URL and path.
// Every failure is a *core.UploadError.
func (m *Manager) Upload(ctx context.Context, scope string, f File) (core.Attachment, error) {
	p := m.Path(scope, f.Name)
	fail := func(err error) (core.Attachment, error) {
		m.logger.WarnContext(ctx, "Attachment upload failed",
			log.NewFields().WithOperation(log.OpUpload).WithErrorType(log.ErrorTypeUpload).
				WithError(err).WithRecord(scope, "", "").ToSlice()...)
		return core.Attachment{}, &core.UploadError{Path: p, Err: err}
	}

	if f.Body == nil {
		return fail(errEmpty)
	}
	data, err := io.ReadAll(io.LimitReader(f.Body, m.maxBytes+1))
	if err != nil {
		return fail(fmt.Errorf("read upload: %w", err))
	}
	if len(data) == 0 {
		return fail(errEmpty)
	}
	if int64(len(data)) > m.maxBytes {
		return fail(errTooLarge)
	}
	contentType := contentTypeOf(f.ContentType, data)
	if !strings.HasPrefix(contentType, "image/") {
		return fail(errUnsupportedType)
	}

	if err := m.store.Put(ctx, p, contentType, bytes.NewReader(data)); err != nil {
		return fail(err)
	}
	url, err := m.store.URL(ctx, p)
	if err != nil {
		m.Remove(ctx, p)
		return fail(fmt.Errorf("resolve url: %w", err))
	}

	m.logger.InfoContext(ctx, "Attachment uploaded",
		log.FieldScope, scope, log.FieldBlobPath, p, "bytes", len(data))
	return core.Attachment{URL: url, Path: p}, nil
}

// Remove deletes a blob. Failures are logged and never returned; an already
// missing blob is not a failure.
func (m *Manager) Remove(ctx context.Context, p string) {
	if p == "" {
		return
	}
	err := m.store.Delete(ctx, p)
	switch {
	case err == nil:
		m.logger.DebugContext(ctx, "Attachment removed", log.FieldBlobPath, p)
	case errors.Is(err, core.ErrNotFound):
		m.logger.WarnContext(ctx, "Attachment already gone", log.FieldBlobPath, p)
	default:
		m.logger.ErrorContext(ctx, "Attachment removal failed",
			log.NewFields().WithOperation(log.OpDelete).WithErrorType(log.ErrorTypeNetwork).
				WithError(err).ToSlice()...)
	}
}

func contentTypeOf(declared string, data []byte) string {
	declared = strings.ToLower(strings.TrimSpace(declared))
	if i := strings.IndexByte(declared, ';'); i >= 0 {
		declared = strings.TrimSpace(declared[:i])
	}
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	return http.DetectContentType(data)
}

// sanitizeFilename keeps the base name and replaces anything outside
// letters, digits, dot, dash and underscore.
func sanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.TrimLeft(b.String(), ".")
	if out == "" {
		return "upload"
	}
	const maxLen = 100
	if len(out) > maxLen {
		out = out[len(out)-maxLen:]
	}
	return out
}
