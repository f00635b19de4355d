package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"saldo/internal/core"
	"saldo/internal/docstore"
	"saldo/internal/log"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	appID   string
	logger  *log.Logger
}

var (
	_ docstore.Store  = (*SQLiteRepository)(nil)
	_ docstore.Pinger = (*SQLiteRepository)(nil)
)

// NewSQLiteRepository opens dbPath and migrates it. A nil logger falls back
// to the default one; either way records are logged as component storage.
func NewSQLiteRepository(dbPath, appID string, logger *log.Logger) (*SQLiteRepository, error) {
	if logger == nil {
		logger = log.Default(log.ComponentStorage)
	}
	logger = logger.WithComponent(log.ComponentStorage)

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// single writer avoids SQLITE_BUSY under concurrent handlers
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if _, err := RunMigrations(dbPath, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		appID:   appID,
		logger:  logger,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Create implements docstore.Writer
func (r *SQLiteRepository) Create(ctx context.Context, scope string, kind core.Kind, doc docstore.Document) (string, error) {
	if err := kind.Validate(); err != nil {
		return "", err
	}
	id := docstore.NewID()
	err := r.queries.CreateRecord(ctx, Record{
		ID:          id,
		AppID:       r.appID,
		Scope:       scope,
		Kind:        kind.String(),
		Name:        doc.Name,
		AmountCents: doc.Amount.Cents,
		OccurredAt:  doc.Date.Format(),
		Paid:        kind == core.KindDebt && doc.Paid,
		ImageURL:    doc.Attachment.URL,
		ImagePath:   doc.Attachment.Path,
	})
	if err != nil {
		return "", fmt.Errorf("create record: %w", err)
	}

	r.logger.InfoContext(ctx, "Record saved to SQLite",
		log.NewFields().WithOperation(log.OpCreate).WithRecord(scope, kind.String(), id).ToSlice()...)

	return id, nil
}

// SetPaid implements docstore.Writer
func (r *SQLiteRepository) SetPaid(ctx context.Context, scope, id string, paid bool) error {
	n, err := r.queries.SetRecordPaid(ctx, paid, r.appID, scope, id)
	if err != nil {
		return fmt.Errorf("set debt paid: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// Delete implements docstore.Writer
func (r *SQLiteRepository) Delete(ctx context.Context, scope string, kind core.Kind, id string) error {
	n, err := r.queries.DeleteRecord(ctx, r.appID, scope, kind.String(), id)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// Get implements docstore.Reader
func (r *SQLiteRepository) Get(ctx context.Context, scope string, kind core.Kind, id string) (docstore.Document, error) {
	rec, err := r.queries.GetRecord(ctx, r.appID, scope, kind.String(), id)
	if errors.Is(err, sql.ErrNoRows) {
		return docstore.Document{}, core.ErrNotFound
	}
	if err != nil {
		return docstore.Document{}, fmt.Errorf("get record: %w", err)
	}
	return toDocument(rec), nil
}

// List implements docstore.Reader
func (r *SQLiteRepository) List(ctx context.Context, scope string, kind core.Kind) ([]docstore.Document, error) {
	recs, err := r.queries.ListRecords(ctx, r.appID, scope, kind.String())
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	docs := make([]docstore.Document, len(recs))
	for i, rec := range recs {
		docs[i] = toDocument(rec)
	}
	return docs, nil
}

// GetGoal implements docstore.Reader
func (r *SQLiteRepository) GetGoal(ctx context.Context, scope string) (core.Goal, bool, error) {
	cents, err := r.queries.GetGoal(ctx, r.appID, scope)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Goal{}, false, nil
	}
	if err != nil {
		return core.Goal{}, false, fmt.Errorf("get goal: %w", err)
	}
	return core.Goal{Amount: core.Money{Cents: cents}}, true, nil
}

// PutGoal implements docstore.Writer
func (r *SQLiteRepository) PutGoal(ctx context.Context, scope string, goal core.Goal) error {
	if err := goal.Validate(); err != nil {
		return err
	}
	if err := r.queries.UpsertGoal(ctx, r.appID, scope, goal.Amount.Cents); err != nil {
		return fmt.Errorf("upsert goal: %w", err)
	}
	return nil
}

func toDocument(rec Record) docstore.Document {
	doc := docstore.Document{
		ID:     rec.ID,
		Name:   rec.Name,
		Amount: core.Money{Cents: rec.AmountCents},
		Date:   core.LenientDate(rec.OccurredAt),
		Paid:   rec.Paid,
	}
	if rec.ImageURL != "" && rec.ImagePath != "" {
		doc.Attachment = core.Attachment{URL: rec.ImageURL, Path: rec.ImagePath}
	}
	return doc
}
