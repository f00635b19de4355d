// Package worker holds the AMQP change handlers: the spreadsheet mirror run
// by the worker process and the cache relay run by every server.
package worker

import (
	"context"
	"fmt"
	"time"

	"saldo/internal/amqp"
	"saldo/internal/core"
	"saldo/internal/log"
	"saldo/internal/sheets"
)

// Source is the read side of the record store adapter.
type Source interface {
	Snapshot(ctx context.Context, scope string) (core.Ledger, error)
	Invalidate(scope, collection string)
}

// MirrorWorker rewrites a user's spreadsheet tabs whenever one of their
// collections changes.
type MirrorWorker struct {
	source  Source
	mirror  sheets.Mirror
	timeout time.Duration
	logger  *log.Logger
}

const defaultMirrorTimeout = 30 * time.Second

func NewMirrorWorker(source Source, mirror sheets.Mirror, timeout time.Duration, logger *log.Logger) *MirrorWorker {
	if timeout <= 0 {
		timeout = defaultMirrorTimeout
	}
	if logger == nil {
		logger = log.Default(log.ComponentWorker)
	}
	return &MirrorWorker{
		source:  source,
		mirror:  mirror,
		timeout: timeout,
		logger:  logger.WithComponent(log.ComponentWorker),
	}
}

// HandleChange processes a single change message. The message carries no
// record data, so the full ledger is re-read. A returned error requeues it.
func (w *MirrorWorker) HandleChange(ctx context.Context, msg *amqp.ChangeMessage) error {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	w.logger.InfoContext(ctx, "Processing change message",
		log.FieldScope, msg.Scope,
		log.FieldCollection, msg.Collection,
		log.FieldOperation, msg.Op,
		log.FieldRecordID, msg.ID)

	w.source.Invalidate(msg.Scope, msg.Collection)
	l, err := w.source.Snapshot(ctx, msg.Scope)
	if err != nil {
		return fmt.Errorf("load ledger: %w", err)
	}
	start := time.Now()
	if err := w.mirror.Mirror(ctx, msg.Scope, l); err != nil {
		w.logger.ErrorContext(ctx, "Failed to mirror ledger",
			log.NewFields().WithOperation(log.OpMirror).WithErrorType(log.ErrorTypeNetwork).
				WithError(err).WithRecord(msg.Scope, msg.Collection, msg.ID).ToSlice()...)
		return fmt.Errorf("mirror ledger: %w", err)
	}

	w.logger.InfoContext(ctx, "Successfully mirrored ledger",
		log.FieldScope, msg.Scope,
		"debts", len(l.Debts),
		"incomes", len(l.Incomes),
		log.FieldDuration, time.Since(start).Milliseconds())
	return nil
}

// Resync mirrors the given scopes once, e.g. at startup to recover from
// messages missed while the worker was down. Failures are logged and counted.
func (w *MirrorWorker) Resync(ctx context.Context, scopes []string) (synced, failed int) {
	for _, scope := range scopes {
		if ctx.Err() != nil {
			break
		}
		msg := amqp.NewChangeMessage(scope, "all", "resync", "")
		if err := w.HandleChange(ctx, msg); err != nil {
			w.logger.ErrorContext(ctx, "Startup resync failed",
				log.NewFields().WithError(err).WithRecord(scope, "", "").ToSlice()...)
			failed++
			continue
		}
		synced++
	}
	w.logger.InfoContext(ctx, "Startup resync completed",
		"total", len(scopes), "synced", synced, "errors", failed)
	return synced, failed
}
