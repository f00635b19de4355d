// Package records is the application-facing store for debts, incomes and the
// income goal. It validates writes, keeps attachments in step with their
// records and turns every committed change into fresh snapshots for
// subscribers, local and remote.
package records

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"saldo/internal/attachments"
	"saldo/internal/cache"
	"saldo/internal/core"
	"saldo/internal/docstore"
	"saldo/internal/feed"
	"saldo/internal/log"
)

var ErrNoScope = fmt.Errorf("%w: missing user scope", core.ErrValidation)

// Change operations reported to the Publisher.
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
	OpSet    = "set"
)

// Publisher announces committed changes to other processes.
type Publisher interface {
	PublishChange(ctx context.Context, scope, collection, op, id string) error
}

// Files stores and removes record attachments.
type Files interface {
	Upload(ctx context.Context, scope string, f attachments.File) (core.Attachment, error)
	Remove(ctx context.Context, path string)
}

// Created describes a stored record. UploadErr is set when the attachment
// could not be stored; the record itself was still saved.
type Created struct {
	Kind      core.Kind
	Document  docstore.Document
	UploadErr error
}

type Adapter struct {
	store       docstore.Store
	files       Files
	broker      *feed.Broker
	publisher   Publisher
	cache       *cache.LRUCache[core.Ledger]
	defaultGoal core.Goal
	logger      *log.Logger
	now         func() time.Time
}

type Option func(*Adapter)

func WithPublisher(p Publisher) Option { return func(a *Adapter) { a.publisher = p } }

// WithCache memoizes Snapshot per scope; entries drop on every change.
func WithCache(c *cache.LRUCache[core.Ledger]) Option { return func(a *Adapter) { a.cache = c } }

func WithDefaultGoal(g core.Goal) Option {
	return func(a *Adapter) {
		if g.Validate() == nil {
			a.defaultGoal = g
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(a *Adapter) { a.logger = l.WithComponent(log.ComponentRecords) }
}

func WithClock(now func() time.Time) Option { return func(a *Adapter) { a.now = now } }

func New(store docstore.Store, files Files, broker *feed.Broker, opts ...Option) *Adapter {
	a := &Adapter{
		store:       store,
		files:       files,
		broker:      broker,
		defaultGoal: core.DefaultGoal(),
		logger:      log.Default(log.ComponentRecords),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.broker == nil {
		a.broker = feed.NewBroker()
	}
	return a
}

// Broker exposes the change feed so remote notifications can be relayed in.
func (a *Adapter) Broker() *feed.Broker { return a.broker }

func (a *Adapter) SubscribeDebts(ctx context.Context, scope string) (*Subscription[[]core.Debt], error) {
	return subscribe(ctx, a.broker, feed.DebtsTopic(scope), func(ctx context.Context) ([]core.Debt, error) {
		return a.debts(ctx, scope)
	})
}

func (a *Adapter) SubscribeIncomes(ctx context.Context, scope string) (*Subscription[[]core.Income], error) {
	return subscribe(ctx, a.broker, feed.IncomesTopic(scope), func(ctx context.Context) ([]core.Income, error) {
		return a.incomes(ctx, scope)
	})
}

// SubscribeGoal streams the stored goal, or the default when none is set.
func (a *Adapter) SubscribeGoal(ctx context.Context, scope string) (*Subscription[core.Goal], error) {
	return subscribe(ctx, a.broker, feed.GoalTopic(scope), func(ctx context.Context) (core.Goal, error) {
		return a.Goal(ctx, scope)
	})
}

// Create stores a new debt or income. A zero draft date means now; debts
// always start unpaid. When file is non-nil it is uploaded first, and an
// upload failure leaves the record without an attachment.
func (a *Adapter) Create(ctx context.Context, scope string, kind core.Kind, draft core.Draft, file *attachments.File) (Created, error) {
	if scope == "" {
		return Created{}, ErrNoScope
	}
	if err := kind.Validate(); err != nil {
		return Created{}, err
	}
	draft.Name = strings.TrimSpace(draft.Name)
	if err := draft.Validate(); err != nil {
		return Created{}, err
	}
	if draft.Date.IsZero() {
		draft.Date = core.Date{Time: a.now().UTC()}
	}

	out := Created{Kind: kind}
	doc := docstore.Document{Name: draft.Name, Amount: draft.Amount, Date: draft.Date}
	if file != nil && a.files != nil {
		att, err := a.files.Upload(ctx, scope, *file)
		if err != nil {
			out.UploadErr = err
		} else {
			doc.Attachment = att
		}
	}

	id, err := a.store.Create(ctx, scope, kind, doc)
	if err != nil {
		if !doc.Attachment.IsZero() {
			a.files.Remove(ctx, doc.Attachment.Path)
		}
		return Created{}, a.fail(ctx, log.OpCreate, scope, kind.String(), "", err)
	}
	doc.ID = id
	out.Document = doc

	a.logger.InfoContext(ctx, "Record created",
		log.NewFields().WithOperation(log.OpCreate).WithRecord(scope, kind.String(), id).ToSlice()...)
	a.changed(ctx, scope, kind.String(), OpCreate, id)
	return out, nil
}

// UpdateDebtStatus sets the paid flag of one debt.
func (a *Adapter) UpdateDebtStatus(ctx context.Context, scope, id string, paid bool) error {
	if scope == "" {
		return ErrNoScope
	}
	if err := a.store.SetPaid(ctx, scope, id, paid); err != nil {
		return a.fail(ctx, log.OpUpdate, scope, core.KindDebt.String(), id, err)
	}
	a.logger.InfoContext(ctx, "Debt status updated",
		log.NewFields().WithOperation(log.OpUpdate).WithRecord(scope, core.KindDebt.String(), id).ToSlice()...)
	a.changed(ctx, scope, core.KindDebt.String(), OpUpdate, id)
	return nil
}

// Delete removes a record and, best effort, its attachment.
func (a *Adapter) Delete(ctx context.Context, scope string, kind core.Kind, id string) error {
	if scope == "" {
		return ErrNoScope
	}
	if err := kind.Validate(); err != nil {
		return err
	}
	doc, err := a.store.Get(ctx, scope, kind, id)
	if err != nil {
		return a.fail(ctx, log.OpRead, scope, kind.String(), id, err)
	}
	if doc.Attachment.Path != "" && a.files != nil {
		a.files.Remove(ctx, doc.Attachment.Path)
	}
	if err := a.store.Delete(ctx, scope, kind, id); err != nil {
		return a.fail(ctx, log.OpDelete, scope, kind.String(), id, err)
	}
	a.logger.InfoContext(ctx, "Record deleted",
		log.NewFields().WithOperation(log.OpDelete).WithRecord(scope, kind.String(), id).ToSlice()...)
	a.changed(ctx, scope, kind.String(), OpDelete, id)
	return nil
}

// SetGoal overwrites the monthly income goal.
func (a *Adapter) SetGoal(ctx context.Context, scope string, goal core.Goal) error {
	if scope == "" {
		return ErrNoScope
	}
	if err := goal.Validate(); err != nil {
		return err
	}
	if err := a.store.PutGoal(ctx, scope, goal); err != nil {
		return a.fail(ctx, log.OpUpdate, scope, feed.CollectionGoal, "", err)
	}
	a.logger.InfoContext(ctx, "Income goal set", log.FieldScope, scope, log.FieldAmount, goal.Amount.String())
	a.changed(ctx, scope, feed.CollectionGoal, OpSet, "")
	return nil
}

// Goal returns the stored goal, or the default when none is stored.
func (a *Adapter) Goal(ctx context.Context, scope string) (core.Goal, error) {
	if scope == "" {
		return core.Goal{}, ErrNoScope
	}
	g, ok, err := a.store.GetGoal(ctx, scope)
	if err != nil {
		return core.Goal{}, core.Persistence("read goal", err)
	}
	if !ok || g.Validate() != nil {
		return a.defaultGoal, nil
	}
	return g, nil
}

// Snapshot loads all three collections concurrently.
func (a *Adapter) Snapshot(ctx context.Context, scope string) (core.Ledger, error) {
	if scope == "" {
		return core.Ledger{}, ErrNoScope
	}
	var gen uint64
	if a.cache != nil {
		if l, ok := a.cache.Get(scope); ok {
			return l.Clone(), nil
		}
		gen = a.cache.Generation(scope)
	}

	var l core.Ledger
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		l.Debts, err = a.debts(gctx, scope)
		return err
	})
	g.Go(func() (err error) {
		l.Incomes, err = a.incomes(gctx, scope)
		return err
	})
	g.Go(func() (err error) {
		l.Goal, err = a.Goal(gctx, scope)
		return err
	})
	if err := g.Wait(); err != nil {
		return core.Ledger{}, core.Persistence("snapshot", err)
	}

	if a.cache != nil {
		a.cache.SetIfCurrent(scope, l.Clone(), gen)
	}
	return l, nil
}

// Invalidate reacts to a change committed elsewhere, e.g. by another process.
func (a *Adapter) Invalidate(scope, collection string) {
	if a.cache != nil {
		a.cache.Delete(scope)
	}
	a.broker.Notify(feed.Topic{Scope: scope, Collection: collection})
}

func (a *Adapter) debts(ctx context.Context, scope string) ([]core.Debt, error) {
	docs, err := a.store.List(ctx, scope, core.KindDebt)
	if err != nil {
		return nil, err
	}
	out := make([]core.Debt, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.Debt())
	}
	return out, nil
}

func (a *Adapter) incomes(ctx context.Context, scope string) ([]core.Income, error) {
	docs, err := a.store.List(ctx, scope, core.KindIncome)
	if err != nil {
		return nil, err
	}
	out := make([]core.Income, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.Income())
	}
	return out, nil
}

func (a *Adapter) changed(ctx context.Context, scope, collection, op, id string) {
	a.Invalidate(scope, collection)
	if a.publisher == nil {
		return
	}
	if err := a.publisher.PublishChange(ctx, scope, collection, op, id); err != nil {
		a.logger.WarnContext(ctx, "Change notification not published",
			log.NewFields().WithOperation(log.OpPublish).WithErrorType(log.ErrorTypeNetwork).
				WithError(err).WithRecord(scope, collection, id).ToSlice()...)
	}
}

func (a *Adapter) fail(ctx context.Context, op, scope, collection, id string, err error) error {
	err = core.Persistence(op, err)
	errType := log.ErrorTypeDatabase
	switch {
	case errors.Is(err, core.ErrNotFound):
		errType = log.ErrorTypeNotFound
	case errors.Is(err, core.ErrValidation):
		errType = log.ErrorTypeValidation
	}
	level := a.logger.ErrorContext
	if errType != log.ErrorTypeDatabase {
		level = a.logger.WarnContext
	}
	level(ctx, "Record operation failed",
		log.NewFields().WithOperation(op).WithErrorType(errType).WithError(err).WithRecord(scope, collection, id).ToSlice()...)
	return err
}
