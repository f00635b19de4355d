// Package session keeps one user's dashboard live: it holds the explicit
// view state, follows the debt, income and goal subscriptions and emits a
// recomputed dashboard whenever either side changes.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"saldo/internal/core"
	"saldo/internal/log"
	"saldo/internal/records"
	"saldo/internal/view"
)

var ErrStreamClosed = errors.New("snapshot stream closed")

// Source is the subscription side of the record store.
type Source interface {
	SubscribeDebts(ctx context.Context, scope string) (*records.Subscription[[]core.Debt], error)
	SubscribeIncomes(ctx context.Context, scope string) (*records.Subscription[[]core.Income], error)
	SubscribeGoal(ctx context.Context, scope string) (*records.Subscription[core.Goal], error)
}

const (
	haveDebts = 1 << iota
	haveIncomes
	haveGoal
	haveAll = haveDebts | haveIncomes | haveGoal
)

type Session struct {
	src    Source
	scope  string
	emit   func(view.Dashboard)
	logger *log.Logger
	now    func() time.Time

	mu     sync.Mutex
	state  view.State
	ledger core.Ledger
	have   int
	last   *view.Dashboard

	// emitMu serializes callbacks so dashboards arrive in commit order.
	emitMu sync.Mutex
}

type Option func(*Session)

func WithLogger(l *log.Logger) Option {
	return func(s *Session) { s.logger = l.WithComponent(log.ComponentSession) }
}

func WithClock(now func() time.Time) Option { return func(s *Session) { s.now = now } }

// New prepares a session. emit runs on the session's goroutines and must not
// call back into the session.
func New(src Source, scope string, state view.State, emit func(view.Dashboard), opts ...Option) *Session {
	s := &Session{
		src:    src,
		scope:  scope,
		state:  state,
		emit:   emit,
		logger: log.Default(log.ComponentSession),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run follows the three subscriptions until ctx ends or one of them fails.
// Every subscription acquired is released before Run returns.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	debts, err := s.src.SubscribeDebts(ctx, s.scope)
	if err != nil {
		return err
	}
	defer debts.Close()
	incomes, err := s.src.SubscribeIncomes(ctx, s.scope)
	if err != nil {
		return err
	}
	defer incomes.Close()
	goal, err := s.src.SubscribeGoal(ctx, s.scope)
	if err != nil {
		return err
	}
	defer goal.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return pump(gctx, debts, func(l *core.Ledger, v []core.Debt) int { l.Debts = v; return haveDebts }, s.apply)
	})
	g.Go(func() error {
		return pump(gctx, incomes, func(l *core.Ledger, v []core.Income) int { l.Incomes = v; return haveIncomes }, s.apply)
	})
	g.Go(func() error {
		return pump(gctx, goal, func(l *core.Ledger, v core.Goal) int { l.Goal = v; return haveGoal }, s.apply)
	})
	err = g.Wait()
	if err != nil && ctx.Err() == nil {
		s.logger.WarnContext(ctx, "Session stopped",
			log.NewFields().WithOperation(log.OpSubscribe).WithError(err).WithRecord(s.scope, "", "").ToSlice()...)
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func pump[T any](ctx context.Context, sub *records.Subscription[T], set func(*core.Ledger, T) int, apply func(func(*core.Ledger) int)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case snap, ok := <-sub.Updates():
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return ErrStreamClosed
			}
			if snap.Err != nil {
				return snap.Err
			}
			apply(func(l *core.Ledger) int { return set(l, snap.Value) })
		}
	}
}

func (s *Session) apply(mutate func(*core.Ledger) int) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	s.have |= mutate(&s.ledger)
	d, ok := s.buildLocked()
	s.mu.Unlock()
	if ok && s.emit != nil {
		s.emit(d)
	}
}

func (s *Session) buildLocked() (view.Dashboard, bool) {
	if s.have != haveAll {
		return view.Dashboard{}, false
	}
	d := view.Build(s.ledger, s.state, s.now())
	s.last = &d
	return d, true
}

// Update changes the view state and re-emits from the latest snapshot.
func (s *Session) Update(fn func(view.State) view.State) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	s.state = fn(s.state)
	d, ok := s.buildLocked()
	s.mu.Unlock()
	if ok && s.emit != nil {
		s.emit(d)
	}
}

// Select applies a chart bucket click.
func (s *Session) Select(key string) {
	s.Update(func(st view.State) view.State { return st.WithSelection(key) })
}

func (s *Session) State() view.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Dashboard returns the last emitted dashboard, if every collection has
// delivered at least one snapshot.
func (s *Session) Dashboard() (view.Dashboard, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return view.Dashboard{}, false
	}
	return *s.last, true
}
