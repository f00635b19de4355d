package records

import (
	"context"
	"sync"

	"saldo/internal/core"
	"saldo/internal/feed"
)

// Snapshot is one full view of a collection. A snapshot with a non-nil Err
// is terminal: the channel closes right after it.
type Snapshot[T any] struct {
	Value T
	Err   error
}

// Subscription streams snapshots until Close, context cancellation or a load
// failure. The consumer owns it and must call Close when done.
type Subscription[T any] struct {
	updates chan Snapshot[T]
	cancel  context.CancelFunc
	done    chan struct{}
	once    sync.Once
}

func (s *Subscription[T]) Updates() <-chan Snapshot[T] { return s.updates }

// Done is closed once the subscription has released its resources.
func (s *Subscription[T]) Done() <-chan struct{} { return s.done }

// Close stops the subscription and waits for its goroutine to exit.
func (s *Subscription[T]) Close() {
	s.once.Do(s.cancel)
	<-s.done
}

func subscribe[T any](ctx context.Context, broker *feed.Broker, topic feed.Topic, load func(context.Context) (T, error)) (*Subscription[T], error) {
	if topic.Scope == "" {
		return nil, ErrNoScope
	}
	ctx, cancel := context.WithCancel(ctx)
	wake, release := broker.Subscribe(topic)

	started := false
	defer func() {
		if !started {
			release()
			cancel()
		}
	}()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s := &Subscription[T]{
		updates: make(chan Snapshot[T], 1),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go s.run(ctx, wake, release, load)
	started = true
	return s, nil
}

func (s *Subscription[T]) run(ctx context.Context, wake <-chan struct{}, release func(), load func(context.Context) (T, error)) {
	defer close(s.done)
	defer close(s.updates)
	defer release()

	for {
		v, err := load(ctx)
		if ctx.Err() != nil {
			return
		}
		snap := Snapshot[T]{Value: v}
		if err != nil {
			snap = Snapshot[T]{Err: core.Persistence("subscribe", err)}
		}
		select {
		case s.updates <- snap:
		case <-ctx.Done():
			return
		}
		if err != nil {
			return
		}

		select {
		case <-ctx.Done():
			return
		case _, ok := <-wake:
			if !ok {
				return
			}
		}
	}
}
