// Package feed fans out change signals per owner scope and collection.
//
// A signal carries no payload: subscribers re-read the store when woken.
// Each subscriber has a one-slot buffer, so bursts of writes coalesce into a
// single wake-up and Notify never blocks on a slow reader.
package feed

import (
	"sync"

	"saldo/internal/core"
)

// Topic names a stream of changes; Collection is a record kind or "goal".
type Topic struct {
	Scope      string
	Collection string
}

const CollectionGoal = "goal"

func DebtsTopic(scope string) Topic { return Topic{Scope: scope, Collection: core.KindDebt.String()} }
func IncomesTopic(scope string) Topic {
	return Topic{Scope: scope, Collection: core.KindIncome.String()}
}
func GoalTopic(scope string) Topic { return Topic{Scope: scope, Collection: CollectionGoal} }

type Broker struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[Topic]map[uint64]chan struct{}
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[Topic]map[uint64]chan struct{})}
}

// Subscribe registers interest in a topic. The returned release func closes
// the channel and is safe to call more than once.
func (b *Broker) Subscribe(t Topic) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	if b.subs[t] == nil {
		b.subs[t] = make(map[uint64]chan struct{})
	}
	b.subs[t][id] = ch
	b.mu.Unlock()

	var once sync.Once
	release := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if set, ok := b.subs[t]; ok {
				delete(set, id)
				if len(set) == 0 {
					delete(b.subs, t)
				}
			}
			close(ch)
		})
	}
	return ch, release
}

// Notify wakes every subscriber of the topic.
func (b *Broker) Notify(t Topic) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs[t] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Subscribers reports the number of live subscriptions on a topic.
func (b *Broker) Subscribers(t Topic) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[t])
}
