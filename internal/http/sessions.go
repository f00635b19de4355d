package http

import (
	"fmt"
	"sync"

	"saldo/internal/core"
	"saldo/internal/session"
	"saldo/internal/view"
)

var errSessionNotFound = fmt.Errorf("%w: dashboard session", core.ErrNotFound)

// liveSession is one open dashboard stream. updates holds at most the newest
// dashboard; a slow client skips intermediate states.
type liveSession struct {
	id      string
	scope   string
	session *session.Session
	updates chan view.Dashboard
}

func newLiveSession(id, scope string) *liveSession {
	return &liveSession{id: id, scope: scope, updates: make(chan view.Dashboard, 1)}
}

// offer replaces any undelivered dashboard with d. Session callbacks are
// serialized, so there is a single sender.
func (l *liveSession) offer(d view.Dashboard) {
	for {
		select {
		case l.updates <- d:
			return
		default:
		}
		select {
		case <-l.updates:
		default:
		}
	}
}

type registry struct {
	mu       sync.RWMutex
	sessions map[string]*liveSession
}

func newRegistry() *registry {
	return &registry{sessions: map[string]*liveSession{}}
}

func (r *registry) add(l *liveSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[l.id] = l
}

func (r *registry) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// get returns the session only to its owner; other scopes see not found.
func (r *registry) get(id, scope string) (*liveSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.sessions[id]
	if !ok || l.scope != scope {
		return nil, errSessionNotFound
	}
	return l, nil
}

func (r *registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
