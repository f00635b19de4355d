// Package memory is an in-process document store, optionally seeded from a
// JSON file of legacy documents.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"saldo/internal/core"
	"saldo/internal/docstore"
)

// SeedFile is looked up in the data directory by NewFromFiles.
const SeedFile = "seed.json"

type userData struct {
	debts   []docstore.Document
	incomes []docstore.Document
	goal    *core.Goal
}

type Store struct {
	mu    sync.Mutex
	users map[string]*userData
}

var _ docstore.Store = (*Store)(nil)

func New() *Store {
	return &Store{users: map[string]*userData{}}
}

type seedUser struct {
	Debts   []docstore.LegacyDocument `json:"debts"`
	Incomes []docstore.LegacyDocument `json:"incomes"`
	Goal    json.RawMessage           `json:"goal,omitempty"`
}

// NewFromFiles returns a store seeded from base/seed.json when it exists.
// The file maps user scopes to their debts, incomes and goal.
func NewFromFiles(base string) (*Store, error) {
	s := New()
	raw, err := os.ReadFile(filepath.Join(base, SeedFile))
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}
	var seed map[string]seedUser
	if err := json.Unmarshal(raw, &seed); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	for scope, su := range seed {
		u := s.user(scope)
		for _, l := range su.Debts {
			d := l.Normalize()
			d.ID = docstore.NewID()
			u.debts = append(u.debts, d)
		}
		for _, l := range su.Incomes {
			d := l.Normalize()
			d.ID = docstore.NewID()
			d.Paid = false
			u.incomes = append(u.incomes, d)
		}
		if len(su.Goal) > 0 {
			var m core.Money
			if err := json.Unmarshal(su.Goal, &m); err == nil && m.Cents > 0 {
				u.goal = &core.Goal{Amount: m}
			}
		}
	}
	return s, nil
}

func (s *Store) user(scope string) *userData {
	u, ok := s.users[scope]
	if !ok {
		u = &userData{}
		s.users[scope] = u
	}
	return u
}

func (u *userData) collection(kind core.Kind) (*[]docstore.Document, error) {
	switch kind {
	case core.KindDebt:
		return &u.debts, nil
	case core.KindIncome:
		return &u.incomes, nil
	default:
		return nil, core.ErrInvalidKind
	}
}

func (s *Store) Create(_ context.Context, scope string, kind core.Kind, doc docstore.Document) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	col, err := s.user(scope).collection(kind)
	if err != nil {
		return "", err
	}
	doc.ID = docstore.NewID()
	if kind == core.KindIncome {
		doc.Paid = false
	}
	*col = append(*col, doc)
	return doc.ID, nil
}

func (s *Store) SetPaid(_ context.Context, scope, id string, paid bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.user(scope)
	for i := range u.debts {
		if u.debts[i].ID == id {
			u.debts[i].Paid = paid
			return nil
		}
	}
	return core.ErrNotFound
}

func (s *Store) Delete(_ context.Context, scope string, kind core.Kind, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	col, err := s.user(scope).collection(kind)
	if err != nil {
		return err
	}
	for i, d := range *col {
		if d.ID == id {
			*col = append((*col)[:i:i], (*col)[i+1:]...)
			return nil
		}
	}
	return core.ErrNotFound
}

func (s *Store) Get(_ context.Context, scope string, kind core.Kind, id string) (docstore.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	col, err := s.user(scope).collection(kind)
	if err != nil {
		return docstore.Document{}, err
	}
	for _, d := range *col {
		if d.ID == id {
			return d, nil
		}
	}
	return docstore.Document{}, core.ErrNotFound
}

// List returns a copy of the collection.
func (s *Store) List(_ context.Context, scope string, kind core.Kind) ([]docstore.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	col, err := s.user(scope).collection(kind)
	if err != nil {
		return nil, err
	}
	return append([]docstore.Document(nil), *col...), nil
}

func (s *Store) GetGoal(_ context.Context, scope string) (core.Goal, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.user(scope)
	if u.goal == nil {
		return core.Goal{}, false, nil
	}
	return *u.goal, true, nil
}

func (s *Store) PutGoal(_ context.Context, scope string, goal core.Goal) error {
	if err := goal.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user(scope).goal = &goal
	return nil
}

func (s *Store) Close() error { return nil }
