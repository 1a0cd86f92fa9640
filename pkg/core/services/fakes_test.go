package services

import (
	"context"
	"sort"
	"sync"

	"github.com/wadjakorntonsri/go-linkpage/pkg/core/domain"
	"github.com/wadjakorntonsri/go-linkpage/pkg/core/orderkey"
	"github.com/wadjakorntonsri/go-linkpage/pkg/ports"
)

// memStore is an in-memory LinkFinder and OrderStore. mu is held only for
// map access so hooks may block without serialising unrelated scopes.
type memStore struct {
	mu     sync.Mutex
	links  map[int64]domain.Link
	writes int

	listErr error
	txErr   error
	// onTx runs at the start of every transaction
	onTx func()
	// beforeWrite runs inside the transaction right before the key swap
	beforeWrite func(linkID int64)
}

func newMemStore(links ...domain.Link) *memStore {
	s := &memStore{links: map[int64]domain.Link{}}
	for _, l := range links {
		s.links[l.ID] = l
	}
	return s
}

func (s *memStore) GetByID(_ context.Context, id int64) (*domain.Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.links[id]
	if !ok {
		return nil, nil
	}
	return &l, nil
}

func (s *memStore) ListByScope(_ context.Context, owner string) ([]domain.Position, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var positions []domain.Position
	for _, l := range s.links {
		if l.Owner == owner && l.OrderKey != "" {
			positions = append(positions, domain.Position{LinkID: l.ID, OrderKey: l.OrderKey})
		}
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i].LinkID < positions[j].LinkID })
	orderkey.SortStable(positions, func(p domain.Position) string { return p.OrderKey })
	return positions, nil
}

func (s *memStore) WithinTx(_ context.Context, fn func(tx ports.OrderTx) error) error {
	if s.txErr != nil {
		return s.txErr
	}
	if s.onTx != nil {
		s.onTx()
	}
	return fn(memTx{s})
}

// setKey and setOwner mutate a stored link the way a concurrent request would
func (s *memStore) setKey(id int64, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.links[id]
	l.OrderKey = key
	s.links[id] = l
}

func (s *memStore) setOwner(id int64, owner string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.links[id]
	l.Owner = owner
	s.links[id] = l
}

func (s *memStore) remove(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.links, id)
}

func (s *memStore) key(id int64) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.links[id].OrderKey
}

func (s *memStore) writeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// order returns the ids of owner's links in display order
func (s *memStore) order(owner string) []int64 {
	positions, _ := s.ListByScope(context.Background(), owner)
	ids := make([]int64, len(positions))
	for i, p := range positions {
		ids[i] = p.LinkID
	}
	return ids
}

type memTx struct{ s *memStore }

func (t memTx) GetOwner(_ context.Context, id int64) (string, bool, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	l, ok := t.s.links[id]
	return l.Owner, ok, nil
}

func (t memTx) WriteKey(_ context.Context, id int64, expected, newKey string) (bool, error) {
	if t.s.beforeWrite != nil {
		t.s.beforeWrite(id)
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	l, ok := t.s.links[id]
	if !ok || l.OrderKey != expected {
		return false, nil
	}
	l.OrderKey = newKey
	t.s.links[id] = l
	t.s.writes++
	return true, nil
}

// recordingInvalidator remembers the scopes it was asked to drop
type recordingInvalidator struct {
	mu     sync.Mutex
	scopes []string
	err    error
}

func (r *recordingInvalidator) InvalidateScope(_ context.Context, scope string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scopes = append(r.scopes, scope)
	return r.err
}

func (r *recordingInvalidator) calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.scopes...)
}
