package dummydb

import (
	"context"
	"sync"

	"github.com/neuromagic/academy/core/user"
)

type attemptTable struct {
	sync.RWMutex
	table map[string]user.LoginAttempt
}

type attemptStore struct {
	db *attemptTable
}

var _ user.AttemptStore = (*attemptStore)(nil) // interface compliance check

func NewAttemptStore(db *DB) user.AttemptStore {
	return &attemptStore{db: db.attempt}
}

func (s *attemptStore) GetAttempt(_ context.Context, identifier string) (user.LoginAttempt, error) {
	s.db.RLock()
	defer s.db.RUnlock()

	if la, ok := s.db.table[identifier]; ok {
		return la, nil
	}
	return user.LoginAttempt{Identifier: identifier}, nil
}

func (s *attemptStore) SaveAttempt(_ context.Context, la user.LoginAttempt) error {
	s.db.Lock()
	defer s.db.Unlock()
	s.db.table[la.Identifier] = la
	return nil
}

func (s *attemptStore) ResetAttempts(_ context.Context, identifier string) error {
	s.db.Lock()
	defer s.db.Unlock()
	delete(s.db.table, identifier)
	return nil
}
