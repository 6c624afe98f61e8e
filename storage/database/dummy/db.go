package dummydb

import (
	"context"
	"sync"

	"github.com/neuromagic/academy/core"
	"github.com/neuromagic/academy/core/access"
	"github.com/neuromagic/academy/core/learning"
	"github.com/neuromagic/academy/core/payment"
	"github.com/neuromagic/academy/core/user"
)

// DB is an in-memory store implementing every repository, for tests and DB_ENGINE=memory runs.
type DB struct {
	user         *userTable
	verification *verificationTable
	attempt      *attemptTable
	enrollment   *enrollmentTable
	content      *contentTable
	progress     *progressTable
	payment      *paymentTable

	txMu sync.Mutex
}

var _ core.Transactor = (*DB)(nil) // interface compliance check

func Open() (*DB, error) {
	db := &DB{
		user:         &userTable{table: make(map[string]*user.User)},
		verification: &verificationTable{table: make(map[string]*user.EmailVerification)},
		attempt:      &attemptTable{table: make(map[string]user.LoginAttempt)},
		enrollment:   &enrollmentTable{table: make(map[string]*access.Enrollment)},
		content:      &contentTable{modules: make(map[int]*learning.Module), lessons: make(map[int]*learning.Lesson)},
		progress:     &progressTable{table: make(map[progressKey]*learning.Progress)},
		payment:      &paymentTable{table: make(map[string]*payment.Payment)},
	}
	return db, nil
}

// RunInTx serializes transactions; there is no rollback.
func (db *DB) RunInTx(_ context.Context, fn func(exec core.DBExecutor) error) error {
	db.txMu.Lock()
	defer db.txMu.Unlock()
	return fn(nil)
}
