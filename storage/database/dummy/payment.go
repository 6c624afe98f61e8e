package dummydb

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/neuromagic/academy/core"
	"github.com/neuromagic/academy/core/payment"
)

type paymentTable struct {
	sync.RWMutex
	table map[string]*payment.Payment
}

type paymentRepository struct {
	db *paymentTable
}

var _ payment.Repository = (*paymentRepository)(nil) // interface compliance check

func NewPaymentRepository(db *DB) payment.Repository {
	return &paymentRepository{db: db.payment}
}

func (repo *paymentRepository) CreatePayment(_ context.Context, p payment.Payment, _ ...core.DBExecutor) (payment.Payment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	p.ID = uuid.New().String()
	repo.db.table[p.ID] = &p
	return p, nil
}

func (repo *paymentRepository) GetPayment(_ context.Context, filter payment.GetFilter, _ ...core.DBExecutor) (payment.Payment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if filter.ID != "" {
		if p, ok := repo.db.table[filter.ID]; ok {
			return *p, nil
		}
		return payment.Payment{}, payment.ErrNotFound
	}
	for _, p := range repo.db.table {
		if filter.GatewayPaymentID != "" && p.GatewayPaymentID == filter.GatewayPaymentID {
			return *p, nil
		}
	}
	return payment.Payment{}, payment.ErrNotFound
}

func (repo *paymentRepository) QueryPayments(_ context.Context, userID string, _ ...core.DBExecutor) ([]payment.Payment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	pays := make([]payment.Payment, 0)
	for _, p := range repo.db.table {
		if p.UserID == userID {
			pays = append(pays, *p)
		}
	}
	sort.Slice(pays, func(i, j int) bool { return pays[i].CreatedAt.After(pays[j].CreatedAt) })
	return pays, nil
}

func (repo *paymentRepository) UpdatePayment(_ context.Context, p payment.Payment, _ ...core.DBExecutor) (payment.Payment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[p.ID]; !ok {
		return payment.Payment{}, payment.ErrNotFound
	}
	repo.db.table[p.ID] = &p
	return p, nil
}
