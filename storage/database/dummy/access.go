package dummydb

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/neuromagic/academy/core"
	"github.com/neuromagic/academy/core/access"
)

type enrollmentTable struct {
	sync.RWMutex
	table map[string]*access.Enrollment // {user_id|course_slug: enrollment}
}

func enrollmentKey(userID, slug string) string { return userID + "|" + slug }

type enrollmentRepository struct {
	db *enrollmentTable
}

var _ access.Repository = (*enrollmentRepository)(nil) // interface compliance check

func NewEnrollmentRepository(db *DB) access.Repository {
	return &enrollmentRepository{db: db.enrollment}
}

func (repo *enrollmentRepository) CreateEnrollment(_ context.Context, e access.Enrollment, _ ...core.DBExecutor) (access.Enrollment, bool, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	key := enrollmentKey(e.UserID, e.CourseSlug)
	if existing, ok := repo.db.table[key]; ok {
		return *existing, false, nil
	}
	e.ID = uuid.New().String()
	repo.db.table[key] = &e
	return e, true, nil
}

func (repo *enrollmentRepository) GetEnrollment(_ context.Context, userID, slug string, _ ...core.DBExecutor) (access.Enrollment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if e, ok := repo.db.table[enrollmentKey(userID, slug)]; ok {
		return *e, nil
	}
	return access.Enrollment{}, access.ErrNotFound
}

func (repo *enrollmentRepository) QueryEnrollments(_ context.Context, userID string, _ ...core.DBExecutor) ([]access.Enrollment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	enrs := make([]access.Enrollment, 0)
	for _, e := range repo.db.table {
		if e.UserID == userID {
			enrs = append(enrs, *e)
		}
	}
	sort.Slice(enrs, func(i, j int) bool { return enrs[i].PurchasedAt.After(enrs[j].PurchasedAt) })
	return enrs, nil
}

func (repo *enrollmentRepository) UpdateEnrollmentStatus(_ context.Context, e access.Enrollment, _ ...core.DBExecutor) (access.Enrollment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	stored, ok := repo.db.table[enrollmentKey(e.UserID, e.CourseSlug)]
	if !ok {
		return access.Enrollment{}, access.ErrNotFound
	}
	stored.Status = e.Status
	stored.UpdatedAt = e.UpdatedAt
	return *stored, nil
}

func (repo *enrollmentRepository) DeleteEnrollment(_ context.Context, userID, slug string, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	key := enrollmentKey(userID, slug)
	if _, ok := repo.db.table[key]; !ok {
		return access.ErrNotFound
	}
	delete(repo.db.table, key)
	return nil
}
