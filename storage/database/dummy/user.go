package dummydb

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/neuromagic/academy/core"
	"github.com/neuromagic/academy/core/user"
)

type (
	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	verificationTable struct {
		sync.RWMutex
		table map[string]*user.EmailVerification
	}
)

type userRepository struct {
	db    *userTable
	verif *verificationTable
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db.user, verif: db.verification}
}

func (repo *userRepository) query() []user.User {
	users := make([]user.User, 0, len(repo.db.table))
	for _, u := range repo.db.table {
		users = append(users, *u)
	}
	return users
}

func (repo *userRepository) CheckUsernameUniqueness(_ context.Context, username, email string, excludedUsers []user.User, _ ...core.DBExecutor) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	exclUsrsLen := len(excludedUsers)
	if exclUsrsLen > 1 {
		sort.Slice(excludedUsers, func(i, j int) bool { return excludedUsers[i].ID < excludedUsers[j].ID })
	}

	for _, usr := range repo.query() {
		if username != "" && usr.Username == username && !isExcluded(usr, excludedUsers, exclUsrsLen) {
			return user.ErrUsernameExists
		}
		if email != "" && usr.Email == email && !isExcluded(usr, excludedUsers, exclUsrsLen) {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User, _ ...core.DBExecutor) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	usr.ID = uuid.New().String()
	repo.db.table[usr.ID] = &usr
	return usr, nil
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter, _ ...core.DBExecutor) (user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if filter.ID != "" {
		if usr, ok := repo.db.table[filter.ID]; ok {
			return *usr, nil
		}
		return user.User{}, user.ErrNotFound
	}

	for _, usr := range repo.query() {
		switch {
		case filter.Username != "" && usr.Username == filter.Username,
			filter.Email != "" && usr.Email == filter.Email,
			filter.UsernameOrEmail != "" && (usr.Username == filter.UsernameOrEmail || usr.Email == filter.UsernameOrEmail),
			filter.TelegramID != 0 && usr.TelegramID == filter.TelegramID:
			return usr, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User, _ ...core.DBExecutor) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[usr.ID]; !ok {
		return user.User{}, user.ErrNotFound
	}
	repo.db.table[usr.ID] = &usr
	return usr, nil
}

func (repo *userRepository) CreateVerification(_ context.Context, ev user.EmailVerification, _ ...core.DBExecutor) (user.EmailVerification, error) {
	repo.verif.Lock()
	defer repo.verif.Unlock()

	for id, v := range repo.verif.table {
		if v.Email == ev.Email && !v.IsVerified() {
			delete(repo.verif.table, id)
		}
	}
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	repo.verif.table[ev.ID] = &ev
	return ev, nil
}

func (repo *userRepository) GetPendingVerification(_ context.Context, email string, _ ...core.DBExecutor) (user.EmailVerification, error) {
	repo.verif.RLock()
	defer repo.verif.RUnlock()

	var latest *user.EmailVerification
	for _, v := range repo.verif.table {
		if v.Email == email && !v.IsVerified() && (latest == nil || v.CreatedAt.After(latest.CreatedAt)) {
			latest = v
		}
	}
	if latest == nil {
		return user.EmailVerification{}, user.ErrVerificationNotFound
	}
	return *latest, nil
}

func (repo *userRepository) UpdateVerification(_ context.Context, ev user.EmailVerification, _ ...core.DBExecutor) (user.EmailVerification, error) {
	repo.verif.Lock()
	defer repo.verif.Unlock()

	if _, ok := repo.verif.table[ev.ID]; !ok {
		return user.EmailVerification{}, user.ErrVerificationNotFound
	}
	repo.verif.table[ev.ID] = &ev
	return ev, nil
}

func isExcluded(usr user.User, excludedUsers []user.User, n int) bool {
	if n <= 0 {
		return false
	}
	idx := sort.Search(n, func(i int) bool { return excludedUsers[i].ID >= usr.ID })
	return idx < n && excludedUsers[idx].ID == usr.ID
}
