package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/neuromagic/academy/core"
	"github.com/neuromagic/academy/core/user"
)

const userColumns = `id, username, email, password_hash, telegram_id, telegram_username, avatar_url,
	is_active, is_admin, created_at, updated_at, last_login`

type userRow struct {
	ID               string      `db:"id"`
	Username         string      `db:"username"`
	Email            string      `db:"email"`
	PasswordHash     null.Bytes  `db:"password_hash"`
	TelegramID       null.Int64  `db:"telegram_id"`
	TelegramUsername null.String `db:"telegram_username"`
	AvatarURL        string      `db:"avatar_url"`
	IsActive         bool        `db:"is_active"`
	IsAdmin          bool        `db:"is_admin"`
	CreatedAt        time.Time   `db:"created_at"`
	UpdatedAt        time.Time   `db:"updated_at"`
	LastLogin        null.Time   `db:"last_login"`
}

type verificationRow struct {
	ID           string    `db:"id"`
	Email        string    `db:"email"`
	Username     string    `db:"username"`
	PasswordHash []byte    `db:"password_hash"`
	Code         string    `db:"code"`
	Attempts     int       `db:"attempts"`
	ExpiresAt    time.Time `db:"expires_at"`
	SentAt       time.Time `db:"sent_at"`
	VerifiedAt   null.Time `db:"verified_at"`
	CreatedAt    time.Time `db:"created_at"`
}

type userRepository struct {
	repository
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(exec core.DBExecutor) user.Repository {
	return &userRepository{repository{exec: exec}}
}

func (repo userRepository) toRow(usr user.User) userRow {
	return userRow{
		ID:               usr.ID,
		Username:         usr.Username,
		Email:            usr.Email,
		PasswordHash:     null.NewBytes(usr.PasswordHash, len(usr.PasswordHash) > 0),
		TelegramID:       null.NewInt64(usr.TelegramID, usr.TelegramID != 0),
		TelegramUsername: nullString(usr.TelegramUsername),
		AvatarURL:        usr.AvatarURL,
		IsActive:         usr.IsActive,
		IsAdmin:          usr.IsAdmin,
		CreatedAt:        usr.CreatedAt.UTC(),
		UpdatedAt:        usr.UpdatedAt.UTC(),
		LastLogin:        nullTime(usr.LastLogin),
	}
}

func (repo userRepository) fromRow(row userRow) user.User {
	return user.User{
		ID:               row.ID,
		Username:         row.Username,
		Email:            row.Email,
		PasswordHash:     row.PasswordHash.Bytes,
		TelegramID:       row.TelegramID.Int64,
		TelegramUsername: row.TelegramUsername.String,
		AvatarURL:        row.AvatarURL,
		IsActive:         row.IsActive,
		IsAdmin:          row.IsAdmin,
		CreatedAt:        row.CreatedAt.UTC(),
		UpdatedAt:        row.UpdatedAt.UTC(),
		LastLogin:        row.LastLogin.Time.UTC(),
	}
}

func (repo userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers []user.User, exec ...core.DBExecutor) error {
	ids := make([]string, 0, len(excludedUsers))
	for _, u := range excludedUsers {
		if u.ID != "" {
			ids = append(ids, u.ID)
		}
	}

	var taken []struct {
		Username string `db:"username"`
		Email    string `db:"email"`
	}
	err := sqlx.SelectContext(ctx, repo.getExec(exec), &taken,
		`SELECT username, email FROM "user"
		WHERE ((username = $1 AND $1 <> '') OR (email = $2 AND $2 <> '')) AND NOT (id = ANY($3::uuid[]))`,
		username, email, pq.Array(ids))
	if err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	for _, t := range taken {
		if t.Username == username {
			return user.ErrUsernameExists
		}
	}
	if len(taken) > 0 {
		return user.ErrEmailExists
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	usr.ID = uuid.New().String()
	_, err := sqlx.NamedExecContext(ctx, repo.getExec(exec),
		`INSERT INTO "user" (`+userColumns+`) VALUES (:id, :username, :email, :password_hash, :telegram_id,
		:telegram_username, :avatar_url, :is_active, :is_admin, :created_at, :updated_at, :last_login)`,
		repo.toRow(usr))
	if err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter, exec ...core.DBExecutor) (user.User, error) {
	query := `SELECT ` + userColumns + ` FROM "user" WHERE `
	var arg interface{}

	switch {
	case filter.ID != "":
		if _, err := uuid.Parse(filter.ID); err != nil {
			return user.User{}, user.ErrNotFound
		}
		query += "id = $1"
		arg = filter.ID
	case filter.Username != "":
		query += "username = $1"
		arg = filter.Username
	case filter.Email != "":
		query += "email = $1"
		arg = filter.Email
	case filter.UsernameOrEmail != "":
		query += "(username = $1 OR email = $1)"
		arg = filter.UsernameOrEmail
	case filter.TelegramID != 0:
		query += "telegram_id = $1"
		arg = filter.TelegramID
	default:
		return user.User{}, user.ErrNotFound
	}

	var row userRow
	if err := sqlx.GetContext(ctx, repo.getExec(exec), &row, query+" LIMIT 1", arg); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "getting user")
	}
	return repo.fromRow(row), nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	res, err := sqlx.NamedExecContext(ctx, repo.getExec(exec),
		`UPDATE "user" SET username = :username, email = :email, password_hash = :password_hash,
		telegram_id = :telegram_id, telegram_username = :telegram_username, avatar_url = :avatar_url,
		is_active = :is_active, is_admin = :is_admin, updated_at = :updated_at, last_login = :last_login
		WHERE id = :id`,
		repo.toRow(usr))
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if err = checkAffected(res, user.ErrNotFound); err != nil {
		return user.User{}, err
	}
	return usr, nil
}

func (repo userRepository) CreateVerification(ctx context.Context, ev user.EmailVerification, exec ...core.DBExecutor) (user.EmailVerification, error) {
	exe := repo.getExec(exec)
	if _, err := exe.ExecContext(ctx,
		"DELETE FROM email_verification WHERE email = $1 AND verified_at IS NULL", ev.Email); err != nil {
		return user.EmailVerification{}, errors.Wrap(err, "dropping pending verifications")
	}

	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	_, err := sqlx.NamedExecContext(ctx, exe,
		`INSERT INTO email_verification (id, email, username, password_hash, code, attempts, expires_at, sent_at, verified_at, created_at)
		VALUES (:id, :email, :username, :password_hash, :code, :attempts, :expires_at, :sent_at, :verified_at, :created_at)`,
		toVerificationRow(ev))
	if err != nil {
		return user.EmailVerification{}, errors.Wrap(err, "inserting verification")
	}
	return ev, nil
}

func (repo userRepository) GetPendingVerification(ctx context.Context, email string, exec ...core.DBExecutor) (user.EmailVerification, error) {
	var row verificationRow
	err := sqlx.GetContext(ctx, repo.getExec(exec), &row,
		`SELECT * FROM email_verification WHERE email = $1 AND verified_at IS NULL ORDER BY created_at DESC LIMIT 1`,
		email)
	if err != nil {
		return user.EmailVerification{}, trapNoRowsErr(err, user.ErrVerificationNotFound, "getting pending verification")
	}
	return fromVerificationRow(row), nil
}

func (repo userRepository) UpdateVerification(ctx context.Context, ev user.EmailVerification, exec ...core.DBExecutor) (user.EmailVerification, error) {
	res, err := sqlx.NamedExecContext(ctx, repo.getExec(exec),
		`UPDATE email_verification SET username = :username, password_hash = :password_hash, code = :code,
		attempts = :attempts, expires_at = :expires_at, sent_at = :sent_at, verified_at = :verified_at
		WHERE id = :id`,
		toVerificationRow(ev))
	if err != nil {
		return user.EmailVerification{}, errors.Wrap(err, "updating verification")
	}
	if err = checkAffected(res, user.ErrVerificationNotFound); err != nil {
		return user.EmailVerification{}, err
	}
	return ev, nil
}

func toVerificationRow(ev user.EmailVerification) verificationRow {
	return verificationRow{
		ID:           ev.ID,
		Email:        ev.Email,
		Username:     ev.Username,
		PasswordHash: ev.PasswordHash,
		Code:         ev.Code,
		Attempts:     ev.Attempts,
		ExpiresAt:    ev.ExpiresAt.UTC(),
		SentAt:       ev.SentAt.UTC(),
		VerifiedAt:   nullTime(ev.VerifiedAt),
		CreatedAt:    ev.CreatedAt.UTC(),
	}
}

func fromVerificationRow(row verificationRow) user.EmailVerification {
	return user.EmailVerification{
		ID:           row.ID,
		Email:        row.Email,
		Username:     row.Username,
		PasswordHash: row.PasswordHash,
		Code:         row.Code,
		Attempts:     row.Attempts,
		ExpiresAt:    row.ExpiresAt.UTC(),
		SentAt:       row.SentAt.UTC(),
		VerifiedAt:   row.VerifiedAt.Time.UTC(),
		CreatedAt:    row.CreatedAt.UTC(),
	}
}
