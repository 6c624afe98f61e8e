package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/neuromagic/academy/core"
	"github.com/neuromagic/academy/core/user"
)

type attemptRow struct {
	Identifier    string    `db:"identifier"`
	Attempts      int       `db:"attempts"`
	LastAttemptAt time.Time `db:"last_attempt_at"`
	BlockedUntil  null.Time `db:"blocked_until"`
}

// attemptStore keeps login attempts in the login_attempt table, for deployments without redis.
type attemptStore struct {
	repository
}

var _ user.AttemptStore = (*attemptStore)(nil) // interface compliance check

func NewAttemptStore(exec core.DBExecutor) user.AttemptStore {
	return &attemptStore{repository{exec: exec}}
}

func (s attemptStore) GetAttempt(ctx context.Context, identifier string) (user.LoginAttempt, error) {
	var row attemptRow
	err := sqlx.GetContext(ctx, s.exec, &row, "SELECT * FROM login_attempt WHERE identifier = $1", identifier)
	if err != nil {
		if err = trapNoRowsErr(err, nil, "getting login attempt"); err != nil {
			return user.LoginAttempt{}, err
		}
		return user.LoginAttempt{Identifier: identifier}, nil
	}
	return user.LoginAttempt{
		Identifier:    row.Identifier,
		Attempts:      row.Attempts,
		LastAttemptAt: row.LastAttemptAt.UTC(),
		BlockedUntil:  row.BlockedUntil.Time.UTC(),
	}, nil
}

func (s attemptStore) SaveAttempt(ctx context.Context, la user.LoginAttempt) error {
	_, err := sqlx.NamedExecContext(ctx, s.exec,
		`INSERT INTO login_attempt (identifier, attempts, last_attempt_at, blocked_until)
		VALUES (:identifier, :attempts, :last_attempt_at, :blocked_until)
		ON CONFLICT (identifier) DO UPDATE SET attempts = EXCLUDED.attempts,
		last_attempt_at = EXCLUDED.last_attempt_at, blocked_until = EXCLUDED.blocked_until`,
		attemptRow{
			Identifier:    la.Identifier,
			Attempts:      la.Attempts,
			LastAttemptAt: la.LastAttemptAt.UTC(),
			BlockedUntil:  nullTime(la.BlockedUntil),
		})
	return errors.Wrap(err, "saving login attempt")
}

func (s attemptStore) ResetAttempts(ctx context.Context, identifier string) error {
	_, err := s.exec.ExecContext(ctx, "DELETE FROM login_attempt WHERE identifier = $1", identifier)
	return errors.Wrap(err, "resetting login attempts")
}
