// Package shared wires what the api server and the admin CLI have in common.
package shared

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/neuromagic/academy/core"
	"github.com/neuromagic/academy/core/access"
	"github.com/neuromagic/academy/core/learning"
	"github.com/neuromagic/academy/core/payment"
	"github.com/neuromagic/academy/core/user"
	rediscache "github.com/neuromagic/academy/storage/cache/redis"
	"github.com/neuromagic/academy/storage/database"
	dummydb "github.com/neuromagic/academy/storage/database/dummy"
	sqlxrepos "github.com/neuromagic/academy/storage/database/sqlx"
)

const (
	EnginePostgres = "postgres"
	EngineMemory   = "memory"
)

// Storage holds the repositories of the configured database engine.
type Storage struct {
	DB          core.Transactor
	SQL         *sqlx.DB // nil for the memory engine
	Users       user.Repository
	Attempts    user.AttemptStore
	Enrollments access.Repository
	Learning    learning.Repository
	Payments    payment.Repository

	redis *redis.Client
}

// OpenStorage connects to the configured database engine.
// The postgres database is created when missing, and migrated up when migrate is set.
// Login attempts are kept in redis when REDIS_URL is set.
func OpenStorage(ctx context.Context, conf *core.Config, migrate bool) (*Storage, error) {
	var st *Storage
	switch conf.Database.Engine {
	case EngineMemory:
		db, err := dummydb.Open()
		if err != nil {
			return nil, errors.Wrap(err, "opening memory database")
		}
		st = &Storage{
			DB:          db,
			Users:       dummydb.NewUserRepository(db),
			Attempts:    dummydb.NewAttemptStore(db),
			Enrollments: dummydb.NewEnrollmentRepository(db),
			Learning:    dummydb.NewLearningRepository(db),
			Payments:    dummydb.NewPaymentRepository(db),
		}
	case EnginePostgres, "":
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, errors.Wrap(err, "creating database")
		}
		db, err := database.Open(conf)
		if err != nil {
			return nil, errors.Wrap(err, "opening database")
		}
		if migrate {
			if err = database.Migrate(db, "up"); err != nil {
				_ = db.Close()
				return nil, errors.Wrap(err, "migrating database")
			}
		}
		st = &Storage{
			DB:          database.NewTransactor(db),
			SQL:         db,
			Users:       sqlxrepos.NewUserRepository(db),
			Attempts:    sqlxrepos.NewAttemptStore(db),
			Enrollments: sqlxrepos.NewEnrollmentRepository(db),
			Learning:    sqlxrepos.NewLearningRepository(db),
			Payments:    sqlxrepos.NewPaymentRepository(db),
		}
	default:
		return nil, errors.Errorf("unknown database engine %q", conf.Database.Engine)
	}

	if conf.Redis.URL != "" {
		client, err := rediscache.Open(ctx, conf.Redis.URL)
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		st.redis = client
		st.Attempts = rediscache.NewAttemptStore(client, conf)
	}
	return st, nil
}

func (st *Storage) Close() error {
	var err error
	if st.redis != nil {
		err = errors.Wrap(st.redis.Close(), "closing redis")
	}
	if st.SQL != nil {
		if dbErr := st.SQL.Close(); dbErr != nil {
			err = errors.Wrap(dbErr, "closing database")
		}
	}
	return err
}
