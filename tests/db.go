package testutil

import (
	"os"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/neuromagic/academy/storage/database"
)

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// OpenDB connects to the PostgreSQL test database, migrated and emptied.
// The test is skipped unless TEST_DB_HOST is set.
func OpenDB(t *testing.T) *sqlx.DB {
	host := os.Getenv("TEST_DB_HOST")
	if host == "" {
		t.Skip("TEST_DB_HOST not set")
	}

	conf := NewConfig()
	conf.Database.Engine = "postgres"
	conf.Database.Host = host
	conf.Database.Port = getenv("TEST_DB_PORT", "5432")
	conf.Database.User = getenv("TEST_DB_USER", "postgres")
	conf.Database.Password = getenv("TEST_DB_PASSWORD", "postgres")
	conf.Database.AdminUser = conf.Database.User
	conf.Database.AdminPassword = conf.Database.Password
	conf.Database.Name = getenv("TEST_DB_NAME", "academy_test")
	conf.Database.DisableTLS = true

	if err := database.CreateIfNotExist(conf); err != nil {
		t.Fatalf("CreateIfNotExist(): %v", err)
	}
	db, err := database.Open(conf)
	if err != nil {
		t.Fatalf("Open(): %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(db, "up"); err != nil {
		t.Fatalf("Migrate(): %v", err)
	}
	ResetDB(t, db)
	return db
}

func ResetDB(t *testing.T, db *sqlx.DB) {
	_, err := db.Exec(`TRUNCATE TABLE lesson_progress, lesson, course_module, payment, enrollment,
		login_attempt, email_verification, "user" RESTART IDENTITY CASCADE`)
	if err != nil {
		t.Fatalf("ResetDB(): %v", err)
	}
}
