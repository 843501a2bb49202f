package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/placegrade/core"
	"github.com/trezcool/placegrade/core/place"
	"github.com/trezcool/placegrade/core/user"
	"github.com/trezcool/placegrade/storage/database"
)

// NewConfig returns the TEST configuration, with debug output disabled.
func NewConfig() *core.Config {
	if os.Getenv("ENV") == "" {
		_ = os.Setenv("ENV", "TEST")
	}
	conf := core.NewConfig()
	conf.Debug = false
	conf.TestMode = true
	return conf
}

// PrepareDB opens a migrated and empty postgres test database.
// The test is skipped when TEST_DATABASE_HOST is not set.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()
	if os.Getenv("TEST_DATABASE_HOST") == "" {
		t.Skip("TEST_DATABASE_HOST not set")
	}

	conf := NewConfig()
	if err := database.CreateIfNotExist(conf); err != nil {
		t.Fatalf("PrepareDB(): %v", err)
	}
	db, err := database.Open(conf)
	if err != nil {
		t.Fatalf("PrepareDB(): %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(db.DB, "up"); err != nil {
		t.Fatalf("PrepareDB(): %v", err)
	}
	ResetDB(t, db)
	return db
}

// ResetDB empties all the tables.
func ResetDB(t *testing.T, db *sqlx.DB) {
	t.Helper()
	if _, err := db.Exec("TRUNCATE reviews, establishments, allowed_emails, users CASCADE"); err != nil {
		t.Fatalf("ResetDB(): %v", err)
	}
}

func CreateUser(t *testing.T, repo user.Repository, email string, createdAt ...time.Time) user.User {
	t.Helper()
	tstamp := time.Now().UTC().Truncate(time.Microsecond)
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr, err := repo.CreateUser(context.Background(), user.User{Email: email, CreatedAt: tstamp, UpdatedAt: tstamp})
	if err != nil {
		t.Fatalf("CreateUser(): %v", err)
	}
	return usr
}

func CreateEstablishment(t *testing.T, repo place.Repository, name, placeID string, lat, lng float64, createdAt ...time.Time) place.Establishment {
	t.Helper()
	tstamp := time.Now().UTC().Truncate(time.Microsecond)
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	e, err := repo.CreateEstablishment(context.Background(), place.Establishment{
		GooglePlaceID: placeID,
		Name:          name,
		Address:       name + " street",
		Lat:           lat,
		Lng:           lng,
		CreatedAt:     tstamp,
		UpdatedAt:     tstamp,
	})
	if err != nil {
		t.Fatalf("CreateEstablishment(): %v", err)
	}
	return e
}
