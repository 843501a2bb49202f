package inmemdb

import (
	"sync"

	"github.com/trezcool/placegrade/core/allowlist"
	"github.com/trezcool/placegrade/core/place"
	"github.com/trezcool/placegrade/core/review"
	"github.com/trezcool/placegrade/core/user"
)

type (
	// DB holds the in-memory tables. Each table has its own lock; there are no transactions.
	DB struct {
		user          *userTable
		allowed       *allowedTable
		establishment *establishmentTable
		review        *reviewTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User // {id: user}
	}

	allowedTable struct {
		sync.RWMutex
		table map[string]*allowlist.AllowedEmail // {email: entry}
	}

	establishmentTable struct {
		sync.RWMutex
		table map[string]*place.Establishment // {id: establishment}
	}

	reviewTable struct {
		sync.RWMutex
		table map[string]*review.Review // {id: review}
	}
)

func Open() *DB {
	return &DB{
		user:          &userTable{table: make(map[string]*user.User)},
		allowed:       &allowedTable{table: make(map[string]*allowlist.AllowedEmail)},
		establishment: &establishmentTable{table: make(map[string]*place.Establishment)},
		review:        &reviewTable{table: make(map[string]*review.Review)},
	}
}

// Reset empties all the tables.
func (db *DB) Reset() {
	db.user.Lock()
	db.user.table = make(map[string]*user.User)
	db.user.Unlock()

	db.allowed.Lock()
	db.allowed.table = make(map[string]*allowlist.AllowedEmail)
	db.allowed.Unlock()

	db.establishment.Lock()
	db.establishment.table = make(map[string]*place.Establishment)
	db.establishment.Unlock()

	db.review.Lock()
	db.review.table = make(map[string]*review.Review)
	db.review.Unlock()
}
