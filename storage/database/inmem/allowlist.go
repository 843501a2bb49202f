package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/placegrade/core"
	"github.com/trezcool/placegrade/core/allowlist"
)

type allowlistRepository struct {
	db *allowedTable
}

var _ allowlist.Repository = (*allowlistRepository)(nil) // interface compliance check

func NewAllowlistRepository(db *DB) allowlist.Repository {
	return &allowlistRepository{db: db.allowed}
}

// query returns all entries, earliest added first.
func (repo *allowlistRepository) query() []allowlist.AllowedEmail {
	entries := make([]allowlist.AllowedEmail, 0, len(repo.db.table))
	for _, ae := range repo.db.table {
		entries = append(entries, *ae)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].AddedAt.Equal(entries[j].AddedAt) {
			return entries[i].Email < entries[j].Email
		}
		return entries[i].AddedAt.Before(entries[j].AddedAt)
	})
	return entries
}

func (repo *allowlistRepository) Bootstrap(_ context.Context, ae allowlist.AllowedEmail, _ ...core.DBExecutor) (bool, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if len(repo.db.table) > 0 {
		return false, nil
	}
	repo.db.table[ae.Email] = &ae
	return true, nil
}

func (repo *allowlistRepository) CreateAllowed(_ context.Context, ae allowlist.AllowedEmail, _ ...core.DBExecutor) (allowlist.AllowedEmail, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[ae.Email]; ok {
		return allowlist.AllowedEmail{}, allowlist.ErrExists
	}
	repo.db.table[ae.Email] = &ae
	return ae, nil
}

func (repo *allowlistRepository) GetAllowed(_ context.Context, email string, _ ...core.DBExecutor) (allowlist.AllowedEmail, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if ae, ok := repo.db.table[email]; ok {
		return *ae, nil
	}
	return allowlist.AllowedEmail{}, allowlist.ErrNotFound
}

func (repo *allowlistRepository) GetFirstAllowed(_ context.Context, _ ...core.DBExecutor) (allowlist.AllowedEmail, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	entries := repo.query()
	if len(entries) == 0 {
		return allowlist.AllowedEmail{}, allowlist.ErrNotFound
	}
	return entries[0], nil
}

func (repo *allowlistRepository) QueryAllowed(_ context.Context, _ ...core.DBExecutor) ([]allowlist.AllowedEmail, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.query(), nil
}

func (repo *allowlistRepository) DeleteAllowed(_ context.Context, email string, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[email]; !ok {
		return allowlist.ErrNotFound
	}
	delete(repo.db.table, email)
	return nil
}
