package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/placegrade/core"
	"github.com/trezcool/placegrade/core/place"
)

type placeRepository struct {
	db *establishmentTable
}

var _ place.Repository = (*placeRepository)(nil) // interface compliance check

func NewPlaceRepository(db *DB) place.Repository {
	return &placeRepository{db: db.establishment}
}

func (repo *placeRepository) CreateEstablishment(_ context.Context, e place.Establishment, _ ...core.DBExecutor) (place.Establishment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if e.GooglePlaceID != "" {
		for _, est := range repo.db.table {
			if est.GooglePlaceID == e.GooglePlaceID {
				return place.Establishment{}, place.ErrExists
			}
		}
	}
	e.ID = uuid.New().String()
	e.AverageGrade = nil
	e.ReviewCount = 0
	repo.db.table[e.ID] = &e
	return e, nil
}

func (repo *placeRepository) GetEstablishment(_ context.Context, filter place.GetFilter, _ ...core.DBExecutor) (place.Establishment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if filter.ID != "" {
		if e, ok := repo.db.table[filter.ID]; ok {
			return *e, nil
		}
		return place.Establishment{}, place.ErrNotFound
	}
	if filter.GooglePlaceID != "" {
		for _, e := range repo.db.table {
			if e.GooglePlaceID == filter.GooglePlaceID {
				return *e, nil
			}
		}
	}
	return place.Establishment{}, place.ErrNotFound
}

func (repo *placeRepository) QueryEstablishments(_ context.Context, filter *place.QueryFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]place.Establishment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	ests := make([]place.Establishment, 0, len(repo.db.table))
	for _, e := range repo.db.table {
		if filter != nil {
			if filter.Search != "" {
				search := strings.ToLower(filter.Search)
				if !strings.Contains(strings.ToLower(e.Name), search) && !strings.Contains(strings.ToLower(e.Address), search) {
					continue
				}
			}
			if filter.MinGrade != nil && (e.AverageGrade == nil || *e.AverageGrade < *filter.MinGrade) {
				continue
			}
		}
		ests = append(ests, *e)
	}

	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "name", Ascending: true}}
	}
	sort.SliceStable(ests, func(i, j int) bool {
		for _, ord := range ordering {
			if c := compareEstablishments(ests[i], ests[j], ord.Field); c != 0 {
				return (c < 0) == ord.Ascending
			}
		}
		return ests[i].ID < ests[j].ID
	})
	return ests, nil
}

func compareEstablishments(a, b place.Establishment, field string) int {
	switch field {
	case "name":
		return strings.Compare(a.Name, b.Name)
	case "created_at":
		switch {
		case a.CreatedAt.Before(b.CreatedAt):
			return -1
		case a.CreatedAt.After(b.CreatedAt):
			return 1
		}
	case "review_count":
		return a.ReviewCount - b.ReviewCount
	}
	return 0
}

func (repo *placeRepository) QueryEstablishmentsByPlaceID(_ context.Context, placeIDs []string, _ ...core.DBExecutor) ([]place.Establishment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	wanted := make(map[string]bool, len(placeIDs))
	for _, id := range placeIDs {
		wanted[id] = true
	}
	ests := make([]place.Establishment, 0)
	for _, e := range repo.db.table {
		if e.GooglePlaceID != "" && wanted[e.GooglePlaceID] {
			ests = append(ests, *e)
		}
	}
	return ests, nil
}

func (repo *placeRepository) UpdateAverage(_ context.Context, upd place.AverageUpdate, _ ...core.DBExecutor) (place.Establishment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	e, ok := repo.db.table[upd.ID]
	if !ok {
		return place.Establishment{}, place.ErrNotFound
	}
	e.AverageGrade = upd.AverageGrade
	e.ReviewCount = upd.ReviewCount
	e.UpdatedAt = upd.UpdatedAt
	return *e, nil
}
