package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/placegrade/core"
	"github.com/trezcool/placegrade/core/grade"
	"github.com/trezcool/placegrade/core/place"
)

const establishmentColumns = "id, google_place_id, name, address, lat, lng, photo_url, average_grade, review_count, created_at, updated_at"

// sortable establishment columns
var establishmentOrderings = map[string]bool{"name": true, "created_at": true, "review_count": true}

type establishmentRow struct {
	ID            string       `db:"id"`
	GooglePlaceID null.String  `db:"google_place_id"`
	Name          string       `db:"name"`
	Address       string       `db:"address"`
	Lat           float64      `db:"lat"`
	Lng           float64      `db:"lng"`
	PhotoURL      null.String  `db:"photo_url"`
	AverageGrade  *grade.Grade `db:"average_grade"`
	ReviewCount   int          `db:"review_count"`
	CreatedAt     time.Time    `db:"created_at"`
	UpdatedAt     time.Time    `db:"updated_at"`
}

func (r establishmentRow) establishment() place.Establishment {
	return place.Establishment{
		ID:            r.ID,
		GooglePlaceID: r.GooglePlaceID.String,
		Name:          r.Name,
		Address:       r.Address,
		Lat:           r.Lat,
		Lng:           r.Lng,
		PhotoURL:      r.PhotoURL.String,
		AverageGrade:  r.AverageGrade,
		ReviewCount:   r.ReviewCount,
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
	}
}

func establishments(rows []establishmentRow) []place.Establishment {
	ests := make([]place.Establishment, 0, len(rows))
	for _, r := range rows {
		ests = append(ests, r.establishment())
	}
	return ests
}

type placeRepository struct {
	db *sqlx.DB
}

var _ place.Repository = (*placeRepository)(nil) // interface compliance check

func NewPlaceRepository(db *sqlx.DB) place.Repository {
	return &placeRepository{db: db}
}

func (repo placeRepository) CreateEstablishment(ctx context.Context, e place.Establishment, exec ...core.DBExecutor) (place.Establishment, error) {
	var row establishmentRow
	err := sqlx.GetContext(ctx, getExec(repo.db, exec), &row,
		`INSERT INTO establishments (id, google_place_id, name, address, lat, lng, photo_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (google_place_id) DO NOTHING
		RETURNING `+establishmentColumns,
		uuid.New().String(),
		null.NewString(e.GooglePlaceID, e.GooglePlaceID != ""),
		e.Name,
		e.Address,
		e.Lat,
		e.Lng,
		null.NewString(e.PhotoURL, e.PhotoURL != ""),
		e.CreatedAt.UTC(),
		e.UpdatedAt.UTC())
	if err != nil {
		// a place conflict returns no row and leaves the transaction usable
		if errors.Cause(err) == sql.ErrNoRows || isUniqueViolation(err) {
			return place.Establishment{}, place.ErrExists
		}
		return place.Establishment{}, errors.Wrap(err, "inserting establishment")
	}
	return row.establishment(), nil
}

func (repo placeRepository) GetEstablishment(ctx context.Context, filter place.GetFilter, exec ...core.DBExecutor) (place.Establishment, error) {
	var where string
	var arg interface{}
	switch {
	case filter.ID != "":
		if _, err := uuid.Parse(filter.ID); err != nil {
			return place.Establishment{}, place.ErrNotFound
		}
		where, arg = "id = $1", filter.ID
	case filter.GooglePlaceID != "":
		where, arg = "google_place_id = $1", filter.GooglePlaceID
	default:
		return place.Establishment{}, place.ErrNotFound
	}

	q := `SELECT ` + establishmentColumns + ` FROM establishments WHERE ` + where
	if filter.ForUpdate {
		q += " FOR UPDATE"
	}
	var row establishmentRow
	if err := sqlx.GetContext(ctx, getExec(repo.db, exec), &row, q, arg); err != nil {
		return place.Establishment{}, trapNoRowsErr(err, place.ErrNotFound, "finding establishment")
	}
	return row.establishment(), nil
}

func (repo placeRepository) QueryEstablishments(ctx context.Context, filter *place.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]place.Establishment, error) {
	var conds []string
	var args []interface{}

	if filter != nil {
		// establishments with Name or Address matching the search keyword
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			conds = append(conds, "(name ILIKE ? OR address ILIKE ?)")
			args = append(args, val, val)
		}
		// grade symbols do not sort as text: match the set of acceptable grades
		if filter.MinGrade != nil {
			var accepted []string
			for _, g := range grade.All() {
				if g >= *filter.MinGrade {
					accepted = append(accepted, g.String())
				}
			}
			conds = append(conds, "average_grade IN (?)")
			args = append(args, accepted)
		}
	}

	q := `SELECT ` + establishmentColumns + ` FROM establishments`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}

	orderList := make([]string, 0, len(ordering)+1)
	for _, ord := range ordering {
		if establishmentOrderings[ord.Field] {
			orderList = append(orderList, ord.String())
		}
	}
	if len(orderList) == 0 {
		orderList = append(orderList, core.DBOrdering{Field: "name", Ascending: true}.String())
	}
	q += " ORDER BY " + strings.Join(append(orderList, "id ASC"), ", ")

	q, args, err := in(q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "building establishments query")
	}
	var rows []establishmentRow
	if err = sqlx.SelectContext(ctx, getExec(repo.db, exec), &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying establishments")
	}
	return establishments(rows), nil
}

func (repo placeRepository) QueryEstablishmentsByPlaceID(ctx context.Context, placeIDs []string, exec ...core.DBExecutor) ([]place.Establishment, error) {
	if len(placeIDs) == 0 {
		return []place.Establishment{}, nil
	}
	q, args, err := in(`SELECT `+establishmentColumns+` FROM establishments WHERE google_place_id IN (?)`, placeIDs)
	if err != nil {
		return nil, errors.Wrap(err, "building establishments query")
	}
	var rows []establishmentRow
	if err = sqlx.SelectContext(ctx, getExec(repo.db, exec), &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying establishments by place ID")
	}
	return establishments(rows), nil
}

func (repo placeRepository) UpdateAverage(ctx context.Context, upd place.AverageUpdate, exec ...core.DBExecutor) (place.Establishment, error) {
	if _, err := uuid.Parse(upd.ID); err != nil {
		return place.Establishment{}, place.ErrNotFound
	}
	var row establishmentRow
	err := sqlx.GetContext(ctx, getExec(repo.db, exec), &row,
		`UPDATE establishments SET average_grade = $2, review_count = $3, updated_at = $4
		WHERE id = $1 RETURNING `+establishmentColumns,
		upd.ID, upd.AverageGrade, upd.ReviewCount, upd.UpdatedAt.UTC())
	if err != nil {
		return place.Establishment{}, trapNoRowsErr(err, place.ErrNotFound, "updating average grade")
	}
	return row.establishment(), nil
}
