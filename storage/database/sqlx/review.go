package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/placegrade/core"
	"github.com/trezcool/placegrade/core/grade"
	"github.com/trezcool/placegrade/core/review"
)

const reviewColumns = "id, establishment_id, user_id, grade, review_text, photo_url, created_at, updated_at"

type reviewRow struct {
	ID              string      `db:"id"`
	EstablishmentID string      `db:"establishment_id"`
	UserID          string      `db:"user_id"`
	Grade           grade.Grade `db:"grade"`
	ReviewText      null.String `db:"review_text"`
	PhotoURL        null.String `db:"photo_url"`
	CreatedAt       time.Time   `db:"created_at"`
	UpdatedAt       time.Time   `db:"updated_at"`
}

func (r reviewRow) review() review.Review {
	return review.Review{
		ID:              r.ID,
		EstablishmentID: r.EstablishmentID,
		UserID:          r.UserID,
		Grade:           r.Grade,
		ReviewText:      r.ReviewText.String,
		PhotoURL:        r.PhotoURL.String,
		CreatedAt:       r.CreatedAt.UTC(),
		UpdatedAt:       r.UpdatedAt.UTC(),
	}
}

type reviewRepository struct {
	db *sqlx.DB
}

var _ review.Repository = (*reviewRepository)(nil) // interface compliance check

func NewReviewRepository(db *sqlx.DB) review.Repository {
	return &reviewRepository{db: db}
}

func (repo reviewRepository) CreateReview(ctx context.Context, rvw review.Review, exec ...core.DBExecutor) (review.Review, error) {
	var row reviewRow
	err := sqlx.GetContext(ctx, getExec(repo.db, exec), &row,
		`INSERT INTO reviews (id, establishment_id, user_id, grade, review_text, photo_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+reviewColumns,
		uuid.New().String(),
		rvw.EstablishmentID,
		rvw.UserID,
		rvw.Grade,
		null.NewString(rvw.ReviewText, rvw.ReviewText != ""),
		null.NewString(rvw.PhotoURL, rvw.PhotoURL != ""),
		rvw.CreatedAt.UTC(),
		rvw.UpdatedAt.UTC())
	if err != nil {
		return review.Review{}, errors.Wrap(err, "inserting review")
	}
	return row.review(), nil
}

func (repo reviewRepository) GetReview(ctx context.Context, id string, exec ...core.DBExecutor) (review.Review, error) {
	if _, err := uuid.Parse(id); err != nil {
		return review.Review{}, review.ErrNotFound
	}
	var row reviewRow
	err := sqlx.GetContext(ctx, getExec(repo.db, exec), &row, `SELECT `+reviewColumns+` FROM reviews WHERE id = $1`, id)
	if err != nil {
		return review.Review{}, trapNoRowsErr(err, review.ErrNotFound, "finding review")
	}
	return row.review(), nil
}

func (repo reviewRepository) QueryReviewsByEstablishment(ctx context.Context, establishmentID string, exec ...core.DBExecutor) ([]review.Review, error) {
	if _, err := uuid.Parse(establishmentID); err != nil {
		return []review.Review{}, nil
	}
	var rows []reviewRow
	err := sqlx.SelectContext(ctx, getExec(repo.db, exec), &rows,
		`SELECT `+reviewColumns+` FROM reviews WHERE establishment_id = $1 ORDER BY created_at DESC, id DESC`,
		establishmentID)
	if err != nil {
		return nil, errors.Wrap(err, "querying reviews")
	}
	reviews := make([]review.Review, 0, len(rows))
	for _, r := range rows {
		reviews = append(reviews, r.review())
	}
	return reviews, nil
}

func (repo reviewRepository) QueryGrades(ctx context.Context, establishmentID string, exec ...core.DBExecutor) ([]grade.Grade, error) {
	var grades []grade.Grade
	err := sqlx.SelectContext(ctx, getExec(repo.db, exec), &grades,
		`SELECT grade FROM reviews WHERE establishment_id = $1`, establishmentID)
	if err != nil {
		return nil, errors.Wrap(err, "querying grades")
	}
	return grades, nil
}

func (repo reviewRepository) DeleteReview(ctx context.Context, id string, exec ...core.DBExecutor) error {
	res, err := getExec(repo.db, exec).ExecContext(ctx, `DELETE FROM reviews WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting review")
	}
	cnt, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "deleting review")
	}
	if cnt == 0 {
		return review.ErrNotFound
	}
	return nil
}
