package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/placegrade/core"
	"github.com/trezcool/placegrade/core/grade"
	"github.com/trezcool/placegrade/core/review"
)

type reviewRepository struct {
	db *reviewTable
}

var _ review.Repository = (*reviewRepository)(nil) // interface compliance check

func NewReviewRepository(db *DB) review.Repository {
	return &reviewRepository{db: db.review}
}

// byEstablishment returns the reviews of an establishment, newest first.
func (repo *reviewRepository) byEstablishment(establishmentID string) []review.Review {
	reviews := make([]review.Review, 0)
	for _, rvw := range repo.db.table {
		if rvw.EstablishmentID == establishmentID {
			reviews = append(reviews, *rvw)
		}
	}
	sort.Slice(reviews, func(i, j int) bool {
		if reviews[i].CreatedAt.Equal(reviews[j].CreatedAt) {
			return reviews[i].ID > reviews[j].ID
		}
		return reviews[i].CreatedAt.After(reviews[j].CreatedAt)
	})
	return reviews
}

func (repo *reviewRepository) CreateReview(_ context.Context, rvw review.Review, _ ...core.DBExecutor) (review.Review, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	rvw.ID = uuid.New().String()
	rvw.UserEmail = ""
	repo.db.table[rvw.ID] = &rvw
	return rvw, nil
}

func (repo *reviewRepository) GetReview(_ context.Context, id string, _ ...core.DBExecutor) (review.Review, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if rvw, ok := repo.db.table[id]; ok {
		return *rvw, nil
	}
	return review.Review{}, review.ErrNotFound
}

func (repo *reviewRepository) QueryReviewsByEstablishment(_ context.Context, establishmentID string, _ ...core.DBExecutor) ([]review.Review, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.byEstablishment(establishmentID), nil
}

func (repo *reviewRepository) QueryGrades(_ context.Context, establishmentID string, _ ...core.DBExecutor) ([]grade.Grade, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	reviews := repo.byEstablishment(establishmentID)
	grades := make([]grade.Grade, 0, len(reviews))
	for _, rvw := range reviews {
		grades = append(grades, rvw.Grade)
	}
	return grades, nil
}

func (repo *reviewRepository) DeleteReview(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[id]; !ok {
		return review.ErrNotFound
	}
	delete(repo.db.table, id)
	return nil
}
