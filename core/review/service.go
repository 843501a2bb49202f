package review

import (
	"context"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/placegrade/core"
	"github.com/trezcool/placegrade/core/grade"
	"github.com/trezcool/placegrade/core/place"
	"github.com/trezcool/placegrade/core/user"
)

var (
	nowFunc = time.Now // mockable

	// errors
	ErrNotFound        = errors.New("review not found")
	ErrNoEstablishment = errors.New("an establishment ID or a place is required")
	ErrForbidden       = errors.New("only the author can delete a review")
)

type (
	Repository interface {
		CreateReview(ctx context.Context, rvw Review, exec ...core.DBExecutor) (Review, error)
		GetReview(ctx context.Context, id string, exec ...core.DBExecutor) (Review, error)
		// QueryReviewsByEstablishment returns the reviews of an establishment, newest first.
		QueryReviewsByEstablishment(ctx context.Context, establishmentID string, exec ...core.DBExecutor) ([]Review, error)
		QueryGrades(ctx context.Context, establishmentID string, exec ...core.DBExecutor) ([]grade.Grade, error)
		DeleteReview(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	Service interface {
		// Create adds a review and refreshes the average grade of its establishment.
		Create(ctx context.Context, usr user.User, nr NewReview) (Review, error)
		// Delete removes a review of `usr` and refreshes the average grade of its establishment.
		Delete(ctx context.Context, usr user.User, id string) error
		QueryByEstablishment(ctx context.Context, establishmentID string) ([]Review, error)
		GetEstablishment(ctx context.Context, establishmentID string) (EstablishmentWithReviews, error)
	}

	service struct {
		db       core.DB // nil with in-memory repositories
		repo     Repository
		placeSvc place.Service
		userSvc  user.Service
	}
)

var _ Service = (*service)(nil)

func NewService(db core.DB, repo Repository, placeSvc place.Service, userSvc user.Service) Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(placeSvc, "placeSvc"),
		vala.IsNotNil(userSvc, "userSvc"),
	).CheckAndPanic()

	return &service{db: db, repo: repo, placeSvc: placeSvc, userSvc: userSvc}
}

func now() time.Time {
	return nowFunc().UTC().Truncate(time.Microsecond)
}

func (svc *service) Create(ctx context.Context, usr user.User, nr NewReview) (Review, error) {
	nr.Clean()
	if nr.EstablishmentID == "" && nr.Place == nil {
		return Review{}, core.NewValidationError(ErrNoEstablishment)
	}

	var rvw Review
	err := core.WithTx(ctx, svc.db, func(exec core.DBExecutor) error {
		var est place.Establishment
		var err error
		if nr.EstablishmentID != "" {
			est, err = svc.placeSvc.Get(ctx, nr.EstablishmentID, exec)
			if errors.Cause(err) == place.ErrNotFound {
				return core.NewFieldError("establishment_id", place.ErrNotFound)
			}
		} else {
			est, err = svc.placeSvc.GetOrCreate(ctx, *nr.Place, exec)
		}
		if err != nil {
			return err
		}

		tstamp := now()
		rvw, err = svc.repo.CreateReview(ctx, Review{
			EstablishmentID: est.ID,
			UserID:          usr.ID,
			Grade:           nr.Grade,
			ReviewText:      nr.ReviewText,
			PhotoURL:        nr.PhotoURL,
			CreatedAt:       tstamp,
			UpdatedAt:       tstamp,
		}, exec)
		if err != nil {
			return errors.Wrap(err, "creating review")
		}
		return svc.refreshAverage(ctx, est.ID, exec)
	})
	if err != nil {
		return Review{}, err
	}

	svc.placeSvc.InvalidateMarkers()
	rvw.UserEmail = usr.Email
	return rvw, nil
}

func (svc *service) Delete(ctx context.Context, usr user.User, id string) error {
	err := core.WithTx(ctx, svc.db, func(exec core.DBExecutor) error {
		rvw, err := svc.repo.GetReview(ctx, id, exec)
		if err != nil {
			return err
		}
		if rvw.UserID != usr.ID {
			return ErrForbidden
		}
		if err = svc.repo.DeleteReview(ctx, id, exec); err != nil {
			return errors.Wrap(err, "deleting review")
		}
		return svc.refreshAverage(ctx, rvw.EstablishmentID, exec)
	})
	if err != nil {
		return err
	}

	svc.placeSvc.InvalidateMarkers()
	return nil
}

// refreshAverage recomputes the average grade of an establishment from its current reviews.
func (svc *service) refreshAverage(ctx context.Context, establishmentID string, exec core.DBExecutor) error {
	if _, err := svc.placeSvc.Lock(ctx, establishmentID, exec); err != nil {
		return errors.Wrap(err, "locking establishment")
	}
	grades, err := svc.repo.QueryGrades(ctx, establishmentID, exec)
	if err != nil {
		return errors.Wrap(err, "querying grades")
	}
	_, err = svc.placeSvc.RefreshAverage(ctx, establishmentID, grades, exec)
	return err
}

func (svc *service) QueryByEstablishment(ctx context.Context, establishmentID string) ([]Review, error) {
	reviews, err := svc.repo.QueryReviewsByEstablishment(ctx, establishmentID)
	if err != nil {
		return nil, errors.Wrap(err, "querying reviews")
	}
	if len(reviews) == 0 {
		return reviews, nil
	}

	seen := make(map[string]bool, len(reviews))
	ids := make([]string, 0, len(reviews))
	for _, rvw := range reviews {
		if !seen[rvw.UserID] {
			seen[rvw.UserID] = true
			ids = append(ids, rvw.UserID)
		}
	}
	emails, err := svc.userSvc.QueryEmails(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range reviews {
		reviews[i].UserEmail = emails[reviews[i].UserID]
	}
	return reviews, nil
}

func (svc *service) GetEstablishment(ctx context.Context, establishmentID string) (EstablishmentWithReviews, error) {
	est, err := svc.placeSvc.Get(ctx, establishmentID)
	if err != nil {
		return EstablishmentWithReviews{}, err
	}
	reviews, err := svc.QueryByEstablishment(ctx, establishmentID)
	if err != nil {
		return EstablishmentWithReviews{}, err
	}
	return EstablishmentWithReviews{Establishment: est, Reviews: reviews}, nil
}
