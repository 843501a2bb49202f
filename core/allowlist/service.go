package allowlist

import (
	"context"
	"net/mail"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/placegrade/core"
	"github.com/trezcool/placegrade/core/user"
)

var (
	nowFunc = time.Now // mockable

	// errors
	ErrNotFound          = errors.New("email not in the allowed list")
	ErrNotAllowed        = errors.New("email not allowed")
	ErrExists            = errors.New("this email is already in the allowed list")
	ErrCannotRemoveAdmin = errors.New("the admin email cannot be removed")
)

type (
	Repository interface {
		// Bootstrap inserts `ae` only when no email is allowed yet, reporting whether it did.
		Bootstrap(ctx context.Context, ae AllowedEmail, exec ...core.DBExecutor) (bool, error)
		CreateAllowed(ctx context.Context, ae AllowedEmail, exec ...core.DBExecutor) (AllowedEmail, error)
		GetAllowed(ctx context.Context, email string, exec ...core.DBExecutor) (AllowedEmail, error)
		// GetFirstAllowed returns the earliest added email, or ErrNotFound if the list is empty.
		GetFirstAllowed(ctx context.Context, exec ...core.DBExecutor) (AllowedEmail, error)
		// QueryAllowed returns all emails, earliest added first.
		QueryAllowed(ctx context.Context, exec ...core.DBExecutor) ([]AllowedEmail, error)
		DeleteAllowed(ctx context.Context, email string, exec ...core.DBExecutor) error
	}

	Service interface {
		// Authorize checks that a signed in User may use the app.
		// The very first User to sign in is added to the empty list and becomes the admin.
		Authorize(ctx context.Context, usr user.User) (isAdmin bool, err error)
		CanSignIn(ctx context.Context, email string) (bool, error)
		IsAdmin(ctx context.Context, email string) (bool, error)
		Add(ctx context.Context, nae NewAllowedEmail, addedBy user.User) (AllowedEmail, error)
		Remove(ctx context.Context, email string) error
		Query(ctx context.Context) ([]AllowedEmail, error)
	}

	service struct {
		repo    Repository
		mailSvc core.EmailService
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, mailSvc core.EmailService) Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(mailSvc, "mailSvc"),
	).CheckAndPanic()

	return &service{repo: repo, mailSvc: mailSvc}
}

func now() time.Time {
	return nowFunc().UTC().Truncate(time.Microsecond)
}

func (svc *service) Authorize(ctx context.Context, usr user.User) (bool, error) {
	email := core.CleanString(usr.Email, true /* lower */)
	first, err := svc.repo.Bootstrap(ctx, AllowedEmail{Email: email, AddedBy: usr.ID, AddedAt: now()})
	if err != nil {
		return false, errors.Wrap(err, "bootstrapping allowed list")
	}
	if first {
		return true, nil
	}

	if _, err = svc.repo.GetAllowed(ctx, email); err != nil {
		if errors.Cause(err) == ErrNotFound {
			return false, ErrNotAllowed
		}
		return false, errors.Wrap(err, "finding allowed email")
	}
	return svc.IsAdmin(ctx, email)
}

func (svc *service) CanSignIn(ctx context.Context, email string) (bool, error) {
	email = core.CleanString(email, true /* lower */)
	if _, err := svc.repo.GetFirstAllowed(ctx); err != nil {
		if errors.Cause(err) == ErrNotFound {
			return true, nil // bootstrap: the first User will be the admin
		}
		return false, errors.Wrap(err, "finding admin email")
	}

	_, err := svc.repo.GetAllowed(ctx, email)
	switch errors.Cause(err) {
	case nil:
		return true, nil
	case ErrNotFound:
		return false, nil
	default:
		return false, errors.Wrap(err, "finding allowed email")
	}
}

func (svc *service) IsAdmin(ctx context.Context, email string) (bool, error) {
	first, err := svc.repo.GetFirstAllowed(ctx)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return false, nil
		}
		return false, errors.Wrap(err, "finding admin email")
	}
	return first.Email == core.CleanString(email, true /* lower */), nil
}

func (svc *service) Add(ctx context.Context, nae NewAllowedEmail, addedBy user.User) (AllowedEmail, error) {
	nae.Clean()
	if _, err := svc.repo.GetAllowed(ctx, nae.Email); err == nil {
		return AllowedEmail{}, core.NewFieldError("email", ErrExists)
	} else if errors.Cause(err) != ErrNotFound {
		return AllowedEmail{}, errors.Wrap(err, "finding allowed email")
	}

	ae, err := svc.repo.CreateAllowed(ctx, AllowedEmail{Email: nae.Email, AddedBy: addedBy.ID, AddedAt: now()})
	if err != nil {
		if errors.Cause(err) == ErrExists { // lost a race with another admin request
			return AllowedEmail{}, core.NewFieldError("email", ErrExists)
		}
		return AllowedEmail{}, errors.Wrap(err, "adding allowed email")
	}

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Address: ae.Email}},
		Subject:      "You have been invited",
		TemplateName: "invite",
		TemplateData: map[string]interface{}{"Email": ae.Email},
	})
	return ae, nil
}

func (svc *service) Remove(ctx context.Context, email string) error {
	email = core.CleanString(email, true /* lower */)
	isAdmin, err := svc.IsAdmin(ctx, email)
	if err != nil {
		return err
	}
	if isAdmin {
		return ErrCannotRemoveAdmin
	}
	return svc.repo.DeleteAllowed(ctx, email)
}

func (svc *service) Query(ctx context.Context) ([]AllowedEmail, error) {
	emails, err := svc.repo.QueryAllowed(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying allowed emails")
	}
	if len(emails) > 0 {
		emails[0].IsAdmin = true
	}
	return emails, nil
}
