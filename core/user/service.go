package user

import (
	"context"
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/placegrade/core"
)

var (
	// errors
	ErrNotFound = errors.New("user not found")
	ErrExists   = errors.New("user already exists")
)

type (
	Repository interface {
		CreateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		GetUser(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (User, error)
		QueryUsersByID(ctx context.Context, ids []string, exec ...core.DBExecutor) ([]User, error)
		UpdateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
	}

	Service interface {
		GetOrCreate(ctx context.Context, email string) (User, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
		// QueryEmails maps each found User ID to its email.
		QueryEmails(ctx context.Context, ids []string) (map[string]string, error)
		RequestSignIn(ctx context.Context, req SignInRequest) error
		VerifySignIn(ctx context.Context, conf SignInConfirmation) (User, error)
		SetLastLogin(ctx context.Context, usr User) (User, error)
	}

	service struct {
		repo    Repository
		mailSvc core.EmailService
		tokens  tokenGenerator
		conf    *core.Config
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, mailSvc core.EmailService, conf *core.Config) Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(mailSvc, "mailSvc"),
		vala.IsNotNil(conf, "conf"),
	).CheckAndPanic()

	return &service{
		repo:    repo,
		mailSvc: mailSvc,
		tokens:  newTokenGenerator(conf),
		conf:    conf,
	}
}

// now is the current UTC time at the precision stored by the database.
func now() time.Time {
	return nowFunc().UTC().Truncate(time.Microsecond)
}

func (svc *service) GetOrCreate(ctx context.Context, email string) (User, error) {
	email = core.CleanString(email, true /* lower */)
	usr, err := svc.repo.GetUser(ctx, GetFilter{Email: email})
	if err == nil {
		return usr, nil
	}
	if errors.Cause(err) != ErrNotFound {
		return User{}, errors.Wrap(err, "finding user by email")
	}

	tstamp := now()
	usr, err = svc.repo.CreateUser(ctx, User{Email: email, CreatedAt: tstamp, UpdatedAt: tstamp})
	if errors.Cause(err) == ErrExists { // created concurrently
		return svc.repo.GetUser(ctx, GetFilter{Email: email})
	}
	return usr, errors.Wrap(err, "creating user")
}

func (svc *service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

func (svc *service) QueryEmails(ctx context.Context, ids []string) (map[string]string, error) {
	emails := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return emails, nil
	}
	users, err := svc.repo.QueryUsersByID(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "querying users by ID")
	}
	for _, usr := range users {
		emails[usr.ID] = usr.Email
	}
	return emails, nil
}

func (svc *service) RequestSignIn(ctx context.Context, req SignInRequest) error {
	usr, err := svc.GetOrCreate(ctx, req.Email)
	if err != nil {
		return err
	}
	svc.sendSignInMail(usr, req.Next)
	return nil
}

func (svc *service) signInURL(usr User, next string) string {
	q := make(url.Values)
	q.Set("uid", EncodeUID(usr))
	q.Set("token", svc.tokens.makeToken(usr))
	if next != "" {
		q.Set("next", next)
	}
	return strings.TrimSuffix(svc.conf.FrontendBaseURL, "/") + "/auth/callback?" + q.Encode()
}

func (svc *service) sendSignInMail(usr User, next string) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Address: usr.Email}},
		Subject:      "Your sign-in link",
		TemplateName: "signin",
		TemplateData: map[string]interface{}{
			"URL":       svc.signInURL(usr, next),
			"ExpiresIn": fmt.Sprintf("%d minutes", int(svc.conf.Auth.SignInTokenTimeout.Minutes())),
		},
	})
}

func (svc *service) VerifySignIn(ctx context.Context, sc SignInConfirmation) (User, error) {
	id, err := decodeUID(sc.UID)
	if err != nil {
		return User{}, ErrInvalidToken
	}
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return User{}, ErrInvalidToken
		}
		return User{}, errors.Wrap(err, "finding user by ID")
	}
	if err = svc.tokens.verifyToken(usr, sc.Token); err != nil {
		return User{}, err
	}
	return svc.SetLastLogin(ctx, usr)
}

func (svc *service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	tstamp := now()
	usr.LastLogin = tstamp
	usr.UpdatedAt = tstamp
	usr, err := svc.repo.UpdateUser(ctx, usr)
	return usr, errors.Wrap(err, "setting last login")
}
