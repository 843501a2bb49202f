package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/placegrade/core"
	"github.com/trezcool/placegrade/core/allowlist"
)

const allowedColumns = "email, added_by, added_at"

type allowedRow struct {
	Email   string      `db:"email"`
	AddedBy null.String `db:"added_by"`
	AddedAt time.Time   `db:"added_at"`
}

func (r allowedRow) allowedEmail() allowlist.AllowedEmail {
	return allowlist.AllowedEmail{
		Email:   r.Email,
		AddedBy: r.AddedBy.String,
		AddedAt: r.AddedAt.UTC(),
	}
}

type allowlistRepository struct {
	db *sqlx.DB
}

var _ allowlist.Repository = (*allowlistRepository)(nil) // interface compliance check

func NewAllowlistRepository(db *sqlx.DB) allowlist.Repository {
	return &allowlistRepository{db: db}
}

// bootstrapLockKey is the advisory lock serializing concurrent bootstraps.
const bootstrapLockKey = 0x706c6731

func (repo allowlistRepository) Bootstrap(ctx context.Context, ae allowlist.AllowedEmail, exec ...core.DBExecutor) (bool, error) {
	if len(exec) > 0 && exec[0] != nil {
		return repo.bootstrap(ctx, getExec(repo.db, exec), ae)
	}

	var first bool
	err := core.WithTx(ctx, repo.db, func(tx core.DBExecutor) (err error) {
		first, err = repo.bootstrap(ctx, getExec(repo.db, []core.DBExecutor{tx}), ae)
		return err
	})
	return first, err
}

// bootstrap must run in a transaction: the advisory lock is held until it ends.
func (repo allowlistRepository) bootstrap(ctx context.Context, exec sqlx.ExtContext, ae allowlist.AllowedEmail) (bool, error) {
	if _, err := exec.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, bootstrapLockKey); err != nil {
		return false, errors.Wrap(err, "locking allowed emails bootstrap")
	}

	res, err := exec.ExecContext(ctx,
		`INSERT INTO allowed_emails (email, added_by, added_at)
		SELECT $1, $2, $3 WHERE NOT EXISTS (SELECT 1 FROM allowed_emails)`,
		ae.Email, null.NewString(ae.AddedBy, ae.AddedBy != ""), ae.AddedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, errors.Wrap(err, "bootstrapping allowed emails")
	}
	cnt, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "bootstrapping allowed emails")
	}
	return cnt > 0, nil
}

func (repo allowlistRepository) CreateAllowed(ctx context.Context, ae allowlist.AllowedEmail, exec ...core.DBExecutor) (allowlist.AllowedEmail, error) {
	_, err := getExec(repo.db, exec).ExecContext(ctx,
		`INSERT INTO allowed_emails (email, added_by, added_at) VALUES ($1, $2, $3)`,
		ae.Email, null.NewString(ae.AddedBy, ae.AddedBy != ""), ae.AddedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return allowlist.AllowedEmail{}, allowlist.ErrExists
		}
		return allowlist.AllowedEmail{}, errors.Wrap(err, "inserting allowed email")
	}
	return ae, nil
}

func (repo allowlistRepository) GetAllowed(ctx context.Context, email string, exec ...core.DBExecutor) (allowlist.AllowedEmail, error) {
	var row allowedRow
	err := sqlx.GetContext(ctx, getExec(repo.db, exec), &row,
		`SELECT `+allowedColumns+` FROM allowed_emails WHERE email = $1`, email)
	if err != nil {
		return allowlist.AllowedEmail{}, trapNoRowsErr(err, allowlist.ErrNotFound, "finding allowed email")
	}
	return row.allowedEmail(), nil
}

func (repo allowlistRepository) GetFirstAllowed(ctx context.Context, exec ...core.DBExecutor) (allowlist.AllowedEmail, error) {
	var row allowedRow
	err := sqlx.GetContext(ctx, getExec(repo.db, exec), &row,
		`SELECT `+allowedColumns+` FROM allowed_emails ORDER BY added_at ASC, email ASC LIMIT 1`)
	if err != nil {
		return allowlist.AllowedEmail{}, trapNoRowsErr(err, allowlist.ErrNotFound, "finding first allowed email")
	}
	return row.allowedEmail(), nil
}

func (repo allowlistRepository) QueryAllowed(ctx context.Context, exec ...core.DBExecutor) ([]allowlist.AllowedEmail, error) {
	var rows []allowedRow
	err := sqlx.SelectContext(ctx, getExec(repo.db, exec), &rows,
		`SELECT `+allowedColumns+` FROM allowed_emails ORDER BY added_at ASC, email ASC`)
	if err != nil {
		return nil, errors.Wrap(err, "querying allowed emails")
	}
	entries := make([]allowlist.AllowedEmail, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, r.allowedEmail())
	}
	return entries, nil
}

func (repo allowlistRepository) DeleteAllowed(ctx context.Context, email string, exec ...core.DBExecutor) error {
	res, err := getExec(repo.db, exec).ExecContext(ctx, `DELETE FROM allowed_emails WHERE email = $1`, email)
	if err != nil {
		return errors.Wrap(err, "deleting allowed email")
	}
	cnt, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "deleting allowed email")
	}
	if cnt == 0 {
		return allowlist.ErrNotFound
	}
	return nil
}
