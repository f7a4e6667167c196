package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/farsihub/backend/core/identity"
)

type identityRow struct {
	ID            string      `db:"id"`
	Email         string      `db:"email"`
	EmailVerified bool        `db:"email_verified"`
	PhotoURL      null.String `db:"photo_url"`
	SecretHash    []byte      `db:"secret_hash"`
	CreatedAt     time.Time   `db:"created_at"`
	LastLogin     time.Time   `db:"last_login"`
}

func (r identityRow) model() identity.Identity {
	return identity.Identity{
		ID:            r.ID,
		Email:         r.Email,
		EmailVerified: r.EmailVerified,
		PhotoURL:      r.PhotoURL,
		SecretHash:    r.SecretHash,
		CreatedAt:     r.CreatedAt,
		LastLogin:     r.LastLogin,
	}
}

func newIdentityRow(idn identity.Identity) identityRow {
	return identityRow{
		ID:            idn.ID,
		Email:         idn.Email,
		EmailVerified: idn.EmailVerified,
		PhotoURL:      idn.PhotoURL,
		SecretHash:    idn.SecretHash,
		CreatedAt:     idn.CreatedAt.UTC(),
		LastLogin:     idn.LastLogin.UTC(),
	}
}

type identityRepository struct {
	db *sqlx.DB
}

var _ identity.Repository = (*identityRepository)(nil) // interface compliance check

func NewIdentityRepository(db *sqlx.DB) *identityRepository {
	return &identityRepository{db: db}
}

func (repo identityRepository) CheckEmailUniqueness(ctx context.Context, email string) error {
	var exists bool
	err := repo.db.GetContext(ctx, &exists, `SELECT true FROM identity WHERE email = $1 LIMIT 1`, email)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "checking email uniqueness")
	}
	return identity.ErrEmailExists
}

func (repo identityRepository) CreateIdentity(ctx context.Context, idn identity.Identity) (identity.Identity, error) {
	row := newIdentityRow(idn)
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO identity (id, email, email_verified, photo_url, secret_hash, created_at, last_login)
		VALUES (:id, :email, :email_verified, :photo_url, :secret_hash, :created_at, :last_login)`, row)
	if err != nil {
		return identity.Identity{}, errors.Wrap(err, "inserting identity")
	}
	return row.model(), nil
}

func (repo identityRepository) GetIdentityByID(ctx context.Context, id string) (identity.Identity, error) {
	var row identityRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM identity WHERE id = $1`, id)
	if err != nil {
		return identity.Identity{}, trapNoRowsErr(err, identity.ErrNotFound, "getting identity by id")
	}
	return row.model(), nil
}

func (repo identityRepository) GetIdentityByEmail(ctx context.Context, email string) (identity.Identity, error) {
	var row identityRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM identity WHERE email = $1`, email)
	if err != nil {
		return identity.Identity{}, trapNoRowsErr(err, identity.ErrNotFound, "getting identity by email")
	}
	return row.model(), nil
}

func (repo identityRepository) UpdateIdentity(ctx context.Context, idn identity.Identity) (identity.Identity, error) {
	row := newIdentityRow(idn)
	res, err := repo.db.NamedExecContext(ctx, `
		UPDATE identity
		SET email = :email, email_verified = :email_verified, photo_url = :photo_url,
		    secret_hash = :secret_hash, last_login = :last_login
		WHERE id = :id`, row)
	if err != nil {
		return identity.Identity{}, errors.Wrap(err, "updating identity")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return identity.Identity{}, identity.ErrNotFound
	}
	return row.model(), nil
}

func (repo identityRepository) DeleteIdentityByID(ctx context.Context, id string) error {
	if _, err := repo.db.ExecContext(ctx, `DELETE FROM identity WHERE id = $1`, id); err != nil {
		return errors.Wrap(err, "deleting identity")
	}
	return nil
}

// trapNoRowsErr maps psql "no rows" to the domain not-found error.
func trapNoRowsErr(err, notFound error, msg string) error {
	if err == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}
