package database

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/farsihub/backend/core/user"
)

// watchFetchTimeout bounds the re-query a watch event triggers.
const watchFetchTimeout = 5 * time.Second

type profileRow struct {
	ID        string      `db:"id"`
	Name      string      `db:"name"`
	Email     string      `db:"email"`
	Role      string      `db:"role"`
	Approved  bool        `db:"approved"`
	Year      null.String `db:"year"`
	PhotoURL  null.String `db:"photo_url"`
	CreatedAt time.Time   `db:"created_at"`
}

func (r profileRow) model() user.Profile {
	return user.Profile{
		ID:        r.ID,
		Name:      r.Name,
		Email:     r.Email,
		Role:      r.Role,
		Approved:  r.Approved,
		Year:      r.Year,
		PhotoURL:  r.PhotoURL,
		CreatedAt: r.CreatedAt,
	}
}

func newProfileRow(p user.Profile) profileRow {
	return profileRow{
		ID:        p.ID,
		Name:      p.Name,
		Email:     p.Email,
		Role:      p.Role,
		Approved:  p.Approved,
		Year:      p.Year,
		PhotoURL:  p.PhotoURL,
		CreatedAt: p.CreatedAt.UTC(),
	}
}

type userRepository struct {
	db      *sqlx.DB
	watcher *Watcher
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB, watcher *Watcher) *userRepository {
	return &userRepository{db: db, watcher: watcher}
}

func (repo userRepository) CreateProfile(ctx context.Context, p user.Profile) (user.Profile, error) {
	row := newProfileRow(p)
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO profile (id, name, email, role, approved, year, photo_url, created_at)
		VALUES (:id, :name, :email, :role, :approved, :year, :photo_url, :created_at)`, row)
	if err != nil {
		if isUniqueViolation(err) {
			return user.Profile{}, user.ErrExists
		}
		return user.Profile{}, errors.Wrap(err, "inserting profile")
	}
	return row.model(), nil
}

func (repo userRepository) GetProfileByID(ctx context.Context, id string) (user.Profile, error) {
	var row profileRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM profile WHERE id = $1`, id); err != nil {
		return user.Profile{}, trapNoRowsErr(err, user.ErrNotFound, "getting profile by id")
	}
	return row.model(), nil
}

func (repo userRepository) FilterProfiles(ctx context.Context, filter user.QueryFilter) ([]user.Profile, error) {
	var (
		conds []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if filter.Search != "" {
		p := arg("%" + filter.Search + "%")
		conds = append(conds, fmt.Sprintf("(name ILIKE %s OR email ILIKE %s)", p, p))
	}
	if filter.Role != "" {
		conds = append(conds, "role = "+arg(filter.Role))
	}
	if filter.Approved != nil {
		conds = append(conds, "approved = "+arg(*filter.Approved))
	}
	if filter.Year != "" {
		conds = append(conds, "year = "+arg(filter.Year))
	}
	if !filter.CreatedFrom.IsZero() {
		conds = append(conds, "created_at >= "+arg(filter.CreatedFrom.UTC()))
	}
	if !filter.CreatedTo.IsZero() {
		conds = append(conds, "created_at <= "+arg(filter.CreatedTo.UTC()))
	}

	q := `SELECT * FROM profile`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY created_at DESC"

	var rows []profileRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "filtering profiles")
	}
	profiles := make([]user.Profile, 0, len(rows))
	for _, row := range rows {
		profiles = append(profiles, row.model())
	}
	return profiles, nil
}

func (repo userRepository) UpdateProfile(ctx context.Context, p user.Profile) (user.Profile, error) {
	row := newProfileRow(p)
	res, err := repo.db.NamedExecContext(ctx, `
		UPDATE profile
		SET name = :name, email = :email, role = :role, approved = :approved,
		    year = :year, photo_url = :photo_url
		WHERE id = :id`, row)
	if err != nil {
		return user.Profile{}, errors.Wrap(err, "updating profile")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return user.Profile{}, user.ErrNotFound
	}
	return row.model(), nil
}

func (repo userRepository) DeleteProfileByID(ctx context.Context, id string) error {
	if _, err := repo.db.ExecContext(ctx, `DELETE FROM profile WHERE id = $1`, id); err != nil {
		return errors.Wrap(err, "deleting profile")
	}
	return nil
}

func (repo userRepository) WatchProfile(id string, onSnapshot func(p user.Profile, exists bool), onError func(error)) (unsubscribe func()) {
	return repo.watcher.Subscribe(tableProfile, func(rowID string) {
		if rowID != id {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), watchFetchTimeout)
		defer cancel()

		p, err := repo.GetProfileByID(ctx, id)
		switch err {
		case nil:
			onSnapshot(p, true)
		case user.ErrNotFound:
			onSnapshot(user.Profile{}, false)
		default:
			onError(err)
		}
	}, onError)
}
