package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/MarMar-mg/school-managment-system-sub000/core"
	"github.com/MarMar-mg/school-managment-system-sub000/core/user"
)

const userColumns = "id, name, username, email, role, is_active, password_hash, created_at, updated_at, last_login"

type userRow struct {
	ID           string      `db:"id"`
	Name         string      `db:"name"`
	Username     string      `db:"username"`
	Email        null.String `db:"email"`
	Role         string      `db:"role"`
	IsActive     bool        `db:"is_active"`
	PasswordHash []byte      `db:"password_hash"`
	CreatedAt    time.Time   `db:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at"`
	LastLogin    null.Time   `db:"last_login"`
}

func toUserRow(usr user.User) userRow {
	return userRow{
		ID:           usr.ID,
		Name:         usr.Name,
		Username:     usr.Username,
		Email:        null.NewString(usr.Email, usr.Email != ""),
		Role:         usr.Role,
		IsActive:     usr.IsActive,
		PasswordHash: usr.PasswordHash,
		CreatedAt:    usr.CreatedAt.UTC(),
		UpdatedAt:    usr.UpdatedAt.UTC(),
		LastLogin:    null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	}
}

func (row userRow) user() user.User {
	return user.User{
		ID:           row.ID,
		Name:         row.Name,
		Username:     row.Username,
		Email:        row.Email.String,
		Role:         row.Role,
		IsActive:     row.IsActive,
		PasswordHash: row.PasswordHash,
		CreatedAt:    row.CreatedAt.UTC(),
		UpdatedAt:    row.UpdatedAt.UTC(),
		LastLogin:    row.LastLogin.Time.UTC(),
	}
}

func usersOf(rows []userRow) []user.User {
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.user())
	}
	return users
}

type userRepository struct {
	repo
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{repo{db: db}}
}

func (r *userRepository) CheckUniqueness(ctx context.Context, username, email string, excludedUsers ...user.User) error {
	var w where
	switch {
	case username != "" && email != "":
		w.add("(username = ? OR email = ?)", username, email)
	case username != "":
		w.add("username = ?", username)
	case email != "":
		w.add("email = ?", email)
	default:
		return nil
	}
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, u := range excludedUsers {
			ids = append(ids, u.ID)
		}
		w.add("id NOT IN (?)", ids)
	}

	var rows []userRow
	if err := r.selectAll(ctx, &rows, "SELECT "+userColumns+" FROM users"+w.String()+" LIMIT 2", w.args...); err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	for _, row := range rows {
		if username != "" && row.Username == username {
			return user.ErrUsernameExists
		}
	}
	if len(rows) > 0 {
		return user.ErrEmailExists
	}
	return nil
}

func (r *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = uuid.New().String()
	row := toUserRow(usr)
	q := `INSERT INTO users (` + userColumns + `)
		VALUES (:id, :name, :username, :email, :role, :is_active, :password_hash, :created_at, :updated_at, :last_login)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(ctx), q, row); err != nil {
		switch uniqueConstraint(err) {
		case "users_username_key":
			return user.User{}, user.ErrUsernameExists
		case "users_email_key":
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return row.user(), nil
}

func (r *userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	var w where
	if filter != nil {
		w.search(filter.Search, "name", "username", "email")
		if len(filter.Roles) > 0 {
			w.add("role IN (?)", filter.Roles)
		}
		if filter.IsActive != nil {
			w.add("is_active = ?", *filter.IsActive)
		}
		if !filter.CreatedFrom.IsZero() {
			w.add("created_at >= ?", filter.CreatedFrom.UTC())
		}
		if !filter.CreatedTo.IsZero() {
			w.add("created_at <= ?", filter.CreatedTo.UTC())
		}
	}
	q := "SELECT " + userColumns + " FROM users" + w.String() +
		orderBy(ordering, "created_at DESC", "name", "username", "email", "role", "is_active", "created_at", "last_login")

	var rows []userRow
	if err := r.selectAll(ctx, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	return usersOf(rows), nil
}

func (r *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	var w where
	switch {
	case filter.ID != "":
		if _, err := uuid.Parse(filter.ID); err != nil {
			return user.User{}, user.ErrNotFound
		}
		w.add("id = ?", filter.ID)
	case filter.Username != "":
		w.add("username = ?", filter.Username)
	case filter.Email != "":
		w.add("email = ?", filter.Email)
	case filter.UsernameOrEmail != "":
		w.add("(username = ? OR email = ?)", filter.UsernameOrEmail, filter.UsernameOrEmail)
	default:
		return user.User{}, user.ErrNotFound
	}

	var row userRow
	if err := r.get(ctx, &row, "SELECT "+userColumns+" FROM users"+w.String()+" LIMIT 1", w.args...); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "getting user")
	}
	return row.user(), nil
}

func validUUIDs(ids []string) []string {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err == nil {
			valid = append(valid, id)
		}
	}
	return valid
}

func (r *userRepository) GetUsersByID(ctx context.Context, ids ...string) ([]user.User, error) {
	ids = validUUIDs(ids)
	if len(ids) == 0 {
		return []user.User{}, nil
	}
	var rows []userRow
	if err := r.selectAll(ctx, &rows, "SELECT "+userColumns+" FROM users WHERE id IN (?)", ids); err != nil {
		return nil, errors.Wrap(err, "getting users by id")
	}
	return usersOf(rows), nil
}

func (r *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	row := toUserRow(usr)
	q := `UPDATE users SET name = :name, username = :username, email = :email, role = :role, is_active = :is_active,
		password_hash = :password_hash, updated_at = :updated_at, last_login = :last_login
		WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, r.exec(ctx), q, row)
	if err != nil {
		switch uniqueConstraint(err) {
		case "users_username_key":
			return user.User{}, user.ErrUsernameExists
		case "users_email_key":
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n, err := res.RowsAffected(); err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	} else if n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return row.user(), nil
}

func (r *userRepository) DeleteUsersByID(ctx context.Context, ids ...string) (int, error) {
	ids = validUUIDs(ids)
	if len(ids) == 0 {
		return 0, nil
	}
	n, err := r.run(ctx, "DELETE FROM users WHERE id IN (?)", ids)
	return n, errors.Wrap(err, "deleting users")
}
