package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	pkgerrors "github.com/pkg/errors"

	"github.com/iliyamo/museum-tour-access/internal/model"
	"github.com/iliyamo/museum-tour-access/internal/utils"
)

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

var (
	ErrEmailExists    = errors.New("email already exists")
	ErrUsernameExists = errors.New("username already exists")
)

// NewUser carries the fields needed to register an account.
type NewUser struct {
	Username string
	Email    string
	Name     string
	Password string
	Role     string
}

// Create hashes the password, inserts the user and returns its ID.
func (r *UserRepo) Create(ctx context.Context, in NewUser, cost int) (uint64, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	username := strings.TrimSpace(in.Username)
	hash, err := utils.HashPassword(in.Password, cost)
	if err != nil {
		return 0, err
	}
	var name sql.NullString
	if n := strings.TrimSpace(in.Name); n != "" {
		name = sql.NullString{String: n, Valid: true}
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (username, email, name, password_hash, role) VALUES (?,?,?,?,?)",
		username, email, name, hash, in.Role)
	if err != nil {
		if isDuplicateKey(err) {
			if strings.Contains(duplicateKeyName(err), "username") {
				return 0, ErrUsernameExists
			}
			return 0, ErrEmailExists
		}
		return 0, pkgerrors.Wrap(err, "insert user")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, pkgerrors.Wrap(err, "insert user id")
	}
	return uint64(id), nil
}

const userColumns = "id,username,email,name,password_hash,role,created_at"

func scanUser(row *sql.Row) (model.User, error) {
	var (
		u    model.User
		name sql.NullString
	)
	err := row.Scan(&u.ID, &u.Username, &u.Email, &name, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if name.Valid {
		u.Name = &name.String
	}
	return u, err
}

// GetByLogin fetches a user by username or normalized email.  Both are
// accepted on the login form.
func (r *UserRepo) GetByLogin(ctx context.Context, login string) (model.User, error) {
	login = strings.TrimSpace(login)
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE username=? OR email=? LIMIT 1",
		login, strings.ToLower(login)))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
}

// CountByRole is used by the seeder to decide whether an admin exists.
func (r *UserRepo) CountByRole(ctx context.Context, role string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE role=?", role).Scan(&n)
	return n, pkgerrors.Wrap(err, "count users")
}
