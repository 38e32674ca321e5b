package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/isdelr/rockhound-be/internal/models"
)

// SQLiteUserRepository implements UserRepository on SQLite.
type SQLiteUserRepository struct {
	db *sql.DB
}

// NewSQLiteStore creates repositories backed by a migrated SQLite database.
func NewSQLiteStore(db *sql.DB) *Store {
	return &Store{
		Users: &SQLiteUserRepository{db: db},
		Rocks: &SQLiteRockRepository{db: db},
	}
}

const userColumns = "id, username, email, password_hash, role, xp, created_at"

// Create inserts a new user.
func (r *SQLiteUserRepository) Create(ctx context.Context, user models.User) (models.User, error) {
	stmt, err := r.db.PrepareContext(ctx, "INSERT INTO users("+userColumns+") VALUES(?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return models.User{}, err
	}
	defer stmt.Close()

	_, err = stmt.ExecContext(ctx, user.ID, user.Username, user.Email, user.PasswordHash, user.Role, user.XP, user.CreatedAt.UnixMilli())
	if err != nil {
		if isUniqueViolation(err) {
			return models.User{}, fmt.Errorf("user %s: %w", user.Email, ErrDuplicate)
		}
		return models.User{}, err
	}
	return user, nil
}

// GetByID retrieves a single user by their ID.
func (r *SQLiteUserRepository) GetByID(ctx context.Context, id string) (models.User, error) {
	return r.getOne(ctx, "id", id)
}

// GetByEmail retrieves a single user by their email, including the password hash.
func (r *SQLiteUserRepository) GetByEmail(ctx context.Context, email string) (models.User, error) {
	return r.getOne(ctx, "email", email)
}

// GetByUsername retrieves a single user by their username.
func (r *SQLiteUserRepository) GetByUsername(ctx context.Context, username string) (models.User, error) {
	return r.getOne(ctx, "username", username)
}

func (r *SQLiteUserRepository) getOne(ctx context.Context, column, value string) (models.User, error) {
	var user models.User
	var createdAt int64
	row := r.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE "+column+" = ?", value)
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.Role, &user.XP, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, fmt.Errorf("user with %s %s: %w", column, value, ErrNotFound)
		}
		return models.User{}, err
	}
	user.CreatedAt = time.UnixMilli(createdAt).UTC()
	return user, nil
}

// AddXP increments a user's XP and returns the updated user.
func (r *SQLiteUserRepository) AddXP(ctx context.Context, id string, delta int) (models.User, error) {
	res, err := r.db.ExecContext(ctx, "UPDATE users SET xp = MAX(0, xp + ?) WHERE id = ?", delta, id)
	if err != nil {
		return models.User{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.User{}, fmt.Errorf("user with id %s: %w", id, ErrNotFound)
	}
	return r.GetByID(ctx, id)
}

// Count returns the number of registered users.
func (r *SQLiteUserRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&n)
	return n, err
}

// CountByRole returns the number of users holding role.
func (r *SQLiteUserRepository) CountByRole(ctx context.Context, role string) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE role = ?", role).Scan(&n)
	return n, err
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
