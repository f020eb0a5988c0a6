package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lifenippon/apiserver/types"
)

const userColumns = `id, username, name, email, profile, about, role, salt, hashed_password,
		reset_password_link, photo_key, photo_content_type, created_at, updated_at`

// UserRepository handles persistence for user accounts.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, id int) (types.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		WHERE email = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, email))
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (types.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		WHERE username = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, username))
}

// GetByResetLink looks an account up by the exact stored reset-link
// string. A token superseded by a newer forgot-password request no
// longer matches any row and reports ErrNotFound.
func (r *UserRepository) GetByResetLink(ctx context.Context, link string) (types.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		WHERE reset_password_link = $1 AND reset_password_link <> ''`
	return r.scanOne(r.db.QueryRowContext(ctx, query, link))
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	const query = `
		INSERT INTO users (username, name, email, profile, about, role, salt, hashed_password,
			reset_password_link, photo_key, photo_content_type, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		user.Username,
		user.Name,
		user.Email,
		user.Profile,
		user.About,
		user.Role,
		user.Salt,
		user.HashedPassword,
		user.ResetPasswordLink,
		user.Photo.ObjectKey,
		user.Photo.ContentType,
		user.CreatedAt,
		user.UpdatedAt,
	).Scan(&user.ID); err != nil {
		return types.User{}, translateConstraint(err)
	}
	return user, nil
}

// Update rewrites the mutable profile fields. Credential fields are
// changed only through SetPassword.
func (r *UserRepository) Update(ctx context.Context, user types.User) (types.User, error) {
	user.UpdatedAt = time.Now()

	const query = `
		UPDATE users
		SET name = $1,
			email = $2,
			about = $3,
			photo_key = $4,
			photo_content_type = $5,
			updated_at = $6
		WHERE id = $7`
	result, err := r.db.ExecContext(
		ctx,
		query,
		user.Name,
		user.Email,
		user.About,
		user.Photo.ObjectKey,
		user.Photo.ContentType,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		return types.User{}, translateConstraint(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.User{}, err
	}
	if affected == 0 {
		return types.User{}, ErrNotFound
	}
	return user, nil
}

// SetPassword replaces the salt and digest and clears any outstanding
// reset link in one statement.
func (r *UserRepository) SetPassword(ctx context.Context, id int, salt, hashedPassword string) error {
	const query = `
		UPDATE users
		SET salt = $1,
			hashed_password = $2,
			reset_password_link = '',
			updated_at = $3
		WHERE id = $4`
	result, err := r.db.ExecContext(ctx, query, salt, hashedPassword, time.Now(), id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetResetLink records the outstanding reset token string. Each call
// overwrites the previous value, superseding older links.
func (r *UserRepository) SetResetLink(ctx context.Context, id int, link string) error {
	const query = `
		UPDATE users
		SET reset_password_link = $1,
			updated_at = $2
		WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, link, time.Now(), id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *UserRepository) scanOne(row *sql.Row) (types.User, error) {
	var user types.User
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Name,
		&user.Email,
		&user.Profile,
		&user.About,
		&user.Role,
		&user.Salt,
		&user.HashedPassword,
		&user.ResetPasswordLink,
		&user.Photo.ObjectKey,
		&user.Photo.ContentType,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return user, nil
}
