package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Gerardinho-server/GestionUsuarios/types"
)

// UserRepository handles persistence for users.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (types.User, error) {
	var user types.User
	var role string
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&role,
		&user.IsActive,
		&user.PasswordHash,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	user.Role = types.Role(role)
	return user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (types.User, error) {
	const query = `
		SELECT id, username, email, role, is_active, password_hash, created_at
		FROM users
		WHERE id = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

// GetByLogin finds the account whose username or email equals identifier.
// A username match wins over an email match.
func (r *UserRepository) GetByLogin(ctx context.Context, identifier string) (types.User, error) {
	const query = `
		SELECT id, username, email, role, is_active, password_hash, created_at
		FROM users
		WHERE username = $1 OR email = $1
		ORDER BY (username = $1) DESC
		LIMIT 1`
	return scanUser(r.db.QueryRowContext(ctx, query, identifier))
}

// ExistsUsernameOrEmail reports whether another account already uses the
// username or the email. excludeID is ignored when zero.
func (r *UserRepository) ExistsUsernameOrEmail(ctx context.Context, username, email string, excludeID int64) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM users
			WHERE (username = $1 OR email = $2) AND id <> $3
		)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, username, email, excludeID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	const query = `
		INSERT INTO users (username, email, password_hash, role, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		user.Username,
		user.Email,
		user.PasswordHash,
		string(user.Role),
		user.IsActive,
	).Scan(&user.ID, &user.CreatedAt); err != nil {
		return types.User{}, translate(err)
	}
	return user, nil
}

// Update writes username, email, role and activation state. The password
// hash is only written when withPassword is set.
func (r *UserRepository) Update(ctx context.Context, user types.User, withPassword bool) (types.User, error) {
	var (
		result sql.Result
		err    error
	)
	if withPassword {
		const query = `
			UPDATE users
			SET username = $1,
				email = $2,
				role = $3,
				is_active = $4,
				password_hash = $5
			WHERE id = $6`
		result, err = r.db.ExecContext(
			ctx,
			query,
			user.Username,
			user.Email,
			string(user.Role),
			user.IsActive,
			user.PasswordHash,
			user.ID,
		)
	} else {
		const query = `
			UPDATE users
			SET username = $1,
				email = $2,
				role = $3,
				is_active = $4
			WHERE id = $5`
		result, err = r.db.ExecContext(
			ctx,
			query,
			user.Username,
			user.Email,
			string(user.Role),
			user.IsActive,
			user.ID,
		)
	}
	if err != nil {
		return types.User{}, translate(err)
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

// UpdateProfile changes the self-service fields of an account and returns
// the stored row. An empty passwordHash keeps the current password.
func (r *UserRepository) UpdateProfile(ctx context.Context, id int64, username, email, passwordHash string) (types.User, error) {
	const query = `
		UPDATE users
		SET username = $1,
			email = $2,
			password_hash = COALESCE(NULLIF($3, ''), password_hash)
		WHERE id = $4
		RETURNING id, username, email, role, is_active, password_hash, created_at`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, username, email, passwordHash, id))
	if err != nil {
		return types.User{}, translate(err)
	}
	return user, nil
}

// List returns every account, newest first. PasswordHash is left empty.
func (r *UserRepository) List(ctx context.Context) ([]types.User, error) {
	const query = `
		SELECT id, username, email, role, is_active, created_at
		FROM users
		ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]types.User, 0)
	for rows.Next() {
		var user types.User
		var role string
		if err := rows.Scan(
			&user.ID,
			&user.Username,
			&user.Email,
			&role,
			&user.IsActive,
			&user.CreatedAt,
		); err != nil {
			return nil, err
		}
		user.Role = types.Role(role)
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return users, nil
}

func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM users WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
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
