package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

var ErrNotFound = errors.New("user not found")

func Create(ctx context.Context, db sqlx.ExtContext, u User) error {
	const q = `
	INSERT INTO users (user_id, name, email, role, password_hash, active, created_at, updated_at)
	VALUES (:user_id, :name, :email, :role, :password_hash, :active, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, u); err != nil {
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

func Fetch(ctx context.Context, db sqlx.ExtContext, id string) (User, error) {
	const q = `SELECT * FROM users WHERE user_id = $1`

	var u User
	if err := sqlx.GetContext(ctx, db, &u, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("selecting user[%s]: %w", id, err)
	}
	return u, nil
}

func FetchByEmail(ctx context.Context, db sqlx.ExtContext, email string) (User, error) {
	const q = `SELECT * FROM users WHERE email = $1`

	var u User
	if err := sqlx.GetContext(ctx, db, &u, q, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("selecting user by email: %w", err)
	}
	return u, nil
}

func Update(ctx context.Context, db sqlx.ExtContext, u User) error {
	const q = `
	UPDATE users SET
		name = :name,
		role = :role,
		password_hash = :password_hash,
		active = :active,
		updated_at = :updated_at,
		version = version + 1
	WHERE user_id = :user_id`

	if _, err := sqlx.NamedExecContext(ctx, db, q, u); err != nil {
		return fmt.Errorf("updating user[%s]: %w", u.ID, err)
	}
	return nil
}
