package token

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/core/user"
	"github.com/jmoiron/sqlx"
)

var ErrNotFound = errors.New("token not found or expired")

func Create(ctx context.Context, db sqlx.ExtContext, tk Token) error {
	const q = `
	INSERT INTO tokens (token_hash, user_id, scope, expiry)
	VALUES (:token_hash, :user_id, :scope, :expiry)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, tk); err != nil {
		return fmt.Errorf("inserting token: %w", err)
	}
	return nil
}

func DeleteByUser(ctx context.Context, db sqlx.ExtContext, userID string, scope string) error {
	const q = `DELETE FROM tokens WHERE user_id = $1 AND scope = $2`

	if _, err := db.ExecContext(ctx, q, userID, scope); err != nil {
		return fmt.Errorf("deleting tokens for user[%s]: %w", userID, err)
	}
	return nil
}

// FetchUser resolves a plaintext token to its owner, enforcing scope and
// expiry.
func FetchUser(ctx context.Context, db sqlx.ExtContext, plain string, scope string) (user.User, error) {
	const q = `
	SELECT u.* FROM users AS u
	JOIN tokens AS t ON t.user_id = u.user_id
	WHERE t.token_hash = $1 AND t.scope = $2 AND t.expiry > $3`

	var u user.User
	err := sqlx.GetContext(ctx, db, &u, q, Hash(plain), scope, time.Now().UTC())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return user.User{}, ErrNotFound
		}
		return user.User{}, fmt.Errorf("selecting token user: %w", err)
	}
	return u, nil
}
