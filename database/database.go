package database

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/config"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// uniqueViolation is the postgres error code raised when an insert
// breaks a unique constraint.
const uniqueViolation = "23505"

func Open(cfg config.DB) (*sqlx.DB, error) {
	sslMode := "require"
	if cfg.DisableTLS {
		sslMode = "disable"
	}

	q := make(url.Values)
	q.Set("sslmode", sslMode)
	q.Set("timezone", "utc")

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     cfg.Host,
		Path:     cfg.Name,
		RawQuery: q.Encode(),
	}

	return sqlx.Connect("postgres", u.String())
}

func StatusCheck(ctx context.Context, db *sqlx.DB) error {
	var noop bool
	if err := db.QueryRowContext(ctx, "SELECT true").Scan(&noop); err != nil {
		return fmt.Errorf("database not ready: %w", err)
	}
	return nil
}

// Transaction runs fn inside a transaction, rolling back on error.
func Transaction(db *sqlx.DB, fn func(tx sqlx.ExtContext) error) error {
	tx, err := db.Beginx()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			return fmt.Errorf("rolling back after %q: %w", err, rerr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func IsUniqueViolation(err error) bool {
	var pqerr *pq.Error
	if errors.As(err, &pqerr) {
		return pqerr.Code == uniqueViolation
	}
	return false
}
