package content

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

var ErrNotFound = errors.New("content not found")

func CreateModule(ctx context.Context, db sqlx.ExtContext, m Module) error {
	const q = `
	INSERT INTO modules (module_id, course_id, index, name, description, created_at, updated_at)
	VALUES (:module_id, :course_id, :index, :name, :description, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, m); err != nil {
		return fmt.Errorf("inserting module: %w", err)
	}
	return nil
}

func FetchModule(ctx context.Context, db sqlx.ExtContext, id string) (Module, error) {
	const q = `SELECT * FROM modules WHERE module_id = $1`

	var m Module
	if err := sqlx.GetContext(ctx, db, &m, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Module{}, ErrNotFound
		}
		return Module{}, fmt.Errorf("selecting module[%s]: %w", id, err)
	}
	return m, nil
}

func FetchModulesByCourse(ctx context.Context, db sqlx.ExtContext, courseID string) ([]Module, error) {
	const q = `SELECT * FROM modules WHERE course_id = $1 ORDER BY index`

	ms := []Module{}
	if err := sqlx.SelectContext(ctx, db, &ms, q, courseID); err != nil {
		return nil, fmt.Errorf("selecting modules of course[%s]: %w", courseID, err)
	}
	return ms, nil
}

func CreateItem(ctx context.Context, db sqlx.ExtContext, it Item) error {
	const q = `
	INSERT INTO content_items
		(content_id, module_id, course_id, index, name, kind, free, url, duration_seconds, created_at, updated_at)
	VALUES
		(:content_id, :module_id, :course_id, :index, :name, :kind, :free, :url, :duration_seconds, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, it); err != nil {
		return fmt.Errorf("inserting content item: %w", err)
	}
	return nil
}

func UpdateItem(ctx context.Context, db sqlx.ExtContext, it Item) error {
	const q = `
	UPDATE content_items SET
		index = :index,
		name = :name,
		free = :free,
		url = :url,
		duration_seconds = :duration_seconds,
		updated_at = :updated_at
	WHERE content_id = :content_id`

	if _, err := sqlx.NamedExecContext(ctx, db, q, it); err != nil {
		return fmt.Errorf("updating content item[%s]: %w", it.ID, err)
	}
	return nil
}

func FetchItem(ctx context.Context, db sqlx.ExtContext, id string) (Item, error) {
	const q = `SELECT * FROM content_items WHERE content_id = $1`

	var it Item
	if err := sqlx.GetContext(ctx, db, &it, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Item{}, ErrNotFound
		}
		return Item{}, fmt.Errorf("selecting content item[%s]: %w", id, err)
	}
	return it, nil
}

func FetchItemsByModule(ctx context.Context, db sqlx.ExtContext, moduleID string) ([]Item, error) {
	const q = `SELECT * FROM content_items WHERE module_id = $1 ORDER BY index`

	its := []Item{}
	if err := sqlx.SelectContext(ctx, db, &its, q, moduleID); err != nil {
		return nil, fmt.Errorf("selecting items of module[%s]: %w", moduleID, err)
	}
	return its, nil
}

func FetchItemsByCourse(ctx context.Context, db sqlx.ExtContext, courseID string) ([]Item, error) {
	const q = `SELECT * FROM content_items WHERE course_id = $1 ORDER BY index`

	its := []Item{}
	if err := sqlx.SelectContext(ctx, db, &its, q, courseID); err != nil {
		return nil, fmt.Errorf("selecting items of course[%s]: %w", courseID, err)
	}
	return its, nil
}

// CountByCourse is the denominator of every course progress roll-up.
func CountByCourse(ctx context.Context, db sqlx.ExtContext, courseID string) (int, error) {
	const q = `SELECT COUNT(*) FROM content_items WHERE course_id = $1`

	var n int
	if err := sqlx.GetContext(ctx, db, &n, q, courseID); err != nil {
		return 0, fmt.Errorf("counting items of course[%s]: %w", courseID, err)
	}
	return n, nil
}

