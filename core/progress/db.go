package progress

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

var ErrNotFound = errors.New("progress entry not found")

// Upsert is the single write path for content progress. Last write wins,
// with one exception: completion latches. Once a row is completed its
// percentage and completed_at are frozen, so heartbeat ticks arriving
// after completion cannot regress the state.
func Upsert(ctx context.Context, db sqlx.ExtContext, e Entry) error {
	const q = `
	INSERT INTO content_progress
		(user_id, content_id, module_id, course_id, progress_percentage, completed,
		 last_position, time_spent_seconds, completed_at, created_at, updated_at)
	VALUES
		(:user_id, :content_id, :module_id, :course_id, :progress_percentage, :completed,
		 :last_position, :time_spent_seconds, :completed_at, :created_at, :updated_at)
	ON CONFLICT (user_id, content_id) DO UPDATE SET
		progress_percentage = CASE
			WHEN content_progress.completed THEN content_progress.progress_percentage
			ELSE EXCLUDED.progress_percentage
		END,
		completed = content_progress.completed OR EXCLUDED.completed,
		last_position = COALESCE(EXCLUDED.last_position, content_progress.last_position),
		time_spent_seconds = content_progress.time_spent_seconds + EXCLUDED.time_spent_seconds,
		completed_at = COALESCE(content_progress.completed_at, EXCLUDED.completed_at),
		updated_at = EXCLUDED.updated_at`

	if _, err := sqlx.NamedExecContext(ctx, db, q, e); err != nil {
		return fmt.Errorf("upserting progress of content[%s]: %w", e.ContentID, err)
	}
	return nil
}

func Fetch(ctx context.Context, db sqlx.ExtContext, userID string, contentID string) (Entry, error) {
	const q = `SELECT * FROM content_progress WHERE user_id = $1 AND content_id = $2`

	var e Entry
	if err := sqlx.GetContext(ctx, db, &e, q, userID, contentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, ErrNotFound
		}
		return Entry{}, fmt.Errorf("selecting progress of content[%s]: %w", contentID, err)
	}
	return e, nil
}

func FetchByCourse(ctx context.Context, db sqlx.ExtContext, userID string, courseID string) ([]Entry, error) {
	const q = `
	SELECT * FROM content_progress
	WHERE user_id = $1 AND course_id = $2
	ORDER BY updated_at DESC`

	es := []Entry{}
	if err := sqlx.SelectContext(ctx, db, &es, q, userID, courseID); err != nil {
		return nil, fmt.Errorf("selecting progress of course[%s]: %w", courseID, err)
	}
	return es, nil
}

func FetchByModule(ctx context.Context, db sqlx.ExtContext, userID string, moduleID string) ([]Entry, error) {
	const q = `
	SELECT * FROM content_progress
	WHERE user_id = $1 AND module_id = $2
	ORDER BY updated_at DESC`

	es := []Entry{}
	if err := sqlx.SelectContext(ctx, db, &es, q, userID, moduleID); err != nil {
		return nil, fmt.Errorf("selecting progress of module[%s]: %w", moduleID, err)
	}
	return es, nil
}

func FetchByUser(ctx context.Context, db sqlx.ExtContext, userID string) ([]Entry, error) {
	const q = `
	SELECT * FROM content_progress
	WHERE user_id = $1
	ORDER BY updated_at DESC`

	es := []Entry{}
	if err := sqlx.SelectContext(ctx, db, &es, q, userID); err != nil {
		return nil, fmt.Errorf("selecting progress of user[%s]: %w", userID, err)
	}
	return es, nil
}
