package enrollment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

var ErrNotFound = errors.New("enrollment not found")

func Create(ctx context.Context, db sqlx.ExtContext, e Enrollment) error {
	const q = `
	INSERT INTO enrollments
		(enrollment_id, user_id, course_id, status, progress, enrolled_at,
		 completed_at, last_accessed_at, certificate_issued, certificate_url, updated_at)
	VALUES
		(:enrollment_id, :user_id, :course_id, :status, :progress, :enrolled_at,
		 :completed_at, :last_accessed_at, :certificate_issued, :certificate_url, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, e); err != nil {
		return fmt.Errorf("inserting enrollment: %w", err)
	}
	return nil
}

// Grant is the idempotent enrollment write used by payment fulfillment.
// Replays are absorbed by the (user_id, course_id) unique constraint; a
// previously cancelled enrollment is reactivated, any other state is
// left untouched.
func Grant(ctx context.Context, db sqlx.ExtContext, e Enrollment) error {
	const q = `
	INSERT INTO enrollments
		(enrollment_id, user_id, course_id, status, progress, enrolled_at,
		 completed_at, last_accessed_at, certificate_issued, certificate_url, updated_at)
	VALUES
		(:enrollment_id, :user_id, :course_id, :status, :progress, :enrolled_at,
		 :completed_at, :last_accessed_at, :certificate_issued, :certificate_url, :updated_at)
	ON CONFLICT (user_id, course_id) DO UPDATE
		SET status = 'active', updated_at = EXCLUDED.updated_at
		WHERE enrollments.status = 'cancelled'`

	if _, err := sqlx.NamedExecContext(ctx, db, q, e); err != nil {
		return fmt.Errorf("granting enrollment: %w", err)
	}
	return nil
}

func Fetch(ctx context.Context, db sqlx.ExtContext, id string) (Enrollment, error) {
	const q = `SELECT * FROM enrollments WHERE enrollment_id = $1`

	var e Enrollment
	if err := sqlx.GetContext(ctx, db, &e, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Enrollment{}, ErrNotFound
		}
		return Enrollment{}, fmt.Errorf("selecting enrollment[%s]: %w", id, err)
	}
	return e, nil
}

func FetchByUserCourse(ctx context.Context, db sqlx.ExtContext, userID string, courseID string) (Enrollment, error) {
	const q = `SELECT * FROM enrollments WHERE user_id = $1 AND course_id = $2`

	var e Enrollment
	if err := sqlx.GetContext(ctx, db, &e, q, userID, courseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Enrollment{}, ErrNotFound
		}
		return Enrollment{}, fmt.Errorf("selecting enrollment of user[%s] course[%s]: %w", userID, courseID, err)
	}
	return e, nil
}

func FetchAllByUser(ctx context.Context, db sqlx.ExtContext, userID string) ([]Enrollment, error) {
	const q = `SELECT * FROM enrollments WHERE user_id = $1 ORDER BY enrolled_at DESC`

	es := []Enrollment{}
	if err := sqlx.SelectContext(ctx, db, &es, q, userID); err != nil {
		return nil, fmt.Errorf("selecting enrollments of user[%s]: %w", userID, err)
	}
	return es, nil
}

func UpdateStatus(ctx context.Context, db sqlx.ExtContext, id string, status Status, now time.Time) error {
	const q = `
	UPDATE enrollments SET
		status = $2,
		progress = CASE WHEN $2 = 'completed' THEN 100 ELSE progress END,
		completed_at = CASE WHEN $2 = 'completed' THEN $3 ELSE completed_at END,
		updated_at = $3
	WHERE enrollment_id = $1`

	if _, err := db.ExecContext(ctx, q, id, status, now); err != nil {
		return fmt.Errorf("updating status of enrollment[%s]: %w", id, err)
	}
	return nil
}

// UpdateProgress overwrites the course-level progress number. Completed
// enrollments keep their 100.
func UpdateProgress(ctx context.Context, db sqlx.ExtContext, id string, progress int, now time.Time) error {
	const q = `
	UPDATE enrollments SET progress = $2, updated_at = $3
	WHERE enrollment_id = $1 AND status <> 'completed'`

	if _, err := db.ExecContext(ctx, q, id, progress, now); err != nil {
		return fmt.Errorf("updating progress of enrollment[%s]: %w", id, err)
	}
	return nil
}

// MirrorProgress opportunistically copies an aggregated course progress
// onto the enrollment row. Completed enrollments keep their 100.
func MirrorProgress(ctx context.Context, db sqlx.ExtContext, userID string, courseID string, progress int) error {
	const q = `
	UPDATE enrollments SET progress = $3, updated_at = $4
	WHERE user_id = $1 AND course_id = $2 AND status <> 'completed'`

	if _, err := db.ExecContext(ctx, q, userID, courseID, progress, time.Now().UTC()); err != nil {
		return fmt.Errorf("mirroring progress of user[%s] course[%s]: %w", userID, courseID, err)
	}
	return nil
}

func RegisterAccess(ctx context.Context, db sqlx.ExtContext, id string, now time.Time) error {
	const q = `
	UPDATE enrollments SET last_accessed_at = $2, updated_at = $2
	WHERE enrollment_id = $1`

	if _, err := db.ExecContext(ctx, q, id, now); err != nil {
		return fmt.Errorf("registering access of enrollment[%s]: %w", id, err)
	}
	return nil
}

func SetCertificate(ctx context.Context, db sqlx.ExtContext, id string, url string, now time.Time) error {
	const q = `
	UPDATE enrollments SET
		certificate_issued = TRUE,
		certificate_url = $2,
		updated_at = $3
	WHERE enrollment_id = $1 AND NOT certificate_issued`

	if _, err := db.ExecContext(ctx, q, id, url, now); err != nil {
		return fmt.Errorf("setting certificate of enrollment[%s]: %w", id, err)
	}
	return nil
}
