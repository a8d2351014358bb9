package course

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

var ErrNotFound = errors.New("course not found")

func Create(ctx context.Context, db sqlx.ExtContext, c Course) error {
	const q = `
	INSERT INTO courses
		(course_id, instructor_id, name, description, image_url, price, currency,
		 published, stripe_product_id, stripe_price_id, created_at, updated_at)
	VALUES
		(:course_id, :instructor_id, :name, :description, :image_url, :price, :currency,
		 :published, :stripe_product_id, :stripe_price_id, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, c); err != nil {
		return fmt.Errorf("inserting course: %w", err)
	}
	return nil
}

func Update(ctx context.Context, db sqlx.ExtContext, c Course) error {
	const q = `
	UPDATE courses SET
		name = :name,
		description = :description,
		image_url = :image_url,
		price = :price,
		published = :published,
		stripe_product_id = :stripe_product_id,
		stripe_price_id = :stripe_price_id,
		updated_at = :updated_at,
		version = version + 1
	WHERE course_id = :course_id`

	if _, err := sqlx.NamedExecContext(ctx, db, q, c); err != nil {
		return fmt.Errorf("updating course[%s]: %w", c.ID, err)
	}
	return nil
}

func Fetch(ctx context.Context, db sqlx.ExtContext, id string) (Course, error) {
	const q = `SELECT * FROM courses WHERE course_id = $1`

	var c Course
	if err := sqlx.GetContext(ctx, db, &c, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Course{}, ErrNotFound
		}
		return Course{}, fmt.Errorf("selecting course[%s]: %w", id, err)
	}
	return c, nil
}

func FetchAll(ctx context.Context, db sqlx.ExtContext) ([]Course, error) {
	const q = `SELECT * FROM courses WHERE published ORDER BY created_at DESC`

	cs := []Course{}
	if err := sqlx.SelectContext(ctx, db, &cs, q); err != nil {
		return nil, fmt.Errorf("selecting courses: %w", err)
	}
	return cs, nil
}

func FetchByInstructor(ctx context.Context, db sqlx.ExtContext, instructorID string) ([]Course, error) {
	const q = `SELECT * FROM courses WHERE instructor_id = $1 ORDER BY created_at DESC`

	cs := []Course{}
	if err := sqlx.SelectContext(ctx, db, &cs, q, instructorID); err != nil {
		return nil, fmt.Errorf("selecting courses of instructor[%s]: %w", instructorID, err)
	}
	return cs, nil
}

// FetchOwned lists the courses the user holds a non-cancelled enrollment for.
func FetchOwned(ctx context.Context, db sqlx.ExtContext, userID string) ([]Course, error) {
	const q = `
	SELECT c.* FROM courses AS c
	JOIN enrollments AS e ON e.course_id = c.course_id
	WHERE e.user_id = $1 AND e.status <> 'cancelled'
	ORDER BY e.enrolled_at DESC`

	cs := []Course{}
	if err := sqlx.SelectContext(ctx, db, &cs, q, userID); err != nil {
		return nil, fmt.Errorf("selecting courses owned by user[%s]: %w", userID, err)
	}
	return cs, nil
}
