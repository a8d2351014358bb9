package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/core/enrollment"
	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/validate"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

// KindEnrollmentGrant is the one outbox kind today: activate the paid
// enrollment after its transaction succeeded.
const KindEnrollmentGrant = "enrollment.grant"

type Outbox struct {
	ID          string          `db:"outbox_id"`
	Kind        string          `db:"kind"`
	Payload     json.RawMessage `db:"payload"`
	Attempts    int             `db:"attempts"`
	CreatedAt   time.Time       `db:"created_at"`
	ProcessedAt *time.Time      `db:"processed_at"`
}

type GrantPayload struct {
	UserID   string `json:"userId"`
	CourseID string `json:"courseId"`
}

// CreateOutbox writes the pending side effect in the caller's
// transaction so the status update and the effect commit atomically.
func CreateOutbox(ctx context.Context, db sqlx.ExtContext, kind string, payload any) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshalling outbox payload: %w", err)
	}

	o := Outbox{
		ID:        validate.GenerateID(),
		Kind:      kind,
		Payload:   raw,
		CreatedAt: time.Now().UTC(),
	}

	const q = `
	INSERT INTO outbox (outbox_id, kind, payload, attempts, created_at)
	VALUES (:outbox_id, :kind, :payload, :attempts, :created_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, o); err != nil {
		return "", fmt.Errorf("inserting outbox row: %w", err)
	}
	return o.ID, nil
}

func fetchUnprocessed(ctx context.Context, db sqlx.ExtContext, limit int, maxAttempts int) ([]Outbox, error) {
	const q = `
	SELECT * FROM outbox
	WHERE processed_at IS NULL AND attempts < $2
	ORDER BY created_at
	LIMIT $1`

	os := []Outbox{}
	if err := sqlx.SelectContext(ctx, db, &os, q, limit, maxAttempts); err != nil {
		return nil, fmt.Errorf("selecting unprocessed outbox rows: %w", err)
	}
	return os, nil
}

func markProcessed(ctx context.Context, db sqlx.ExtContext, id string) error {
	const q = `UPDATE outbox SET processed_at = $2 WHERE outbox_id = $1 AND processed_at IS NULL`

	if _, err := db.ExecContext(ctx, q, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("marking outbox row[%s] processed: %w", id, err)
	}
	return nil
}

func bumpAttempts(ctx context.Context, db sqlx.ExtContext, id string) error {
	const q = `UPDATE outbox SET attempts = attempts + 1 WHERE outbox_id = $1`

	if _, err := db.ExecContext(ctx, q, id); err != nil {
		return fmt.Errorf("bumping attempts of outbox row[%s]: %w", id, err)
	}
	return nil
}

// Relay drains the outbox. It runs on the scheduler and is also invoked
// inline after webhook fulfillment so the common case grants access
// immediately.
type Relay struct {
	DB          *sqlx.DB
	Log         logrus.FieldLogger
	BatchSize   int
	MaxAttempts int
}

func (rl *Relay) Run(ctx context.Context) error {
	rows, err := fetchUnprocessed(ctx, rl.DB, rl.BatchSize, rl.MaxAttempts)
	if err != nil {
		return err
	}

	for _, row := range rows {
		if err := rl.Process(ctx, row); err != nil {
			rl.Log.WithFields(logrus.Fields{
				"outbox_id": row.ID,
				"kind":      row.Kind,
				"message":   err,
			}).Error("outbox row failed")

			if err := bumpAttempts(ctx, rl.DB, row.ID); err != nil {
				return err
			}
			continue
		}

		if err := markProcessed(ctx, rl.DB, row.ID); err != nil {
			return err
		}
	}
	return nil
}

func (rl *Relay) Process(ctx context.Context, row Outbox) error {
	switch row.Kind {
	case KindEnrollmentGrant:
		var p GrantPayload
		if err := json.Unmarshal(row.Payload, &p); err != nil {
			return fmt.Errorf("decoding grant payload: %w", err)
		}
		return grantEnrollment(ctx, rl.DB, p.UserID, p.CourseID)
	default:
		return fmt.Errorf("unknown outbox kind %q", row.Kind)
	}
}

// grantEnrollment is idempotent: replays hit the (user, course) unique
// constraint and change nothing.
func grantEnrollment(ctx context.Context, db sqlx.ExtContext, userID string, courseID string) error {
	now := time.Now().UTC()
	e := enrollment.Enrollment{
		ID:         validate.GenerateID(),
		UserID:     userID,
		CourseID:   courseID,
		Status:     enrollment.Active,
		Progress:   0,
		EnrolledAt: now,
		UpdatedAt:  now,
	}
	return enrollment.Grant(ctx, db, e)
}
