package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

var (
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrAccountNotFound     = errors.New("payout account not found")
)

func CreateTransaction(ctx context.Context, db sqlx.ExtContext, t Transaction) error {
	const q = `
	INSERT INTO stripe_transactions
		(transaction_id, user_id, course_id, instructor_id, checkout_session_id,
		 payment_intent_id, amount, currency, payment_status, created_at, updated_at)
	VALUES
		(:transaction_id, :user_id, :course_id, :instructor_id, :checkout_session_id,
		 :payment_intent_id, :amount, :currency, :payment_status, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, t); err != nil {
		return fmt.Errorf("inserting transaction: %w", err)
	}
	return nil
}

// SucceedTransaction marks the transaction bound to the session as
// succeeded. The statement is a replay-safe upsert: when the pending row
// was never written (its insert is best-effort) the row is created
// outright, and an already succeeded row is left untouched.
func SucceedTransaction(ctx context.Context, db sqlx.ExtContext, t Transaction) error {
	const q = `
	INSERT INTO stripe_transactions
		(transaction_id, user_id, course_id, instructor_id, checkout_session_id,
		 payment_intent_id, amount, currency, payment_status, created_at, updated_at)
	VALUES
		(:transaction_id, :user_id, :course_id, :instructor_id, :checkout_session_id,
		 :payment_intent_id, :amount, :currency, 'succeeded', :created_at, :updated_at)
	ON CONFLICT (checkout_session_id) DO UPDATE SET
		payment_status = 'succeeded',
		payment_intent_id = COALESCE(EXCLUDED.payment_intent_id, stripe_transactions.payment_intent_id),
		updated_at = EXCLUDED.updated_at
	WHERE stripe_transactions.payment_status <> 'succeeded'`

	if _, err := sqlx.NamedExecContext(ctx, db, q, t); err != nil {
		return fmt.Errorf("succeeding transaction of session[%s]: %w", t.CheckoutSessionID, err)
	}
	return nil
}

func FailTransaction(ctx context.Context, db sqlx.ExtContext, sessionID string, now time.Time) error {
	const q = `
	UPDATE stripe_transactions SET payment_status = 'failed', updated_at = $2
	WHERE checkout_session_id = $1 AND payment_status = 'pending'`

	if _, err := db.ExecContext(ctx, q, sessionID, now); err != nil {
		return fmt.Errorf("failing transaction of session[%s]: %w", sessionID, err)
	}
	return nil
}

// ExpirePending fails pending transactions older than the cutoff,
// mirroring stripe's own session expiry for rows whose expired event was
// never delivered.
func ExpirePending(ctx context.Context, db sqlx.ExtContext, cutoff time.Time) (int64, error) {
	const q = `
	UPDATE stripe_transactions SET payment_status = 'failed', updated_at = $2
	WHERE payment_status = 'pending' AND created_at < $1`

	res, err := db.ExecContext(ctx, q, cutoff, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("expiring pending transactions: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func FetchTransactionBySession(ctx context.Context, db sqlx.ExtContext, sessionID string) (Transaction, error) {
	const q = `SELECT * FROM stripe_transactions WHERE checkout_session_id = $1`

	var t Transaction
	if err := sqlx.GetContext(ctx, db, &t, q, sessionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Transaction{}, ErrTransactionNotFound
		}
		return Transaction{}, fmt.Errorf("selecting transaction of session[%s]: %w", sessionID, err)
	}
	return t, nil
}

func FetchTransactionsByInstructor(ctx context.Context, db sqlx.ExtContext, instructorID string) ([]Transaction, error) {
	const q = `
	SELECT * FROM stripe_transactions
	WHERE instructor_id = $1
	ORDER BY created_at DESC`

	ts := []Transaction{}
	if err := sqlx.SelectContext(ctx, db, &ts, q, instructorID); err != nil {
		return nil, fmt.Errorf("selecting transactions of instructor[%s]: %w", instructorID, err)
	}
	return ts, nil
}

func UpsertAccount(ctx context.Context, db sqlx.ExtContext, a Account) error {
	const q = `
	INSERT INTO stripe_accounts
		(user_id, stripe_account_id, account_status, onboarding_complete,
		 payouts_enabled, created_at, updated_at)
	VALUES
		(:user_id, :stripe_account_id, :account_status, :onboarding_complete,
		 :payouts_enabled, :created_at, :updated_at)
	ON CONFLICT (user_id) DO UPDATE SET
		account_status = EXCLUDED.account_status,
		onboarding_complete = EXCLUDED.onboarding_complete,
		payouts_enabled = EXCLUDED.payouts_enabled,
		updated_at = EXCLUDED.updated_at`

	if _, err := sqlx.NamedExecContext(ctx, db, q, a); err != nil {
		return fmt.Errorf("upserting payout account of user[%s]: %w", a.UserID, err)
	}
	return nil
}

func FetchAccountByUser(ctx context.Context, db sqlx.ExtContext, userID string) (Account, error) {
	const q = `SELECT * FROM stripe_accounts WHERE user_id = $1`

	var a Account
	if err := sqlx.GetContext(ctx, db, &a, q, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, fmt.Errorf("selecting payout account of user[%s]: %w", userID, err)
	}
	return a, nil
}

// SyncAccount applies processor-declared status fields by stripe account
// id, the only key an account.updated event carries.
func SyncAccount(ctx context.Context, db sqlx.ExtContext, stripeAccountID string, status AccountStatus, onboarded bool, payouts bool) error {
	const q = `
	UPDATE stripe_accounts SET
		account_status = $2,
		onboarding_complete = $3,
		payouts_enabled = $4,
		updated_at = $5
	WHERE stripe_account_id = $1`

	if _, err := db.ExecContext(ctx, q, stripeAccountID, status, onboarded, payouts, time.Now().UTC()); err != nil {
		return fmt.Errorf("syncing payout account[%s]: %w", stripeAccountID, err)
	}
	return nil
}
