package payment

import "time"

type Status string

const (
	Pending   Status = "pending"
	Succeeded Status = "succeeded"
	Failed    Status = "failed"
	Refunded  Status = "refunded"
)

type AccountStatus string

const (
	AccountPending  AccountStatus = "pending"
	AccountVerified AccountStatus = "verified"
	AccountRejected AccountStatus = "rejected"
)

// Transaction tracks one checkout attempt. It is created pending and
// moved to succeeded or failed exclusively by webhook events; the client
// never marks its own payment successful.
type Transaction struct {
	ID                string    `json:"id" db:"transaction_id"`
	UserID            string    `json:"userId" db:"user_id"`
	CourseID          string    `json:"courseId" db:"course_id"`
	InstructorID      string    `json:"instructorId" db:"instructor_id"`
	CheckoutSessionID string    `json:"checkoutSessionId" db:"checkout_session_id"`
	PaymentIntentID   *string   `json:"paymentIntentId" db:"payment_intent_id"`
	Amount            int64     `json:"amount" db:"amount"`
	Currency          string    `json:"currency" db:"currency"`
	Status            Status    `json:"paymentStatus" db:"payment_status"`
	CreatedAt         time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt         time.Time `json:"updatedAt" db:"updated_at"`
}

// Account is an instructor's connected payout account. Its status fields
// are written only from account.updated events or explicit status polls.
type Account struct {
	UserID             string        `json:"userId" db:"user_id"`
	StripeAccountID    string        `json:"stripeAccountId" db:"stripe_account_id"`
	Status             AccountStatus `json:"accountStatus" db:"account_status"`
	OnboardingComplete bool          `json:"onboardingComplete" db:"onboarding_complete"`
	PayoutsEnabled     bool          `json:"payoutsEnabled" db:"payouts_enabled"`
	CreatedAt          time.Time     `json:"createdAt" db:"created_at"`
	UpdatedAt          time.Time     `json:"updatedAt" db:"updated_at"`
}

type CheckoutNew struct {
	CourseID     string `json:"courseId" validate:"required,uuid4"`
	UserID       string `json:"userId" validate:"omitempty,uuid4"`
	InstructorID string `json:"instructorId" validate:"omitempty,uuid4"`
}

type CheckoutSession struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

// Fee computes the platform's cut in minor currency units.
func Fee(amount int64, percent int64) int64 {
	return amount * percent / 100
}
