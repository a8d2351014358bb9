package test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/api/web"
	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/core/enrollment"
	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/core/payment"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/webhook"
	mock "github.com/stripe/stripe-mock/param"
)

type mockStripe struct {
	mu sync.Mutex

	expectedFee         int64
	expectedDestination string

	nprices   int
	nsessions int
}

func newMockStripe() *mockStripe {
	return &mockStripe{}
}

func (m *mockStripe) handle() http.Handler {
	products := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		obj := map[string]any{"id": "prod_test_1", "active": true}
		web.Respond(context.Background(), w, obj, 200)
	})

	createPrice := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		params, _ := mock.ParseParams(r)
		if _, ok := params["unit_amount"]; !ok {
			web.Respond(context.Background(), w, nil, 400)
			return
		}

		m.mu.Lock()
		m.nprices++
		id := fmt.Sprintf("price_test_%d", m.nprices)
		m.mu.Unlock()

		obj := map[string]any{"id": id, "active": true}
		web.Respond(context.Background(), w, obj, 200)
	})

	getPrice := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		obj := map[string]any{"id": mux.Vars(r)["id"], "active": true}
		web.Respond(context.Background(), w, obj, 200)
	})

	updatePrice := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		obj := map[string]any{"id": mux.Vars(r)["id"], "active": false}
		web.Respond(context.Background(), w, obj, 200)
	})

	accounts := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		obj := map[string]any{"id": "acct_test_1"}
		web.Respond(context.Background(), w, obj, 200)
	})

	getAccount := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		obj := map[string]any{
			"id":                mux.Vars(r)["id"],
			"charges_enabled":   true,
			"details_submitted": true,
			"payouts_enabled":   true,
		}
		web.Respond(context.Background(), w, obj, 200)
	})

	accountLinks := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		obj := map[string]any{"url": "https://connect.stripe.test/onboarding"}
		web.Respond(context.Background(), w, obj, 200)
	})

	checkout := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		params, _ := mock.ParseParams(r)

		pid, ok := params["payment_intent_data"].(map[string]any)
		if !ok {
			web.Respond(context.Background(), w, nil, 400)
			return
		}

		m.mu.Lock()
		fee := strconv.FormatInt(m.expectedFee, 10)
		dest := m.expectedDestination
		m.mu.Unlock()

		if pid["application_fee_amount"] != fee {
			web.Respond(context.Background(), w, nil, 400)
			return
		}

		td, ok := pid["transfer_data"].(map[string]any)
		if !ok || td["destination"] != dest {
			web.Respond(context.Background(), w, nil, 400)
			return
		}

		lines, ok := params["line_items"].(map[string]any)
		if !ok || len(lines) != 1 {
			web.Respond(context.Background(), w, nil, 400)
			return
		}
		for _, li := range lines {
			it := li.(map[string]any)
			if it["quantity"] != "1" {
				web.Respond(context.Background(), w, nil, 400)
				return
			}
			if ref, ok := it["price"].(string); !ok || ref == "" {
				web.Respond(context.Background(), w, nil, 400)
				return
			}
		}

		m.mu.Lock()
		m.nsessions++
		id := fmt.Sprintf("cs_test_%d", m.nsessions)
		m.mu.Unlock()

		obj := map[string]any{
			"id":             id,
			"url":            "https://checkout.stripe.test/" + id,
			"status":         "open",
			"payment_status": "unpaid",
		}
		web.Respond(context.Background(), w, obj, 200)
	})

	getSession := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		obj := map[string]any{
			"id":             mux.Vars(r)["id"],
			"status":         "complete",
			"payment_status": "paid",
		}
		web.Respond(context.Background(), w, obj, 200)
	})

	r := mux.NewRouter()
	r.Handle("/v1/products", products).Methods("POST")
	r.Handle("/v1/prices", createPrice).Methods("POST")
	r.Handle("/v1/prices/{id}", getPrice).Methods("GET")
	r.Handle("/v1/prices/{id}", updatePrice).Methods("POST")
	r.Handle("/v1/accounts", accounts).Methods("POST")
	r.Handle("/v1/accounts/{id}", getAccount).Methods("GET")
	r.Handle("/v1/account_links", accountLinks).Methods("POST")
	r.Handle("/v1/checkout/sessions", checkout).Methods("POST")
	r.Handle("/v1/checkout/sessions/{id}", getSession).Methods("GET")
	return r
}

type paymentTest struct {
	*TestEnv
}

func TestPayment(t *testing.T) {
	env, err := NewTestEnv(t, "payment_test")
	if err != nil {
		t.Fatalf("initializing test env: %v", err)
	}

	ct := &courseTest{env}
	et := &enrollmentTest{env}
	pt := &paymentTest{env}

	// The instructor onboards a payout account and publishes a paid
	// course.
	instructor := pt.Login(t, pt.InstructorEmail, pt.InstructorPass)

	var onboarding struct {
		StripeAccountID string `json:"stripeAccountId"`
		OnboardingURL   string `json:"onboardingUrl"`
	}
	pt.postOK(t, "/payments/accounts", map[string]any{}, http.StatusCreated, &onboarding)
	if onboarding.StripeAccountID == "" || onboarding.OnboardingURL == "" {
		t.Fatal("onboarding response is incomplete")
	}

	// Repeating the call reuses the account.
	var again struct {
		StripeAccountID string `json:"stripeAccountId"`
	}
	pt.postOK(t, "/payments/accounts", map[string]any{}, http.StatusCreated, &again)
	if again.StripeAccountID != onboarding.StripeAccountID {
		t.Fatal("a second onboarding call created a new account")
	}

	var acct payment.Account
	pt.getJSON(t, "/payments/accounts/current", http.StatusOK, &acct)
	if acct.Status != payment.AccountVerified || !acct.PayoutsEnabled {
		t.Fatalf("account = %s (payouts %t), want verified with payouts", acct.Status, acct.PayoutsEnabled)
	}

	crs := ct.createCourseOK(t, 10000)
	pt.Logout(t)

	// The student checks out. The platform keeps 20%, the rest is
	// routed to the instructor's account.
	student := pt.Login(t, pt.UserEmail, pt.UserPass)

	pt.Stripe.mu.Lock()
	pt.Stripe.expectedFee = 2000
	pt.Stripe.expectedDestination = onboarding.StripeAccountID
	pt.Stripe.mu.Unlock()

	pt.postOK(t, "/payments/checkout", map[string]any{}, http.StatusBadRequest, nil)
	pt.postOK(t, "/payments/checkout", map[string]any{
		"courseId": crs.ID,
		"userId":   instructor.ID,
	}, http.StatusForbidden, nil)

	var session payment.CheckoutSession
	pt.postOK(t, "/payments/checkout", map[string]any{"courseId": crs.ID}, http.StatusOK, &session)
	if session.SessionID == "" || session.URL == "" {
		t.Fatal("checkout session response is incomplete")
	}

	var show struct {
		ID            string `json:"id"`
		PaymentStatus string `json:"paymentStatus"`
	}
	pt.getJSON(t, "/payments/checkout/"+session.SessionID, http.StatusOK, &show)
	if show.ID != session.SessionID {
		t.Fatalf("shown session %s, want %s", show.ID, session.SessionID)
	}

	// Payment alone does not enroll; the webhook does.
	if res := et.checkOK(t, crs.ID); res.IsEnrolled {
		t.Fatal("student enrolled before the webhook arrived")
	}

	body, sig := pt.completedEvent(t, session.SessionID, crs.ID, student.ID, instructor.ID)

	// A bad signature is rejected and must not mutate anything.
	pt.webhook(t, body, "t=1,v1=deadbeef", http.StatusBadRequest)
	if res := et.checkOK(t, crs.ID); res.IsEnrolled {
		t.Fatal("a badly signed webhook granted an enrollment")
	}

	pt.webhook(t, body, sig, http.StatusOK)

	res := et.checkOK(t, crs.ID)
	if !res.IsEnrolled || res.Enrollment.Status != enrollment.Active {
		t.Fatal("fulfillment did not grant the enrollment")
	}

	// Replays are acknowledged and change nothing.
	pt.webhook(t, body, sig, http.StatusOK)

	var es []enrollment.Enrollment
	pt.getJSON(t, "/enrollments", http.StatusOK, &es)
	if len(es) != 1 {
		t.Fatalf("got %d enrollments after replay, want 1", len(es))
	}

	pt.Logout(t)

	// The instructor sees exactly one succeeded transaction.
	pt.Login(t, pt.InstructorEmail, pt.InstructorPass)

	var ts []payment.Transaction
	pt.getJSON(t, "/payments/transactions", http.StatusOK, &ts)
	if len(ts) != 1 {
		t.Fatalf("got %d transactions, want 1", len(ts))
	}
	if ts[0].Status != payment.Succeeded {
		t.Fatalf("transaction status = %s, want succeeded", ts[0].Status)
	}
	if ts[0].CheckoutSessionID != session.SessionID {
		t.Fatalf("transaction session = %s, want %s", ts[0].CheckoutSessionID, session.SessionID)
	}

	w, err := pt.Client().Get(pt.URL + "/payments/transactions/export")
	if err != nil {
		t.Fatal(err)
	}
	defer w.Body.Close()
	if w.StatusCode != http.StatusOK {
		t.Fatalf("can't export transactions: status code %s", w.Status)
	}
	if ctype := w.Header.Get("Content-Type"); ctype != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Fatalf("export content type = %s", ctype)
	}

	pt.Logout(t)
}

func TestPaymentExpiry(t *testing.T) {
	env, err := NewTestEnv(t, "payment_expiry_test")
	if err != nil {
		t.Fatalf("initializing test env: %v", err)
	}

	ct := &courseTest{env}
	et := &enrollmentTest{env}
	pt := &paymentTest{env}

	instructor := pt.Login(t, pt.InstructorEmail, pt.InstructorPass)

	var onboarding struct {
		StripeAccountID string `json:"stripeAccountId"`
	}
	pt.postOK(t, "/payments/accounts", map[string]any{}, http.StatusCreated, &onboarding)

	crs := ct.createCourseOK(t, 10000)
	pt.Logout(t)

	student := pt.Login(t, pt.UserEmail, pt.UserPass)

	pt.Stripe.mu.Lock()
	pt.Stripe.expectedFee = 2000
	pt.Stripe.expectedDestination = onboarding.StripeAccountID
	pt.Stripe.mu.Unlock()

	var abandoned payment.CheckoutSession
	pt.postOK(t, "/payments/checkout", map[string]any{"courseId": crs.ID}, http.StatusOK, &abandoned)

	// The abandoned session expires: its pending transaction fails and
	// no enrollment is granted.
	body, sig := pt.expiredEvent(t, abandoned.SessionID)
	pt.webhook(t, body, sig, http.StatusOK)

	tx, err := payment.FetchTransactionBySession(context.Background(), pt.DB, abandoned.SessionID)
	if err != nil {
		t.Fatal(err)
	}
	if tx.Status != payment.Failed {
		t.Fatalf("transaction status = %s after expiry, want failed", tx.Status)
	}
	if res := et.checkOK(t, crs.ID); res.IsEnrolled {
		t.Fatal("an expired session granted an enrollment")
	}

	// A second session is paid; a late expired event for it must not
	// touch the succeeded transaction.
	var session payment.CheckoutSession
	pt.postOK(t, "/payments/checkout", map[string]any{"courseId": crs.ID}, http.StatusOK, &session)

	body, sig = pt.completedEvent(t, session.SessionID, crs.ID, student.ID, instructor.ID)
	pt.webhook(t, body, sig, http.StatusOK)

	body, sig = pt.expiredEvent(t, session.SessionID)
	pt.webhook(t, body, sig, http.StatusOK)

	tx, err = payment.FetchTransactionBySession(context.Background(), pt.DB, session.SessionID)
	if err != nil {
		t.Fatal(err)
	}
	if tx.Status != payment.Succeeded {
		t.Fatalf("transaction status = %s after a late expiry, want succeeded", tx.Status)
	}
	if res := et.checkOK(t, crs.ID); !res.IsEnrolled {
		t.Fatal("the paid enrollment was lost")
	}

	pt.Logout(t)
}

func TestOutboxRelay(t *testing.T) {
	env, err := NewTestEnv(t, "outbox_relay_test")
	if err != nil {
		t.Fatalf("initializing test env: %v", err)
	}

	ct := &courseTest{env}
	et := &enrollmentTest{env}

	ct.Login(t, ct.InstructorEmail, ct.InstructorPass)
	crs := ct.createCourseOK(t, 0)
	ct.Logout(t)

	student := env.Login(t, env.UserEmail, env.UserPass)

	ctx := context.Background()
	id, err := payment.CreateOutbox(ctx, env.DB, payment.KindEnrollmentGrant, payment.GrantPayload{
		UserID:   student.ID,
		CourseID: crs.ID,
	})
	if err != nil {
		t.Fatal(err)
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	rl := &payment.Relay{DB: env.DB, Log: logger, BatchSize: 10, MaxAttempts: 3}
	if err := rl.Run(ctx); err != nil {
		t.Fatal(err)
	}

	if res := et.checkOK(t, crs.ID); !res.IsEnrolled {
		t.Fatal("the relay did not grant the enrollment")
	}

	row := env.fetchOutbox(t, id)
	if row.ProcessedAt == nil {
		t.Fatal("the granted row was not marked processed")
	}

	// Draining again is a no-op for processed rows.
	if err := rl.Run(ctx); err != nil {
		t.Fatal(err)
	}

	var es []enrollment.Enrollment
	env.getJSON(t, "/enrollments", http.StatusOK, &es)
	if len(es) != 1 {
		t.Fatalf("got %d enrollments after a second drain, want 1", len(es))
	}

	// A row the relay cannot process is retried until the attempt cap,
	// then left alone.
	bad, err := payment.CreateOutbox(ctx, env.DB, "mystery.kind", map[string]string{})
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		if err := rl.Run(ctx); err != nil {
			t.Fatal(err)
		}
	}

	row = env.fetchOutbox(t, bad)
	if row.ProcessedAt != nil {
		t.Fatal("an unprocessable row was marked processed")
	}
	if row.Attempts != 3 {
		t.Fatalf("attempts = %d, want 3", row.Attempts)
	}

	if err := rl.Run(ctx); err != nil {
		t.Fatal(err)
	}
	if row = env.fetchOutbox(t, bad); row.Attempts != 3 {
		t.Fatalf("attempts = %d after hitting the cap, want 3", row.Attempts)
	}

	env.Logout(t)
}

func (env *TestEnv) fetchOutbox(t *testing.T, id string) payment.Outbox {
	t.Helper()

	var o payment.Outbox
	const q = `SELECT * FROM outbox WHERE outbox_id = $1`
	if err := env.DB.GetContext(context.Background(), &o, q, id); err != nil {
		t.Fatalf("fetching outbox row[%s]: %v", id, err)
	}
	return o
}

// completedEvent builds and signs a checkout.session.completed payload
// the way stripe delivers it.
func (pt *paymentTest) completedEvent(t *testing.T, sessionID, courseID, userID, instructorID string) ([]byte, string) {
	t.Helper()

	obj := map[string]any{
		"id":           sessionID,
		"mode":         stripe.CheckoutSessionModePayment,
		"amount_total": 10000,
		"currency":     "usd",
		"metadata": map[string]string{
			"courseId":     courseID,
			"userId":       userID,
			"instructorId": instructorID,
		},
	}

	raw, err := json.Marshal(obj)
	if err != nil {
		t.Fatal(err)
	}

	evt := stripe.Event{
		APIVersion: "2022-11-15",
		Type:       "checkout.session.completed",
		Data: &stripe.EventData{
			Raw: json.RawMessage(raw),
		},
	}

	b, err := json.Marshal(evt)
	if err != nil {
		t.Fatal(err)
	}

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   b,
		Secret:    pt.WebhookSecret,
		Timestamp: time.Now(),
	})
	return b, signed.Header
}

// expiredEvent builds and signs a checkout.session.expired payload.
func (pt *paymentTest) expiredEvent(t *testing.T, sessionID string) ([]byte, string) {
	t.Helper()

	obj := map[string]any{
		"id":   sessionID,
		"mode": stripe.CheckoutSessionModePayment,
	}

	raw, err := json.Marshal(obj)
	if err != nil {
		t.Fatal(err)
	}

	evt := stripe.Event{
		APIVersion: "2022-11-15",
		Type:       "checkout.session.expired",
		Data: &stripe.EventData{
			Raw: json.RawMessage(raw),
		},
	}

	b, err := json.Marshal(evt)
	if err != nil {
		t.Fatal(err)
	}

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   b,
		Secret:    pt.WebhookSecret,
		Timestamp: time.Now(),
	})
	return b, signed.Header
}

func (pt *paymentTest) webhook(t *testing.T, body []byte, sig string, wantStatus int) {
	t.Helper()

	r, err := http.NewRequest(http.MethodPost, pt.URL+"/payments/webhook", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	r.Header.Set("Stripe-Signature", sig)

	w, err := pt.Client().Do(r)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Body.Close()

	if w.StatusCode != wantStatus {
		t.Fatalf("webhook: status code %s, want %d", w.Status, wantStatus)
	}
}
