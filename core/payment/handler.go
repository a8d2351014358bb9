package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/api/web"
	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/api/weberr"
	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/config"
	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/core/claims"
	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/core/course"
	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/database"
	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/validate"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v74"
	stripecl "github.com/stripe/stripe-go/v74/client"
	"github.com/stripe/stripe-go/v74/webhook"
)

// HandleCheckout creates the hosted checkout session for a single
// course, splitting the charge between the platform and the instructor's
// connected account.
func HandleCheckout(db *sqlx.DB, strp *stripecl.API, cfg config.Stripe, log logrus.FieldLogger) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		var cn CheckoutNew
		if err := web.Decode(w, r, &cn); err != nil {
			return weberr.BadRequest(err)
		}

		if err := validate.Check(cn); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		if cn.UserID != "" && cn.UserID != clm.UserID {
			return weberr.Forbidden(errors.New("cannot check out for another user"))
		}

		crs, err := course.Fetch(ctx, db, cn.CourseID)
		if err != nil {
			if errors.Is(err, course.ErrNotFound) {
				return weberr.NotFound(err)
			}
			return err
		}

		if !crs.Published || crs.Price <= 0 {
			err := errors.New("course is not purchasable")
			return weberr.Unprocessable(err, err.Error())
		}

		if cn.InstructorID != "" && cn.InstructorID != crs.InstructorID {
			err := errors.New("instructor does not match the course")
			return weberr.Unprocessable(err, err.Error())
		}

		if crs.StripePriceID == nil {
			return weberr.NotFound(errors.New("course has no processor price"))
		}

		price, err := strp.Prices.Get(*crs.StripePriceID, nil)
		if err != nil {
			return fmt.Errorf("fetching price[%s]: %w", *crs.StripePriceID, err)
		}
		if !price.Active {
			return weberr.NotFound(errors.New("course price is not active"))
		}

		acct, err := FetchAccountByUser(ctx, db, crs.InstructorID)
		if err != nil {
			if errors.Is(err, ErrAccountNotFound) {
				return weberr.NotFound(errors.New("instructor has no payout account"))
			}
			return err
		}

		fee := Fee(crs.Price, cfg.FeePercent)

		params := &stripe.CheckoutSessionParams{
			SuccessURL: stripe.String(cfg.SuccessURL + "?session_id={CHECKOUT_SESSION_ID}"),
			CancelURL:  stripe.String(cfg.CancelURL),
			Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),

			LineItems: []*stripe.CheckoutSessionLineItemParams{{
				Price:    stripe.String(price.ID),
				Quantity: stripe.Int64(1),
			}},

			PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
				ApplicationFeeAmount: stripe.Int64(fee),
				TransferData: &stripe.CheckoutSessionPaymentIntentDataTransferDataParams{
					Destination: stripe.String(acct.StripeAccountID),
				},
			},
		}
		params.AddMetadata("courseId", crs.ID)
		params.AddMetadata("userId", clm.UserID)
		params.AddMetadata("instructorId", crs.InstructorID)

		s, err := strp.CheckoutSessions.New(params)
		if err != nil {
			return fmt.Errorf("creating checkout session: %w", err)
		}

		// Best effort: the webhook upsert recreates this row if the
		// insert fails, so a database hiccup must not lose the session
		// URL the user already paid stripe a round trip for.
		now := time.Now().UTC()
		t := Transaction{
			ID:                validate.GenerateID(),
			UserID:            clm.UserID,
			CourseID:          crs.ID,
			InstructorID:      crs.InstructorID,
			CheckoutSessionID: s.ID,
			Amount:            crs.Price,
			Currency:          crs.Currency,
			Status:            Pending,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if err := CreateTransaction(ctx, db, t); err != nil {
			log.WithFields(logrus.Fields{
				"session": s.ID,
				"message": err,
			}).Warn("could not record pending transaction")
		}

		return web.Respond(ctx, w, CheckoutSession{SessionID: s.ID, URL: s.URL}, http.StatusOK)
	}
}

// HandleShowCheckout backs the success page: it surfaces the session's
// live status next to the recorded transaction state. The two can
// disagree briefly while the webhook is in flight.
func HandleShowCheckout(db *sqlx.DB, strp *stripecl.API) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "session_id")
		if id == "" {
			return weberr.BadRequest(errors.New("missing session id"))
		}

		s, err := strp.CheckoutSessions.Get(id, nil)
		if err != nil {
			return weberr.NotFound(fmt.Errorf("fetching checkout session[%s]: %w", id, err))
		}

		out := struct {
			ID            string `json:"id"`
			Status        string `json:"status"`
			PaymentStatus string `json:"paymentStatus"`
			CourseID      string `json:"courseId"`
			Recorded      Status `json:"recordedStatus"`
		}{
			ID:            s.ID,
			Status:        string(s.Status),
			PaymentStatus: string(s.PaymentStatus),
			CourseID:      s.Metadata["courseId"],
		}

		if t, err := FetchTransactionBySession(ctx, db, id); err == nil {
			out.Recorded = t.Status
		}
		return web.Respond(ctx, w, out, http.StatusOK)
	}
}

// HandleWebhook receives signed processor events. Verification fails
// closed; unrecognized event types are acknowledged and ignored so the
// processor stops retrying them.
func HandleWebhook(db *sqlx.DB, cfg config.Stripe, log logrus.FieldLogger) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		b, err := io.ReadAll(r.Body)
		if err != nil {
			return weberr.BadRequest(fmt.Errorf("cannot read the request body: %w", err))
		}

		sig := r.Header.Get("Stripe-Signature")
		if sig == "" {
			return weberr.BadRequest(errors.New("received stripe event is not signed"))
		}

		event, err := webhook.ConstructEvent(b, sig, cfg.WebhookSecret)
		if err != nil {
			return weberr.BadRequest(fmt.Errorf("cannot construct stripe event: %w", err))
		}

		switch event.Type {
		case "checkout.session.completed":
			var session stripe.CheckoutSession
			if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
				return weberr.BadRequest(fmt.Errorf("unable to decode stripe event: %w", err))
			}

			if session.Mode != stripe.CheckoutSessionModePayment {
				break
			}

			if err := fulfill(ctx, db, log, session); err != nil {
				return fmt.Errorf("the session was payed but its fulfillment failed: %w", err)
			}

		case "checkout.session.expired":
			var session stripe.CheckoutSession
			if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
				return weberr.BadRequest(fmt.Errorf("unable to decode stripe event: %w", err))
			}

			if err := FailTransaction(ctx, db, session.ID, time.Now().UTC()); err != nil {
				return err
			}

		case "account.updated":
			var acct stripe.Account
			if err := json.Unmarshal(event.Data.Raw, &acct); err != nil {
				return weberr.BadRequest(fmt.Errorf("unable to decode stripe event: %w", err))
			}

			if err := SyncAccount(ctx, db, acct.ID, accountStatus(&acct), acct.DetailsSubmitted, acct.PayoutsEnabled); err != nil {
				return err
			}

		default:
			log.WithField("type", event.Type).Info("ignoring stripe event")
		}

		return web.Respond(ctx, w, map[string]bool{"received": true}, http.StatusOK)
	}
}

// fulfill marks the transaction succeeded and queues the enrollment
// grant in the same database transaction, then drains the grant inline.
// Every step tolerates replays: delivering the same event twice leaves
// one succeeded transaction and one active enrollment.
func fulfill(ctx context.Context, db *sqlx.DB, log logrus.FieldLogger, session stripe.CheckoutSession) error {
	userID := session.Metadata["userId"]
	courseID := session.Metadata["courseId"]
	instructorID := session.Metadata["instructorId"]
	if userID == "" || courseID == "" {
		return fmt.Errorf("session[%s] carries no user/course metadata", session.ID)
	}

	var intentID *string
	if session.PaymentIntent != nil {
		intentID = &session.PaymentIntent.ID
	}

	now := time.Now().UTC()
	t := Transaction{
		ID:                validate.GenerateID(),
		UserID:            userID,
		CourseID:          courseID,
		InstructorID:      instructorID,
		CheckoutSessionID: session.ID,
		PaymentIntentID:   intentID,
		Amount:            session.AmountTotal,
		Currency:          string(session.Currency),
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	var outboxID string
	err := database.Transaction(db, func(tx sqlx.ExtContext) error {
		if err := SucceedTransaction(ctx, tx, t); err != nil {
			return err
		}

		id, err := CreateOutbox(ctx, tx, KindEnrollmentGrant, GrantPayload{UserID: userID, CourseID: courseID})
		if err != nil {
			return err
		}
		outboxID = id
		return nil
	})
	if err != nil {
		return fmt.Errorf("fulfilling session[%s]: %w", session.ID, err)
	}

	// Inline grant; on failure the relay retries from the outbox.
	if err := grantEnrollment(ctx, db, userID, courseID); err != nil {
		log.WithFields(logrus.Fields{
			"session": session.ID,
			"message": err,
		}).Warn("inline enrollment grant failed, left to relay")
		return nil
	}

	return markProcessed(ctx, db, outboxID)
}

func accountStatus(acct *stripe.Account) AccountStatus {
	if acct.Requirements != nil && acct.Requirements.DisabledReason != "" {
		return AccountRejected
	}
	if acct.ChargesEnabled {
		return AccountVerified
	}
	return AccountPending
}
