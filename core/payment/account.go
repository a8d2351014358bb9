package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/api/web"
	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/api/weberr"
	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/config"
	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/core/claims"
	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/core/user"
	"github.com/jmoiron/sqlx"
	"github.com/stripe/stripe-go/v74"
	stripecl "github.com/stripe/stripe-go/v74/client"
)

// HandleCreateAccount provisions the instructor's connected account and
// returns a fresh onboarding link. Repeat calls reuse the existing
// account, so a half-onboarded instructor can resume the hosted flow.
func HandleCreateAccount(db *sqlx.DB, strp *stripecl.API, cfg config.Stripe) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		acct, err := FetchAccountByUser(ctx, db, clm.UserID)
		if err != nil && !errors.Is(err, ErrAccountNotFound) {
			return err
		}

		if errors.Is(err, ErrAccountNotFound) {
			u, err := user.Fetch(ctx, db, clm.UserID)
			if err != nil {
				return err
			}

			created, err := strp.Accounts.New(&stripe.AccountParams{
				Type:  stripe.String(string(stripe.AccountTypeExpress)),
				Email: stripe.String(u.Email),
				Capabilities: &stripe.AccountCapabilitiesParams{
					CardPayments: &stripe.AccountCapabilitiesCardPaymentsParams{Requested: stripe.Bool(true)},
					Transfers:    &stripe.AccountCapabilitiesTransfersParams{Requested: stripe.Bool(true)},
				},
			})
			if err != nil {
				return fmt.Errorf("creating connected account: %w", err)
			}

			now := time.Now().UTC()
			acct = Account{
				UserID:          clm.UserID,
				StripeAccountID: created.ID,
				Status:          AccountPending,
				CreatedAt:       now,
				UpdatedAt:       now,
			}
			if err := UpsertAccount(ctx, db, acct); err != nil {
				return err
			}
		}

		link, err := strp.AccountLinks.New(&stripe.AccountLinkParams{
			Account:    stripe.String(acct.StripeAccountID),
			RefreshURL: stripe.String(cfg.RefreshURL),
			ReturnURL:  stripe.String(cfg.ReturnURL),
			Type:       stripe.String("account_onboarding"),
		})
		if err != nil {
			return fmt.Errorf("creating onboarding link: %w", err)
		}

		out := struct {
			StripeAccountID string `json:"stripeAccountId"`
			OnboardingURL   string `json:"onboardingUrl"`
		}{acct.StripeAccountID, link.URL}

		return web.Respond(ctx, w, out, http.StatusCreated)
	}
}

// HandleShowAccount returns the stored account, refreshed with a live
// status poll when the processor is reachable.
func HandleShowAccount(db *sqlx.DB, strp *stripecl.API) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		acct, err := FetchAccountByUser(ctx, db, clm.UserID)
		if err != nil {
			if errors.Is(err, ErrAccountNotFound) {
				return weberr.NotFound(err)
			}
			return err
		}

		if live, err := strp.Accounts.GetByID(acct.StripeAccountID, nil); err == nil {
			if err := SyncAccount(ctx, db, live.ID, accountStatus(live), live.DetailsSubmitted, live.PayoutsEnabled); err != nil {
				return err
			}
			acct, err = FetchAccountByUser(ctx, db, clm.UserID)
			if err != nil {
				return err
			}
		}

		return web.Respond(ctx, w, acct, http.StatusOK)
	}
}

func HandleListTransactions(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		ts, err := FetchTransactionsByInstructor(ctx, db, clm.UserID)
		if err != nil {
			return err
		}
		return web.Respond(ctx, w, ts, http.StatusOK)
	}
}
