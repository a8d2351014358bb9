package course

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/api/web"
	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/api/weberr"
	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/core/claims"
	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/validate"
	"github.com/jmoiron/sqlx"
	"github.com/stripe/stripe-go/v74"
	stripecl "github.com/stripe/stripe-go/v74/client"
)

func HandleCreate(db *sqlx.DB, strp *stripecl.API) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		var cn CourseNew
		if err := web.Decode(w, r, &cn); err != nil {
			return weberr.BadRequest(err)
		}

		if err := validate.Check(cn); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		now := time.Now().UTC()
		c := Course{
			ID:           validate.GenerateID(),
			InstructorID: clm.UserID,
			Name:         cn.Name,
			Description:  cn.Description,
			ImageURL:     cn.ImageURL,
			Price:        cn.Price,
			Currency:     cn.Currency,
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		if c.Price > 0 {
			if err := provision(&c, strp); err != nil {
				return fmt.Errorf("provisioning stripe product: %w", err)
			}
		}

		if err := Create(ctx, db, c); err != nil {
			return err
		}

		return web.Respond(ctx, w, c, http.StatusCreated)
	}
}

func HandleUpdate(db *sqlx.DB, strp *stripecl.API) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		var cu CourseUp
		if err := web.Decode(w, r, &cu); err != nil {
			return weberr.BadRequest(err)
		}

		if err := validate.Check(cu); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		c, err := Fetch(ctx, db, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return err
		}

		if !claims.IsAdmin(ctx) && !claims.IsUser(ctx, c.InstructorID) {
			return weberr.Forbidden(errors.New("course belongs to another instructor"))
		}

		if cu.Name != nil {
			c.Name = *cu.Name
		}
		if cu.Description != nil {
			c.Description = *cu.Description
		}
		if cu.ImageURL != nil {
			c.ImageURL = *cu.ImageURL
		}
		if cu.Published != nil {
			c.Published = *cu.Published
		}

		if cu.Price != nil && *cu.Price != c.Price {
			c.Price = *cu.Price
			if c.Price > 0 {
				if err := reprice(&c, strp); err != nil {
					return fmt.Errorf("updating stripe price: %w", err)
				}
			}
		}

		c.UpdatedAt = time.Now().UTC()
		if err := Update(ctx, db, c); err != nil {
			return err
		}

		return web.Respond(ctx, w, c, http.StatusOK)
	}
}

func HandleShow(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		c, err := Fetch(ctx, db, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return err
		}

		if !c.Published && !claims.IsAdmin(ctx) && !claims.IsUser(ctx, c.InstructorID) {
			return weberr.NotFound(errors.New("course is not published"))
		}

		return web.Respond(ctx, w, c, http.StatusOK)
	}
}

func HandleList(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		cs, err := FetchAll(ctx, db)
		if err != nil {
			return err
		}
		return web.Respond(ctx, w, cs, http.StatusOK)
	}
}

func HandleListOwned(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		cs, err := FetchOwned(ctx, db, clm.UserID)
		if err != nil {
			return err
		}
		return web.Respond(ctx, w, cs, http.StatusOK)
	}
}

func HandleListTaught(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		cs, err := FetchByInstructor(ctx, db, clm.UserID)
		if err != nil {
			return err
		}
		return web.Respond(ctx, w, cs, http.StatusOK)
	}
}

// provision mirrors the course into a stripe product with one active price.
func provision(c *Course, strp *stripecl.API) error {
	prod, err := strp.Products.New(&stripe.ProductParams{
		Name:        stripe.String(c.Name),
		Description: stripe.String(c.Description),
	})
	if err != nil {
		return fmt.Errorf("creating product: %w", err)
	}
	c.StripeProductID = &prod.ID

	price, err := strp.Prices.New(&stripe.PriceParams{
		Product:    stripe.String(prod.ID),
		UnitAmount: stripe.Int64(c.Price),
		Currency:   stripe.String(c.Currency),
	})
	if err != nil {
		return fmt.Errorf("creating price: %w", err)
	}
	c.StripePriceID = &price.ID

	return nil
}

// reprice creates a fresh stripe price and retires the old one. Stripe
// prices are immutable, so a price change is always a new price object.
func reprice(c *Course, strp *stripecl.API) error {
	if c.StripeProductID == nil {
		return provision(c, strp)
	}

	price, err := strp.Prices.New(&stripe.PriceParams{
		Product:    stripe.String(*c.StripeProductID),
		UnitAmount: stripe.Int64(c.Price),
		Currency:   stripe.String(c.Currency),
	})
	if err != nil {
		return fmt.Errorf("creating price: %w", err)
	}

	if c.StripePriceID != nil {
		_, err = strp.Prices.Update(*c.StripePriceID, &stripe.PriceParams{
			Active: stripe.Bool(false),
		})
		if err != nil {
			return fmt.Errorf("retiring price[%s]: %w", *c.StripePriceID, err)
		}
	}

	c.StripePriceID = &price.ID
	return nil
}
