package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/api"
	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/api/background"
	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/cache"
	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/config"
	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/core/auth"
	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/core/payment"
	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/database"
	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/email"
	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/rate"
	"github.com/alexedwards/scs/v2"
	"github.com/ardanlabs/conf/v3"
	"github.com/go-co-op/gocron"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	stripecl "github.com/stripe/stripe-go/v74/client"
)

func main() {
	log := logrus.New()
	log.SetOutput(os.Stdout)

	if err := Run(log); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func Run(logger *logrus.Logger) error {
	logger.Infof("starting server")
	defer logger.Info("shutdown complete")

	// Missing .env is fine, the environment may be set directly.
	godotenv.Load()

	const prefix = "COURSES"
	var cfg config.Config
	if _, err := conf.Parse(prefix, &cfg); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}

	lw := logger.Writer()
	defer lw.Close()
	errLog := log.New(lw, "", 0)

	db, err := database.Open(cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to open db connection: %w", err)
	}

	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("failed to migrate db: %w", err)
	}

	sessionManager := scs.New()
	sessionManager.Lifetime = cfg.Auth.SessionLifetime

	cch := cache.New(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.TTL)
	if cch != nil {
		defer cch.Close()
	}

	links := email.Links{
		ActivationURL: cfg.Email.ActivationURL,
		RecoveryURL:   cfg.Email.RecoveryURL,
	}
	mail := email.New(cfg.Email.APIKey, cfg.Email.From, links)

	bg := background.New(logger)

	strp := &stripecl.API{}
	strp.Init(cfg.Stripe.APISecret, nil)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Oauth.DiscoveryTimeout)
	defer cancel()
	google := cfg.Oauth.Google
	oauthProvs, err := auth.MakeProviders(ctx, []auth.ProviderConfig{
		{Name: "google", Client: google.Client, Secret: google.Secret, URL: google.URL, RedirectURL: google.RedirectURL},
	})
	if err != nil {
		return fmt.Errorf("failed to discover oauth providers: %w", err)
	}

	limiter := rate.NewLimiter(cfg.Rate.Burst, cfg.Rate.ExpiryMinutes, 1/cfg.Rate.Interval.Seconds())

	relay := &payment.Relay{
		DB:          db,
		Log:         logger,
		BatchSize:   cfg.Outbox.BatchSize,
		MaxAttempts: cfg.Outbox.MaxAttempts,
	}

	scheduler := gocron.NewScheduler(time.UTC)
	scheduler.Every(cfg.Outbox.Interval).Do(func() {
		if err := relay.Run(context.Background()); err != nil {
			logger.Errorf("outbox relay: %v", err)
		}
	})
	scheduler.Every(cfg.Outbox.PendingExpiry).Do(func() {
		cutoff := time.Now().UTC().Add(-cfg.Outbox.PendingExpiry)
		n, err := payment.ExpirePending(context.Background(), db, cutoff)
		if err != nil {
			logger.Errorf("expiring pending transactions: %v", err)
			return
		}
		if n > 0 {
			logger.Infof("expired %d pending transactions", n)
		}
	})
	scheduler.StartAsync()
	defer scheduler.Stop()

	mux := api.APIMux(api.APIConfig{
		CorsOrigin:         cfg.Cors.Origin,
		Log:                logger,
		DB:                 db,
		Session:            sessionManager,
		Cache:              cch,
		Mailer:             mail,
		TokenTimeout:       cfg.Email.TokenTimeout,
		Background:         bg,
		Stripe:             strp,
		StripeCfg:          cfg.Stripe,
		Providers:          oauthProvs,
		LoginRedirectURL:   cfg.Oauth.LoginRedirectURL,
		ActivationRequired: cfg.Auth.ActivationRequired,
		PublicURL:          cfg.Web.PublicURL,
		Limiter:            limiter,
	})

	api := http.Server{
		Handler:      mux,
		Addr:         cfg.Web.Address,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     errLog,
	}

	serverErrors := make(chan error, 1)

	go func() {
		logger.Infof("starting api router at %s", api.Addr)
		serverErrors <- api.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Infof("shutting down: signal %s", sig)

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		if err := api.Shutdown(ctx); err != nil {
			api.Close()
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}

		if err := bg.Shutdown(ctx); err != nil {
			return fmt.Errorf("could not complete all background tasks: %w", err)
		}
	}
	return nil
}
