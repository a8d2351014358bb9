package config

import "time"

type Config struct {
	Web    Web
	Cors   Cors
	Auth   Auth
	DB     DB
	Redis  Redis
	Stripe Stripe
	Email  Email
	Oauth  Oauth
	Rate   Rate
	Outbox Outbox
}

type Web struct {
	Address         string        `conf:"default:0.0.0.0:8000"`
	PublicURL       string        `conf:"default:http://localhost:8000"`
	ReadTimeout     time.Duration `conf:"default:5s"`
	WriteTimeout    time.Duration `conf:"default:10s"`
	IdleTimeout     time.Duration `conf:"default:120s"`
	ShutdownTimeout time.Duration `conf:"default:20s"`
}

type Cors struct {
	Origin string
}

type Auth struct {
	ActivationRequired bool          `conf:"default:false"`
	SessionLifetime    time.Duration `conf:"default:24h"`
}

type DB struct {
	User       string `conf:"default:postgres"`
	Password   string `conf:"default:postgres,mask"`
	Host       string `conf:"default:localhost:5432"`
	Name       string `conf:"default:postgres"`
	DisableTLS bool   `conf:"default:true"`
}

// Redis is optional: an empty address disables the summary cache.
type Redis struct {
	Address  string
	Password string        `conf:"mask"`
	DB       int           `conf:"default:0"`
	TTL      time.Duration `conf:"default:5m"`
}

type Stripe struct {
	APISecret     string `conf:"mask"`
	WebhookSecret string `conf:"mask"`
	SuccessURL    string `conf:"default:http://localhost:3000/purchase/success"`
	CancelURL     string `conf:"default:http://localhost:3000/purchase/cancelled"`
	RefreshURL    string `conf:"default:http://localhost:3000/instructor/payouts"`
	ReturnURL     string `conf:"default:http://localhost:3000/instructor/payouts"`

	// FeePercent is the single platform fee applied to every checkout,
	// expressed as a whole percentage of the course price.
	FeePercent int64 `conf:"default:20"`
}

type Email struct {
	APIKey        string        `conf:"mask"`
	From          string        `conf:"default:no-reply@aprendendojuntos.dev"`
	ActivationURL string        `conf:"default:http://localhost:3000/activate"`
	RecoveryURL   string        `conf:"default:http://localhost:3000/recover"`
	TokenTimeout  time.Duration `conf:"default:15m"`
}

type Oauth struct {
	DiscoveryTimeout time.Duration `conf:"default:30s"`
	LoginRedirectURL string        `conf:"default:http://localhost:3000"`
	Google           OauthProvider
}

type OauthProvider struct {
	Client      string
	Secret      string `conf:"mask"`
	URL         string `conf:"default:https://accounts.google.com"`
	RedirectURL string `conf:"default:http://localhost:8000/auth/oauth-callback/google"`
}

type Rate struct {
	Burst         int           `conf:"default:10"`
	Interval      time.Duration `conf:"default:100ms"`
	ExpiryMinutes int           `conf:"default:60"`
}

type Outbox struct {
	Interval    time.Duration `conf:"default:30s"`
	BatchSize   int           `conf:"default:50"`
	MaxAttempts int           `conf:"default:10"`

	// Pending transactions older than this are marked failed, mirroring
	// stripe's own checkout session expiry.
	PendingExpiry time.Duration `conf:"default:24h"`
}
