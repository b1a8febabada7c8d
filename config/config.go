package config

import "time"

type Config struct {
	Web       Web
	Cors      Cors
	DB        DB
	Session   Session
	Paypal    Paypal
	Stripe    Stripe
	Oauth     Oauth
	RateLimit RateLimit
}

type Web struct {
	Address         string        `conf:"default:0.0.0.0:8000"`
	ReadTimeout     time.Duration `conf:"default:5s"`
	WriteTimeout    time.Duration `conf:"default:10s"`
	IdleTimeout     time.Duration `conf:"default:120s"`
	ShutdownTimeout time.Duration `conf:"default:20s"`
}

type Cors struct {
	Origin string
}

type DB struct {
	User       string `conf:"default:postgres"`
	Password   string `conf:"default:postgres,mask"`
	Host       string `conf:"default:localhost:5432"`
	Name       string `conf:"default:learnly"`
	DisableTLS bool   `conf:"default:true"`
	Migrate    bool   `conf:"default:true"`
}

type Session struct {
	Lifetime time.Duration `conf:"default:24h"`
}

type Paypal struct {
	ClientID string `conf:"mask"`
	Secret   string `conf:"mask"`
	URL      string `conf:"default:https://api.sandbox.paypal.com"`
}

type Stripe struct {
	APISecret     string `conf:"mask"`
	WebhookSecret string `conf:"mask"`
	SuccessURL    string
	CancelURL     string
}

type Oauth struct {
	DiscoveryTimeout time.Duration `conf:"default:30s"`
	LoginRedirectURL string
	Google           OauthProvider
}

type OauthProvider struct {
	Client      string `conf:"mask"`
	Secret      string `conf:"mask"`
	URL         string `conf:"default:https://accounts.google.com"`
	RedirectURL string
}

type RateLimit struct {
	Burst       int           `conf:"default:5"`
	Interval    time.Duration `conf:"default:1s"`
	ExpiryInMin int           `conf:"default:10"`
}
