// Package handlers exposes the account and gift coordination services over HTTP.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"noyel/internal/account"
	"noyel/internal/export"
	"noyel/internal/kdo"
	"noyel/internal/metrics"
	"noyel/internal/search"
	"noyel/internal/session"
)

const (
	defaultSessionTTL = 14 * 24 * time.Hour
	defaultRateLimit  = 100
	sessionCookie     = "noyel_session"
)

// Services holds the dependencies the handlers call into.
type Services struct {
	Accounts *account.Service
	Gifts    *kdo.Service
	Sessions session.Store
	Search   search.Searcher
	Exporter *export.Exporter
	Metrics  *metrics.Metrics
	// Gatherer backs /metrics; nil uses the default registry.
	Gatherer prometheus.Gatherer
	// Ready reports whether backing stores are reachable.
	Ready func(context.Context) error
}

// Config controls runtime behaviour for the HTTP handlers.
type Config struct {
	ServiceName        string
	SessionTTL         time.Duration
	CookieDomain       string
	CookieSecure       bool
	AllowedOrigins     []string
	RateLimitPerMinute int
	Logger             zerolog.Logger
	// Telemetry wraps the router, typically with otelhttp.
	Telemetry func(http.Handler) http.Handler
}

// API wires services and configuration for HTTP handlers.
type API struct {
	svc    Services
	config Config
}

// New validates the dependencies and applies defaults to cfg.
func New(svc Services, cfg Config) (*API, error) {
	switch {
	case svc.Accounts == nil:
		return nil, errors.New("accounts service is required")
	case svc.Gifts == nil:
		return nil, errors.New("gifts service is required")
	case svc.Sessions == nil:
		return nil, errors.New("session store is required")
	case svc.Search == nil:
		return nil, errors.New("searcher is required")
	}

	if cfg.ServiceName == "" {
		cfg.ServiceName = "noyel"
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = defaultSessionTTL
	}
	if cfg.RateLimitPerMinute <= 0 {
		cfg.RateLimitPerMinute = defaultRateLimit
	}

	return &API{svc: svc, config: cfg}, nil
}
