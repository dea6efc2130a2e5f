package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// Routes constructs the chi router containing all endpoints.
func (a *API) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(hlog.NewHandler(a.config.Logger))
	r.Use(requestIDLogger)
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	}))
	r.Use(middleware.Recoverer)
	if a.config.Telemetry != nil {
		r.Use(a.config.Telemetry)
	}

	allowed := a.config.AllowedOrigins
	if len(allowed) == 0 {
		allowed = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowed,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           int((10 * time.Minute).Seconds()),
	}))
	r.Use(httprate.LimitByIP(a.config.RateLimitPerMinute, time.Minute))
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", a.handleReady)
	if a.svc.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(a.svc.Gatherer, promhttp.HandlerOpts{}))
	} else {
		r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	}

	r.Post("/account/signup", a.handleSignup)
	r.Post("/account/login", a.handleLogin)
	r.Post("/account/password/reset", a.handlePasswordResetRequest)
	r.Post("/account/password/reset/{uidb64}/{token}", a.handlePasswordResetConfirm)

	r.Group(func(r chi.Router) {
		r.Use(a.requireUser)

		r.Post("/account/logout", a.handleLogout)
		r.Get("/account/profile", a.handleGetProfile)
		r.Put("/account/profile", a.handleUpdateProfile)
		r.Post("/account/password", a.handleChangePassword)
		r.Get("/account/emails", a.handleListEmails)
		r.Post("/account/emails", a.handleAddEmail)
		r.Delete("/account/emails/{emailID}", a.handleDeleteEmail)
		r.Post("/account/emails/{emailID}/resend", a.handleResendVerification)
		r.Post("/account/emails/verify/{email}/{token}", a.handleVerifyEmail)
		r.Post("/account/export", a.handleExport)

		r.Get("/landing", a.handleLanding)
		r.Get("/presents", a.handleListPresents)
		r.Post("/presents", a.handleCreatePresent)
		r.Get("/presents/for/{giftee}", a.handleListForGiftee)
		r.Post("/presents/for/{giftee}", a.handleCreateForGiftee)
		r.Route("/presents/{presentID}", func(r chi.Router) {
			r.Get("/", a.handleGetPresent)
			r.Put("/", a.handleUpdatePresent)
			r.Delete("/", a.handleDeletePresent)
			r.Post("/purchase", a.handlePurchase)
			r.Delete("/purchase", a.handleCancelPurchase)
			r.Get("/similar", a.handleSimilar)
			r.Delete("/participants/{userID}", a.handleRemoveParticipant)
			r.Post("/participants/invite", a.handleInvite)
			r.Get("/invitations", a.handlePresentInvitations)
			r.Post("/comments", a.handleCreateComment)
		})
		r.Put("/comments/{commentID}", a.handleUpdateComment)
		r.Delete("/comments/{commentID}", a.handleDeleteComment)

		r.Get("/invitations", a.handleListInvitations)
		r.Post("/invitations/redeem", a.handleRedeemForm)
		r.Post("/invitations/{token}/redeem", a.handleRedeem)
		r.Post("/invitations/{token}/resend", a.handleResendInvitation)
		r.Delete("/invitations/{token}", a.handleDeleteInvitation)

		r.Get("/api/search/giftee", a.handleSearchGiftee)
		r.Get("/api/search/friend", a.handleSearchFriend)
	})

	return r
}

// requestIDLogger tags the request logger with chi's request id.
func requestIDLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			hlog.FromRequest(r).UpdateContext(func(c zerolog.Context) zerolog.Context {
				return c.Str("request_id", id)
			})
		}
		next.ServeHTTP(w, r)
	})
}

func (a *API) handleReady(w http.ResponseWriter, r *http.Request) {
	if a.svc.Ready != nil {
		ctx, cancel := withTimeout(r.Context())
		defer cancel()
		if err := a.svc.Ready(ctx); err != nil {
			hlog.FromRequest(r).Warn().Err(err).Msg("readiness check failed")
			respondError(w, http.StatusServiceUnavailable, "not_ready", "dependencies unavailable")
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
