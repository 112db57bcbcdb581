package main

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"spinwish/docs" //this is required to generate swagger docs
	"spinwish/internal/auth"
	"spinwish/internal/domain/storage"
	"spinwish/internal/mailer"
	"spinwish/internal/metrics"
	"spinwish/internal/notifications"
	"spinwish/internal/payflow"
	"spinwish/internal/ratelimiter"

	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
)

type application struct {
	config        config
	store         *storage.Container
	logger        *zap.SugaredLogger
	mailer        mailer.Client
	authenticator auth.Authenticator
	rateLimiter   *ratelimiter.FixedWindowRateLimiter
	notifier      *notifications.PaymentNotifier
	receipts      *receiptSender

	initiator  *payflow.Initiator
	callbacks  *payflow.CallbackProcessor
	reconciler *payflow.Reconciler
	refunder   *payflow.RefundOrchestrator
}

type config struct {
	addr        string
	db          dbConfig
	env         string
	apiURL      string
	frontendURL string
	mail        mailConfig
	auth        authConfig
	mpesa       mpesaConfig
	rateLimiter ratelimiter.Config
	reconcile   reconcileConfig
}

type authConfig struct {
	basic basicConfig
	token tokenConfig
}
type tokenConfig struct {
	refreshSecret   string
	secret          string
	accessTokenExp  time.Duration
	refreshTokenExp time.Duration
	iss             string
}
type basicConfig struct {
	user string
	pass string
}

type mailConfig struct {
	fromEmail string
	mailtrap  mailTrapConfig
}

type mailTrapConfig struct {
	apiKey string
}

type dbConfig struct {
	addr         string
	maxOpenConns int
	maxIdleConns int
	maxIdleTime  string
}

// mpesaConfig holds the Daraja credentials and endpoints. All of it comes
// from the environment; sandbox and production differ only in values.
type mpesaConfig struct {
	tokenURL       string
	stkPushURL     string
	stkQueryURL    string
	b2cURL         string
	shortCode      string
	passkey        string
	consumerKey    string
	consumerSecret string
	callbackURL    string
	initiatorName  string
	// allowedCIDRs, when non-empty, restricts the callback endpoint to the
	// provider's published source ranges.
	allowedCIDRs []string
}

type reconcileConfig struct {
	interval    time.Duration
	concurrency int
}

func (app *application) mount() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(app.RateLimiterMiddleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))

	//Set a timeout value on the request context (ctx), that will signal through ctx.Done() that the request has timed out and further processing should be stopped
	r.Use(middleware.Timeout(60 * time.Second))

	r.Route("/v1", func(r chi.Router) {
		r.With(app.BasicAuthMiddleware()).Get("/health", app.healthCheckHandler)
		docsURL := fmt.Sprintf("%s/swagger/doc.json", app.config.addr)
		r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL(docsURL)))

		r.With(app.BasicAuthMiddleware()).Get("/debug/vars", expvar.Handler().ServeHTTP)
		r.With(app.BasicAuthMiddleware()).Get("/metrics", metrics.Handler().ServeHTTP)

		r.Route("/payments", func(r chi.Router) {
			// The provider posts here; it cannot carry our bearer tokens.
			r.With(app.MpesaCallbackMiddleware).Post("/callback", app.mpesaCallbackHandler)

			r.Group(func(r chi.Router) {
				r.Use(app.AuthTokenMiddleware)
				r.Post("/stk-push", app.initiateStkPushHandler)
				r.Get("/", app.listPaymentsHandler)
				r.Get("/{paymentID}", app.getPaymentHandler)
				r.Get("/status/{checkoutRequestID}", app.getSessionStatusHandler)
				r.Post("/query/{checkoutRequestID}", app.queryStkPushHandler)
				r.Get("/events/{checkoutRequestID}", app.getPaymentEventsHandler)
			})
		})

		r.Route("/requests", func(r chi.Router) {
			r.Use(app.AuthTokenMiddleware)
			r.Post("/{requestID}/reject", app.rejectRequestHandler)
		})

		r.Route("/djs", func(r chi.Router) {
			r.Use(app.AuthTokenMiddleware)
			r.Get("/{djID}/earnings", app.getDJEarningsHandler)
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(app.AuthTokenMiddleware)
			r.Post("/push-token", app.registerPushTokenHandler)
		})
	})
	return r
}

func (app *application) run(mux http.Handler) error {
	// Docs
	docs.SwaggerInfo.Version = version
	docs.SwaggerInfo.Host = app.config.apiURL
	docs.SwaggerInfo.BasePath = "/v1"

	srv := &http.Server{
		Addr:         app.config.addr,
		Handler:      mux,
		WriteTimeout: time.Second * 30,
		ReadTimeout:  time.Second * 10,
		IdleTimeout:  time.Minute,
	}

	// Implementing graceful shutdown
	shutdown := make(chan error)

	go func() {
		quit := make(chan os.Signal, 1)

		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		app.logger.Infow("signal caught", "signal", s.String())

		shutdown <- srv.Shutdown(ctx)
	}()

	app.logger.Infow("server has started", "addr", app.config.addr, "env", app.config.env)

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = <-shutdown
	if err != nil {
		return err
	}

	app.logger.Infow("server has stopped", "addr", app.config.addr, "env", app.config.env)

	return nil
}
