package main

import (
	"expvar"
	"fmt"
	"log"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"spinwish/internal/auth"
	"spinwish/internal/db"
	"spinwish/internal/domain/refunds"
	"spinwish/internal/domain/storage"
	"spinwish/internal/mailer"
	"spinwish/internal/metrics"
	"spinwish/internal/mpesa"
	"spinwish/internal/notifications"
	"spinwish/internal/payflow"
	"spinwish/internal/ratelimiter"

	"github.com/9ssi7/exponent"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoadRateLimiterConfig retrieves rate limiter settings from environment variables
func LoadRateLimiterConfig() ratelimiter.Config {
	// Default values
	defaultRequests := 200
	defaultEnabled := false

	// Retrieve request count with error handling
	requestsPerTimeFrame := defaultRequests
	if val, exists := os.LookupEnv("RATELIMITER_REQUESTS_COUNT"); exists {
		if parsedVal, err := strconv.Atoi(val); err == nil {
			requestsPerTimeFrame = parsedVal
		} else {
			fmt.Println("Invalid RATELIMITER_REQUESTS_COUNT, defaulting to", defaultRequests)
		}
	}

	// Retrieve enabled flag with error handling
	enabled := defaultEnabled
	if val, exists := os.LookupEnv("RATE_LIMITER_ENABLED"); exists {
		if parsedVal, err := strconv.ParseBool(val); err == nil {
			enabled = parsedVal
		} else {
			fmt.Println("Invalid RATE_LIMITER_ENABLED, defaulting to", defaultEnabled)
		}
	}

	return ratelimiter.Config{
		RequestsPerTimeFrame: requestsPerTimeFrame,
		TimeFrame:            5 * time.Second,
		Enabled:              enabled,
	}
}

// NewLogger creates a new zap logger with color.
func NewLogger() (*zap.SugaredLogger, error) {
	// Configure the encoder to be a console encoder with color
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder // This adds color to log levels (INFO, WARN, ERROR)

	// Create a console encoder with the custom configuration
	consoleEncoder := zapcore.NewConsoleEncoder(encoderCfg)

	// Create a log level (you can set your own level here)
	level := zapcore.InfoLevel

	// Use zapcore.NewCore to write logs to standard output (stdout) with color
	core := zapcore.NewCore(consoleEncoder, zapcore.NewMultiWriteSyncer(zapcore.AddSync(os.Stdout)), level)

	// Create and return a new logger instance
	logger := zap.New(core)

	return logger.Sugar(), nil
}

var version = "1.0.0"

//	@title			SpinWish Payments API
//	@description	M-Pesa payment lifecycle service for SpinWish song requests and DJ tips.

//	@contact.name	API Support
//	@contact.email	support@spinwish.app

//	@BasePath					/v1
//	@securityDefinitions.apikey	ApiKeyAuth
//	@in							header
//	@name						Authorization
//	@description

func main() {
	err := godotenv.Load()
	if err != nil {
		log.Fatalf("Error loading .env file: %v", err)
	}
	// Retrieve and convert maxOpenConns
	maxOpenConnsStr := os.Getenv("DB_MAX_OPEN_CONNS")
	maxOpenConns, err := strconv.Atoi(maxOpenConnsStr)
	if err != nil {
		log.Fatalf("Invalid value for DB_MAX_OPEN_CONNS: %v", err)
	}
	// Retrieve and convert maxIdleConns
	maxIdleConnsStr := os.Getenv("DB_MAX_IDLE_CONNS")
	maxIdleConns, err := strconv.Atoi(maxIdleConnsStr)
	if err != nil {
		log.Fatalf("Invalid value for DB_MAX_IDLE_CONNS: %v", err)
	}

	reconcileInterval := 5 * time.Minute
	if val, exists := os.LookupEnv("RECONCILE_INTERVAL"); exists {
		if parsed, err := time.ParseDuration(val); err == nil {
			reconcileInterval = parsed
		} else {
			fmt.Println("Invalid RECONCILE_INTERVAL, defaulting to", reconcileInterval)
		}
	}

	var allowedCIDRs []string
	if val := os.Getenv("MPESA_ALLOWED_CIDRS"); val != "" {
		allowedCIDRs = strings.Split(val, ",")
	}

	cfg := config{
		addr:        os.Getenv("ADDR"),
		env:         os.Getenv("ENV"),
		frontendURL: os.Getenv("FRONTEND_URL"),
		apiURL:      os.Getenv("EXTERNAL_URL"),
		db: dbConfig{
			addr:         os.Getenv("DB_ADDR"),
			maxOpenConns: maxOpenConns,
			maxIdleConns: maxIdleConns,
			maxIdleTime:  os.Getenv("DB_MAX_IDLE_TIME"),
		},
		mail: mailConfig{
			fromEmail: os.Getenv("MAIL_FROM_EMAIL"),
			mailtrap: mailTrapConfig{
				apiKey: os.Getenv("MAILTRAP_API_KEY"),
			},
		},
		auth: authConfig{
			basic: basicConfig{
				user: os.Getenv("AUTH_BASIC_USER"),
				pass: os.Getenv("AUTH_BASIC_PASS"),
			},
			token: tokenConfig{
				refreshSecret:   os.Getenv("AUTH_TOKEN_REFRESH_SECRET"),
				secret:          os.Getenv("AUTH_TOKEN_SECRET"),
				accessTokenExp:  time.Hour * 24 * 3, // 3 days
				refreshTokenExp: time.Hour * 24 * 9, // 9 days
				iss:             "SpinWish",
			},
		},
		mpesa: mpesaConfig{
			tokenURL:       os.Getenv("MPESA_TOKEN_URL"),
			stkPushURL:     os.Getenv("MPESA_STK_PUSH_URL"),
			stkQueryURL:    os.Getenv("MPESA_STK_QUERY_URL"),
			b2cURL:         os.Getenv("MPESA_B2C_URL"),
			shortCode:      os.Getenv("MPESA_SHORTCODE"),
			passkey:        os.Getenv("MPESA_PASSKEY"),
			consumerKey:    os.Getenv("MPESA_CONSUMER_KEY"),
			consumerSecret: os.Getenv("MPESA_CONSUMER_SECRET"),
			callbackURL:    os.Getenv("MPESA_CALLBACK_URL"),
			initiatorName:  os.Getenv("MPESA_INITIATOR_NAME"),
			allowedCIDRs:   allowedCIDRs,
		},
		rateLimiter: LoadRateLimiterConfig(),
		reconcile: reconcileConfig{
			interval:    reconcileInterval,
			concurrency: 4,
		},
	}

	// Logger
	logger, err := NewLogger()
	if err != nil {
		fmt.Println("Error creating logger:", err)
		return
	}
	defer logger.Sync()

	// Database
	db, err := db.New(
		cfg.db.addr,
		int32(cfg.db.maxOpenConns),
		int32(cfg.db.maxIdleConns),
		cfg.db.maxIdleTime,
	)
	if err != nil {
		logger.Fatal(err)
	}

	defer db.Close()
	logger.Info("database connection pool established")

	//storage
	store := storage.NewContainer(db)

	// Daraja client
	gateway := mpesa.NewClient(mpesa.Config{
		TokenURL:       cfg.mpesa.tokenURL,
		StkPushURL:     cfg.mpesa.stkPushURL,
		StkQueryURL:    cfg.mpesa.stkQueryURL,
		B2CURL:         cfg.mpesa.b2cURL,
		ShortCode:      cfg.mpesa.shortCode,
		Passkey:        cfg.mpesa.passkey,
		ConsumerKey:    cfg.mpesa.consumerKey,
		ConsumerSecret: cfg.mpesa.consumerSecret,
		CallbackURL:    cfg.mpesa.callbackURL,
		InitiatorName:  cfg.mpesa.initiatorName,
	})

	mailtrap, err := mailer.NewMailTrapClient(cfg.mail.mailtrap.apiKey, cfg.mail.fromEmail)
	if err != nil {
		logger.Fatal(err)
	}

	// Rate limiter
	rateLimiter := ratelimiter.NewFixedWindowLimiter(
		cfg.rateLimiter.RequestsPerTimeFrame,
		cfg.rateLimiter.TimeFrame,
	)

	// Authenticator
	jwtAuthenticator := auth.NewJWTAuthenticator(
		cfg.auth.token.secret,
		cfg.auth.token.refreshSecret,
		cfg.auth.token.iss,
		cfg.auth.token.iss,
	)

	// Expo push
	expoClient := exponent.NewClient()
	notifier := notifications.NewPaymentNotifier(
		notifications.NewExpoAdapter(expoClient),
		store.PushTokens,
		logger,
	)

	refGen, err := refunds.NewReferenceGenerator(os.Getenv("REFUND_REFERENCE_SALT"))
	if err != nil {
		logger.Fatal(err)
	}

	receipts := &receiptSender{mailer: mailtrap, users: store.Users, logger: logger}

	initiator := payflow.NewInitiator(
		store.Sessions, store.Requests, store.Users, store.Events,
		gateway, notifier, logger,
	)
	callbacks := payflow.NewCallbackProcessor(
		store.Sessions, store.Users, store.Events,
		store, notifier, receipts, logger,
	)
	reconciler := payflow.NewReconciler(
		store.Sessions, store.Events, gateway, callbacks,
		cfg.reconcile.concurrency, logger,
	)
	refunder := payflow.NewRefundOrchestrator(
		store.Payments, store.Refunds, gateway, refGen, logger,
	)

	app := &application{
		config:        cfg,
		logger:        logger,
		store:         store,
		mailer:        mailtrap,
		authenticator: jwtAuthenticator,
		rateLimiter:   rateLimiter,
		notifier:      notifier,
		receipts:      receipts,
		initiator:     initiator,
		callbacks:     callbacks,
		reconciler:    reconciler,
		refunder:      refunder,
	}

	metrics.Init()

	//Metrics collected http://localhost:8080/v1/debug/vars
	expvar.NewString("version").Set(version)
	expvar.Publish("database", expvar.Func(func() any {
		stat := db.Stat()
		return map[string]any{
			"total_conns":    stat.TotalConns(),
			"idle_conns":     stat.IdleConns(),
			"acquired_conns": stat.AcquiredConns(),
			"max_conns":      stat.MaxConns(),
		}
	}))
	expvar.Publish("goroutines", expvar.Func(func() any {
		return runtime.NumGoroutine()
	}))

	app.reconcilePendingSessions()

	mux := app.mount()

	logger.Fatal(app.run(mux))
}
