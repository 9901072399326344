package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/treelogistics/driverdesk/internal/api"
	"github.com/treelogistics/driverdesk/internal/flow"
	"github.com/treelogistics/driverdesk/internal/genai"
	"github.com/treelogistics/driverdesk/internal/messaging"
	"github.com/treelogistics/driverdesk/internal/monitor"
	"github.com/treelogistics/driverdesk/internal/router"
	"github.com/treelogistics/driverdesk/internal/scheduler"
	"github.com/treelogistics/driverdesk/internal/store"
	"github.com/treelogistics/driverdesk/internal/util"
	"github.com/treelogistics/driverdesk/internal/whatsapp"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for DriverDesk state data
	DefaultStateDir = "/var/lib/driverdesk"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "driverdesk.db"
	// DefaultWhatsAppDBFileName is the default Whatsmeow session database filename
	DefaultWhatsAppDBFileName = "whatsmeow.db"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Bootstrapping DriverDesk with configured modules")
	if err := run(ctx, config, flags); err != nil {
		slog.Error("DriverDesk failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("DriverDesk exited successfully")
}

func run(ctx context.Context, config Config, flags Flags) error {
	// Request store: Postgres when the DSN looks like one, SQLite otherwise.
	var requests store.Store
	var err error
	if store.DetectDSNType(*flags.dbDSN) == "postgres" {
		requests, err = store.NewPostgresStore(store.WithDSN(*flags.dbDSN))
	} else {
		requests, err = store.NewSQLiteStore(store.WithDSN(*flags.dbDSN))
	}
	if err != nil {
		return err
	}
	defer requests.Close()

	// Flow store: Redis when configured, otherwise in-memory.
	var flows flow.Store
	if config.RedisAddr != "" {
		redisStore, err := flow.NewRedisStore(ctx, config.RedisAddr)
		if err != nil {
			return err
		}
		defer redisStore.Close()
		flows = redisStore
	} else {
		flows = flow.NewMemoryStore()
	}

	// Conversation engine, with AI routing when an OpenAI key is present.
	engineOpts := []flow.EngineOption{}
	if *flags.openaiKey != "" {
		os.Setenv("OPENAI_API_KEY", *flags.openaiKey)
		genaiClient, err := genai.NewClient()
		if err != nil {
			return err
		}
		intentRouter := router.New(router.WithClassifier(genaiClient))
		engineOpts = append(engineOpts,
			flow.WithIntentRouter(intentRouter),
			flow.WithFollowUpGenerator(genaiClient),
			flow.WithGuidedOnboarding(config.GuidedOnboarding),
		)
		slog.Info("GenAI intent routing enabled", "guided_onboarding", config.GuidedOnboarding)
	} else {
		engineOpts = append(engineOpts, flow.WithIntentRouter(router.New()))
		slog.Info("GenAI disabled, using keyword intent routing")
	}
	engine := flow.NewEngine(flows, requests, engineOpts...)

	// Messaging transport: Twilio when credentials are present, Whatsmeow otherwise.
	var msgService messaging.Service
	if config.TwilioSID != "" {
		msgService, err = messaging.NewTwilioService(messaging.TwilioOpts{
			AccountSID: config.TwilioSID,
			AuthToken:  config.TwilioToken,
			From:       config.TwilioFrom,
		})
		if err != nil {
			return err
		}
		slog.Info("Using Twilio WhatsApp transport; inbound via webhook")
	} else {
		waOpts := buildWhatsAppOptions(flags)
		waClient, err := whatsapp.NewClient(waOpts...)
		if err != nil {
			return err
		}
		msgService = messaging.NewWhatsAppService(waClient)
		slog.Info("Using Whatsmeow WhatsApp transport")
	}
	if err := msgService.Start(ctx); err != nil {
		return err
	}
	defer msgService.Stop()

	// Inbound messages from the live transport run through the engine.
	handler := messaging.NewResponseHandler(msgService, engine)
	go handler.Run(ctx)

	// Completion notifications on a fixed polling interval.
	notifier := messaging.NewNotifier(msgService, flows)
	mon := monitor.New(requests, notifier)
	sched := scheduler.NewScheduler()
	defer sched.Stop()
	if err := sched.AddEvery(config.MonitorInterval, func() {
		if err := mon.CheckAndNotify(context.Background()); err != nil {
			slog.Error("Scheduled status check failed", "error", err)
		}
	}); err != nil {
		return err
	}
	slog.Info("Status monitor scheduled", "interval", config.MonitorInterval)

	apiOpts := []api.Option{}
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	server := api.NewServer(engine, flows, requests, mon, apiOpts...)
	return server.Run(ctx)
}

// Config holds environment configuration
type Config struct {
	DatabaseURL      string
	WhatsAppDSN      string
	RedisAddr        string
	StateDir         string
	OpenAIKey        string
	APIAddr          string
	TwilioSID        string
	TwilioToken      string
	TwilioFrom       string
	GuidedOnboarding bool
	MonitorInterval  time.Duration
}

// Flags holds command line flag values
type Flags struct {
	qrOutput  *string
	numeric   *bool
	stateDir  *string
	dbDSN     *string
	waDSN     *string
	openaiKey *string
	apiAddr   *string
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		WhatsAppDSN:      os.Getenv("WHATSAPP_DB_DSN"),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		StateDir:         os.Getenv("DRIVERDESK_STATE_DIR"),
		OpenAIKey:        os.Getenv("OPENAI_API_KEY"),
		APIAddr:          os.Getenv("API_ADDR"),
		TwilioSID:        os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioToken:      os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFrom:       os.Getenv("TWILIO_WHATSAPP_FROM"),
		GuidedOnboarding: util.ParseBoolEnv("GUIDED_ONBOARDING", true),
		MonitorInterval:  util.ParseDurationEnv("MONITOR_INTERVAL", monitor.DefaultInterval),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No DRIVERDESK_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}

	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}
	if config.WhatsAppDSN == "" {
		config.WhatsAppDSN = filepath.Join(config.StateDir, DefaultWhatsAppDBFileName)
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"WHATSAPP_DB_DSN_SET", config.WhatsAppDSN != "",
		"REDIS_ADDR", config.RedisAddr,
		"DRIVERDESK_STATE_DIR", config.StateDir,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"API_ADDR", config.APIAddr,
		"TWILIO_CONFIGURED", config.TwilioSID != "")

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		qrOutput:  flag.String("qr-output", "", "path to write login QR code"),
		numeric:   flag.Bool("numeric-code", false, "use numeric login code instead of QR code"),
		stateDir:  flag.String("state-dir", config.StateDir, "state directory for DriverDesk data (overrides $DRIVERDESK_STATE_DIR)"),
		dbDSN:     flag.String("db-dsn", config.DatabaseURL, "database DSN for the request store (overrides $DATABASE_URL)"),
		waDSN:     flag.String("whatsapp-db-dsn", config.WhatsAppDSN, "database DSN for the Whatsmeow session store (overrides $WHATSAPP_DB_DSN)"),
		openaiKey: flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		apiAddr:   flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"qrOutput", *flags.qrOutput,
		"numeric", *flags.numeric,
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"waDSN_set", *flags.waDSN != "",
		"openaiKeySet", *flags.openaiKey != "",
		"apiAddr", *flags.apiAddr)

	// Follow an overridden state directory with the default database paths.
	if *flags.stateDir != config.StateDir {
		if *flags.dbDSN == filepath.Join(config.StateDir, DefaultDBFileName) {
			*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		}
		if *flags.waDSN == filepath.Join(config.StateDir, DefaultWhatsAppDBFileName) {
			*flags.waDSN = filepath.Join(*flags.stateDir, DefaultWhatsAppDBFileName)
		}
	}

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	for _, dsn := range []string{*flags.dbDSN, *flags.waDSN} {
		if strings.Contains(dsn, "postgres://") || strings.Contains(dsn, "host=") {
			continue
		}
		dir := filepath.Dir(dsn)
		if err := os.MkdirAll(dir, 0755); err != nil {
			slog.Error("Failed to create state directory", "error", err, "state_dir", dir)
			return err
		}
	}
	return nil
}

// buildWhatsAppOptions constructs WhatsApp configuration options
func buildWhatsAppOptions(flags Flags) []whatsapp.Option {
	var waOpts []whatsapp.Option
	if *flags.qrOutput != "" {
		waOpts = append(waOpts, whatsapp.WithQRCodeOutput(*flags.qrOutput))
	}
	if *flags.numeric {
		waOpts = append(waOpts, whatsapp.WithNumericCode())
	}
	if *flags.waDSN != "" {
		waOpts = append(waOpts, whatsapp.WithDBDSN(*flags.waDSN))
	}
	return waOpts
}
