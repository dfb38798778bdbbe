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

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/replyflow/replyflow/internal/api"
	"github.com/replyflow/replyflow/internal/engine"
	"github.com/replyflow/replyflow/internal/genai"
	"github.com/replyflow/replyflow/internal/messaging"
	"github.com/replyflow/replyflow/internal/store"
	"github.com/replyflow/replyflow/internal/util"
	"github.com/replyflow/replyflow/internal/workflow"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for ReplyFlow state data
	DefaultStateDir = "/var/lib/replyflow"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "replyflow.db"
)

// Config holds environment configuration. Variables are read with the
// REPLYFLOW_ prefix (for example REPLYFLOW_DB_DRIVER).
type Config struct {
	DBDriver     string `envconfig:"DB_DRIVER"`
	DatabaseURL  string `envconfig:"DATABASE_URL"`
	StateDir     string `envconfig:"STATE_DIR"`
	APIAddr      string `envconfig:"API_ADDR"`
	GenProvider  string `envconfig:"GENAI_PROVIDER"`
	GenBaseURL   string `envconfig:"GENAI_BASE_URL"`
	OpenAIKey    string `envconfig:"OPENAI_API_KEY"`
	Dispatcher   string `envconfig:"DISPATCHER"`
	GatewayURL   string `envconfig:"GATEWAY_URL"`
	TwilioSID    string `envconfig:"TWILIO_ACCOUNT_SID"`
	TwilioToken  string `envconfig:"TWILIO_AUTH_TOKEN"`
	TwilioNumber string `envconfig:"TWILIO_FROM_NUMBER"`
}

// Flags holds command line flag values
type Flags struct {
	stateDir   *string
	dbDriver   *string
	dbDSN      *string
	apiAddr    *string
	provider   *string
	baseURL    *string
	openaiKey  *string
	dispatcher *string
	gatewayURL *string
}

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	st, err := buildStore(flags)
	if err != nil {
		slog.Error("Failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	gen, err := buildGenerator(flags)
	if err != nil {
		slog.Error("Failed to configure generative backend", "error", err)
		os.Exit(1)
	}

	dispatcher, err := buildDispatcher(flags, config)
	if err != nil {
		slog.Error("Failed to configure message dispatcher", "error", err)
		os.Exit(1)
	}

	wf := workflow.New(st, dispatcher)
	eng := engine.New(st, gen, wf)

	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	server := api.NewServer(st, eng, wf, dispatcher, apiOpts...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Bootstrapping ReplyFlow", "db_driver", *flags.dbDriver, "dispatcher", *flags.dispatcher)
	if err := server.Run(ctx); err != nil {
		slog.Error("ReplyFlow failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("ReplyFlow exited successfully")
}

// initializeLogger sets up structured logging. REPLYFLOW_DEBUG=false drops
// the level to info.
func initializeLogger() {
	level := slog.LevelDebug
	if !util.ParseBoolEnv("REPLYFLOW_DEBUG", true) {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	var config Config
	if err := envconfig.Process("replyflow", &config); err != nil {
		slog.Warn("failed to process environment configuration", "error", err)
	}

	// OPENAI_API_KEY is conventionally unprefixed.
	if config.OpenAIKey == "" {
		config.OpenAIKey = os.Getenv("OPENAI_API_KEY")
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No state dir set, using default", "default_state_dir", config.StateDir)
	}

	// If no database URL is provided, default to SQLite in the state directory
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"DB_DRIVER", config.DBDriver,
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"STATE_DIR", config.StateDir,
		"API_ADDR", config.APIAddr,
		"GENAI_PROVIDER", config.GenProvider,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"DISPATCHER", config.Dispatcher,
		"GATEWAY_URL", config.GatewayURL)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:   flag.String("state-dir", config.StateDir, "state directory for ReplyFlow data (overrides $REPLYFLOW_STATE_DIR)"),
		dbDriver:   flag.String("db-driver", config.DBDriver, "database driver: sqlite3 or postgres (overrides $REPLYFLOW_DB_DRIVER)"),
		dbDSN:      flag.String("db-dsn", config.DatabaseURL, "database DSN (overrides $REPLYFLOW_DATABASE_URL)"),
		apiAddr:    flag.String("api-addr", config.APIAddr, "API server address (overrides $REPLYFLOW_API_ADDR)"),
		provider:   flag.String("genai-provider", config.GenProvider, "generative provider: openai or openai_compatible (overrides $REPLYFLOW_GENAI_PROVIDER)"),
		baseURL:    flag.String("genai-base-url", config.GenBaseURL, "base URL for openai_compatible providers (overrides $REPLYFLOW_GENAI_BASE_URL)"),
		openaiKey:  flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		dispatcher: flag.String("dispatcher", config.Dispatcher, "outbound dispatcher: gateway or twilio (overrides $REPLYFLOW_DISPATCHER)"),
		gatewayURL: flag.String("gateway-url", config.GatewayURL, "messaging gateway base URL (overrides $REPLYFLOW_GATEWAY_URL)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDriver", *flags.dbDriver,
		"dbDSN_set", *flags.dbDSN != "",
		"apiAddr", *flags.apiAddr,
		"provider", *flags.provider,
		"openaiKeySet", *flags.openaiKey != "",
		"dispatcher", *flags.dispatcher,
		"gatewayURL", *flags.gatewayURL)

	// Track a relocated state directory when the DSN was defaulted from it.
	if *flags.dbDSN == config.DatabaseURL && config.DatabaseURL == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "new_state_dir", *flags.stateDir)
	}

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	if isPostgresDSN(*flags.dbDSN) {
		return nil
	}
	stateDir := filepath.Dir(*flags.dbDSN)
	slog.Debug("Creating state directory for file-based database", "state_dir", stateDir)
	return os.MkdirAll(stateDir, 0755)
}

// isPostgresDSN reports whether the DSN targets PostgreSQL rather than a
// SQLite file path.
func isPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") ||
		strings.HasPrefix(dsn, "postgresql://") ||
		strings.Contains(dsn, "host=")
}

// buildStore opens the configured storage backend.
func buildStore(flags Flags) (store.Store, error) {
	driver := *flags.dbDriver
	if driver == "" {
		if isPostgresDSN(*flags.dbDSN) {
			driver = "postgres"
		} else {
			driver = "sqlite3"
		}
	}

	switch driver {
	case "postgres":
		slog.Info("Using PostgreSQL store")
		return store.NewPostgresStore(store.WithDSN(*flags.dbDSN))
	default:
		slog.Info("Using SQLite store", "path", *flags.dbDSN)
		return store.NewSQLiteStore(store.WithDSN(*flags.dbDSN))
	}
}

// buildGenerator configures the generative backend.
func buildGenerator(flags Flags) (genai.Generator, error) {
	var opts []genai.Option
	if *flags.openaiKey != "" {
		opts = append(opts, genai.WithAPIKey(*flags.openaiKey))
	}
	if *flags.baseURL != "" {
		opts = append(opts, genai.WithBaseURL(*flags.baseURL))
	}
	return genai.NewBackend(*flags.provider, opts...)
}

// buildDispatcher configures the outbound message dispatcher.
func buildDispatcher(flags Flags, config Config) (messaging.Dispatcher, error) {
	var gatewayOpts []messaging.GatewayOption
	if *flags.gatewayURL != "" {
		gatewayOpts = append(gatewayOpts, messaging.WithGatewayURL(*flags.gatewayURL))
	}

	var twilioOpts []messaging.TwilioOption
	if config.TwilioSID != "" {
		twilioOpts = append(twilioOpts, messaging.WithAccountSID(config.TwilioSID))
	}
	if config.TwilioToken != "" {
		twilioOpts = append(twilioOpts, messaging.WithAuthToken(config.TwilioToken))
	}
	if config.TwilioNumber != "" {
		twilioOpts = append(twilioOpts, messaging.WithFromWhats(config.TwilioNumber))
	}

	return messaging.NewDispatcher(*flags.dispatcher, gatewayOpts, twilioOpts)
}
