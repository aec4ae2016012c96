package main

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/naveenvasou/sales-chatbot-widget/internal/api"
	"github.com/naveenvasou/sales-chatbot-widget/internal/genai"
	"github.com/naveenvasou/sales-chatbot-widget/internal/notify"
	"github.com/naveenvasou/sales-chatbot-widget/internal/store"
	"github.com/naveenvasou/sales-chatbot-widget/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for service state data
	DefaultStateDir = "/var/lib/leadchat"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "leadchat.db"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	storeOpts := buildStoreOptions(flags)
	genaiOpts := buildGenAIOptions(flags)
	apiOpts := buildAPIOptions(config, flags)

	slog.Info("Bootstrapping lead chat service")
	slog.Debug("Module options counts", "store", len(storeOpts), "genai", len(genaiOpts), "api", len(apiOpts))
	if err := api.Run(storeOpts, genaiOpts, apiOpts); err != nil {
		slog.Error("Lead chat service failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("Lead chat service exited successfully")
}

// Config holds environment configuration
type Config struct {
	StateDir    string
	DatabaseURL string
	OpenAIKey   string
	OpenAIModel string
	APIAddr     string
	CatalogPath string

	SMTPHost   string
	SMTPPort   int
	SMTPUser   string
	SMTPPass   string
	AdminEmail string

	TwilioSID   string
	TwilioToken string
	TwilioFrom  string
	AdminPhone  string
}

// Flags holds command line flag values
type Flags struct {
	stateDir    *string
	dbDSN       *string
	openaiKey   *string
	openaiModel *string
	apiAddr     *string
	catalogPath *string
}

// initializeLogger sets up structured logging. LEADCHAT_DEBUG enables debug
// level output.
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("LEADCHAT_DEBUG", false) {
		level = slog.LevelDebug
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

	config := Config{
		StateDir:    os.Getenv("LEADCHAT_STATE_DIR"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		OpenAIKey:   os.Getenv("OPENAI_API_KEY"),
		OpenAIModel: os.Getenv("OPENAI_MODEL"),
		APIAddr:     os.Getenv("API_ADDR"),
		CatalogPath: os.Getenv("PROPERTIES_FILE"),

		SMTPHost:   os.Getenv("SMTP_SERVER"),
		SMTPPort:   util.ParseIntEnv("SMTP_PORT", 587),
		SMTPUser:   os.Getenv("SMTP_USERNAME"),
		SMTPPass:   os.Getenv("SMTP_PASSWORD"),
		AdminEmail: os.Getenv("ADMIN_EMAIL"),

		TwilioSID:   os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioToken: os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFrom:  os.Getenv("TWILIO_FROM_NUMBER"),
		AdminPhone:  os.Getenv("ADMIN_PHONE"),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No LEADCHAT_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"LEADCHAT_STATE_DIR", config.StateDir,
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"API_ADDR", config.APIAddr,
		"SMTP_SERVER_SET", config.SMTPHost != "",
		"TWILIO_ACCOUNT_SID_SET", config.TwilioSID != "")

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:    flag.String("state-dir", config.StateDir, "state directory for service data (overrides $LEADCHAT_STATE_DIR)"),
		dbDSN:       flag.String("db-dsn", config.DatabaseURL, "database DSN: postgres URL or SQLite file path (overrides $DATABASE_URL)"),
		openaiKey:   flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		openaiModel: flag.String("openai-model", config.OpenAIModel, "OpenAI model for assistant replies (overrides $OPENAI_MODEL)"),
		apiAddr:     flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		catalogPath: flag.String("properties-file", config.CatalogPath, "path to properties JSON catalog (overrides $PROPERTIES_FILE)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"openaiKeySet", *flags.openaiKey != "",
		"apiAddr", *flags.apiAddr,
		"catalogPath", *flags.catalogPath)

	// Keep the SQLite default in the chosen state directory when only
	// state-dir was overridden.
	if *flags.dbDSN == config.DatabaseURL && config.DatabaseURL == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "new_state_dir", *flags.stateDir)
	}

	return flags
}

// buildStoreOptions constructs store configuration options
func buildStoreOptions(flags Flags) []store.Option {
	var storeOpts []store.Option
	if *flags.dbDSN != "" {
		if store.DetectDSNType(*flags.dbDSN) == "postgres" {
			slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store")
			storeOpts = append(storeOpts, store.WithPostgresDSN(*flags.dbDSN))
		} else {
			slog.Debug("Detected SQLite DSN, configuring SQLite store", "db_path", *flags.dbDSN)
			storeOpts = append(storeOpts, store.WithSQLiteDSN(*flags.dbDSN))
		}
	} else {
		slog.Debug("No database DSN provided, will use in-memory store")
	}
	return storeOpts
}

// buildGenAIOptions constructs AI client configuration options
func buildGenAIOptions(flags Flags) []genai.Option {
	var genaiOpts []genai.Option
	if *flags.openaiKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(*flags.openaiKey))
	}
	if *flags.openaiModel != "" {
		genaiOpts = append(genaiOpts, genai.WithModel(*flags.openaiModel))
	}
	return genaiOpts
}

// buildAPIOptions constructs API server configuration options, including
// whichever notification channels are fully configured.
func buildAPIOptions(config Config, flags Flags) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	if *flags.catalogPath != "" {
		apiOpts = append(apiOpts, api.WithCatalogPath(*flags.catalogPath))
	}

	if config.SMTPHost != "" && config.SMTPUser != "" && config.SMTPPass != "" && config.AdminEmail != "" {
		slog.Debug("Email notifications configured", "admin_email_set", true)
		apiOpts = append(apiOpts, api.WithEmailNotifications(
			notify.WithSMTPHost(config.SMTPHost),
			notify.WithSMTPPort(config.SMTPPort),
			notify.WithSMTPCredentials(config.SMTPUser, config.SMTPPass),
			notify.WithAdminEmail(config.AdminEmail),
		))
	} else {
		slog.Debug("Email notifications not configured, skipping")
	}

	if config.TwilioSID != "" && config.TwilioToken != "" && config.TwilioFrom != "" && config.AdminPhone != "" {
		slog.Debug("SMS notifications configured", "admin_phone_set", true)
		apiOpts = append(apiOpts, api.WithSMSNotifications(
			notify.WithAccountSID(config.TwilioSID),
			notify.WithAuthToken(config.TwilioToken),
			notify.WithFromNumber(config.TwilioFrom),
			notify.WithAdminNumber(config.AdminPhone),
		))
	} else {
		slog.Debug("SMS notifications not configured, skipping")
	}

	return apiOpts
}
