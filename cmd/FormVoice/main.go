package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/guidedforms/FormVoice/internal/api"
	"github.com/guidedforms/FormVoice/internal/genai"
	"github.com/guidedforms/FormVoice/internal/i18n"
	"github.com/guidedforms/FormVoice/internal/lockfile"
	"github.com/guidedforms/FormVoice/internal/speech"
	"github.com/guidedforms/FormVoice/internal/speech/google"
	"github.com/guidedforms/FormVoice/internal/store"
	"github.com/guidedforms/FormVoice/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for FormVoice state data
	DefaultStateDir = "/var/lib/formvoice"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "formvoice.db"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	lock, err := lockfile.AcquireLock(*flags.stateDir)
	if err != nil {
		slog.Error("Failed to acquire state directory lock", "error", err)
		os.Exit(1)
	}
	defer lock.Release()

	storeOpts := buildStoreOptions(flags)
	genaiOpts := buildGenAIOptions(flags)
	apiOpts := buildAPIOptions(flags)

	slog.Info("Bootstrapping FormVoice with configured modules")
	slog.Debug("Module options counts", "store", len(storeOpts), "genai", len(genaiOpts), "api", len(apiOpts))
	slog.Debug("Final configuration", "state_dir", *flags.stateDir, "dsn_set", *flags.dbDSN != "", "api_addr", *flags.apiAddr, "language", *flags.language, "google_stt", *flags.googleSTT)
	if err := api.Run(storeOpts, genaiOpts, apiOpts); err != nil {
		slog.Error("FormVoice failed to run", "error", err)
		lock.Release()
		os.Exit(1)
	}
	slog.Info("FormVoice exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseURL   string
	StateDir      string
	OpenAIKey     string
	APIAddr       string
	Language      string
	GoogleSTT     bool
	RetentionDays int
}

// Flags holds command line flag values
type Flags struct {
	stateDir      *string
	dbDSN         *string
	openaiKey     *string
	apiAddr       *string
	language      *string
	googleSTT     *bool
	retentionDays *int
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
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		StateDir:      os.Getenv("FORMVOICE_STATE_DIR"),
		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		APIAddr:       os.Getenv("API_ADDR"),
		Language:      util.GetEnvOrDefault("FORMVOICE_LANG", string(i18n.LanguageEnglish)),
		GoogleSTT:     util.ParseBoolEnv("FORMVOICE_GOOGLE_STT", false),
		RetentionDays: util.ParseIntEnv("FORMVOICE_DRAFT_RETENTION_DAYS", 0),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No FORMVOICE_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	} else {
		slog.Debug("FORMVOICE_STATE_DIR found in environment", "state_dir", config.StateDir)
	}

	// Default to SQLite in the state directory when no database URL is
	// provided.
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"FORMVOICE_STATE_DIR", config.StateDir,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"API_ADDR", config.APIAddr,
		"FORMVOICE_LANG", config.Language,
		"FORMVOICE_GOOGLE_STT", config.GoogleSTT,
		"FORMVOICE_DRAFT_RETENTION_DAYS", config.RetentionDays)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:      flag.String("state-dir", config.StateDir, "state directory for FormVoice data (overrides $FORMVOICE_STATE_DIR)"),
		dbDSN:         flag.String("db-dsn", config.DatabaseURL, "database DSN for the form store (overrides $DATABASE_URL)"),
		openaiKey:     flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key for answer extraction (overrides $OPENAI_API_KEY)"),
		apiAddr:       flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		language:      flag.String("lang", config.Language, "default dialogue language (overrides $FORMVOICE_LANG)"),
		googleSTT:     flag.Bool("google-stt", config.GoogleSTT, "enable Google Cloud speech recognition for sessions (overrides $FORMVOICE_GOOGLE_STT)"),
		retentionDays: flag.Int("draft-retention-days", config.RetentionDays, "days to keep inactive drafts, 0 disables pruning (overrides $FORMVOICE_DRAFT_RETENTION_DAYS)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"openaiKeySet", *flags.openaiKey != "",
		"apiAddr", *flags.apiAddr,
		"language", *flags.language,
		"googleSTT", *flags.googleSTT,
		"retentionDays", *flags.retentionDays)

	// Follow a state-dir override when the DSN still points at the default
	// SQLite location.
	if *flags.dbDSN == config.DatabaseURL && config.DatabaseURL == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "dsn_updated", true, "old_state_dir", config.StateDir, "new_state_dir", *flags.stateDir)
	}

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	if !strings.Contains(*flags.dbDSN, "postgres://") && !strings.Contains(*flags.dbDSN, "host=") {
		stateDir := filepath.Dir(*flags.dbDSN)
		slog.Debug("Creating state directory for file-based database", "state_dir", stateDir)
		if err := os.MkdirAll(stateDir, 0755); err != nil {
			slog.Error("Failed to create state directory", "error", err, "state_dir", stateDir)
			return err
		}
	}
	return nil
}

// buildStoreOptions constructs store configuration options
func buildStoreOptions(flags Flags) []store.Option {
	var storeOpts []store.Option
	if *flags.dbDSN != "" {
		if store.DetectDSNType(*flags.dbDSN) == "postgres" {
			slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store", "dsn_type", "postgresql", "dsn_set", true)
			storeOpts = append(storeOpts, store.WithPostgresDSN(*flags.dbDSN))
		} else {
			slog.Debug("Detected SQLite DSN, configuring SQLite store", "dsn_type", "sqlite", "db_path", *flags.dbDSN)
			storeOpts = append(storeOpts, store.WithSQLiteDSN(*flags.dbDSN))
		}
	} else {
		slog.Debug("No database DSN provided, will use in-memory store")
	}
	return storeOpts
}

// buildGenAIOptions constructs GenAI configuration options
func buildGenAIOptions(flags Flags) []genai.Option {
	var genaiOpts []genai.Option
	if *flags.openaiKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(*flags.openaiKey))
	}
	return genaiOpts
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	if *flags.language != "" {
		apiOpts = append(apiOpts, api.WithDefaultLanguage(i18n.Language(*flags.language)))
	}
	if *flags.googleSTT {
		apiOpts = append(apiOpts, api.WithRecognizerFactory(func() (speech.Recognizer, error) {
			return google.New(context.Background())
		}))
	}
	if *flags.retentionDays > 0 {
		apiOpts = append(apiOpts, api.WithDraftRetention(time.Duration(*flags.retentionDays)*24*time.Hour))
	}
	return apiOpts
}
