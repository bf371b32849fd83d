package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/interviewpipe/interviewpipe/internal/api"
	"github.com/interviewpipe/interviewpipe/internal/genai"
	"github.com/interviewpipe/interviewpipe/internal/interview"
	"github.com/interviewpipe/interviewpipe/internal/lockfile"
	"github.com/interviewpipe/interviewpipe/internal/metrics"
	"github.com/interviewpipe/interviewpipe/internal/models"
	"github.com/interviewpipe/interviewpipe/internal/scheduler"
	"github.com/interviewpipe/interviewpipe/internal/store"
	"github.com/interviewpipe/interviewpipe/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for InterviewPipe state data
	DefaultStateDir = "/var/lib/interviewpipe"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	// Only one instance may use a given state directory.
	lock, err := lockfile.AcquireLock(*flags.stateDir)
	if err != nil {
		slog.Error("Failed to acquire state directory lock", "error", err)
		os.Exit(1)
	}
	defer lock.Release()

	st, err := buildStore(flags)
	if err != nil {
		slog.Error("Failed to initialize session store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	completer, err := buildCompleter(flags, config)
	if err != nil {
		slog.Error("Failed to initialize LLM client", "error", err)
		os.Exit(1)
	}
	gateway := genai.NewGateway(completer, buildGatewayConfig(config))
	orchestrator := interview.NewOrchestrator(st, gateway, metrics.NewPrometheusCollector(), buildOrchestratorConfig(config))
	server := api.NewServer(orchestrator, buildAPIOptions(flags)...)

	sched := scheduler.NewScheduler()
	defer sched.Stop()
	if err := sched.AddJob(config.SweepSchedule, func() { orchestrator.SweepExpired() }); err != nil {
		slog.Error("Failed to schedule expiry sweep", "error", err, "schedule", config.SweepSchedule)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Bootstrapping InterviewPipe with configured modules",
		"state_dir", *flags.stateDir, "dsn_set", *flags.dbDSN != "", "provider", *flags.provider, "api_addr", *flags.apiAddr)
	if err := server.Run(ctx); err != nil {
		slog.Error("InterviewPipe failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("InterviewPipe exited successfully")
}

// Config holds environment configuration
type Config struct {
	DbDriver           string
	DatabaseURL        string
	StateDir           string
	AnthropicKey       string
	OpenAIKey          string
	Provider           string
	APIAddr            string
	DefaultPersona     string
	ClaudeModel        string
	ClaudeMaxTokens    int
	ClaudeTemperature  float64
	SessionTimeout     time.Duration
	MaxHistory         int
	RequestTimeout     time.Duration
	RetryAttempts      int
	VoiceConfThreshold float64
	SweepSchedule      string
}

// Flags holds command line flag values
type Flags struct {
	stateDir *string
	dbDriver *string
	dbDSN    *string
	provider *string
	apiAddr  *string
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
		DbDriver:           os.Getenv("DB_DRIVER"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		StateDir:           os.Getenv("STATE_DIR"),
		AnthropicKey:       os.Getenv("ANTHROPIC_API_KEY"),
		OpenAIKey:          os.Getenv("OPENAI_API_KEY"),
		Provider:           os.Getenv("LLM_PROVIDER"),
		APIAddr:            os.Getenv("API_ADDR"),
		DefaultPersona:     os.Getenv("DEFAULT_PERSONA"),
		ClaudeModel:        os.Getenv("CLAUDE_MODEL"),
		ClaudeMaxTokens:    util.ParseIntEnv("CLAUDE_MAX_TOKENS", 1000),
		ClaudeTemperature:  util.ParseFloatEnv("CLAUDE_TEMPERATURE", 0.7),
		SessionTimeout:     time.Duration(util.ParseIntEnv("SESSION_TIMEOUT_MINUTES", 180)) * time.Minute,
		MaxHistory:         util.ParseIntEnv("MAX_CONVERSATION_HISTORY", 100),
		RequestTimeout:     util.ParseDurationEnv("LLM_REQUEST_TIMEOUT", 30*time.Second),
		RetryAttempts:      util.ParseIntEnv("LLM_RETRY_ATTEMPTS", 3),
		VoiceConfThreshold: util.ParseFloatEnv("VOICE_CONFIDENCE_THRESHOLD", 0.6),
		SweepSchedule:      os.Getenv("SWEEP_SCHEDULE"),
	}
	if config.SweepSchedule == "" {
		config.SweepSchedule = "*/30 * * * *"
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}

	slog.Debug("environment variables loaded",
		"DB_DRIVER", config.DbDriver,
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"STATE_DIR", config.StateDir,
		"ANTHROPIC_API_KEY_SET", config.AnthropicKey != "",
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"LLM_PROVIDER", config.Provider,
		"API_ADDR", config.APIAddr,
		"DEFAULT_PERSONA", config.DefaultPersona)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir: flag.String("state-dir", config.StateDir, "state directory for InterviewPipe data (overrides $STATE_DIR)"),
		dbDriver: flag.String("db-driver", config.DbDriver, "database driver for the session store (overrides $DB_DRIVER)"),
		dbDSN:    flag.String("db-dsn", config.DatabaseURL, "database DSN for the session store (overrides $DATABASE_URL)"),
		provider: flag.String("llm-provider", config.Provider, "LLM provider, anthropic or openai (overrides $LLM_PROVIDER)"),
		apiAddr:  flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDriver", *flags.dbDriver,
		"dbDSN_set", *flags.dbDSN != "",
		"provider", *flags.provider,
		"apiAddr", *flags.apiAddr)

	return flags
}

// buildStore selects the session store backend: Postgres or SQLite when a
// DSN is configured, the file store otherwise.
func buildStore(flags Flags) (store.Store, error) {
	if *flags.dbDSN != "" {
		if *flags.dbDriver == "postgres" || store.DetectDSNType(*flags.dbDSN) == "postgres" {
			slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store", "dsn_set", true)
			return store.NewPostgresStore(store.WithPostgresDSN(*flags.dbDSN))
		}
		slog.Debug("Detected SQLite DSN, configuring SQLite store", "db_path", *flags.dbDSN)
		return store.NewSQLiteStore(store.WithSQLiteDSN(*flags.dbDSN))
	}
	slog.Debug("No database DSN provided, using file store", "state_dir", *flags.stateDir)
	return store.NewFileStore(store.WithStateDir(*flags.stateDir))
}

// buildCompleter selects the LLM vendor client.
func buildCompleter(flags Flags, config Config) (genai.Completer, error) {
	provider := *flags.provider
	if provider == "" {
		if config.AnthropicKey != "" {
			provider = "anthropic"
		} else {
			provider = "openai"
		}
	}
	switch provider {
	case "openai":
		// CLAUDE_MODEL names an Anthropic model; let the OpenAI client pick
		// its own default.
		return genai.NewOpenAICompleter(config.OpenAIKey, "", int64(config.ClaudeMaxTokens), config.ClaudeTemperature)
	default:
		return genai.NewAnthropicCompleter(config.AnthropicKey, config.ClaudeModel, int64(config.ClaudeMaxTokens), config.ClaudeTemperature)
	}
}

func buildGatewayConfig(config Config) genai.Config {
	cfg := genai.DefaultConfig()
	cfg.RequestTimeout = config.RequestTimeout
	cfg.Retry.MaxAttempts = config.RetryAttempts
	return cfg
}

func buildOrchestratorConfig(config Config) interview.Config {
	cfg := interview.DefaultConfig()
	cfg.InactivityTimeout = config.SessionTimeout
	cfg.MaxHistoryEntries = config.MaxHistory
	cfg.TranscriptConfidenceThreshold = config.VoiceConfThreshold
	if config.DefaultPersona != "" {
		persona := models.Persona(config.DefaultPersona)
		if models.IsValidPersona(persona) {
			cfg.DefaultPersona = persona
		} else {
			slog.Warn("Unknown DEFAULT_PERSONA, keeping built-in default", "value", config.DefaultPersona)
		}
	}
	return cfg
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	return apiOpts
}
