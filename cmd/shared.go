package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"sqlchat/internal/agent"
	"sqlchat/internal/apperr"
	"sqlchat/internal/chat"
	"sqlchat/internal/config"
	"sqlchat/internal/database"
	"sqlchat/internal/keychain"
	"sqlchat/internal/llm"
)

// Runtime bundles the long-lived services shared by the TUI, the web server and
// the CLI commands.
type Runtime struct {
	DataDir    string
	Settings   config.Settings
	Logger     *slog.Logger
	Handles    *database.Provider
	Dispatcher *chat.Dispatcher
	Sessions   *chat.Store

	// Input and Model are the connection and model choices made on the command line.
	Input config.Input
	Model llm.Config
}

// Close releases every cached database handle.
func (rt *Runtime) Close() error {
	return rt.Handles.Close()
}

// These variables will be set by main package
var (
	LaunchTUI   func(rt *Runtime) error
	StartServer func(rt *Runtime, addr string) error
)

// openKeychain is replaced in tests.
var openKeychain = keychain.Open

// HandleError prints error and exits
func HandleError(err error, message string) {
	if kind := apperr.KindOf(err); kind != "" {
		fmt.Fprintf(os.Stderr, "Error: %s: %s\n", message, apperr.UserMessage(err))
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", message, err)
	}
	os.Exit(1)
}

func newRuntime() (*Runtime, error) {
	settings, err := config.LoadSettingsFromEnv()
	if err != nil {
		return nil, err
	}

	logger, err := SetupLogger(dataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to setup logger: %v\n", err)
		logger = slog.New(slog.DiscardHandler)
	}

	modelCfg, err := modelConfig(settings, os.LookupEnv, logger)
	if err != nil {
		return nil, err
	}

	handles := database.NewProvider(
		database.WithTTL(settings.HandleTTL),
		database.WithConnectTimeout(settings.ConnectTimeout),
		database.WithOpener(database.OpenWithTimeout(settings.ConnectTimeout)),
		database.WithLogger(logger),
	)

	dispatcher := chat.NewDispatcher(handles,
		agent.Factory(
			agent.WithMaxSteps(settings.MaxAgentSteps),
			agent.WithLogger(logger),
		),
		chat.WithQuestionTimeout(settings.QuestionTimeout),
		chat.WithHistoryBudget(settings.HistoryTokenBudget),
		chat.WithDispatcherLogger(logger),
	)

	sessions := chat.NewStore(
		chat.WithIdleTTL(settings.SessionIdleTTL),
		chat.WithMaxMessages(settings.MaxHistoryMessages),
	)

	logger.Info("Application started",
		"version", "1.0",
		"data_dir", dataDir,
		"provider", string(modelCfg.Provider),
		"mode", dbMode,
	)

	return &Runtime{
		DataDir:    dataDir,
		Settings:   settings,
		Logger:     logger,
		Handles:    handles,
		Dispatcher: dispatcher,
		Sessions:   sessions,
		Input:      connectionInput(),
		Model:      modelCfg,
	}, nil
}

// connectionInput collects the database flags.
func connectionInput() config.Input {
	return config.Input{
		Mode:         config.Mode(dbMode),
		EmbeddedPath: dbPath,
		Driver:       config.Driver(dbDriver),
		Host:         dbHost,
		Username:     dbUser,
		Password:     dbPassword,
		Database:     dbName,
	}
}

// modelConfig resolves provider and model from flags, then settings. The API key
// comes from the provider's environment variable, then the OS keyring.
func modelConfig(settings config.Settings, lookup config.LookupFunc, logger *slog.Logger) (llm.Config, error) {
	name := provider
	if name == "" {
		name = settings.Provider
	}
	p, err := llm.ParseProvider(name)
	if err != nil {
		return llm.Config{}, err
	}

	model := modelID
	if model == "" {
		model = settings.Model
	}

	return llm.Config{
		Provider: p,
		APIKey:   resolveAPIKey(p, lookup, logger),
		Model:    model,
		BaseURL:  settings.BaseURL,
		Timeout:  settings.ModelTimeout,
	}, nil
}

func resolveAPIKey(p llm.Provider, lookup config.LookupFunc, logger *slog.Logger) string {
	if key := llm.APIKeyFromEnv(p, lookup); key != "" {
		return key
	}

	kc, err := openKeychain()
	if err != nil {
		logger.Debug("Keyring unavailable", "error", err)
		return ""
	}
	key, err := kc.APIKey(string(p))
	if err != nil {
		if !errors.Is(err, keychain.ErrNotFound) {
			logger.Warn("Failed to read API key from keyring", "provider", string(p), "error", err)
		}
		return ""
	}
	return key
}
