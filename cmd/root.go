package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var (
	dataDir    string
	dbPath     string
	dbMode     string
	dbDriver   string
	dbHost     string
	dbUser     string
	dbPassword string
	dbName     string
	provider   string
	modelID    string

	rootCmd = &cobra.Command{
		Use:   "sqlchat",
		Short: "SQL Chat - Ask questions about your database in plain English",
		Long: `SQL Chat lets you ask natural-language questions about a relational database.
An LLM agent inspects the schema, writes SQL, runs it and answers in prose or as a table.

When run without commands, it launches an interactive TUI connected to the embedded
student.db (read-only). Use --mode remote with the connection flags for MySQL or Postgres.
Use subcommands for the web server or CLI mode with JSON output.`,
		Run: func(cmd *cobra.Command, args []string) {
			// No subcommand specified - launch TUI
			rt, err := newRuntime()
			if err != nil {
				HandleError(err, "Failed to initialize")
			}
			defer rt.Close()

			ok, err := ensureEmbeddedDatabase(rt.Input, cmd.InOrStdin(), cmd.OutOrStdout())
			if err != nil {
				HandleError(err, "Failed to prepare embedded database")
			}
			if !ok {
				fmt.Println("\n❌ Cannot proceed without a database.")
				fmt.Println("Run 'sqlchat init', pass --db, or use --mode remote.")
				os.Exit(1)
			}

			if err := LaunchTUI(rt); err != nil {
				HandleError(err, "TUI failed")
			}
		},
	}
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&dataDir, "data-dir", "d", ".sqlchat/", "Directory for the log file")
	flags.StringVar(&dbPath, "db", "", "Embedded database file (default student.db)")
	flags.StringVar(&dbMode, "mode", "embedded", "Database mode: embedded or remote")
	flags.StringVar(&dbDriver, "driver", "mysql", "Remote driver: mysql or postgres")
	flags.StringVar(&dbHost, "host", "", "Remote database host (host or host:port)")
	flags.StringVar(&dbUser, "user", "", "Remote database username")
	flags.StringVar(&dbPassword, "password", "", "Remote database password")
	flags.StringVar(&dbName, "database", "", "Remote database name")
	flags.StringVar(&provider, "provider", "", "Model provider: groq, openai or anthropic (default from SQLCHAT_PROVIDER)")
	flags.StringVar(&modelID, "model", "", "Model id (default depends on the provider)")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// SetupLogger creates the application logger writing JSON to <dataDir>/err.log.
func SetupLogger(dataDir string) (*slog.Logger, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	logPath := filepath.Join(dataDir, "err.log")

	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	handler := slog.NewJSONHandler(logFile, &slog.HandlerOptions{
		Level:     slog.LevelInfo,
		AddSource: true,
	})
	return slog.New(handler), nil
}
