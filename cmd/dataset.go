package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"sqlchat/internal/config"
	"sqlchat/internal/database"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the sample student database",
	Long: `Create the sample SQLite database (student.db, or the path given with --db)
holding the STUDENT table used in the examples. An existing file is never overwritten.

Example:
  sqlchat init
  sqlchat init --db ./data/student.db`,
	Run: func(cmd *cobra.Command, args []string) {
		path := embeddedPath(connectionInput())
		if err := database.CreateSampleDatabase(context.Background(), path); err != nil {
			HandleError(err, "Failed to create sample database")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created sample database %s\n", path)
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func embeddedPath(in config.Input) string {
	if strings.TrimSpace(in.EmbeddedPath) == "" {
		return config.DefaultEmbeddedFile
	}
	return in.EmbeddedPath
}

// ensureEmbeddedDatabase offers to create the sample database when embedded mode is
// selected and the file is missing. It returns false if the user declined.
func ensureEmbeddedDatabase(in config.Input, stdin io.Reader, out io.Writer) (bool, error) {
	if in.Mode != config.ModeEmbedded && in.Mode != "" {
		return true, nil
	}
	path := embeddedPath(in)
	exists, err := database.SampleDatabaseExists(path)
	if err != nil {
		return false, err
	}
	if exists {
		return true, nil
	}

	if !promptUserForCreate(path, stdin, out) {
		return false, nil
	}
	if err := database.CreateSampleDatabase(context.Background(), path); err != nil {
		return false, err
	}
	fmt.Fprintf(out, "✓ Created %s\n", path)
	return true, nil
}

// promptUserForCreate asks the user whether the sample database should be created.
func promptUserForCreate(path string, stdin io.Reader, out io.Writer) bool {
	fmt.Fprintf(out, "\n⚠️  Embedded database not found: %s\n", path)
	fmt.Fprintln(out, "A sample database with a STUDENT table can be created for you.")
	fmt.Fprint(out, "\nWould you like to create it now? (y/N): ")

	response, _ := bufio.NewReader(stdin).ReadString('\n')
	response = strings.ToLower(strings.TrimSpace(response))

	return response == "y" || response == "yes"
}
