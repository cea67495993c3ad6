package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"sqlchat/internal/config"
	"sqlchat/internal/llm"
)

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage the model provider API key stored in the OS keyring",
	Long: `Store, remove or check the API key for a model provider.
The key is used when the provider's environment variable is not set.

Examples:
  sqlchat key set --provider groq
  echo "$KEY" | sqlchat key set --provider openai
  sqlchat key verify
  sqlchat key clear --provider anthropic`,
}

var keySetCmd = &cobra.Command{
	Use:   "set",
	Short: "Store an API key (read from stdin)",
	Run: func(cmd *cobra.Command, args []string) {
		p, err := llm.ParseProvider(provider)
		if err != nil {
			HandleError(err, "Invalid provider")
		}

		key, err := readSecret(cmd.InOrStdin(), cmd.ErrOrStderr(), fmt.Sprintf("%s API key: ", p))
		if err != nil {
			HandleError(err, "Failed to read key")
		}

		kc, err := openKeychain()
		if err != nil {
			HandleError(err, "Keyring unavailable")
		}
		if err := kc.SetAPIKey(string(p), key); err != nil {
			HandleError(err, "Failed to store key")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Stored %s API key in the keyring\n", p)
	},
}

var keyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the stored API key",
	Run: func(cmd *cobra.Command, args []string) {
		p, err := llm.ParseProvider(provider)
		if err != nil {
			HandleError(err, "Invalid provider")
		}
		kc, err := openKeychain()
		if err != nil {
			HandleError(err, "Keyring unavailable")
		}
		if err := kc.ClearAPIKey(string(p)); err != nil {
			HandleError(err, "Failed to remove key")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %s API key from the keyring\n", p)
	},
}

var keyVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check the configured API key against the provider",
	Run: func(cmd *cobra.Command, args []string) {
		settings, err := config.LoadSettingsFromEnv()
		if err != nil {
			HandleError(err, "Invalid settings")
		}
		logger, err := SetupLogger(dataDir)
		if err != nil {
			HandleError(err, "Failed to setup logger")
		}
		cfg, err := modelConfig(settings, os.LookupEnv, logger)
		if err != nil {
			HandleError(err, "Invalid provider")
		}
		if err := llm.VerifyKey(context.Background(), cfg); err != nil {
			HandleError(err, "Key check failed")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s API key is valid\n", cfg.Provider)
	},
}

func init() {
	keyCmd.AddCommand(keySetCmd, keyClearCmd, keyVerifyCmd)
	rootCmd.AddCommand(keyCmd)
}

// readSecret reads one line without echo when in is a terminal.
func readSecret(in io.Reader, prompt io.Writer, label string) (string, error) {
	var line string
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(prompt, label)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", err
		}
		line = string(b)
	} else {
		var err error
		line, err = bufio.NewReader(in).ReadString('\n')
		if err != nil && err != io.EOF {
			return "", err
		}
	}

	key := strings.TrimSpace(line)
	if key == "" {
		return "", fmt.Errorf("no key provided")
	}
	return key, nil
}
