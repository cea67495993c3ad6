package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"sqlchat/internal/chat"
)

var askVerbose bool

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question about the database",
	Long: `Ask a natural language question and stream the agent's answer to stdout.
Answers that are lists of rows are printed again as a markdown table.

Requires an API key for the selected provider (GROQ_API_KEY, OPENAI_API_KEY or
ANTHROPIC_API_KEY), or one stored with 'sqlchat key set'.

Example:
  sqlchat ask "Which students are in the DEVOPS class?"
  sqlchat ask --mode remote --host db:3306 --user app --password secret --database school "How many courses are there?"`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		question := strings.Join(args, " ")

		rt, err := newRuntime()
		if err != nil {
			HandleError(err, "Failed to initialize")
		}
		defer rt.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		session := rt.Sessions.GetOrCreate("")
		if err := rt.Dispatcher.Connect(ctx, session, rt.Input, rt.Model); err != nil {
			HandleError(err, "Failed to connect")
		}

		out := cmd.OutOrStdout()
		answer, err := rt.Dispatcher.Ask(ctx, session, question, func(e chat.Event) {
			switch e.Kind {
			case chat.EventDelta:
				fmt.Fprint(out, e.Text)
			case chat.EventToolCall:
				if askVerbose {
					fmt.Fprintf(cmd.ErrOrStderr(), "\n> %s %s\n", e.Tool, e.Input)
				}
			}
		})
		if err != nil {
			fmt.Fprintln(out)
			HandleError(err, "Failed to generate response")
		}
		fmt.Fprintln(out)

		if answer.View.IsTable() {
			fmt.Fprintln(out)
			fmt.Fprint(out, answer.View.Table.Markdown())
		}
	},
}

func init() {
	askCmd.Flags().BoolVarP(&askVerbose, "verbose", "v", false, "Print agent tool calls to stderr")
	rootCmd.AddCommand(askCmd)
}
