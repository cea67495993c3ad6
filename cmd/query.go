package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"sqlchat/internal/config"
	"sqlchat/internal/database"
)

var queryString string

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query the database directly with SQL",
	Long: `Execute the requested QUERY against the configured database and print the rows as JSON.
The embedded database is read-only, so only read statements succeed there.

Examples:
  sqlchat query --sql "SELECT * FROM STUDENT LIMIT 5"
  sqlchat query --sql "SELECT CLASS, AVG(MARKS) AS avg_marks FROM STUDENT GROUP BY CLASS"`,
	Run: func(cmd *cobra.Command, args []string) {
		if queryString == "" {
			HandleError(fmt.Errorf("query is required"), "Missing query parameter")
		}

		rt, err := newRuntime()
		if err != nil {
			HandleError(err, "Failed to initialize")
		}
		defer rt.Close()

		ctx := context.Background()
		h, err := openHandle(ctx, rt)
		if err != nil {
			HandleError(err, "Failed to open database")
		}

		res, err := h.Query(ctx, queryString)
		if err != nil {
			HandleError(err, "Failed to execute query")
		}

		output, err := json.MarshalIndent(resultRows(res), "", "  ")
		if err != nil {
			HandleError(err, "Failed to encode JSON")
		}

		fmt.Fprintln(cmd.OutOrStdout(), string(output))
	},
}

func init() {
	queryCmd.Flags().StringVarP(&queryString, "sql", "q", "", "SQL query to execute (required)")
	_ = queryCmd.MarkFlagRequired("sql")
	rootCmd.AddCommand(queryCmd)
}

// openHandle validates the connection flags and opens the database through the
// shared provider.
func openHandle(ctx context.Context, rt *Runtime) (*database.Handle, error) {
	desc, err := config.Validate(rt.Input)
	if err != nil {
		return nil, err
	}
	return rt.Handles.Get(ctx, desc)
}

// resultRows converts a result into one object per row keyed by column name.
func resultRows(res *database.Result) []map[string]any {
	rows := make([]map[string]any, 0, len(res.Rows))
	for _, r := range res.Rows {
		row := make(map[string]any, len(res.Columns))
		for i, col := range res.Columns {
			if i < len(r) {
				row[col] = r[i]
			}
		}
		rows = append(rows, row)
	}
	return rows
}
