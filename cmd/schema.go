package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"sqlchat/internal/database"
)

// SchemaOutput represents the schema information for a table
type SchemaOutput struct {
	TableName   string       `json:"table_name"`
	ColumnCount int          `json:"column_count"`
	Columns     []ColumnInfo `json:"columns"`
}

// ColumnInfo represents information about a single column
type ColumnInfo struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Nullable   bool   `json:"nullable"`
	PrimaryKey bool   `json:"primary_key,omitempty"`
}

var schemaTables []string

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Retrieve a summary of the database schema",
	Long: `Retrieve a summary of the configured database schema.
This command returns information about all tables and their columns, or only the
tables named with --table.

Examples:
  sqlchat schema
  sqlchat schema --table STUDENT`,
	Run: func(cmd *cobra.Command, args []string) {
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

		tables := schemaTables
		if len(tables) == 0 {
			tables, err = h.ListTables(ctx)
			if err != nil {
				HandleError(err, "Failed to list tables")
			}
		}

		schemas, err := describeTables(ctx, h, tables)
		if err != nil {
			HandleError(err, "Failed to read schema")
		}

		output, err := json.MarshalIndent(schemas, "", "  ")
		if err != nil {
			HandleError(err, "Failed to encode JSON")
		}

		fmt.Fprintln(cmd.OutOrStdout(), string(output))
	},
}

func init() {
	schemaCmd.Flags().StringSliceVarP(&schemaTables, "table", "t", nil, "Only describe these tables")
	rootCmd.AddCommand(schemaCmd)
}

func describeTables(ctx context.Context, h *database.Handle, tables []string) ([]SchemaOutput, error) {
	schemas := make([]SchemaOutput, 0, len(tables))
	for _, table := range tables {
		cols, err := h.TableInfo(ctx, table)
		if err != nil {
			return nil, err
		}
		// Skip tables that don't exist
		if len(cols) == 0 {
			continue
		}

		out := SchemaOutput{TableName: table, ColumnCount: len(cols)}
		for _, c := range cols {
			out.Columns = append(out.Columns, ColumnInfo{
				Name:       c.Name,
				Type:       c.Type,
				Nullable:   c.Nullable,
				PrimaryKey: c.PrimaryKey,
			})
		}
		schemas = append(schemas, out)
	}
	return schemas, nil
}
