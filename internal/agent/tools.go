package agent

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"charm.land/fantasy"

	"sqlchat/internal/config"
	"sqlchat/internal/database"
	"sqlchat/internal/metrics"
)

// Tool names. The agent prompt refers to them by these names.
const (
	ToolListTables   = "sql_db_list_tables"
	ToolSchema       = "sql_db_schema"
	ToolQueryChecker = "sql_db_query_checker"
	ToolQuery        = "sql_db_query"
)

// DefaultSampleRows is how many example rows sql_db_schema shows per table.
const DefaultSampleRows = 3

type listTablesInput struct {
	ToolInput string `json:"tool_input,omitempty" description:"Leave empty"`
}

type schemaInput struct {
	TableNames string `json:"table_names" description:"Comma-separated list of tables to describe, for example: students, courses"`
}

type queryInput struct {
	Query string `json:"query" description:"A single, syntactically correct SQL statement"`
}

// CreateSQLTools returns the SQL toolkit bound to h, minus any excluded tool names.
func CreateSQLTools(h *database.Handle, sampleRows int, exclusions []string, logger *slog.Logger) []fantasy.AgentTool {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	excluded := make(map[string]bool, len(exclusions))
	for _, name := range exclusions {
		excluded[name] = true
	}

	all := []fantasy.AgentTool{
		listTablesTool(h, logger),
		schemaTool(h, sampleRows, logger),
		queryCheckerTool(h, logger),
		queryTool(h, logger),
	}

	var tools []fantasy.AgentTool
	for _, tool := range all {
		if excluded[tool.Info().Name] {
			continue
		}
		tools = append(tools, tool)
	}
	return tools
}

func listTablesTool(h *database.Handle, logger *slog.Logger) fantasy.AgentTool {
	return fantasy.NewAgentTool(
		ToolListTables,
		"Input is an empty string, output is a comma-separated list of tables in the database.",
		func(ctx context.Context, _ listTablesInput, call fantasy.ToolCall) (fantasy.ToolResponse, error) {
			metrics.IncrementToolCall(ToolListTables)
			tables, err := h.ListTables(ctx)
			if err != nil {
				logger.Warn("List tables failed", "error", err)
				return fantasy.NewTextErrorResponse("Error: " + err.Error()), nil
			}
			return fantasy.NewTextResponse(strings.Join(tables, ", ")), nil
		},
	)
}

func schemaTool(h *database.Handle, sampleRows int, logger *slog.Logger) fantasy.AgentTool {
	description := fmt.Sprintf("Input is a comma-separated list of tables, output is the schema and %d sample rows for those tables. "+
		"Be sure that the tables actually exist by calling %s first!", sampleRows, ToolListTables)

	return fantasy.NewAgentTool(
		ToolSchema,
		description,
		func(ctx context.Context, input schemaInput, call fantasy.ToolCall) (fantasy.ToolResponse, error) {
			metrics.IncrementToolCall(ToolSchema)

			names := splitTableNames(input.TableNames)
			if len(names) == 0 {
				return fantasy.NewTextErrorResponse("Error: table_names is required"), nil
			}

			known, err := h.ListTables(ctx)
			if err != nil {
				logger.Warn("List tables failed", "error", err)
				return fantasy.NewTextErrorResponse("Error: " + err.Error()), nil
			}
			var missing []string
			for _, name := range names {
				if !containsFold(known, name) {
					missing = append(missing, name)
				}
			}
			if len(missing) > 0 {
				sort.Strings(missing)
				return fantasy.NewTextErrorResponse(fmt.Sprintf("Error: table_names {%s} not found in database", strings.Join(missing, ", "))), nil
			}

			var parts []string
			for _, name := range names {
				desc, err := h.DescribeTable(ctx, canonicalName(known, name), sampleRows)
				if err != nil {
					logger.Warn("Describe table failed", "table", name, "error", err)
					return fantasy.NewTextErrorResponse("Error: " + err.Error()), nil
				}
				parts = append(parts, desc)
			}
			return fantasy.NewTextResponse(strings.Join(parts, "\n\n")), nil
		},
	)
}

func queryCheckerTool(h *database.Handle, logger *slog.Logger) fantasy.AgentTool {
	return fantasy.NewAgentTool(
		ToolQueryChecker,
		fmt.Sprintf("Use this tool to double check if your query is correct before executing it. "+
			"Always use this tool before executing a query with %s!", ToolQuery),
		func(ctx context.Context, input queryInput, call fantasy.ToolCall) (fantasy.ToolResponse, error) {
			metrics.IncrementToolCall(ToolQueryChecker)
			q := strings.TrimSpace(input.Query)
			if q == "" {
				return fantasy.NewTextErrorResponse("Error: query is required"), nil
			}
			if err := h.Explain(ctx, q); err != nil {
				logger.Info("Query rejected by checker", "error", config.Mask(err.Error()))
				return fantasy.NewTextErrorResponse(fmt.Sprintf("Error: %v\nRewrite the query and check it again.", err)), nil
			}
			return fantasy.NewTextResponse(q), nil
		},
	)
}

func queryTool(h *database.Handle, logger *slog.Logger) fantasy.AgentTool {
	return fantasy.NewAgentTool(
		ToolQuery,
		"Input to this tool is a detailed and correct SQL query, output is a result from the database. "+
			"If the query is not correct, an error message will be returned. "+
			"If an error is returned, rewrite the query, check the query, and try again. "+
			fmt.Sprintf("If you encounter an issue with Unknown column, use %s to query the correct table fields.", ToolSchema),
		func(ctx context.Context, input queryInput, call fantasy.ToolCall) (fantasy.ToolResponse, error) {
			metrics.IncrementToolCall(ToolQuery)
			q := strings.TrimSpace(input.Query)
			if q == "" {
				return fantasy.NewTextErrorResponse("Error: query is required"), nil
			}
			res, err := h.Query(ctx, q)
			if err != nil {
				if ctx.Err() != nil {
					return fantasy.ToolResponse{}, ctx.Err()
				}
				logger.Info("Query failed", "error", config.Mask(err.Error()))
				return fantasy.NewTextErrorResponse("Error: " + err.Error()), nil
			}
			if len(res.Columns) == 0 {
				return fantasy.NewTextResponse("Statement executed."), nil
			}
			return fantasy.NewTextResponse(res.Literal()), nil
		},
	)
}

func splitTableNames(s string) []string {
	var names []string
	for _, part := range strings.Split(s, ",") {
		name := strings.Trim(strings.TrimSpace(part), "`\"'")
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

// canonicalName returns the table's stored spelling for a case-insensitive match.
func canonicalName(known []string, s string) string {
	for _, v := range known {
		if v == s {
			return v
		}
	}
	for _, v := range known {
		if strings.EqualFold(v, s) {
			return v
		}
	}
	return s
}
