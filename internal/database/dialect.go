package database

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Dialect names the SQL flavour behind a handle.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectDuckDB   Dialect = "duckdb"
	DialectMySQL    Dialect = "mysql"
	DialectPostgres Dialect = "postgres"
)

func (d Dialect) listTablesSQL() string {
	switch d {
	case DialectSQLite:
		return `SELECT name FROM sqlite_master WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%' ORDER BY name`
	case DialectMySQL:
		return `SELECT table_name FROM information_schema.tables WHERE table_schema = DATABASE() ORDER BY table_name`
	default:
		return `SELECT table_name FROM information_schema.tables WHERE table_schema = current_schema() ORDER BY table_name`
	}
}

// columnsSQL returns name, type, nullable ("YES"/"NO") and primary key (0/1) per column.
func (d Dialect) columnsSQL() string {
	switch d {
	case DialectSQLite:
		return `SELECT name, type, CASE WHEN "notnull" = 1 THEN 'NO' ELSE 'YES' END, pk FROM pragma_table_info(?) ORDER BY cid`
	case DialectMySQL:
		return `SELECT column_name, column_type, is_nullable, CASE WHEN column_key = 'PRI' THEN 1 ELSE 0 END FROM information_schema.columns WHERE table_schema = DATABASE() AND table_name = ? ORDER BY ordinal_position`
	case DialectPostgres:
		return `SELECT column_name, data_type, is_nullable, 0 FROM information_schema.columns WHERE table_schema = current_schema() AND table_name = $1 ORDER BY ordinal_position`
	default:
		return `SELECT column_name, data_type, is_nullable, 0 FROM information_schema.columns WHERE table_schema = current_schema() AND table_name = ? ORDER BY ordinal_position`
	}
}

// QuoteIdent quotes a table or column name for this dialect.
func (d Dialect) QuoteIdent(name string) string {
	if d == DialectMySQL {
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (d Dialect) sampleSQL(table string, limit int) string {
	return fmt.Sprintf("SELECT * FROM %s LIMIT %d", d.QuoteIdent(table), limit)
}

// Name is the human-readable name used in agent prompts.
func (d Dialect) Name() string {
	switch d {
	case DialectSQLite:
		return "SQLite"
	case DialectDuckDB:
		return "DuckDB"
	case DialectMySQL:
		return "MySQL"
	case DialectPostgres:
		return "PostgreSQL"
	default:
		return string(d)
	}
}

var mutatingKeywords = map[string]bool{
	"INSERT": true, "UPDATE": true, "DELETE": true, "REPLACE": true, "MERGE": true,
	"CREATE": true, "DROP": true, "ALTER": true, "TRUNCATE": true, "ATTACH": true,
	"DETACH": true, "VACUUM": true, "REINDEX": true, "GRANT": true, "REVOKE": true,
	"COPY": true, "INSTALL": true, "LOAD": true, "PRAGMA": true,
}

// mutatingWord matches a mutating keyword used as a statement verb anywhere in a query.
// A following "(" marks a function call such as REPLACE(name, 'a', 'b') and is skipped.
var mutatingWord = func() *regexp.Regexp {
	words := make([]string, 0, len(mutatingKeywords))
	for k := range mutatingKeywords {
		words = append(words, k)
	}
	sort.Strings(words)
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(words, "|") + `)\b\s`)
}()

// isMutating reports whether the first keyword of stmt writes or alters the database.
//
// A WITH statement is rejected when any mutating keyword appears as a verb anywhere in
// its text, including inside string literals or identifiers. The check is conservative:
// it can refuse a read-only CTE such as one filtering on the text 'DELETE ME'. Embedded
// handles are also opened read-only by the driver, which stays the final guard.
func isMutating(stmt string) bool {
	s := stripLeadingComments(stmt)
	kw := strings.ToUpper(firstWord(s))
	if kw == "WITH" {
		return mutatingWord.MatchString(s)
	}
	return mutatingKeywords[kw]
}

func stripLeadingComments(s string) string {
	for {
		s = strings.TrimSpace(s)
		switch {
		case strings.HasPrefix(s, "--"):
			if i := strings.IndexByte(s, '\n'); i >= 0 {
				s = s[i+1:]
				continue
			}
			return ""
		case strings.HasPrefix(s, "/*"):
			if i := strings.Index(s, "*/"); i >= 0 {
				s = s[i+2:]
				continue
			}
			return ""
		}
		return s
	}
}

func firstWord(s string) string {
	end := strings.IndexFunc(s, func(r rune) bool {
		return !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z')
	})
	if end < 0 {
		return s
	}
	return s[:end]
}
