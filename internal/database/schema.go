package database

import (
	"context"
	"fmt"
	"strings"
)

// ErrTableNotFound is returned by DescribeTable for names that are not in ListTables.
type ErrTableNotFound struct {
	Table string
}

func (e *ErrTableNotFound) Error() string {
	return fmt.Sprintf("table %q not found in database", e.Table)
}

// DescribeTable renders a CREATE TABLE style definition of table followed by a
// comment block with up to sampleRows example rows.
func (h *Handle) DescribeTable(ctx context.Context, table string, sampleRows int) (string, error) {
	cols, err := h.TableInfo(ctx, table)
	if err != nil {
		return "", err
	}
	if len(cols) == 0 {
		return "", &ErrTableNotFound{Table: table}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE %s (\n", h.dialect.QuoteIdent(table))
	var pks []string
	for i, c := range cols {
		fmt.Fprintf(&b, "\t%s %s", h.dialect.QuoteIdent(c.Name), c.Type)
		if !c.Nullable {
			b.WriteString(" NOT NULL")
		}
		if c.PrimaryKey {
			pks = append(pks, h.dialect.QuoteIdent(c.Name))
		}
		if i < len(cols)-1 || len(pks) > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('\n')
	}
	if len(pks) > 0 {
		fmt.Fprintf(&b, "\tPRIMARY KEY (%s)\n", strings.Join(pks, ", "))
	}
	b.WriteString(")")

	if sampleRows <= 0 {
		return b.String(), nil
	}

	sample, err := h.SampleRows(ctx, table, sampleRows)
	if err != nil {
		// Sample rows are a hint for the model; a failing sample keeps the definition.
		fmt.Fprintf(&b, "\n\n/*\nsample rows unavailable: %v\n*/", err)
		return b.String(), nil
	}

	fmt.Fprintf(&b, "\n\n/*\n%d rows from %s table:\n", len(sample.Rows), table)
	b.WriteString(strings.Join(sample.Columns, "\t"))
	for _, row := range sample.Rows {
		b.WriteByte('\n')
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = sampleCell(v)
		}
		b.WriteString(strings.Join(cells, "\t"))
	}
	b.WriteString("\n*/")
	return b.String(), nil
}

func sampleCell(v any) string {
	if v == nil {
		return "None"
	}
	s := fmt.Sprint(v)
	if len(s) > 100 {
		s = s[:100] + "..."
	}
	return s
}
