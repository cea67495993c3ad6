// Package present decides how an agent answer is shown: as a table when the answer
// is a literal list of row tuples, otherwise as plain text.
package present

import (
	"strconv"
	"strings"
)

// Kind distinguishes the two renderings.
type Kind string

const (
	KindText  Kind = "text"
	KindTable Kind = "table"
)

// Table holds rows whose columns are named by position: "0", "1", ...
type Table struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// View is the rendering decision for one answer.
type View struct {
	Kind  Kind   `json:"kind"`
	Text  string `json:"text"`
	Table *Table `json:"table,omitempty"`
}

// Render turns an answer into a View. It never panics; anything that does not parse
// cleanly as a list of tuples is returned as text.
func Render(answer string) (v View) {
	v = View{Kind: KindText, Text: answer}

	trimmed := strings.TrimSpace(answer)
	if !strings.HasPrefix(trimmed, "[(") || !strings.HasSuffix(trimmed, ")]") {
		return v
	}

	defer func() {
		if r := recover(); r != nil {
			v = View{Kind: KindText, Text: answer}
		}
	}()

	rows, err := parseRows(trimmed)
	if err != nil {
		return v
	}

	width := 0
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}
	cols := make([]string, width)
	for i := range cols {
		cols[i] = strconv.Itoa(i)
	}
	for i, row := range rows {
		for len(row) < width {
			row = append(row, "")
		}
		rows[i] = row
	}

	v.Kind = KindTable
	v.Table = &Table{Columns: cols, Rows: rows}
	return v
}

// IsTable reports whether the answer rendered as a table.
func (v View) IsTable() bool {
	return v.Kind == KindTable && v.Table != nil
}

// Markdown renders the table as a GitHub-flavoured markdown table.
func (t *Table) Markdown() string {
	var b strings.Builder
	writeRow := func(cells []string) {
		b.WriteString("|")
		for _, c := range cells {
			b.WriteString(" ")
			b.WriteString(strings.ReplaceAll(strings.ReplaceAll(c, "|", `\|`), "\n", " "))
			b.WriteString(" |")
		}
		b.WriteString("\n")
	}
	writeRow(t.Columns)
	sep := make([]string, len(t.Columns))
	for i := range sep {
		sep[i] = "---"
	}
	writeRow(sep)
	for _, row := range t.Rows {
		writeRow(row)
	}
	return b.String()
}
