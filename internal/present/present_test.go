package present

import (
	"strings"
	"testing"
)

func TestRenderTable(t *testing.T) {
	v := Render("[(1, 'Alice'), (2, 'Bob')]")
	if !v.IsTable() {
		t.Fatalf("Expected table, got %+v", v)
	}
	if got := strings.Join(v.Table.Columns, ","); got != "0,1" {
		t.Errorf("Expected columns 0,1, got %s", got)
	}
	if len(v.Table.Rows) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(v.Table.Rows))
	}
	if v.Table.Rows[0][0] != "1" || v.Table.Rows[0][1] != "Alice" || v.Table.Rows[1][1] != "Bob" {
		t.Errorf("Unexpected rows %v", v.Table.Rows)
	}
}

func TestRenderText(t *testing.T) {
	testCases := []struct {
		name   string
		answer string
	}{
		{"prose", "The top student is Alice."},
		{"malformed trailing comma", "[(1, )]"},
		{"unterminated string", "[(1, 'Alice), (2, 'Bob')]"},
		{"junk between tuples", "[(1, 2) (3, 4)]"},
		{"empty tuple", "[()]"},
		{"function call value", "[(Decimal('1.5'),)]"},
		{"prefix only", "[(1, 2)] and more"},
		{"empty", ""},
		{"starts right ends wrong", "[(1, 2), (3"},
		{"bare identifier", "[(alice, 2)]"},
		{"missing comma", "[(1 2)]"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			v := Render(tc.answer)
			if v.Kind != KindText {
				t.Fatalf("Expected text for %q, got %+v", tc.answer, v)
			}
			if v.Text != tc.answer {
				t.Errorf("Expected text to be the raw answer, got %q", v.Text)
			}
		})
	}
}

func TestRenderValues(t *testing.T) {
	testCases := []struct {
		name   string
		answer string
		want   []string
	}{
		{"single element tuple", "[(42,)]", []string{"42"}},
		{"none and bools", "[(None, True, False)]", []string{"None", "True", "False"}},
		{"negative and float", "[(-3, 2.50, 1e3)]", []string{"-3", "2.5", "1000.0"}},
		{"escaped quotes", `[('O\'Brien', "say \"hi\"")]`, []string{"O'Brien", `say "hi"`}},
		{"unicode escape", `[('caf\u00e9',)]`, []string{"café"}},
		{"nested tuple kept raw", "[((1, 2), 'x')]", []string{"(1, 2)", "x"}},
		{"surrounding whitespace", "  \n[( 1 ,'a' )]\n", []string{"1", "a"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			v := Render(tc.answer)
			if !v.IsTable() {
				t.Fatalf("Expected table for %q, got %+v", tc.answer, v)
			}
			got := v.Table.Rows[0]
			if strings.Join(got, "|") != strings.Join(tc.want, "|") {
				t.Errorf("Expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestRenderRaggedRows(t *testing.T) {
	v := Render("[(1, 'a', 'x'), (2,)]")
	if !v.IsTable() {
		t.Fatalf("Expected table, got %+v", v)
	}
	if len(v.Table.Columns) != 3 {
		t.Fatalf("Expected 3 columns, got %d", len(v.Table.Columns))
	}
	if len(v.Table.Rows[1]) != 3 || v.Table.Rows[1][2] != "" {
		t.Errorf("Expected short row padded, got %v", v.Table.Rows[1])
	}
}

func TestTableMarkdown(t *testing.T) {
	v := Render("[(1, 'a|b')]")
	md := v.Table.Markdown()
	want := "| 0 | 1 |\n| --- | --- |\n| 1 | a\\|b |\n"
	if md != want {
		t.Errorf("Expected %q, got %q", want, md)
	}
}

func FuzzRenderNeverPanics(f *testing.F) {
	for _, seed := range []string{"[(1, 'Alice'), (2, 'Bob')]", "[(1, )]", "[(", "[('\\x)]", "[((((]"} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, s string) {
		v := Render(s)
		if v.Kind != KindText && v.Kind != KindTable {
			t.Fatalf("unexpected kind %q", v.Kind)
		}
	})
}
