package database

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func TestResultLiteral(t *testing.T) {
	testCases := []struct {
		name string
		rows [][]any
		want string
	}{
		{"empty", nil, "[]"},
		{"two columns", [][]any{{int64(1), "Alice"}, {int64(2), "Bob"}}, "[(1, 'Alice'), (2, 'Bob')]"},
		{"single column", [][]any{{int64(3)}}, "[(3,)]"},
		{"null and bools", [][]any{{nil, true, false}}, "[(None, True, False)]"},
		{"floats", [][]any{{float64(2), 2.5, -0.25}}, "[(2.0, 2.5, -0.25)]"},
		{"quotes escaped", [][]any{{"O'Brien", `back\slash`}}, `[('O\'Brien', 'back\\slash')]`},
		{"bytes", [][]any{{[]byte("raw")}}, "[('raw',)]"},
		{"date", [][]any{{time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)}}, "[('2024-03-01',)]"},
		{"datetime", [][]any{{time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)}}, "[('2024-03-01 09:30:00',)]"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := &Result{Rows: tc.rows}
			if got := r.Literal(); got != tc.want {
				t.Errorf("Expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestLiteralTruncatesLongText(t *testing.T) {
	r := &Result{Rows: [][]any{{strings.Repeat("x", MaxCellLength+50)}}}
	got := r.Literal()
	if !strings.HasSuffix(got, "...',)]") {
		t.Errorf("Expected truncated cell, got suffix %q", got[len(got)-10:])
	}
	if len(got) > MaxCellLength+20 {
		t.Errorf("Expected literal under %d bytes, got %d", MaxCellLength+20, len(got))
	}
}

func TestLiteralTruncatesOnCharacterBoundary(t *testing.T) {
	testCases := []struct {
		name string
		cell string
	}{
		{"accented", strings.Repeat("é", MaxCellLength+10)},
		{"cjk", strings.Repeat("学生", MaxCellLength)},
		{"offset by one byte", "a" + strings.Repeat("ü", MaxCellLength)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := (&Result{Rows: [][]any{{tc.cell}}}).Literal()
			if !utf8.ValidString(got) || strings.ContainsRune(got, utf8.RuneError) {
				t.Fatalf("Expected valid UTF-8, got %q", got)
			}
			cell := strings.TrimSuffix(strings.TrimPrefix(got, "[('"), "...',)]")
			if n := utf8.RuneCountInString(cell); n != MaxCellLength {
				t.Errorf("Expected %d characters before the ellipsis, got %d", MaxCellLength, n)
			}
		})
	}

	short := strings.Repeat("é", MaxCellLength)
	if got := (&Result{Rows: [][]any{{short}}}).Literal(); got != "[('"+short+"',)]" {
		t.Error("Expected text at the limit to stay whole")
	}
}

func TestNilResultLiteral(t *testing.T) {
	var r *Result
	if got := r.Literal(); got != "[]" {
		t.Errorf("Expected [], got %s", got)
	}
}
