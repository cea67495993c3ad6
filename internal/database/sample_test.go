package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"sqlchat/internal/config"
)

func TestCreateSampleDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "student.db")

	exists, err := SampleDatabaseExists(path)
	if err != nil || exists {
		t.Fatalf("Expected missing file, got exists=%v err=%v", exists, err)
	}

	if err := CreateSampleDatabase(context.Background(), path); err != nil {
		t.Fatalf("CreateSampleDatabase() error = %v", err)
	}

	h, err := Open(context.Background(), config.Embedded(path))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer h.Close()

	res, err := h.Query(context.Background(), "SELECT COUNT(*) FROM STUDENT")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if got := res.Literal(); got != "[(5,)]" {
		t.Errorf("Expected 5 students, got %s", got)
	}

	err = CreateSampleDatabase(context.Background(), path)
	if !errors.Is(err, ErrDatabaseExists) {
		t.Errorf("Expected ErrDatabaseExists on second create, got %v", err)
	}
}
