package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// sampleStatements seed the demo student database.
var sampleStatements = []string{
	`CREATE TABLE STUDENT (NAME VARCHAR(25) NOT NULL, CLASS VARCHAR(25), SECTION VARCHAR(25), MARKS INT)`,
	`INSERT INTO STUDENT VALUES ('Krish', 'Data Science', 'A', 90)`,
	`INSERT INTO STUDENT VALUES ('John', 'Data Science', 'B', 100)`,
	`INSERT INTO STUDENT VALUES ('Mukesh', 'Data Science', 'A', 86)`,
	`INSERT INTO STUDENT VALUES ('Jacob', 'DEVOPS', 'A', 50)`,
	`INSERT INTO STUDENT VALUES ('Dipesh', 'DEVOPS', 'A', 35)`,
}

// ErrDatabaseExists is returned by CreateSampleDatabase when path is already present.
var ErrDatabaseExists = errors.New("database file already exists")

// SampleDatabaseExists reports whether the embedded database file is present.
func SampleDatabaseExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if info.IsDir() {
		return false, fmt.Errorf("%s is a directory", path)
	}
	return true, nil
}

// CreateSampleDatabase writes the demo STUDENT table to a new SQLite file. It never
// overwrites an existing file.
func CreateSampleDatabase(ctx context.Context, path string) error {
	exists, err := SampleDatabaseExists(path)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%s: %w", path, ErrDatabaseExists)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to create sqlite file: %w", err)
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	for _, stmt := range sampleStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			_ = os.Remove(path)
			return fmt.Errorf("failed to seed sample database: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("failed to commit sample database: %w", err)
	}
	return nil
}
