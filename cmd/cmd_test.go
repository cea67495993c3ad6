package cmd

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/99designs/keyring"
	_ "modernc.org/sqlite"

	"sqlchat/internal/config"
	"sqlchat/internal/database"
	"sqlchat/internal/keychain"
	"sqlchat/internal/llm"
)

func mapLookup(values map[string]string) config.LookupFunc {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// withKeychain swaps the keyring for an in-memory one for the duration of the test.
func withKeychain(t *testing.T, items ...keyring.Item) *keychain.Manager {
	t.Helper()
	kc := keychain.New(keyring.NewArrayKeyring(items))
	prev := openKeychain
	openKeychain = func() (*keychain.Manager, error) { return kc, nil }
	t.Cleanup(func() { openKeychain = prev })
	return kc
}

func withFlags(t *testing.T, p, m string) {
	t.Helper()
	prevP, prevM := provider, modelID
	provider, modelID = p, m
	t.Cleanup(func() { provider, modelID = prevP, prevM })
}

func TestModelConfig(t *testing.T) {
	settings := config.DefaultSettings()
	settings.ModelTimeout = 30 * time.Second

	testCases := []struct {
		name         string
		flagProvider string
		flagModel    string
		env          map[string]string
		stored       map[string]string
		wantProvider llm.Provider
		wantModel    string
		wantKey      string
	}{
		{
			name:         "defaults to groq with env key",
			env:          map[string]string{"GROQ_API_KEY": "gsk_env"},
			wantProvider: llm.ProviderGroq,
			wantKey:      "gsk_env",
		},
		{
			name:         "flag selects provider and model",
			flagProvider: "openai",
			flagModel:    "gpt-4o",
			env:          map[string]string{"OPENAI_API_KEY": "sk-env", "GROQ_API_KEY": "gsk_env"},
			wantProvider: llm.ProviderOpenAI,
			wantModel:    "gpt-4o",
			wantKey:      "sk-env",
		},
		{
			name:         "keyring used when env is empty",
			flagProvider: "anthropic",
			stored:       map[string]string{"anthropic": "sk-ant-stored"},
			wantProvider: llm.ProviderAnthropic,
			wantKey:      "sk-ant-stored",
		},
		{
			name:         "env wins over keyring",
			env:          map[string]string{"GROQ_API_KEY": "gsk_env"},
			stored:       map[string]string{"groq": "gsk_stored"},
			wantProvider: llm.ProviderGroq,
			wantKey:      "gsk_env",
		},
		{
			name:         "no key anywhere",
			wantProvider: llm.ProviderGroq,
			wantKey:      "",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			withFlags(t, tc.flagProvider, tc.flagModel)
			kc := withKeychain(t)
			for p, k := range tc.stored {
				if err := kc.SetAPIKey(p, k); err != nil {
					t.Fatal(err)
				}
			}

			cfg, err := modelConfig(settings, mapLookup(tc.env), discardLogger())
			if err != nil {
				t.Fatalf("modelConfig() error = %v", err)
			}
			if cfg.Provider != tc.wantProvider {
				t.Errorf("Expected provider %s, got %s", tc.wantProvider, cfg.Provider)
			}
			if cfg.Model != tc.wantModel {
				t.Errorf("Expected model %q, got %q", tc.wantModel, cfg.Model)
			}
			if cfg.APIKey != tc.wantKey {
				t.Errorf("Expected key %q, got %q", tc.wantKey, cfg.APIKey)
			}
			if cfg.Timeout != 30*time.Second {
				t.Errorf("Expected timeout from settings, got %s", cfg.Timeout)
			}
		})
	}
}

func TestModelConfigUnknownProvider(t *testing.T) {
	withFlags(t, "mistral", "")
	withKeychain(t)
	if _, err := modelConfig(config.DefaultSettings(), mapLookup(nil), discardLogger()); err == nil {
		t.Error("Expected error for unknown provider")
	}
}

func TestResolveAPIKeyKeyringUnavailable(t *testing.T) {
	prev := openKeychain
	openKeychain = func() (*keychain.Manager, error) { return nil, errors.New("no backend") }
	defer func() { openKeychain = prev }()

	if key := resolveAPIKey(llm.ProviderGroq, mapLookup(nil), discardLogger()); key != "" {
		t.Errorf("Expected empty key, got %q", key)
	}
}

func TestConnectionInput(t *testing.T) {
	prev := []string{dbMode, dbHost, dbUser, dbPassword, dbName, dbDriver}
	defer func() {
		dbMode, dbHost, dbUser, dbPassword, dbName, dbDriver = prev[0], prev[1], prev[2], prev[3], prev[4], prev[5]
	}()
	dbMode, dbHost, dbUser, dbPassword, dbName, dbDriver = "remote", "db:3306", "app", "", "school", "mysql"

	_, err := config.Validate(connectionInput())
	if err == nil {
		t.Fatal("Expected validation error for missing password")
	}

	dbPassword = "secret"
	desc, err := config.Validate(connectionInput())
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if desc.Remote.Host != "db:3306" || desc.Remote.Driver != config.DriverMySQL {
		t.Errorf("Unexpected descriptor %+v", desc)
	}
}

func TestReadSecret(t *testing.T) {
	key, err := readSecret(strings.NewReader("  gsk_abc123\n"), io.Discard, "key: ")
	if err != nil {
		t.Fatalf("readSecret() error = %v", err)
	}
	if key != "gsk_abc123" {
		t.Errorf("Expected trimmed key, got %q", key)
	}

	if _, err := readSecret(strings.NewReader(""), io.Discard, "key: "); err == nil {
		t.Error("Expected error for empty input")
	}
}

func setupSchemaDB(t *testing.T) *database.Handle {
	t.Helper()
	path := filepath.Join(t.TempDir(), "student.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	defer db.Close()
	for _, stmt := range []string{
		`CREATE TABLE STUDENT (NAME VARCHAR(25) NOT NULL, CLASS VARCHAR(25), SECTION VARCHAR(25), MARKS INT)`,
		`INSERT INTO STUDENT VALUES ('Krish', 'Data Science', 'A', 90), ('John', 'Data Science', 'B', 100)`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("failed to seed: %v", err)
		}
	}

	h, err := database.Open(context.Background(), config.Embedded(path))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func TestDescribeTables(t *testing.T) {
	h := setupSchemaDB(t)

	schemas, err := describeTables(context.Background(), h, []string{"STUDENT", "MISSING"})
	if err != nil {
		t.Fatalf("describeTables() error = %v", err)
	}
	if len(schemas) != 1 {
		t.Fatalf("Expected 1 table (missing skipped), got %d", len(schemas))
	}
	s := schemas[0]
	if s.TableName != "STUDENT" || s.ColumnCount != 4 {
		t.Errorf("Unexpected schema %+v", s)
	}
	if s.Columns[0].Name != "NAME" || s.Columns[0].Nullable {
		t.Errorf("Expected NAME NOT NULL first, got %+v", s.Columns[0])
	}
}

func TestResultRows(t *testing.T) {
	h := setupSchemaDB(t)

	res, err := h.Query(context.Background(), "SELECT NAME, MARKS FROM STUDENT ORDER BY MARKS DESC")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	rows := resultRows(res)
	if len(rows) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(rows))
	}
	if rows[0]["NAME"] != "John" {
		t.Errorf("Expected John first, got %v", rows[0]["NAME"])
	}

	empty := resultRows(&database.Result{Columns: []string{"NAME"}})
	if empty == nil || len(empty) != 0 {
		t.Errorf("Expected empty non-nil slice, got %#v", empty)
	}
}

func TestEnsureEmbeddedDatabase(t *testing.T) {
	testCases := []struct {
		name       string
		answer     string
		wantOK     bool
		wantExists bool
	}{
		{"accepts", "y\n", true, true},
		{"accepts yes", "YES\n", true, true},
		{"declines", "n\n", false, false},
		{"no answer", "", false, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "student.db")
			in := config.Input{Mode: config.ModeEmbedded, EmbeddedPath: path}

			var out strings.Builder
			ok, err := ensureEmbeddedDatabase(in, strings.NewReader(tc.answer), &out)
			if err != nil {
				t.Fatalf("ensureEmbeddedDatabase() error = %v", err)
			}
			if ok != tc.wantOK {
				t.Errorf("Expected ok=%v, got %v", tc.wantOK, ok)
			}
			exists, _ := database.SampleDatabaseExists(path)
			if exists != tc.wantExists {
				t.Errorf("Expected exists=%v, got %v", tc.wantExists, exists)
			}
			if !strings.Contains(out.String(), "Embedded database not found") {
				t.Errorf("Expected prompt, got %q", out.String())
			}
		})
	}
}

func TestEnsureEmbeddedDatabaseSkipsPrompt(t *testing.T) {
	var out strings.Builder

	ok, err := ensureEmbeddedDatabase(config.Input{Mode: config.ModeRemote}, strings.NewReader(""), &out)
	if err != nil || !ok {
		t.Fatalf("Expected remote mode to pass, got ok=%v err=%v", ok, err)
	}

	path := filepath.Join(t.TempDir(), "student.db")
	if err := database.CreateSampleDatabase(context.Background(), path); err != nil {
		t.Fatal(err)
	}
	ok, err = ensureEmbeddedDatabase(config.Input{EmbeddedPath: path}, strings.NewReader(""), &out)
	if err != nil || !ok {
		t.Fatalf("Expected existing file to pass, got ok=%v err=%v", ok, err)
	}
	if out.Len() != 0 {
		t.Errorf("Expected no prompt, got %q", out.String())
	}
}
