package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"sqlchat/internal/apperr"
	"sqlchat/internal/config"
)

// DefaultConnectTimeout bounds the initial ping of a new handle.
const DefaultConnectTimeout = 10 * time.Second

// Opener builds a new handle for a descriptor.
type Opener func(ctx context.Context, d config.ConnectionDescriptor) (*Handle, error)

// Open is the production Opener. Failures carry the ConnectionError kind.
func Open(ctx context.Context, d config.ConnectionDescriptor) (*Handle, error) {
	return OpenWithTimeout(DefaultConnectTimeout)(ctx, d)
}

// OpenWithTimeout returns an Opener whose ping is bounded by timeout.
func OpenWithTimeout(timeout time.Duration) Opener {
	return func(ctx context.Context, d config.ConnectionDescriptor) (*Handle, error) {
		var (
			h   *Handle
			err error
		)
		switch d.Mode {
		case config.ModeEmbedded:
			h, err = openEmbedded(d.Path)
		case config.ModeRemote:
			h, err = openRemote(d.Remote, timeout)
		default:
			err = fmt.Errorf("unknown database mode %q", d.Mode)
		}
		if err != nil {
			return nil, apperr.Wrap(apperr.ConnectionError, "open database", err)
		}

		pingCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		if err := h.Ping(pingCtx); err != nil {
			_ = h.Close()
			return nil, apperr.Wrap(apperr.ConnectionError, "ping database", fmt.Errorf("%s", config.Mask(err.Error())))
		}
		return h, nil
	}
}

func openEmbedded(path string) (*Handle, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("embedded database %s: %w", filepath.Base(path), err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("embedded database %s is a directory", path)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".duckdb", ".ddb":
		db, err := sql.Open("duckdb", path+"?access_mode=READ_ONLY")
		if err != nil {
			return nil, fmt.Errorf("failed to open duckdb: %w", err)
		}
		return NewHandle(db, DialectDuckDB, true), nil
	default:
		db, err := sql.Open("sqlite", sqliteReadOnlyDSN(path))
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite: %w", err)
		}
		return NewHandle(db, DialectSQLite, true), nil
	}
}

// sqliteReadOnlyDSN opens the file through a read-only URI and additionally sets
// query_only on every connection the pool creates.
func sqliteReadOnlyDSN(path string) string {
	u := url.URL{Scheme: "file", Path: path}
	q := url.Values{}
	q.Set("mode", "ro")
	q.Add("_pragma", "query_only(1)")
	q.Add("_pragma", "busy_timeout(5000)")
	u.RawQuery = q.Encode()
	return u.String()
}

func openRemote(p config.RemoteParams, timeout time.Duration) (*Handle, error) {
	switch p.Driver {
	case config.DriverPostgres:
		db, err := sql.Open("pgx", postgresURL(p, timeout))
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return NewHandle(db, DialectPostgres, false), nil

	case config.DriverMySQL, "":
		cfg := mysql.NewConfig()
		cfg.User = p.Username
		cfg.Passwd = p.Password
		cfg.Net = "tcp"
		cfg.Addr = p.Host
		cfg.DBName = p.Database
		cfg.Timeout = timeout
		cfg.ParseTime = true
		connector, err := mysql.NewConnector(cfg)
		if err != nil {
			return nil, fmt.Errorf("mysql connector: %w", err)
		}
		return NewHandle(sql.OpenDB(connector), DialectMySQL, false), nil

	default:
		return nil, fmt.Errorf("unsupported remote driver %q", p.Driver)
	}
}

func postgresURL(p config.RemoteParams, timeout time.Duration) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(p.Username, p.Password),
		Host:   p.Host,
		Path:   "/" + p.Database,
	}
	secs := int(timeout.Seconds())
	if secs < 1 {
		secs = 1
	}
	q := url.Values{}
	q.Set("connect_timeout", strconv.Itoa(secs))
	u.RawQuery = q.Encode()
	return u.String()
}
