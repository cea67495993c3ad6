// Package config collects the database connection choice and credentials and
// validates them into a ConnectionDescriptor.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"

	"sqlchat/internal/apperr"
)

// Mode selects between the shipped embedded database and a remote server.
type Mode string

const (
	ModeEmbedded Mode = "embedded"
	ModeRemote   Mode = "remote"
)

// Driver is the network protocol used for remote databases.
type Driver string

const (
	DriverMySQL    Driver = "mysql"
	DriverPostgres Driver = "postgres"
)

// DefaultEmbeddedFile is the dataset shipped alongside the application.
const DefaultEmbeddedFile = "student.db"

// Input is the raw form data collected from a UI or from CLI flags.
type Input struct {
	Mode         Mode
	EmbeddedPath string
	Driver       Driver
	Host         string
	Username     string
	Password     string
	Database     string
}

// RemoteParams are the connection details for a network database.
type RemoteParams struct {
	Driver   Driver
	Host     string
	Username string
	Password string
	Database string
}

// ConnectionDescriptor is either an embedded file or a remote network database.
// Exactly one of Path or Remote is meaningful, selected by Mode.
type ConnectionDescriptor struct {
	Mode   Mode
	Path   string
	Remote RemoteParams
}

// Embedded returns a descriptor for a read-only database file.
func Embedded(path string) ConnectionDescriptor {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return ConnectionDescriptor{Mode: ModeEmbedded, Path: path}
}

// Remote returns a descriptor for a network database.
func Remote(p RemoteParams) ConnectionDescriptor {
	if p.Driver == "" {
		p.Driver = DriverMySQL
	}
	return ConnectionDescriptor{Mode: ModeRemote, Remote: p}
}

// Validate checks the input and produces a descriptor. In remote mode every one of
// host, username, password and database must be non-empty.
func Validate(in Input) (ConnectionDescriptor, error) {
	switch in.Mode {
	case ModeEmbedded, "":
		path := in.EmbeddedPath
		if strings.TrimSpace(path) == "" {
			path = DefaultEmbeddedFile
		}
		return Embedded(path), nil

	case ModeRemote:
		var missing []string
		for _, f := range []struct{ name, value string }{
			{"host", in.Host},
			{"username", in.Username},
			{"password", in.Password},
			{"database", in.Database},
		} {
			if strings.TrimSpace(f.value) == "" {
				missing = append(missing, f.name)
			}
		}
		if len(missing) > 0 {
			return ConnectionDescriptor{}, apperr.New(apperr.MissingCredentials,
				fmt.Sprintf("missing remote connection fields: %s", strings.Join(missing, ", ")))
		}

		driver := in.Driver
		switch driver {
		case "":
			driver = DriverMySQL
		case DriverMySQL, DriverPostgres:
		default:
			return ConnectionDescriptor{}, apperr.New(apperr.InvalidInput,
				fmt.Sprintf("unsupported remote driver %q", driver))
		}

		return Remote(RemoteParams{
			Driver:   driver,
			Host:     strings.TrimSpace(in.Host),
			Username: in.Username,
			Password: in.Password,
			Database: strings.TrimSpace(in.Database),
		}), nil

	default:
		return ConnectionDescriptor{}, apperr.New(apperr.InvalidInput,
			fmt.Sprintf("unknown database mode %q", in.Mode))
	}
}

// Key identifies the descriptor for handle caching. The password only contributes
// through a hash so keys are safe to log.
func (d ConnectionDescriptor) Key() string {
	if d.Mode == ModeEmbedded {
		return "embedded:" + d.Path
	}
	sum := sha256.Sum256([]byte(d.Remote.Password))
	return fmt.Sprintf("remote:%s://%s@%s/%s#%s",
		d.Remote.Driver, d.Remote.Username, d.Remote.Host, d.Remote.Database,
		hex.EncodeToString(sum[:8]))
}

// Redacted renders the descriptor for logs and UI status lines.
func (d ConnectionDescriptor) Redacted() string {
	if d.Mode == ModeEmbedded {
		return fmt.Sprintf("embedded file %s (read-only)", d.Path)
	}
	return fmt.Sprintf("%s://%s:***@%s/%s", d.Remote.Driver, d.Remote.Username, d.Remote.Host, d.Remote.Database)
}
