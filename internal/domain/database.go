package domain

import (
	"fmt"
	"strings"
	"time"
)

// EngineKind identifies the database engine behind a connection profile.
type EngineKind string

const (
	EngineMySQL    EngineKind = "mysql"
	EnginePostgres EngineKind = "postgresql"
	EngineSQLite   EngineKind = "sqlite"
)

// DefaultConnectTimeout bounds the initial connect when a profile sets none.
const DefaultConnectTimeout = 10 * time.Second

// Networked reports whether the engine is reached over host/port.
func (k EngineKind) Networked() bool {
	return k == EngineMySQL || k == EnginePostgres
}

// MultiDatabase reports whether a session can switch to another database
// on the same server.
func (k EngineKind) MultiDatabase() bool {
	return k.Networked()
}

// ConnectionProfile describes how to reach one database. The caller owns the
// id; the registry keeps at most one live session per id.
type ConnectionProfile struct {
	ID       int64      `json:"id"`
	Name     string     `json:"name"`
	Engine   EngineKind `json:"engine"`
	Host     string     `json:"host,omitempty"`
	Port     int        `json:"port,omitempty"`
	Username string     `json:"username,omitempty"`
	Password string     `json:"password,omitempty"`
	Database string     `json:"database,omitempty"`
	FilePath string     `json:"filePath,omitempty"` // sqlite only
	UseTLS   bool       `json:"useTLS,omitempty"`
	Timeout  int        `json:"timeout,omitempty"` // seconds, connect only
}

// Validate checks the fields required by the profile's engine kind.
func (p *ConnectionProfile) Validate() error {
	switch p.Engine {
	case EngineMySQL, EnginePostgres:
		if strings.TrimSpace(p.Host) == "" {
			return fmt.Errorf("%w: host is required for %s", ErrValidation, p.Engine)
		}
		if p.Port <= 0 {
			return fmt.Errorf("%w: port is required for %s", ErrValidation, p.Engine)
		}
		if strings.TrimSpace(p.Database) == "" {
			return fmt.Errorf("%w: database is required for %s", ErrValidation, p.Engine)
		}
	case EngineSQLite:
		if strings.TrimSpace(p.FilePath) == "" {
			return fmt.Errorf("%w: filePath is required for sqlite", ErrValidation)
		}
	case "":
		return fmt.Errorf("%w: engine is required", ErrValidation)
	default:
		return fmt.Errorf("%w: unsupported engine %q", ErrValidation, p.Engine)
	}
	return nil
}

// ConnectTimeout returns the profile timeout, falling back to DefaultConnectTimeout.
func (p *ConnectionProfile) ConnectTimeout() time.Duration {
	if p.Timeout <= 0 {
		return DefaultConnectTimeout
	}
	return time.Duration(p.Timeout) * time.Second
}

// WithDatabase returns a copy of the profile pointed at another database.
func (p ConnectionProfile) WithDatabase(name string) ConnectionProfile {
	p.Database = name
	return p
}

// Label is a log-safe description of the profile (never includes the password).
func (p *ConnectionProfile) Label() string {
	if p.Engine == EngineSQLite {
		return fmt.Sprintf("#%d %s %s", p.ID, p.Engine, p.FilePath)
	}
	return fmt.Sprintf("#%d %s %s@%s:%d/%s", p.ID, p.Engine, p.Username, p.Host, p.Port, p.Database)
}

// OpResult is the {success, message} reply of the connection lifecycle operations.
type OpResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// Failed builds an unsuccessful OpResult from an error.
func Failed(err error) OpResult {
	return OpResult{Success: false, Message: err.Error()}
}
