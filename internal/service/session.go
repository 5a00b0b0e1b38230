package service

import (
	"time"

	"github.com/google/uuid"

	"sqldesk/internal/dbclient"
	"sqldesk/internal/domain"
)

// Session is one live connection owned by the registry.
type Session struct {
	ID         uuid.UUID // distinguishes reconnects of the same profile id
	Profile    domain.ConnectionProfile
	Connector  dbclient.Connector
	OpenedAt   time.Time
	LastUsedAt time.Time

	filePath string // resolved sqlite file, empty for networked engines
}

// SessionInfo is the caller-visible snapshot of a session.
type SessionInfo struct {
	ConnectionID int64             `json:"connectionId"`
	SessionID    string            `json:"sessionId"`
	Name         string            `json:"name,omitempty"`
	Engine       domain.EngineKind `json:"engine"`
	Database     string            `json:"database,omitempty"`
	FilePath     string            `json:"filePath,omitempty"`
	OpenedAt     time.Time         `json:"openedAt"`
	LastUsedAt   time.Time         `json:"lastUsedAt"`
}

func (s *Session) info() SessionInfo {
	return SessionInfo{
		ConnectionID: s.Profile.ID,
		SessionID:    s.ID.String(),
		Name:         s.Profile.Name,
		Engine:       s.Profile.Engine,
		Database:     s.Profile.Database,
		FilePath:     s.filePath,
		OpenedAt:     s.OpenedAt,
		LastUsedAt:   s.LastUsedAt,
	}
}

func (s *Session) event(reason string) SessionEvent {
	return SessionEvent{
		ConnectionID: s.Profile.ID,
		SessionID:    s.ID.String(),
		Engine:       s.Profile.Engine,
		Database:     s.Profile.Database,
		Reason:       reason,
	}
}

// sessionFilePath returns the file behind a sqlite connector, if any.
func sessionFilePath(c dbclient.Connector) string {
	if f, ok := c.(interface{ FilePath() string }); ok {
		return f.FilePath()
	}
	return ""
}
