package app

import (
	"log"
	"os"

	"sqldesk/internal/config"
	mcpserver "sqldesk/internal/mcp"
	"sqldesk/internal/service"
)

// Version is reported to MCP clients.
const Version = "1.0.0"

// App wires the connection registry to its MCP surface.
type App struct {
	cfg      *config.Config
	database *service.DatabaseService
	mcp      *mcpserver.Server
}

// New creates a new App. Nothing is started until Startup.
func New(cfg *config.Config) *App {
	return &App{cfg: cfg}
}

// Startup builds the registry and the MCP server.
func (a *App) Startup() error {
	if err := os.MkdirAll(a.cfg.SQLiteDir, 0755); err != nil {
		return err
	}

	notifier := &mcpserver.Notifier{}
	a.database = service.NewDatabaseService(ServiceOptions(a.cfg, notifier))
	a.mcp = mcpserver.New(mcpserver.Deps{
		Name:     a.cfg.ServerName,
		Version:  Version,
		Database: a.database,
		Notifier: notifier,
	})
	log.Printf("[APP] sqlite dir %s", a.cfg.SQLiteDir)
	return nil
}

// Shutdown closes every open session.
func (a *App) Shutdown() {
	if a.database != nil {
		a.database.Close()
	}
}

// ServiceOptions maps the process config onto registry options.
func ServiceOptions(cfg *config.Config, emitter service.EventEmitter) service.Options {
	return service.Options{
		IdleTimeout:    cfg.IdleTimeout,
		SweepInterval:  cfg.SweepInterval,
		ConnectTimeout: cfg.ConnectTimeout,
		SQLiteDir:      cfg.SQLiteDir,
		WatchFiles:     cfg.WatchSQLite,
		Emitter:        emitter,
	}
}
