package app

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"sqldesk/internal/config"
)

// ServeMCP runs sqldesk as an MCP server on stdin/stdout until the client
// hangs up or the process is interrupted.
func ServeMCP(cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a := New(cfg)
	if err := a.Startup(); err != nil {
		return err
	}
	defer a.Shutdown()

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.mcp.ServeStdio()
	}()

	select {
	case <-ctx.Done():
		log.Println("[MCP] Shutting down...")
		return nil
	case err := <-errCh:
		return err
	}
}
