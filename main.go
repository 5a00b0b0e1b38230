package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"sqldesk/internal/app"
	"sqldesk/internal/config"
)

func main() {
	// stdout carries the MCP transport
	log.SetOutput(os.Stderr)

	if err := run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "sqldesk error: %v\n", err)
		os.Exit(1)
	}
}

// serveMCP runs the server; swapped out in tests.
var serveMCP = app.ServeMCP

func run(args []string) error {
	if len(args) < 2 {
		return runServe(nil)
	}

	switch args[1] {
	case "serve":
		return runServe(args[2:])
	case "check":
		return runCheck(args[2:])
	case "help", "--help", "-h":
		printUsage()
		return nil
	default:
		return fmt.Errorf("unknown command: %s", args[1])
	}
}

func loadConfig(name string, args []string) (*config.Config, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to sqldesk.yaml (defaults apply when empty)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return config.LoadConfig(*configPath)
}

func runServe(args []string) error {
	cfg, err := loadConfig("serve", args)
	if err != nil {
		return err
	}
	return serveMCP(cfg)
}

func runCheck(args []string) error {
	cfg, err := loadConfig("check", args)
	if err != nil {
		return err
	}

	fmt.Println("Loaded config successfully")
	fmt.Printf("Server name: %s\n", cfg.ServerName)
	fmt.Printf("Idle timeout: %s (sweep every %s)\n", cfg.IdleTimeout, cfg.SweepInterval)
	fmt.Printf("Connect timeout: %s\n", cfg.ConnectTimeout)
	fmt.Printf("SQLite dir: %s\n", cfg.SQLiteDir)
	fmt.Printf("Watch SQLite files: %t\n", cfg.WatchSQLite)
	return nil
}

func printUsage() {
	fmt.Print(`sqldesk - database connection registry over MCP

Usage:
  sqldesk [serve] [--config <path>]
  sqldesk check [--config <path>]

Commands:
  serve     Run the MCP server on stdin/stdout (default)
  check     Validate the configuration
  help      Show this help message
`)
}
