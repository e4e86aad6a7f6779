// Buster - analytics copilot server.
// Entry point with serve, migrate, and mcp subcommands.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jaykumar-cb/buster/internal/api"
	"github.com/jaykumar-cb/buster/internal/domain/tool"
	"github.com/jaykumar-cb/buster/internal/infra/config"
	"github.com/jaykumar-cb/buster/internal/infra/logging"
	"github.com/jaykumar-cb/buster/internal/infra/sqlite"
	"github.com/jaykumar-cb/buster/internal/mcpserver"
	"github.com/jaykumar-cb/buster/internal/server"
	"github.com/jaykumar-cb/buster/internal/version"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, out io.Writer) int {
	fs := flag.NewFlagSet("buster", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	showVersion := fs.Bool("version", false, "Show version information")
	showHelp := fs.Bool("help", false, "Show help")
	configPath := fs.String("config", "", "Path to YAML config file")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *showVersion {
		fmt.Fprintln(out, version.String()) //nolint:errcheck
		return 0
	}
	if *showHelp {
		printHelp(out)
		return 0
	}

	if fs.NArg() == 0 {
		fmt.Fprintln(out, version.String()) //nolint:errcheck
		return 0
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "buster: %v\n", err)
		return 1
	}
	logging.Configure(cfg.Log.Level, cfg.Log.Format)

	switch fs.Arg(0) {
	case "serve":
		return runServe(cfg)
	case "migrate":
		return runMigrate(cfg)
	case "mcp":
		return runMCP(cfg)
	default:
		fmt.Fprintf(os.Stderr, "buster: unknown command %q\n", fs.Arg(0))
		printHelp(out)
		return 2
	}
}

func runServe(cfg config.Config) int {
	log := logging.Named("main")

	db, err := sqlite.NewDB(cfg.DB.Path)
	if err != nil {
		log.WithError(err).Error("open database")
		return 1
	}
	// Shutdown also closes the handle; sql.DB.Close tolerates the repeat.
	// The defer covers the paths that never reach Shutdown.
	defer db.Close()
	if err := sqlite.MigrateUp(db); err != nil {
		log.WithError(err).Error("run migrations")
		return 1
	}

	srv, err := server.NewServer(db, cfg)
	if err != nil {
		log.WithError(err).Error("build server")
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("shutdown")
			return 1
		}
		return 0
	case err := <-errCh:
		if err != nil {
			log.WithError(err).Error("server")
			return 1
		}
		return 0
	}
}

func runMigrate(cfg config.Config) int {
	log := logging.Named("migrate")

	db, err := sqlite.NewDB(cfg.DB.Path)
	if err != nil {
		log.WithError(err).Error("open database")
		return 1
	}
	defer db.Close()

	if err := sqlite.MigrateUp(db); err != nil {
		log.WithError(err).Error("run migrations")
		return 1
	}
	log.WithField("path", cfg.DB.Path).Info("migrations applied")
	return 0
}

// runMCP exposes the capability registry over MCP stdio, so external agent
// hosts can call the same tools the embedded copilot uses.
func runMCP(cfg config.Config) int {
	log := logging.Named("mcp")

	db, err := sqlite.NewDB(cfg.DB.Path)
	if err != nil {
		log.WithError(err).Error("open database")
		return 1
	}
	defer db.Close()
	if err := sqlite.MigrateUp(db); err != nil {
		log.WithError(err).Error("run migrations")
		return 1
	}

	_, services, err := api.NewRouter(db, cfg)
	if err != nil {
		log.WithError(err).Error("build services")
		return 1
	}

	wsID := os.Getenv("BUSTER_MCP_WORKSPACE")
	if wsID == "" {
		log.Error("BUSTER_MCP_WORKSPACE environment variable not set")
		return 1
	}

	srv := mcpserver.New(services.Registry, &tool.ExecContext{WorkspaceID: wsID, UserID: "mcp-client"}, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		log.WithError(err).Error("mcp server")
		return 1
	}
	return 0
}

func printHelp(out io.Writer) {
	helpText := `Buster - analytics copilot server

Usage:
  buster [options] [command]

Options:
  --version         Show version information
  --config <path>   Path to YAML config file
  --help            Show this help message

Commands:
  serve        Start the HTTP server
  migrate      Run database migrations and exit
  mcp          Serve the capability registry over MCP stdio

Examples:
  buster --version
  buster serve --config buster.yml
  buster migrate
  BUSTER_MCP_WORKSPACE=ws-1 buster mcp`
	fmt.Fprintln(out, helpText) //nolint:errcheck
}
