package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dshills/devlog-mcp/internal/mcp"
	"github.com/dshills/devlog-mcp/internal/storage"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	// Handle version flag
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		fmt.Printf("Devlog MCP Server\n")
		fmt.Printf("Version: %s\n", version)
		fmt.Printf("Build Time: %s\n", buildTime)
		fmt.Printf("Build Mode: %s\n", storage.BuildMode)
		fmt.Printf("SQLite Driver: %s\n", storage.DriverName)
		os.Exit(0)
	}

	// Log startup info to stderr (stdout reserved for MCP protocol)
	log.SetOutput(os.Stderr)
	log.Printf("Devlog MCP Server v%s starting...", version)
	log.Printf("Build Mode: %s, Driver: %s", storage.BuildMode, storage.DriverName)

	// Get database path from environment or use default
	dbPath := os.Getenv("DEVLOG_DB_PATH")

	server, err := mcp.NewServer(dbPath)
	if err != nil {
		log.Fatalf("Failed to create MCP server: %v", err)
	}

	// Set up graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		log.Println("MCP server ready, listening on stdio...")
		errChan <- server.Serve(ctx)
	}()

	select {
	case sig := <-sigChan:
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	case err := <-errChan:
		if err != nil {
			log.Fatalf("Server error: %v", err)
		}
	}

	log.Println("Server stopped")
}
