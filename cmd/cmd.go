// Package cmd provides CLI commands for libram.
//
// Commands:
//   - serve: HTTP API server answering questions about the ingested book
//   - ingest: crawl the configured site and (re)build the passage store
//   - ask: one-shot question from the command line
//
// Signal handling and graceful shutdown are implemented for all commands
// via context cancellation.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/libram-ai/libram/internal/log"
)

// Execute is the main entry point for the libram CLI.
func Execute() error {
	// Initialize logger once at entry point
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(log.New(log.Config{Level: level}))

	if len(os.Args) < 2 {
		runHelp()
		return nil
	}

	switch os.Args[1] {
	case "serve":
		return runServe()
	case "ingest":
		return runIngest()
	case "ask":
		return runAsk()
	case "version", "--version", "-v":
		runVersion()
		return nil
	case "help", "--help", "-h":
		runHelp()
		return nil
	default:
		return fmt.Errorf("unknown command: %s", os.Args[1])
	}
}

// runHelp displays the help message.
func runHelp() {
	fmt.Println("libram - ask questions about a book, answered from its own text")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  libram serve [addr]    Start HTTP API server (default: 127.0.0.1:8080)")
	fmt.Println("  libram ingest [url]    Crawl a site (or the configured one) into the passage store")
	fmt.Println("  libram ask <question>  Ask a single question and print the answer")
	fmt.Println("  libram --version       Show version information")
	fmt.Println("  libram --help          Show this help")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  GEMINI_API_KEY         Required for the gemini provider")
	fmt.Println("  OPENAI_API_KEY         Required for the openai provider")
	fmt.Println("  DATABASE_URL           Optional: overrides postgres_* settings")
	fmt.Println("  DEBUG                  Optional: enable debug logging")
	fmt.Println()
	fmt.Println("Configuration file: ~/.libram/config.yaml")
}
