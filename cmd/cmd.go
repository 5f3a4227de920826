// Package cmd provides CLI commands for the bot.
//
// Commands:
//   - ask: answer a single question and exit
//   - chat: interactive question/answer loop on stdin
//   - serve: HTTP API server
//
// Signal handling and graceful shutdown are implemented for all
// long-running commands via context cancellation.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
)

// Execute is the main entry point for the faqbot CLI application.
func Execute() error {
	// A missing .env file is fine; explicit env vars take priority anyway.
	_ = godotenv.Load()

	// Initialize logger once at entry point
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if len(os.Args) < 2 {
		runHelp()
		return nil
	}

	switch os.Args[1] {
	case "ask":
		return runAsk()
	case "chat":
		return runChat()
	case "serve":
		return runServe()
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
	fmt.Println("faqbot - Correction-aware FAQ assistant")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  faqbot ask <question>   Answer a single question")
	fmt.Println("  faqbot chat             Start interactive chat mode")
	fmt.Println("  faqbot serve [addr]     Start HTTP API server (default: 127.0.0.1:3400)")
	fmt.Println("  faqbot --version        Show version information")
	fmt.Println("  faqbot --help           Show this help")
	fmt.Println()
	fmt.Println("Chat Commands (in interactive mode):")
	fmt.Println("  /exit, /quit            Exit faqbot")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  GEMINI_API_KEY          Gemini API key (gemini provider)")
	fmt.Println("  OPENAI_API_KEY          OpenAI API key (openai provider)")
	fmt.Println("  DATABASE_URL            PostgreSQL connection URL override")
	fmt.Println("  DEBUG                   Enable debug logging")
}
