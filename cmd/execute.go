// Package cmd contains the coach command-line entry points.
//
// Following the pattern of standard Go services, all application logic
// lives here; main.go stays a minimal entry point.
package cmd

import (
	"flag"
	"fmt"
	"os"

	"github.com/wellora/coach/internal/config"
)

// Version information (injected at build time via ldflags).
var (
	AppVersion = "development"
	BuildTime  = "unknown"
	GitCommit  = "unknown"
)

// Execute is the main entry point. It parses the subcommand, loads
// configuration, and routes to the matching run function.
func Execute() error {
	args := os.Args[1:]

	command := "serve"
	if len(args) > 0 {
		command = args[0]
		args = args[1:]
	}

	switch command {
	case "version", "--version", "-v":
		printVersion()
		return nil
	case "help", "--help", "-h":
		printHelp()
		return nil
	}

	var run func(*config.Config) error
	switch command {
	case "serve":
		run = runServe
	case "worker":
		run = runWorker
	case "migrate":
		run = runMigrate
	case "seed":
		run = runSeed
	default:
		printHelp()
		return fmt.Errorf("unknown command: %s", command)
	}

	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	configPath := fs.String("config", os.Getenv("COACH_CONFIG"), "path to config file (optional)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	return run(cfg)
}

func printVersion() {
	fmt.Printf("coach %s\n", AppVersion)
	fmt.Printf("Build Time: %s\n", BuildTime)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}

func printHelp() {
	fmt.Println("coach - conversational AI health coaching service")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  coach [serve]      Start the HTTP API server (default)")
	fmt.Println("  coach worker       Start the background task worker")
	fmt.Println("  coach migrate      Run database migrations and exit")
	fmt.Println("  coach seed         Install the default safety protocols and exit")
	fmt.Println("  coach version      Show version information")
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  -config <path>     Config file (also COACH_CONFIG env var)")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  COACH_OPENAI_API_KEY   Required: OpenAI API key")
	fmt.Println("  COACH_POSTGRES_URL     Required: PostgreSQL connection URL")
	fmt.Println("  COACH_REDIS_ADDR       Optional: Redis address (default localhost:6379)")
}
