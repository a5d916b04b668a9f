// postpilot paces and publishes generated content with human-like timing,
// content diversity checks, and durable API rate limiting.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/jonesrussell/postpilot/internal/app"
	"github.com/jonesrussell/postpilot/internal/config"
	"github.com/jonesrussell/postpilot/internal/logger"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	// Optional .env for local development.
	_ = godotenv.Load()

	command := "run"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	switch command {
	case "run":
		runApp(func(a *app.App) error { return a.Run() })
	case "once":
		runApp(func(a *app.App) error {
			defer a.Close()
			return a.Bot.RunOnce(context.Background())
		})
	case "api":
		runApp(func(a *app.App) error { return a.RunAPI() })
	case "stats":
		runApp(printStats)
	case "version":
		fmt.Printf("postpilot %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		log.Printf("unknown command: %s", command)
		printUsage()
		os.Exit(1)
	}
}

func runApp(fn func(*app.App) error) {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logg, err := logger.New(cfg.Debug)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}

	a, err := app.New(cfg, logg)
	if err != nil {
		logg.Error("Startup failed", logger.Error(err))
		os.Exit(1)
	}

	if err := fn(a); err != nil {
		logg.Error("Command failed", logger.Error(err))
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	path := os.Getenv("POSTPILOT_CONFIG")
	if path == "" {
		path = "config.yml"
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := config.Default()
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return config.Load(path)
}

func printStats(a *app.App) error {
	defer a.Close()

	out := map[string]any{
		"posting":    a.Scheduler.GetStats(),
		"diversity":  a.Diversity.GetStats(),
		"rate_limit": a.Limiter.GetUsage(),
	}
	if a.Archive != nil {
		summary, err := a.Archive.GetSummary(context.Background())
		if err != nil {
			return err
		}
		out["archive"] = summary
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func printUsage() {
	log.Println("Usage: postpilot <command>")
	log.Println("Commands:")
	log.Println("  run     - Start the bot loop and ops API (default)")
	log.Println("  once    - Execute a single publish cycle and exit")
	log.Println("  api     - Serve the ops API without the bot loop")
	log.Println("  stats   - Print posting, diversity, and rate limit stats")
	log.Println("  version - Print the version")
	log.Println("  help    - Show this help")
}
