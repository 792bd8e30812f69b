package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"clearmark/internal/adapter/repo"
	"clearmark/internal/db"
	"clearmark/internal/infra"
	"clearmark/internal/infra/credentials"
)

const usageText = `usage: videokey <command>

commands:
  status            show the video access grant and any pending request
  grant             authorize remote video generation and release parked runs
  revoke            withdraw the video grant
  set-key [-key K]  store the Gemini API key (falls back to GEMINI_API_KEY)

DATABASE_URL selects the database, as for the api and worker binaries.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usageText)
		os.Exit(2)
	}
	command := strings.TrimSpace(os.Args[1])

	_ = godotenv.Load()
	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		fatal("DATABASE_URL is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		fatal("connect database: %v", err)
	}
	defer pool.Close()

	if err := db.EnsureSchema(ctx, pool); err != nil {
		fatal("%v", err)
	}

	logger := infra.NewLogger(os.Getenv("APP_ENV"), "videokey").Level(zerolog.WarnLevel)
	runner := infra.NewSQLRunner(pool, logger)
	creds := credentials.NewStore(runner)
	runs := repo.NewRunRepository(runner)

	switch command {
	case "status":
		granted, requested, err := creds.VideoAccess(ctx)
		if err != nil {
			fatal("read video access: %v", err)
		}
		fmt.Printf("granted: %v\nrequested: %v\n", granted, requested)

	case "grant":
		if err := creds.GrantVideoAccess(ctx); err != nil {
			fatal("grant video access: %v", err)
		}
		released, err := runs.ReleaseParked(ctx)
		if err != nil {
			fatal("release parked runs: %v", err)
		}
		fmt.Printf("video access granted, %d parked run(s) released\n", released)

	case "revoke":
		if err := creds.RevokeVideoAccess(ctx); err != nil {
			fatal("revoke video access: %v", err)
		}
		fmt.Println("video access revoked")

	case "set-key":
		fs := flag.NewFlagSet("set-key", flag.ExitOnError)
		keyFlag := fs.String("key", "", "API key to store (falls back to GEMINI_API_KEY)")
		_ = fs.Parse(os.Args[2:])
		key := strings.TrimSpace(*keyFlag)
		if key == "" {
			key = strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
		}
		if key == "" {
			fatal("an API key is required via -key or GEMINI_API_KEY")
		}
		if err := creds.SetGeminiAPIKey(ctx, key); err != nil {
			fatal("store api key: %v", err)
		}
		fmt.Println("gemini api key stored")

	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", command, usageText)
		os.Exit(2)
	}
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
