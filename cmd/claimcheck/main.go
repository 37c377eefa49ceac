// Claimcheck scores a labelled set of claims and reports how well the
// fraud engine's risk levels match the labels.
//
// Usage:
//
//	go run ./cmd/claimcheck -csv claims.csv
//	go run ./cmd/claimcheck -csv claims.csv -url http://localhost:8080
//
// The CSV header must contain
// category,description,incident_days_ago,photos,documents,expected_level.
// Without -url the rules are evaluated in-process using the scoring section
// of the configuration (-config or CLAIMGUARD_CONFIG).
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/opensource-finance/claimguard/internal/config"
	"github.com/opensource-finance/claimguard/internal/rules"
)

func main() {
	csvPath := flag.String("csv", "", "Path to the labelled claims CSV")
	baseURL := flag.String("url", "", "ClaimGuard base URL (empty scores offline)")
	configPath := flag.String("config", "", "Config file for offline scoring rules")
	workers := flag.Int("workers", 4, "Number of concurrent workers")
	verbose := flag.Bool("verbose", false, "Print each case result")
	flag.Parse()

	if *csvPath == "" {
		fmt.Println("Usage: claimcheck -csv claims.csv [-url http://localhost:8080]")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	file, err := os.Open(*csvPath) // #nosec G304 -- path comes from the operator
	if err != nil {
		fmt.Printf("ERROR: %v\n", err)
		os.Exit(1)
	}
	cases, err := readCases(file, time.Now())
	file.Close()
	if err != nil {
		fmt.Printf("ERROR: failed to read CSV: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Loaded %d cases from %s\n", len(cases), *csvPath)

	var scorer Scorer
	if *baseURL == "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			fmt.Printf("ERROR: failed to load config: %v\n", err)
			os.Exit(1)
		}
		engine, err := rules.NewEngine(cfg.Scoring)
		if err != nil {
			fmt.Printf("ERROR: failed to build engine: %v\n", err)
			os.Exit(1)
		}
		scorer = &offlineScorer{engine: engine, now: time.Now}
		fmt.Printf("Mode:    offline (%s)\n", rules.Version)
	} else {
		client := &http.Client{Timeout: 10 * time.Second}
		if err := checkHealth(ctx, client, *baseURL); err != nil {
			fmt.Printf("ERROR: ClaimGuard not reachable at %s: %v\n", *baseURL, err)
			os.Exit(1)
		}
		sessionID := "claimcheck-" + uuid.New().String()
		scorer = &remoteScorer{client: client, baseURL: *baseURL, sessionID: sessionID}
		fmt.Printf("Mode:    remote %s (session %s)\n", *baseURL, sessionID)
	}
	fmt.Printf("Workers: %d\n", *workers)

	var progress io.Writer
	if *verbose {
		progress = os.Stdout
	}

	start := time.Now()
	m := run(ctx, cases, scorer, *workers, progress)
	printResults(os.Stdout, m, time.Since(start))

	if m.Errors > 0 {
		os.Exit(2)
	}
}
