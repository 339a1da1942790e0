// Command query is a one-shot CLI front-end over the pipeline: loads
// configuration, brings up the database adapter, catalog, and
// preprocessor, then runs a single question through all five agents
// and prints the result.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"clinsql/internal/catalog"
	"clinsql/internal/config"
	"clinsql/internal/dbadapter"
	"clinsql/internal/llmgateway"
	"clinsql/internal/logging"
	"clinsql/internal/orchestrator"
	"clinsql/internal/preprocessor"
)

const (
	reset  = "\033[0m"
	bold   = "\033[1m"
	dim    = "\033[2m"
	green  = "\033[32m"
	yellow = "\033[33m"
	cyan   = "\033[36m"
)

func header(title string) {
	line := strings.Repeat("─", 60)
	fmt.Printf("\n%s%s%s\n%s  %s%s\n%s%s%s\n\n", cyan+bold, line, reset, cyan+bold, title, reset, cyan+bold, line, reset)
}

func info(label, value string) {
	fmt.Printf("  %s%-18s%s %s\n", dim, label, reset, value)
}

func main() {
	configPath := flag.String("config", "config.json", "path to pipeline config")
	question := flag.String("question", "", "natural-language question to answer")
	numCandidates := flag.Int("candidates", 3, "number of SQL candidates to generate")
	numUnitTests := flag.Int("unit-tests", 5, "number of unit tests to generate")
	disableUnitTest := flag.Bool("disable-unit-test", false, "skip the unit tester and take CG's first valid candidate")
	flag.Parse()

	if *question == "" {
		log.Fatal("-question is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	ctx := context.Background()
	logger := logging.Default()

	adapter, err := dbadapter.NewAdapter(&dbadapter.Config{
		Type:     cfg.Database.Driver,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		Database: cfg.Database.Database,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		FilePath: cfg.Database.FilePath,
		PoolSize: cfg.Database.PoolSize,
		RowCap:   cfg.DefaultRowCap,
	})
	if err != nil {
		log.Fatalf("building adapter: %v", err)
	}
	if err := adapter.Connect(ctx); err != nil {
		log.Fatalf("connecting to database: %v", err)
	}
	defer adapter.Close()

	cat := catalog.New(adapter, cfg.SchemaCachePath)
	if err := cat.Refresh(ctx, true); err != nil {
		log.Fatalf("refreshing catalog: %v", err)
	}

	pre := preprocessor.New()
	loaded, err := pre.Load(cfg.IndexCachePath)
	if err != nil {
		log.Fatalf("loading preprocessor cache: %v", err)
	}
	if !loaded {
		if err := pre.Build(ctx, adapter, cat); err != nil {
			log.Fatalf("building preprocessor: %v", err)
		}
		if err := pre.Save(cfg.IndexCachePath); err != nil {
			log.Printf("warning: saving preprocessor cache: %v", err)
		}
	}

	gw, err := llmgateway.NewOpenAICompatible(cfg.LLMAPIKey, cfg.LLMBaseURL, cfg.Models.SQLGenerator)
	if err != nil {
		log.Fatalf("building LLM gateway: %v", err)
	}

	pipeline := orchestrator.New(cfg, cat, pre, gw, adapter, logger)

	header("running pipeline")
	info("question", *question)
	start := time.Now()
	result := pipeline.Run(ctx, *question, *numCandidates, *numUnitTests, *disableUnitTest, true, true)
	info("elapsed", time.Since(start).String())

	if !result.Success {
		fmt.Printf("\n  %s✗ %s%s\n", yellow, result.Error, reset)
		os.Exit(1)
	}

	fmt.Printf("\n  %s✓ sql%s\n%s\n", green+bold, reset, result.SQL)
	if result.Explanation != "" {
		fmt.Printf("\n  %s✓ explanation%s\n%s\n", green+bold, reset, result.Explanation)
	}

	encoded, _ := json.MarshalIndent(result, "", "  ")
	fmt.Printf("\n%s\n", encoded)
}
