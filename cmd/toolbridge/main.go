// Command toolbridge runs the line-delimited JSON tool bridge on
// stdin/stdout for IDE/agent integration.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"cloneforge/internal/toolbridge"
)

func main() {
	endpoints := toolbridge.Endpoints{
		Coordinator:  envOrDefault("CLONE_COORDINATOR_URL", "http://localhost:3000"),
		Analyzer:     envOrDefault("CLONE_ANALYZER_URL", "http://localhost:3002"),
		Architect:    envOrDefault("CLONE_ARCHITECT_URL", "http://localhost:3003"),
		Tester:       envOrDefault("CLONE_TESTER_URL", "http://localhost:3004"),
		Communicator: envOrDefault("CLONE_COMMUNICATOR_URL", "http://localhost:3005"),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	bridge := toolbridge.New(endpoints)
	if err := bridge.Run(ctx, os.Stdin, os.Stdout); err != nil {
		log.Fatalf("toolbridge: %v", err)
	}
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
