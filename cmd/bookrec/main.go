package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/mohammad-safakhou/bookrec/config"
	agenttele "github.com/mohammad-safakhou/bookrec/internal/agent/telemetry"
	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	var cfgPath string
	var root = &cobra.Command{
		Use:           "bookrec",
		Short:         "Plan, search and rank book recommendations",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is ./config or .)")

	root.AddCommand(serveCMD(&cfgPath), recommendCMD(&cfgPath))
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

// startTracing installs the OTLP exporter when configured and returns its
// flush function.
func startTracing(ctx context.Context, cfg *config.Config) func() {
	tr, err := agenttele.SetupTracing(ctx, cfg.Telemetry, version)
	if err != nil {
		log.Printf("tracing disabled: %v", err)
		return func() {}
	}
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tr.Shutdown(shutdownCtx); err != nil {
			log.Printf("%v", err)
		}
	}
}
