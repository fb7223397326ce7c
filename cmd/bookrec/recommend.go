package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/mohammad-safakhou/bookrec/config"
	agentcore "github.com/mohammad-safakhou/bookrec/internal/agent/core"
	agenttele "github.com/mohammad-safakhou/bookrec/internal/agent/telemetry"
	"github.com/mohammad-safakhou/bookrec/models"
	"github.com/spf13/cobra"
)

func recommendCMD(cfgPath *string) *cobra.Command {
	var k int
	var apiKey string
	var verbose bool
	var recommend = &cobra.Command{
		Use:   "recommend <query>",
		Short: "Recommend books for a free-text request",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(*cfgPath)
			if err != nil {
				return err
			}
			if apiKey == "" {
				apiKey = getenv("GOOGLE_API_KEY", "")
			}
			if apiKey == "" {
				return errors.New("no API key: pass --api-key or set GOOGLE_API_KEY")
			}
			if !verbose && !cfg.General.Debug {
				log.SetOutput(io.Discard)
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if cfg.Server.RunTimeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, cfg.Server.RunTimeout)
				defer cancel()
			}

			defer startTracing(ctx, cfg)()
			tele := agenttele.NewTelemetry(cfg.Telemetry)
			orch, closeFn, err := agentcore.Build(ctx, cfg, tele)
			if err != nil {
				return err
			}
			defer func() { _ = closeFn() }()

			res, err := orch.Recommend(ctx, strings.Join(args, " "), k, apiKey)
			if err != nil {
				var pf *agentcore.PlanningFailure
				if errors.As(err, &pf) && pf.Raw != "" && verbose {
					fmt.Fprintf(cmd.ErrOrStderr(), "model output:\n%s\n", pf.Raw)
				}
				return err
			}
			printRecommendation(cmd.OutOrStdout(), res, verbose)
			if verbose {
				fmt.Fprint(cmd.ErrOrStderr(), tele.GetPerformanceReport())
			}
			return nil
		},
	}
	recommend.Flags().IntVarP(&k, "k", "k", 0, "number of books to return (default workflow.default_k)")
	recommend.Flags().StringVar(&apiKey, "api-key", "", "planning service key (default $GOOGLE_API_KEY)")
	recommend.Flags().BoolVarP(&verbose, "verbose", "v", false, "print the plan and log workflow progress to stderr")
	return recommend
}

func printRecommendation(w io.Writer, res models.Recommendation, verbose bool) {
	if verbose && len(res.Plan) > 0 {
		fmt.Fprintln(w, "Plan:")
		for _, st := range res.Plan {
			line := fmt.Sprintf("  [%d] %s (search: %q)", st.Index, st.Description, st.SearchTerm)
			if reason, ok := res.Failures[st.Index]; ok {
				line += " failed: " + reason
			}
			fmt.Fprintln(w, line)
		}
		fmt.Fprintln(w)
	}
	if res.Empty() {
		fmt.Fprintln(w, "No books found for this request.")
		return
	}
	for i, b := range res.Books {
		line := fmt.Sprintf("%d. %s", i+1, b.Title)
		if len(b.Authors) > 0 {
			line += " by " + strings.Join(b.Authors, ", ")
		}
		if b.AverageRating != nil {
			line += fmt.Sprintf(" (%.1f", *b.AverageRating)
			if b.RatingsCount != nil {
				line += fmt.Sprintf(", %d ratings", *b.RatingsCount)
			}
			line += ")"
		}
		fmt.Fprintln(w, line)
	}
	if len(res.FailedTasks) > 0 {
		fmt.Fprintf(w, "\n%d of %d searches failed.\n", len(res.FailedTasks), len(res.Plan))
	}
}
