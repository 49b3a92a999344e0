package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"reelscout/internal/fetcher"
	"reelscout/internal/ingest"
	"reelscout/internal/store"
	"reelscout/pkg/auth"
	"reelscout/pkg/config"
	errs "reelscout/pkg/errors"
	"reelscout/pkg/logger"
	"reelscout/pkg/models"
	"reelscout/pkg/provider"
	"reelscout/pkg/ratelimit"
	"reelscout/pkg/ui"
)

var (
	ingestKind     string
	ingestWorkers  int
	ingestMinViews int64
	ingestMaxAge   int
	ingestLimit    int
	ingestVideo    bool
	ingestEstimate bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Fetch, filter and store reels for every active source of a project",
	Long: `Fetch recent posts for each active source of the project, drop the ones
that fail the quality policy and store the rest. A reel URL is stored once;
later sightings are counted as skipped.

A source whose provider call keeps failing is reported and the run goes on.
A database failure stops the run. Ctrl-C stops between sources.`,
	Example: `  # All sources of the configured project
  reelscout ingest --project acme

  # Only hashtags, with a lower threshold
  reelscout ingest --project acme --kind hashtag --min-views 20000`,
	Args: cobra.NoArgs,
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().StringVarP(&ingestKind, "kind", "k", "", "only sources of this kind (competitor or hashtag)")
	ingestCmd.Flags().IntVarP(&ingestWorkers, "workers", "w", 0, "sources processed concurrently")
	ingestCmd.Flags().Int64Var(&ingestMinViews, "min-views", 0, "minimum view count")
	ingestCmd.Flags().IntVar(&ingestMaxAge, "max-age-days", 0, "maximum post age in days")
	ingestCmd.Flags().IntVar(&ingestLimit, "results-limit", 0, "posts requested per source")
	ingestCmd.Flags().BoolVar(&ingestVideo, "require-video", false, "drop posts that are not videos")
	ingestCmd.Flags().BoolVar(&ingestEstimate, "estimate-views", false, "estimate missing views from likes")
}

func runIngest(cmd *cobra.Command, args []string) error {
	var kind models.SourceKind
	if ingestKind != "" {
		k, ok := models.ParseSourceKind(ingestKind)
		if !ok {
			return errs.Validation(fmt.Sprintf("unknown source kind %q", ingestKind))
		}
		kind = k
	}

	flags := map[string]interface{}{
		"workers":        ingestWorkers,
		"min-views":      ingestMinViews,
		"max-age-days":   ingestMaxAge,
		"results-limit":  ingestLimit,
		"require-video":  ingestVideo,
		"estimate-views": ingestEstimate,
	}

	return withStore(cmd, flags, func(ctx context.Context, cfg *config.Config, st *store.Store) error {
		project, err := requireProject(ctx, st, cfg)
		if err != nil {
			return err
		}

		token := serviceToken(cfg.Provider.Token, auth.ServiceProvider)
		if token == "" {
			return errs.Validation("no provider token; run 'reelscout auth login provider' or set REELSCOUT_PROVIDER_TOKEN")
		}

		log := logger.GetLogger()
		client := provider.NewClient(cfg.Provider, token, log)
		f := fetcher.New(client, ratelimit.FromConfig(cfg.RateLimit).Named("provider"), fetcher.OptionsFromConfig(cfg), log)

		display := ui.NewProgressDisplay(project.Name, verbose)
		opts := ingest.Options{
			Policy:  cfg.Policy(),
			Workers: cfg.Ingest.Workers,
			OnStart: display.Start,
			OnSource: func(r ingest.SourceResult) {
				display.SourceDone(ui.SourceOutcome{
					Label:    fmt.Sprintf("%s/%s", r.Kind, r.Key),
					Fetched:  r.Fetched,
					Inserted: r.Inserted,
					Skipped:  r.Skipped,
					Filtered: r.FilteredTotal(),
					Err:      r.Err,

					Interrupted: r.Interrupted,
				})
			},
		}

		summary, err := ingest.New(st.Sources, st.Reels, f, opts, log).RunProject(ctx, project, kind, time.Now)
		if summary != nil {
			printSummary(summary)
		}
		return err
	})
}

func printSummary(s *ingest.Summary) {
	fmt.Fprintln(ui.Output)
	ui.PrintInfo("Run", s.RunID)
	ui.PrintInfo("Duration", ui.FormatDuration(s.Duration()))

	ui.PrintTable(
		[]string{"sources ok", "failed", "interrupted", "fetched", "filtered", "invalid", "inserted", "skipped"},
		[][]string{{
			ui.FormatCount(int64(s.SourcesProcessed)),
			ui.FormatCount(int64(s.SourcesFailed)),
			ui.FormatCount(int64(s.SourcesInterrupted)),
			ui.FormatCount(int64(s.Fetched)),
			ui.FormatCount(int64(s.FilteredTotal())),
			ui.FormatCount(int64(s.Invalid)),
			ui.FormatCount(int64(s.Inserted)),
			ui.FormatCount(int64(s.Skipped)),
		}},
		0, 1, 2, 3, 4, 5, 6, 7,
	)

	if len(s.Filtered) > 0 {
		reasons := make(map[string]int, len(s.Filtered))
		for r, n := range s.Filtered {
			reasons[string(r)] = n
		}
		fmt.Fprintln(ui.Output, ui.KeyValues("filtered by", reasons))
	}

	if len(s.Errors) > 0 {
		failures := append([]string(nil), s.Errors...)
		sort.Strings(failures)
		ui.PrintWarning(fmt.Sprintf("%d sources failed", len(failures)))
		for _, e := range failures {
			fmt.Fprintln(ui.Output, "  "+ui.Dim(e))
		}
	} else {
		ui.PrintSuccess("All sources processed")
	}
}
