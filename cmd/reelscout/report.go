package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"reelscout/internal/store"
	"reelscout/pkg/config"
	errs "reelscout/pkg/errors"
	"reelscout/pkg/models"
	"reelscout/pkg/ui"
)

var (
	reportDays      int
	reportTop       int
	reportEstimated bool
	reportKind      string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show stored totals, top reels and source freshness for a project",
	Example: `  reelscout report --project acme
  reelscout report --project acme --days 7 --top 20 --include-estimated`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, nil, runReport)
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().IntVar(&reportDays, "days", 0, "top reels published within this many days (default ingest.max_age_days)")
	reportCmd.Flags().IntVar(&reportTop, "top", 10, "number of top reels to show")
	reportCmd.Flags().BoolVar(&reportEstimated, "include-estimated", false, "rank reels whose views were estimated from likes")
	reportCmd.Flags().StringVarP(&reportKind, "kind", "k", "", "freshness only for this source kind")
}

func runReport(ctx context.Context, cfg *config.Config, st *store.Store) error {
	project, err := requireProject(ctx, st, cfg)
	if err != nil {
		return err
	}

	var kind models.SourceKind
	if reportKind != "" {
		k, ok := models.ParseSourceKind(reportKind)
		if !ok {
			return errs.Validation(fmt.Sprintf("unknown source kind %q", reportKind))
		}
		kind = k
	}

	days := reportDays
	if days <= 0 {
		days = cfg.Ingest.MaxAgeDays
	}

	totals, err := st.Reports.Totals(ctx, project.ID)
	if err != nil {
		return err
	}
	ui.PrintHighlight(project.Name)
	ui.PrintTable(
		[]string{"reels", "competitor", "hashtag", "estimated views", "no views", "transcribed"},
		[][]string{{
			ui.FormatCount(totals.Reels),
			ui.FormatCount(totals.ByKind[models.SourceKindCompetitor]),
			ui.FormatCount(totals.ByKind[models.SourceKindHashtag]),
			ui.FormatCount(totals.Estimated),
			ui.FormatCount(totals.Unavailable),
			ui.FormatCount(totals.Transcribed),
		}},
		0, 1, 2, 3, 4, 5,
	)

	since := time.Now().UTC().AddDate(0, 0, -days)
	top, err := st.Reports.TopByViews(ctx, project.ID, since, reportTop, reportEstimated)
	if err != nil {
		return err
	}
	fmt.Fprintf(ui.Output, "\nTop %d reels of the last %d days\n", reportTop, days)
	ui.PrintTable([]string{"views", "origin", "author", "published", "url"}, topRows(top), 0)

	fresh, err := st.Reports.Freshness(ctx, project.ID, kind)
	if err != nil {
		return err
	}
	fmt.Fprintln(ui.Output, "\nSources")
	ui.PrintTable([]string{"id", "kind", "key", "active", "last scraped", "reels"}, freshnessRows(fresh), 0, 5)
	return nil
}

func topRows(reels []models.Reel) [][]string {
	rows := make([][]string, 0, len(reels))
	for _, r := range reels {
		published := "-"
		if r.PublishedAt != nil {
			published = r.PublishedAt.Format("2006-01-02")
		}
		rows = append(rows, []string{
			ui.OptCount(r.ViewCount),
			string(r.ViewsOrigin),
			"@" + r.AuthorHandle,
			published,
			ui.Truncate(r.URL, 60),
		})
	}
	return rows
}

func freshnessRows(fresh []store.SourceFreshness) [][]string {
	rows := make([][]string, 0, len(fresh))
	for _, f := range fresh {
		last := "never"
		if f.LastScrapedAt != nil {
			last = f.LastScrapedAt.Local().Format("2006-01-02 15:04")
		}
		rows = append(rows, []string{
			strconv.FormatUint(uint64(f.SourceID), 10),
			string(f.Kind),
			f.Key,
			strconv.FormatBool(f.Active),
			last,
			ui.FormatCount(f.Reels),
		})
	}
	return rows
}
