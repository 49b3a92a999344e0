package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"reelscout/internal/reconcile"
	"reelscout/internal/store"
	"reelscout/pkg/config"
	"reelscout/pkg/logger"
	"reelscout/pkg/models"
	"reelscout/pkg/ui"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Attribute stored reels to the competitor that posted them",
	Long: `Re-link every stored reel whose author matches an active competitor
source to that competitor, including reels first seen through a hashtag.
Running it again without new data changes nothing.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, nil, runReconcile)
	},
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
}

func runReconcile(ctx context.Context, cfg *config.Config, st *store.Store) error {
	project, err := requireProject(ctx, st, cfg)
	if err != nil {
		return err
	}

	r := reconcile.New(st.Sources, st.Reels, logger.GetLogger())
	res, err := r.Run(ctx, models.NewProjectContext(project, time.Now))
	if err != nil {
		return err
	}

	ui.PrintInfo("Competitors", strconv.Itoa(res.Competitors))
	ui.PrintInfo("Reels re-attributed", ui.FormatCount(res.Reattributed))

	if len(res.Ambiguous) > 0 {
		rows := make([][]string, 0, len(res.Ambiguous))
		for _, a := range res.Ambiguous {
			ignored := make([]string, len(a.Ignored))
			for i, id := range a.Ignored {
				ignored[i] = strconv.FormatUint(uint64(id), 10)
			}
			rows = append(rows, []string{a.Handle, strconv.FormatUint(uint64(a.Chosen), 10), strings.Join(ignored, ", ")})
		}
		ui.PrintWarning(fmt.Sprintf("%d handles match more than one competitor source", len(res.Ambiguous)))
		ui.PrintTable([]string{"handle", "used source", "ignored sources"}, rows, 1)
	}
	return nil
}
