package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"reelscout/internal/store"
	"reelscout/pkg/config"
	errs "reelscout/pkg/errors"
	"reelscout/pkg/models"
	"reelscout/pkg/ui"
)

var (
	sourceNotes string
	sourceKind  string
	sourceAll   bool
)

var sourceCmd = &cobra.Command{
	Use:   "source",
	Short: "Manage the competitor accounts and hashtags a project tracks",
}

var sourceAddCmd = &cobra.Command{
	Use:   "add KIND KEY",
	Short: "Track a competitor account or hashtag",
	Example: `  reelscout source add competitor @shopname --project acme
  reelscout source add hashtag "#skincare" --project acme`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, ok := models.ParseSourceKind(args[0])
		if !ok {
			return errs.Validation(fmt.Sprintf("unknown source kind %q (want competitor or hashtag)", args[0]))
		}
		return withStore(cmd, nil, func(ctx context.Context, cfg *config.Config, st *store.Store) error {
			p, err := requireProject(ctx, st, cfg)
			if err != nil {
				return err
			}
			src, created, err := st.Sources.Add(ctx, p.ID, kind, args[1], sourceNotes)
			if err != nil {
				return err
			}
			if created {
				ui.PrintSuccess(fmt.Sprintf("Tracking %s %q (id %d)", src.Kind, src.Key, src.ID))
			} else {
				ui.PrintWarning(fmt.Sprintf("Already tracking %s %q (id %d)", src.Kind, src.Key, src.ID))
			}
			return nil
		})
	},
}

var sourceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sources of a project",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var kind models.SourceKind
		if sourceKind != "" {
			k, ok := models.ParseSourceKind(sourceKind)
			if !ok {
				return errs.Validation(fmt.Sprintf("unknown source kind %q", sourceKind))
			}
			kind = k
		}
		return withStore(cmd, nil, func(ctx context.Context, cfg *config.Config, st *store.Store) error {
			p, err := requireProject(ctx, st, cfg)
			if err != nil {
				return err
			}
			list := st.Sources.ListActive
			if sourceAll {
				list = st.Sources.List
			}
			sources, err := list(ctx, p.ID, kind)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(sources))
			for _, s := range sources {
				last := "never"
				if s.LastScrapedAt != nil {
					last = s.LastScrapedAt.Local().Format("2006-01-02 15:04")
				}
				rows = append(rows, []string{
					strconv.FormatUint(uint64(s.ID), 10),
					string(s.Kind),
					s.Key,
					strconv.FormatBool(s.Active),
					last,
					ui.Truncate(s.Notes, 40),
				})
			}
			ui.PrintTable([]string{"id", "kind", "key", "active", "last scraped", "notes"}, rows, 0)
			return nil
		})
	},
}

var sourceDeactivateCmd = &cobra.Command{
	Use:   "deactivate ID",
	Short: "Stop tracking a source; its stored reels are kept",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return errs.Validation(fmt.Sprintf("invalid source id %q", args[0]))
		}
		return withStore(cmd, nil, func(ctx context.Context, cfg *config.Config, st *store.Store) error {
			if err := st.Sources.Deactivate(ctx, uint(id)); err != nil {
				return err
			}
			ui.PrintSuccess(fmt.Sprintf("Source %d deactivated", id))
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(sourceCmd)
	sourceCmd.AddCommand(sourceAddCmd)
	sourceCmd.AddCommand(sourceListCmd)
	sourceCmd.AddCommand(sourceDeactivateCmd)

	sourceAddCmd.Flags().StringVar(&sourceNotes, "notes", "", "free-form notes")
	sourceListCmd.Flags().StringVarP(&sourceKind, "kind", "k", "", "only sources of this kind")
	sourceListCmd.Flags().BoolVarP(&sourceAll, "all", "a", false, "include deactivated sources")
}
