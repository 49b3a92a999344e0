package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"reelscout/internal/store"
	"reelscout/pkg/config"
	"reelscout/pkg/ui"
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage projects",
}

var projectAddCmd = &cobra.Command{
	Use:   "add NAME",
	Short: "Create a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, nil, func(ctx context.Context, cfg *config.Config, st *store.Store) error {
			p, created, err := st.Projects.Create(ctx, args[0])
			if err != nil {
				return err
			}
			if created {
				ui.PrintSuccess(fmt.Sprintf("Created project %q (id %d)", p.Name, p.ID))
			} else {
				ui.PrintWarning(fmt.Sprintf("Project %q already exists (id %d)", p.Name, p.ID))
			}
			return nil
		})
	},
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, nil, func(ctx context.Context, cfg *config.Config, st *store.Store) error {
			projects, err := st.Projects.List(ctx)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(projects))
			for _, p := range projects {
				n, err := st.Reels.Count(ctx, p.ID)
				if err != nil {
					return err
				}
				rows = append(rows, []string{
					strconv.FormatUint(uint64(p.ID), 10),
					p.Name,
					strconv.FormatBool(p.Active),
					ui.FormatCount(n),
				})
			}
			ui.PrintTable([]string{"id", "name", "active", "reels"}, rows, 0, 3)
			return nil
		})
	},
}

func projectActivationCmd(use, short string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " NAME",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, nil, func(ctx context.Context, cfg *config.Config, st *store.Store) error {
				cfg.Project.Name = args[0]
				p, err := requireProject(ctx, st, cfg)
				if err != nil {
					return err
				}
				if err := st.Projects.SetActive(ctx, p.ID, active); err != nil {
					return err
				}
				ui.PrintSuccess(fmt.Sprintf("Project %q %sd", p.Name, use))
				return nil
			})
		},
	}
}

func init() {
	rootCmd.AddCommand(projectCmd)
	projectCmd.AddCommand(projectAddCmd)
	projectCmd.AddCommand(projectListCmd)
	projectCmd.AddCommand(projectActivationCmd("deactivate", "Stop ingesting for a project", false))
	projectCmd.AddCommand(projectActivationCmd("activate", "Resume ingesting for a project", true))
}
