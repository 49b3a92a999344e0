package main

import (
	"context"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"reelscout/internal/store"
	"reelscout/internal/transcribe"
	"reelscout/pkg/auth"
	"reelscout/pkg/config"
	errs "reelscout/pkg/errors"
	"reelscout/pkg/logger"
	"reelscout/pkg/models"
	"reelscout/pkg/ratelimit"
	"reelscout/pkg/ui"
)

var transcribeLimit int

var transcribeCmd = &cobra.Command{
	Use:   "transcribe",
	Short: "Backfill transcripts for stored reels that have a video URL",
	Long: `Send the video URL of reels without a transcript to the configured
transcription endpoint, oldest first. Reels for which no transcript can be
produced are marked so they are not retried; transient failures are retried
on the next run.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, nil, runTranscribe)
	},
}

func init() {
	rootCmd.AddCommand(transcribeCmd)
	transcribeCmd.Flags().IntVarP(&transcribeLimit, "limit", "n", 0, "maximum reels to transcribe (default transcription.batch_size)")
}

func runTranscribe(ctx context.Context, cfg *config.Config, st *store.Store) error {
	if !cfg.Transcription.Enabled {
		return errs.Validation("transcription is disabled; set transcription.enabled and transcription.endpoint")
	}
	project, err := requireProject(ctx, st, cfg)
	if err != nil {
		return err
	}

	limit := transcribeLimit
	if limit <= 0 {
		limit = cfg.Transcription.BatchSize
	}

	log := logger.GetLogger()
	token := serviceToken(cfg.Transcription.Token, auth.ServiceTranscription)
	t := transcribe.NewHTTPTranscriber(cfg.Transcription, token, log)
	job := transcribe.NewJob(st.Reels, t, ratelimit.FromConfig(cfg.RateLimit).Named("transcription"), cfg.Transcription.Timeout, log)

	res, err := job.Run(ctx, models.NewProjectContext(project, time.Now), limit)
	if res != nil {
		ui.PrintTable(
			[]string{"candidates", "transcribed", "unavailable", "failed"},
			[][]string{{
				strconv.Itoa(res.Candidates),
				strconv.Itoa(res.Transcribed),
				strconv.Itoa(res.Unavailable),
				strconv.Itoa(res.Failed),
			}},
			0, 1, 2, 3,
		)
	}
	return err
}
