package cmd

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/xkcd-vk/comicposter/internal/config"
	"github.com/xkcd-vk/comicposter/internal/images"
	"github.com/xkcd-vk/comicposter/internal/poster"
	"github.com/xkcd-vk/comicposter/internal/vk"
	"github.com/xkcd-vk/comicposter/internal/xkcd"
)

func runPost(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	level, _ := cfg.SlogLevel()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	p := newPoster(cfg, logger)

	res, err := p.Run(cmd.Context())
	if err != nil {
		return err
	}

	slog.Info("Published comic",
		"id", res.Comic.ID,
		"title", res.Comic.Title,
		"post_id", res.PostID,
		"attempts", res.Attempts)
	fmt.Fprintf(cmd.OutOrStdout(), "Published xkcd #%d %q to the group wall\n", res.Comic.ID, res.Comic.Title)

	return nil
}

func newPoster(cfg *config.Config, logger *slog.Logger) *poster.Poster {
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	comics := xkcd.NewClient(cfg.XKCD.BaseURL, httpClient)
	fetcher := images.NewFetcher(httpClient)
	wall := vk.NewClient(vk.Config{
		BaseURL:     cfg.VK.APIURL,
		Version:     cfg.VK.APIVersion,
		Credentials: cfg.Credentials(),
		RateLimit:   cfg.VK.RateLimit,
	}, httpClient)

	return poster.New(comics, fetcher, wall, poster.Options{
		ImagePath:    cfg.ImagePath,
		MaxAttempts:  cfg.Retry.MaxAttempts,
		InitialDelay: cfg.Retry.InitialDelay,
		MaxDelay:     cfg.Retry.MaxDelay,
		Logger:       logger,
	})
}
