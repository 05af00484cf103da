package cmd

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "comicposter",
		Short: "Publish a random xkcd comic to a VK group wall",
		Long: `Comicposter picks a random xkcd comic, uploads its image to a VK group
wall and publishes it with the comic title and alt text.

Configuration is read from the environment (a .env file in the working
directory is loaded first):

  VK_GROUP_ID          id of the group to post to (required)
  VK_ACCESS_TOKEN      token allowed to post on the group wall (required)
  COMICPOSTER_CONFIG   optional YAML file with the same settings

Connectivity failures restart the run with exponential backoff, up to
RETRY_MAX_ATTEMPTS runs. API errors stop the run immediately.`,
		Example: `  # Publish one comic
  VK_GROUP_ID=202069060 VK_ACCESS_TOKEN=... comicposter

  # Verbose logging
  LOG_LEVEL=debug comicposter`,
		Args: cobra.NoArgs,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPost(cmd)
		},
	}

	return cmd
}
