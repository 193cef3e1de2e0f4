package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/kozaktomas/face-finder/internal/config"
	"github.com/kozaktomas/face-finder/internal/extractor"
	"github.com/kozaktomas/face-finder/internal/indexer"
	"github.com/kozaktomas/face-finder/internal/store/postgres"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index <root>",
	Short: "Index a directory of photos",
	Long: `Walk a directory tree, extract face embeddings for new or changed
images, and store them. Re-running on an unchanged directory is a fast
no-op: files whose size and modification time match the index are skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)

	indexCmd.Flags().Bool("cleanup", false, "Also remove index entries whose files no longer exist")
}

func runIndex(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	root, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("resolving root: %w", err)
	}

	repo, err := postgres.Initialize(&cfg.Database)
	if err != nil {
		return fmt.Errorf("initializing store: %w", err)
	}
	defer repo.Close()

	pipeline := indexer.New(repo, extractor.NewClient(cfg.Extractor.URL, cfg.Indexing.ThumbnailSize), &cfg.Indexing)

	if cleanup, _ := cmd.Flags().GetBool("cleanup"); cleanup {
		removed, err := pipeline.Cleanup(cmd.Context())
		if err != nil {
			return fmt.Errorf("cleanup: %w", err)
		}
		fmt.Printf("Removed %d orphaned index entries\n", removed)
	}

	sessionID, err := pipeline.Start(root)
	if err != nil {
		return err
	}

	var bar *progressbar.ProgressBar
	for {
		snapshot, ok := pipeline.Progress(sessionID)
		if !ok {
			return fmt.Errorf("session %s disappeared", sessionID)
		}

		if bar == nil && snapshot.FilesTotal > 0 {
			bar = progressbar.NewOptions(snapshot.FilesTotal,
				progressbar.OptionSetDescription("Indexing"),
				progressbar.OptionShowCount(),
				progressbar.OptionShowIts(),
			)
		}
		if bar != nil {
			_ = bar.Set(snapshot.FilesProcessed)
		}

		if snapshot.Status != indexer.StatusRunning {
			if bar != nil {
				_ = bar.Finish()
			}
			fmt.Printf("\nStatus:  %s\n", snapshot.Status)
			fmt.Printf("Files:   %d/%d\n", snapshot.FilesProcessed, snapshot.FilesTotal)
			fmt.Printf("Faces:   %d\n", snapshot.FacesFound)
			fmt.Printf("Errors:  %d\n", snapshot.Errors)
			if snapshot.Status == indexer.StatusFailed {
				return fmt.Errorf("indexing failed: %s", snapshot.Error)
			}
			return nil
		}

		time.Sleep(200 * time.Millisecond)
	}
}
