package cmd

import (
	"fmt"

	"github.com/kozaktomas/face-finder/internal/config"
	"github.com/kozaktomas/face-finder/internal/store/postgres"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print index statistics",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	repo, err := postgres.Initialize(&cfg.Database)
	if err != nil {
		return fmt.Errorf("initializing store: %w", err)
	}
	defer repo.Close()

	stats, err := repo.Stats(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Printf("Images:  %d\n", stats.ImageCount)
	fmt.Printf("Faces:   %d\n", stats.FaceCount)
	fmt.Printf("Storage: %.1f MiB\n", float64(stats.StorageBytes)/(1024*1024))
	return nil
}
