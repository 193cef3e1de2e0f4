package cmd

import (
	"fmt"

	"github.com/kozaktomas/face-finder/internal/config"
	"github.com/kozaktomas/face-finder/internal/fileops"
	"github.com/kozaktomas/face-finder/internal/store/postgres"
	"github.com/spf13/cobra"
)

var filesCmd = &cobra.Command{
	Use:   "files <copy|move|delete> <path>...",
	Short: "Apply a batch file operation to a list of photos",
	Long: `Copy, move, or delete a list of photos. Move and delete keep the
index consistent with the filesystem. Every path is attempted; failures
are tallied per path instead of aborting the batch. Name collisions at
the destination are resolved by appending a numeric suffix.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runFiles,
}

func init() {
	rootCmd.AddCommand(filesCmd)

	filesCmd.Flags().String("dest", "", "Destination directory (required for copy and move)")
}

func runFiles(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	op := fileops.Operation(args[0])
	if !op.Valid() {
		return fmt.Errorf("unknown operation %q", args[0])
	}
	dest, _ := cmd.Flags().GetString("dest")

	repo, err := postgres.Initialize(&cfg.Database)
	if err != nil {
		return fmt.Errorf("initializing store: %w", err)
	}
	defer repo.Close()

	report, err := fileops.New(repo).Apply(cmd.Context(), op, args[1:], dest)
	if err != nil {
		return err
	}

	fmt.Printf("Successful: %d\n", report.Successful)
	fmt.Printf("Failed:     %d\n", report.Failed)
	for _, opErr := range report.Errors {
		fmt.Printf("  %s: %s\n", opErr.Path, opErr.Reason)
	}
	return nil
}
