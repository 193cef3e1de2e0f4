package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kozaktomas/face-finder/internal/config"
	"github.com/kozaktomas/face-finder/internal/extractor"
	"github.com/kozaktomas/face-finder/internal/fileops"
	"github.com/kozaktomas/face-finder/internal/indexer"
	"github.com/kozaktomas/face-finder/internal/search"
	"github.com/kozaktomas/face-finder/internal/store/postgres"
	"github.com/kozaktomas/face-finder/internal/web"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the Face Finder web server.
The server exposes indexing sessions, similarity search, batch file
operations, and store statistics over HTTP for UI callers.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().Bool("hnsw", true, "Build the in-memory HNSW index for fast search")
}

// initHNSW builds or loads the HNSW index used as the search fast path.
func initHNSW(ctx context.Context, repo *postgres.ImageRepository, indexPath string) {
	if indexPath != "" {
		fmt.Printf("Loading face HNSW index from %s...\n", indexPath)
	} else {
		fmt.Printf("Building in-memory HNSW index for face search...\n")
	}
	if err := repo.EnableHNSW(ctx, indexPath); err != nil {
		fmt.Printf("Warning: Failed to build HNSW index: %v\n", err)
		fmt.Printf("Search will fall back to full store scans (slower)\n")
		return
	}
	fmt.Printf("HNSW index ready with %d faces\n", repo.HNSWCount())
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	port, _ := cmd.Flags().GetInt("port")
	host, _ := cmd.Flags().GetString("host")
	useHNSW, _ := cmd.Flags().GetBool("hnsw")

	repo, err := postgres.Initialize(&cfg.Database)
	if err != nil {
		return fmt.Errorf("initializing store: %w", err)
	}
	defer repo.Close()

	if useHNSW {
		initHNSW(cmd.Context(), repo, cfg.Database.HNSWIndexPath)
	}

	pipeline := indexer.New(repo, extractor.NewClient(cfg.Extractor.URL, cfg.Indexing.ThumbnailSize), &cfg.Indexing)
	engine := search.New(repo)
	operator := fileops.New(repo)

	server := web.NewServer(repo, pipeline, engine, operator, cfg.Search, port, host)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		fmt.Printf("Received %s, shutting down...\n", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if useHNSW && cfg.Database.HNSWIndexPath != "" {
		if err := repo.SaveHNSW(); err != nil {
			fmt.Printf("Warning: failed to persist HNSW index: %v\n", err)
		}
	}
	return nil
}
