package cmd

import (
	"fmt"
	"os"

	"github.com/kozaktomas/face-finder/internal/config"
	"github.com/kozaktomas/face-finder/internal/extractor"
	"github.com/kozaktomas/face-finder/internal/search"
	"github.com/kozaktomas/face-finder/internal/store"
	"github.com/kozaktomas/face-finder/internal/store/postgres"
	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search <reference-image>",
	Short: "Find photos containing a face similar to the reference",
	Long: `Extract the faces from a reference image and search the index for
photos containing a similar face. When the reference contains multiple
faces, the first one is used.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().Float64("threshold", search.DefaultThreshold, "Minimum similarity in [0, 1]")
	searchCmd.Flags().Int("limit", 20, "Maximum number of results")
	searchCmd.Flags().String("metric", string(store.MetricEuclidean), "Distance metric (euclidean or cosine)")
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	threshold, _ := cmd.Flags().GetFloat64("threshold")
	limit, _ := cmd.Flags().GetInt("limit")
	metricName, _ := cmd.Flags().GetString("metric")

	// Configured defaults apply unless the flag was set explicitly.
	if !cmd.Flags().Changed("threshold") && cfg.Search.SimilarityThreshold > 0 && cfg.Search.SimilarityThreshold <= 1 {
		threshold = cfg.Search.SimilarityThreshold
	}
	if !cmd.Flags().Changed("limit") && cfg.Search.MaxResults > 0 {
		limit = cfg.Search.MaxResults
	}

	metric := store.Metric(metricName)
	if !metric.Valid() {
		return fmt.Errorf("unknown metric %q", metricName)
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading reference image: %w", err)
	}

	faces, err := extractor.NewClient(cfg.Extractor.URL, cfg.Indexing.ThumbnailSize).ExtractFaces(cmd.Context(), data)
	if err != nil {
		return fmt.Errorf("extracting faces from reference: %w", err)
	}
	if len(faces) == 0 {
		return fmt.Errorf("no face found in %s", args[0])
	}
	if len(faces) > 1 {
		fmt.Printf("Reference contains %d faces, using the first\n", len(faces))
	}

	repo, err := postgres.Initialize(&cfg.Database)
	if err != nil {
		return fmt.Errorf("initializing store: %w", err)
	}
	defer repo.Close()

	results, err := search.New(repo).Search(cmd.Context(), search.Query{
		Embedding:  faces[0].Embedding,
		Metric:     metric,
		Threshold:  threshold,
		MaxResults: limit,
	})
	if err != nil {
		return err
	}

	if len(results) == 0 {
		fmt.Println("No matches")
		return nil
	}

	for _, r := range results {
		fmt.Printf("%5.1f%%  %s\n", r.Similarity*100, r.ImagePath)
	}
	return nil
}
