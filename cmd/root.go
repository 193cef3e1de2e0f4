package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "face-finder",
	Short: "Index photos by the faces they contain and search them",
	Long: `Face Finder indexes a directory tree of photographs by the faces they
contain, answers "find photos with a face similar to this one" queries,
and applies batch copy/move/delete operations to the results.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
