package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "testpipe",
	Short: "Run multi-module pipeline tests",
	Long: `testpipe splits test files into module structures, pushes every module
through the configured analysis, conversion and production stages, and
reports the collected assertion failures per test.

Run local test files directly:
  testpipe run testdata/simple.txt

Or consume tests from Kafka and publish results:
  testpipe worker`,
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	_ = godotenv.Load()
	initViper()
}
