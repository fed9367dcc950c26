package main

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"testpipe/internal/app/producer"
	"testpipe/internal/app/worker"
	"testpipe/internal/domain/testrun"
)

var (
	green = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	red   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	gray  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

var runCmd = &cobra.Command{
	Use:   "run <test-file>...",
	Short: "Run local test files through the pipeline",
	Long: `Run one or more test files and print every collected assertion failure.

Each file is one test case. The command exits non-zero when any test
fails.

Example:
  testpipe run testdata/diagnostics.txt testdata/two-modules.txt`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadAppConfig()

		tests, err := producer.NewFromFiles(args)
		if err != nil {
			return err
		}

		factory, closeFactory, err := newRunnerFactory(cfg)
		if err != nil {
			return fmt.Errorf("initialize pipeline: %w", err)
		}
		defer func() {
			if cerr := closeFactory(); cerr != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: close pipeline: %v\n", cerr)
			}
		}()

		var mu sync.Mutex
		failed := 0
		total := 0

		service := worker.NewService(factory)
		err = service.RunFromProducer(cmd.Context(), tests, 0, cfg.MaxParallel, func(result testrun.Result) {
			mu.Lock()
			defer mu.Unlock()
			total++
			if !result.Passed() {
				failed++
			}
			printResult(cmd, result)
		})
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "\n%d test(s), %d failed\n", total, failed)
		if failed > 0 {
			return fmt.Errorf("%d of %d test(s) failed", failed, total)
		}
		return nil
	},
}

func printResult(cmd *cobra.Command, result testrun.Result) {
	out := cmd.OutOrStdout()
	duration := gray.Render(result.Duration.Round(time.Millisecond).String())

	if result.Passed() {
		fmt.Fprintf(out, "%s %s %s\n", green.Render("✓"), result.TestID, duration)
		return
	}

	fmt.Fprintf(out, "%s %s %s\n", red.Render("✗"), result.TestID, duration)
	for i, failure := range result.Failures {
		fmt.Fprintf(out, "  %d. %s\n", i+1, failure.Error())
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
}
