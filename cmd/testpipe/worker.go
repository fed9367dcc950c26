package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"testpipe/internal/app/worker"
	"testpipe/internal/domain/testrun"
	kafkainfra "testpipe/internal/infra/kafka"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume tests from Kafka and publish results",
	Long: `Consume test messages from the tests topic, run each one through the
pipeline and publish a result envelope per test to the results topic.

The worker stops on SIGINT/SIGTERM, on a "done" message, or after
TESTPIPE_MAX_TESTS tests when that is set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadAppConfig()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		factory, closeFactory, err := newRunnerFactory(cfg)
		if err != nil {
			return fmt.Errorf("initialize pipeline: %w", err)
		}
		defer func() {
			if cerr := closeFactory(); cerr != nil {
				log.Printf("warning: close pipeline: %v", cerr)
			}
		}()

		consumer, err := kafkainfra.NewConsumer(kafkainfra.Config{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.TestsTopic,
			GroupID: cfg.GroupID,
		})
		if err != nil {
			return fmt.Errorf("initialize kafka consumer: %w", err)
		}
		defer func() {
			if cerr := consumer.Close(); cerr != nil {
				log.Printf("warning: close kafka consumer: %v", cerr)
			}
		}()

		publisher, err := kafkainfra.NewPublisher(kafkainfra.PublisherConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.ResultsTopic,
		})
		if err != nil {
			return fmt.Errorf("initialize kafka publisher: %w", err)
		}
		defer func() {
			if cerr := publisher.Close(); cerr != nil {
				log.Printf("warning: close kafka publisher: %v", cerr)
			}
		}()

		service := worker.NewService(factory)
		return service.RunFromProducer(ctx, consumer, cfg.MaxTests, cfg.MaxParallel, func(result testrun.Result) {
			if result.Passed() {
				log.Printf("test %q passed in %s", result.TestID, result.Duration.Round(time.Millisecond))
			} else {
				log.Printf("test %q failed with %d assertion failure(s)", result.TestID, len(result.Failures))
			}

			if err := publisher.PublishResult(ctx, result); err != nil {
				log.Printf("publish result for test %q: %v", result.TestID, err)
			}
		})
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
