//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	kafkatc "github.com/testcontainers/testcontainers-go/modules/kafka"

	"testpipe/internal/app/worker"
	"testpipe/internal/domain/testrun"
	kafkainfra "testpipe/internal/infra/kafka"
	"testpipe/internal/metadata"
	"testpipe/internal/pipeline"
	"testpipe/internal/ports"
	"testpipe/internal/split"
	"testpipe/internal/stages"
	"testpipe/internal/testhelpers"
)

const testSource = `// MODULE: lib
// FILE: lib.go
package lib

func Helper() {}
// MODULE: main(lib)
package main

func main() {}
`

func newRunnerFactory(t *testing.T) worker.RunnerFactory {
	t.Helper()

	extractor, err := split.NewExtractor(split.Config{
		DefaultFrontend:  stages.FrontendScan,
		DefaultBackend:   stages.BackendGC,
		DefaultArtifacts: []testrun.BinaryKind{stages.BinaryBundle},
	})
	if err != nil {
		t.Fatalf("build extractor: %v", err)
	}

	return func() (ports.TestRunner, error) {
		recorder := metadata.NewHandler()
		config, err := pipeline.NewConfiguration(pipeline.Config{
			Frontends: []pipeline.FrontendRegistration{
				{
					Facade:   stages.ScanFrontend{},
					Handlers: []pipeline.FrontendHandler{stages.NewDiagnosticsHandler(recorder)},
				},
			},
			Converters: []pipeline.Converter{stages.LinkConverter{}},
			Backends: []pipeline.BackendRegistration{
				{
					Kind:     stages.BackendGC,
					Handlers: []pipeline.BackendInputHandler{stages.UnitHandler{}},
				},
			},
			Binaries: []pipeline.BinaryRegistration{
				{
					Facade:   stages.BundleBackend{},
					Handlers: []pipeline.BinaryHandler{stages.NewSizeHandler(stages.BinaryBundle, 0)},
				},
			},
		})
		if err != nil {
			return nil, err
		}
		return pipeline.New(config, extractor, recorder)
	}
}

func TestPipelineEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping pipeline integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	kafkaContainer, err := kafkatc.Run(ctx, "confluentinc/confluent-local:7.7.0")
	if err != nil {
		t.Skipf("kafka container unavailable: %v", err)
	}
	defer kafkaContainer.Terminate(context.Background())

	brokers, err := kafkaContainer.Brokers(ctx)
	if err != nil {
		t.Fatalf("failed to obtain broker addresses: %v", err)
	}
	if len(brokers) == 0 {
		t.Fatal("no brokers returned by kafka container")
	}
	broker := brokers[0]

	const (
		testsTopic   = "integration-tests"
		resultsTopic = "integration-results"
	)

	if err := testhelpers.WaitForKafkaBroker(ctx, broker); err != nil {
		t.Fatalf("wait for kafka broker: %v", err)
	}
	if err := testhelpers.EnsureKafkaTopic(ctx, broker, testsTopic); err != nil {
		t.Fatalf("ensure tests topic: %v", err)
	}
	if err := testhelpers.EnsureKafkaTopic(ctx, broker, resultsTopic); err != nil {
		t.Fatalf("ensure results topic: %v", err)
	}

	writer := &kafkago.Writer{
		Addr:         kafkago.TCP(broker),
		Topic:        testsTopic,
		RequiredAcks: kafkago.RequireAll,
	}
	defer writer.Close()

	payload, err := json.Marshal(map[string]string{
		"type":   "test",
		"id":     "two-modules",
		"source": testSource,
	})
	if err != nil {
		t.Fatalf("marshal test envelope: %v", err)
	}
	if err := writer.WriteMessages(ctx, kafkago.Message{Key: []byte("two-modules"), Value: payload}); err != nil {
		t.Fatalf("write test message: %v", err)
	}

	consumer, err := kafkainfra.NewConsumer(kafkainfra.Config{
		Brokers: []string{broker},
		Topic:   testsTopic,
		GroupID: "integration-worker",
	})
	if err != nil {
		t.Fatalf("build consumer: %v", err)
	}
	defer consumer.Close()

	publisher, err := kafkainfra.NewPublisher(kafkainfra.PublisherConfig{
		Brokers: []string{broker},
		Topic:   resultsTopic,
	})
	if err != nil {
		t.Fatalf("build publisher: %v", err)
	}
	defer publisher.Close()

	service := worker.NewService(newRunnerFactory(t))
	err = service.RunFromProducer(ctx, consumer, 1, 1, func(result testrun.Result) {
		if perr := publisher.PublishResult(ctx, result); perr != nil {
			t.Errorf("publish result: %v", perr)
		}
	})
	if err != nil {
		t.Fatalf("RunFromProducer returned error: %v", err)
	}

	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers: []string{broker},
		Topic:   resultsTopic,
		GroupID: "integration-verifier",
	})
	defer reader.Close()

	readCtx, cancelRead := context.WithTimeout(ctx, 30*time.Second)
	defer cancelRead()

	msg, err := reader.ReadMessage(readCtx)
	if err != nil {
		t.Fatalf("read result message: %v", err)
	}

	var envelope struct {
		ID       string `json:"id"`
		Passed   bool   `json:"passed"`
		Failures []struct {
			Message string `json:"message"`
		} `json:"failures"`
	}
	if err := json.Unmarshal(msg.Value, &envelope); err != nil {
		t.Fatalf("decode result envelope: %v", err)
	}

	if envelope.ID != "two-modules" {
		t.Fatalf("expected result for test two-modules, got %q", envelope.ID)
	}
	if !envelope.Passed {
		t.Fatalf("expected passing run, got failures %+v", envelope.Failures)
	}
}
