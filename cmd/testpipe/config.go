package main

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"testpipe/internal/app/worker"
	"testpipe/internal/backend/docker"
	"testpipe/internal/domain/testrun"
	"testpipe/internal/metadata"
	"testpipe/internal/pipeline"
	"testpipe/internal/ports"
	"testpipe/internal/split"
	"testpipe/internal/stages"
)

type appConfig struct {
	KafkaBrokers []string
	TestsTopic   string
	ResultsTopic string
	GroupID      string
	MaxTests     int
	MaxParallel  int

	DockerEnabled    bool
	DockerImage      string
	DockerWorkdir    string
	BuildTimeout     time.Duration
	MemoryLimitBytes int64
	BinaryCacheSize  int
}

func initViper() {
	viper.SetEnvPrefix("TESTPIPE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("kafka.brokers", "kafka:9092")
	viper.SetDefault("kafka.tests_topic", "tests")
	viper.SetDefault("kafka.results_topic", "test-results")
	viper.SetDefault("kafka.group_id", "testpipe-worker")
	viper.SetDefault("max_tests", 0)
	viper.SetDefault("max_parallel", 1)

	viper.SetDefault("docker.enabled", true)
	viper.SetDefault("docker.image", "golang:1.22-alpine")
	viper.SetDefault("docker.workdir", "/build")
	viper.SetDefault("docker.build_timeout", "2m")
	viper.SetDefault("docker.memory_limit_bytes", 0)
	viper.SetDefault("docker.binary_cache_size", 0)
}

func loadAppConfig() appConfig {
	return appConfig{
		KafkaBrokers: parseBrokerList(viper.GetString("kafka.brokers")),
		TestsTopic:   viper.GetString("kafka.tests_topic"),
		ResultsTopic: viper.GetString("kafka.results_topic"),
		GroupID:      viper.GetString("kafka.group_id"),
		MaxTests:     viper.GetInt("max_tests"),
		MaxParallel:  viper.GetInt("max_parallel"),

		DockerEnabled:    viper.GetBool("docker.enabled"),
		DockerImage:      viper.GetString("docker.image"),
		DockerWorkdir:    viper.GetString("docker.workdir"),
		BuildTimeout:     viper.GetDuration("docker.build_timeout"),
		MemoryLimitBytes: viper.GetInt64("docker.memory_limit_bytes"),
		BinaryCacheSize:  viper.GetInt("docker.binary_cache_size"),
	}
}

func parseBrokerList(raw string) []string {
	fields := strings.Split(raw, ",")
	brokers := make([]string, 0, len(fields))
	for _, field := range fields {
		if trimmed := strings.TrimSpace(field); trimmed != "" {
			brokers = append(brokers, trimmed)
		}
	}
	return brokers
}

// newRunnerFactory assembles the default pipeline. The Docker facade is
// shared across runs; everything else carries per-run state and is built
// fresh by the factory. The returned close func releases the facade.
func newRunnerFactory(cfg appConfig) (worker.RunnerFactory, func() error, error) {
	var compiler *docker.Facade
	closeFacade := func() error { return nil }
	if cfg.DockerEnabled {
		facade, err := docker.New(docker.Config{
			Image:            cfg.DockerImage,
			Workdir:          cfg.DockerWorkdir,
			BuildTimeout:     cfg.BuildTimeout,
			MemoryLimitBytes: cfg.MemoryLimitBytes,
			CacheSize:        cfg.BinaryCacheSize,
		})
		if err != nil {
			return nil, nil, err
		}
		compiler = facade
		closeFacade = facade.Close
	}

	defaultArtifacts := []testrun.BinaryKind{stages.BinaryBundle}
	if compiler != nil {
		defaultArtifacts = append(defaultArtifacts, stages.BinaryExecutable)
	}

	extractor, err := split.NewExtractor(split.Config{
		DefaultFrontend:  stages.FrontendScan,
		DefaultBackend:   stages.BackendGC,
		DefaultArtifacts: defaultArtifacts,
	})
	if err != nil {
		_ = closeFacade()
		return nil, nil, err
	}

	build := func() (*pipeline.Orchestrator, error) {
		recorder := metadata.NewHandler()

		binaries := []pipeline.BinaryRegistration{
			{
				Facade:   stages.BundleBackend{},
				Handlers: []pipeline.BinaryHandler{stages.NewSizeHandler(stages.BinaryBundle, 0)},
			},
		}
		if compiler != nil {
			binaries = append(binaries, pipeline.BinaryRegistration{
				Facade:   compiler,
				Handlers: []pipeline.BinaryHandler{stages.NewSizeHandler(stages.BinaryExecutable, 0)},
			})
		}

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
			Binaries: binaries,
		})
		if err != nil {
			return nil, err
		}

		return pipeline.New(config, extractor, recorder)
	}

	return func() (ports.TestRunner, error) { return build() }, closeFacade, nil
}
