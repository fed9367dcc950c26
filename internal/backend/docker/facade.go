// Package docker implements the backend facade for the gc backend: it
// compiles a module's compile unit inside a build container and returns
// the produced binary as the executable artifact.
package docker

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/docker/docker/client"

	"testpipe/internal/domain/testrun"
	"testpipe/internal/pipeline"
	"testpipe/internal/stages"
)

const (
	defaultImage     = "golang:1.22-alpine"
	defaultWorkdir   = "/build"
	defaultCacheSize = 64
	binaryFilename   = "program"
)

// Config describes how the facade reaches Docker and compiles units.
type Config struct {
	Image            string
	Workdir          string
	BuildTimeout     time.Duration
	MemoryLimitBytes int64
	// CacheSize bounds the compiled-binary cache (entries). Zero means the
	// default; negative disables caching.
	CacheSize int
}

// Facade compiles compile units to executables inside Docker containers.
// Identical units hit an in-memory cache instead of a second container
// round-trip. Safe for concurrent use by parallel test runs.
type Facade struct {
	cli   dockerClient
	cfg   Config
	cache *lru.Cache[string, []byte]

	pullOnce sync.Once
	pullErr  error
}

var _ pipeline.BackendFacade = (*Facade)(nil)

// New constructs a Facade with a real Docker client from the environment.
func New(cfg Config) (*Facade, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("docker backend: create client: %w", err)
	}
	facade, err := newFacadeWithClient(cli, cfg)
	if err != nil {
		_ = cli.Close()
		return nil, err
	}
	return facade, nil
}

func newFacadeWithClient(cli dockerClient, cfg Config) (*Facade, error) {
	if cfg.Image == "" {
		cfg.Image = defaultImage
	}
	if cfg.Workdir == "" {
		cfg.Workdir = defaultWorkdir
	}

	facade := &Facade{cli: cli, cfg: cfg}
	if cfg.CacheSize >= 0 {
		size := cfg.CacheSize
		if size == 0 {
			size = defaultCacheSize
		}
		cache, err := lru.New[string, []byte](size)
		if err != nil {
			return nil, fmt.Errorf("docker backend: create cache: %w", err)
		}
		facade.cache = cache
	}
	return facade, nil
}

func (f *Facade) Backend() testrun.BackendKind { return stages.BackendGC }
func (f *Facade) Produces() testrun.BinaryKind { return stages.BinaryExecutable }

// Produce compiles the unit and returns the binary bytes.
func (f *Facade) Produce(ctx context.Context, module testrun.Module, input testrun.BackendInput, _ pipeline.ArtifactLookup) (testrun.BinaryArtifact, error) {
	unit, ok := input.Payload.(stages.CompileUnit)
	if !ok {
		return testrun.BinaryArtifact{}, fmt.Errorf("docker backend: module %q: input payload is %T, not CompileUnit", module.ID, input.Payload)
	}
	if len(unit.Files) == 0 {
		return testrun.BinaryArtifact{}, fmt.Errorf("docker backend: module %q: compile unit is empty", module.ID)
	}

	key := unitHash(unit)
	if f.cache != nil {
		if data, hit := f.cache.Get(key); hit {
			return testrun.BinaryArtifact{Binary: stages.BinaryExecutable, Data: data}, nil
		}
	}

	data, err := f.compile(ctx, unit)
	if err != nil {
		return testrun.BinaryArtifact{}, fmt.Errorf("docker backend: module %q: %w", module.ID, err)
	}
	if f.cache != nil {
		f.cache.Add(key, data)
	}

	return testrun.BinaryArtifact{Binary: stages.BinaryExecutable, Data: data}, nil
}

// Close releases the Docker client.
func (f *Facade) Close() error {
	return f.cli.Close()
}

func (f *Facade) ensureImage(ctx context.Context) error {
	f.pullOnce.Do(func() {
		f.pullErr = pullImage(ctx, f.cli, f.cfg.Image)
	})
	return f.pullErr
}

func (f *Facade) compile(ctx context.Context, unit stages.CompileUnit) ([]byte, error) {
	if err := f.ensureImage(ctx); err != nil {
		return nil, err
	}

	command := []string{"go", "build", "-o", binaryFilename}
	files := make([]fileSpec, 0, len(unit.Files))
	for _, file := range unit.Files {
		command = append(command, file.Name)
		files = append(files, fileSpec{Name: file.Name, Mode: 0o644, Data: []byte(file.Content)})
	}

	containerID, cleanup, err := f.createContainer(ctx, command)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	if err := copyFiles(ctx, f.cli, containerID, f.cfg.Workdir, files); err != nil {
		return nil, fmt.Errorf("copy sources: %w", err)
	}

	exitCode, err := f.runToCompletion(ctx, containerID)
	if err != nil {
		return nil, err
	}
	if exitCode != 0 {
		_, stderr, logErr := fetchLogs(ctx, f.cli, containerID)
		if logErr != nil {
			return nil, fmt.Errorf("go build exited with status %d (logs unavailable: %v)", exitCode, logErr)
		}
		return nil, fmt.Errorf("go build exited with status %d: %s", exitCode, stderr)
	}

	data, err := copyFileFromContainer(ctx, f.cli, containerID, path.Join(f.cfg.Workdir, binaryFilename))
	if err != nil {
		return nil, fmt.Errorf("extract binary: %w", err)
	}
	return data, nil
}

func (f *Facade) runToCompletion(ctx context.Context, containerID string) (int64, error) {
	if err := f.cli.ContainerStart(ctx, containerID, startOptions()); err != nil {
		return 0, fmt.Errorf("start container: %w", err)
	}

	waitCtx := ctx
	var cancel context.CancelFunc
	if f.cfg.BuildTimeout > 0 {
		waitCtx, cancel = context.WithTimeout(ctx, f.cfg.BuildTimeout)
		defer cancel()
	}

	exitCode, err := waitForExit(waitCtx, f.cli, containerID)
	if err != nil {
		if waitCtx.Err() != nil && ctx.Err() == nil {
			return 0, fmt.Errorf("go build timed out after %s", f.cfg.BuildTimeout)
		}
		return 0, err
	}
	return exitCode, nil
}

func unitHash(unit stages.CompileUnit) string {
	h := sha256.New()
	for _, file := range unit.Files {
		h.Write([]byte(file.Name))
		h.Write([]byte{0})
		h.Write([]byte(file.Content))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
