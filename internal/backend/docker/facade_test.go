package docker

import (
	"archive/tar"
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"testpipe/internal/domain/testrun"
	"testpipe/internal/stages"
)

func testUnit() stages.CompileUnit {
	return stages.CompileUnit{
		Module: "main",
		Files: []testrun.SourceFile{
			{Name: "main.go", Content: "package main\n\nfunc main() {}\n"},
		},
	}
}

func testInput() testrun.BackendInput {
	return testrun.BackendInput{Backend: stages.BackendGC, Payload: testUnit()}
}

func newTestFacade(t *testing.T, client *fakeDockerClient, cfg Config) *Facade {
	t.Helper()
	facade, err := newFacadeWithClient(client, cfg)
	if err != nil {
		t.Fatalf("newFacadeWithClient returned error: %v", err)
	}
	return facade
}

func TestProduceCompilesUnitInContainer(t *testing.T) {
	t.Parallel()

	client := newFakeDockerClient()
	binary := []byte{0x7f, 'E', 'L', 'F'}
	client.onCreate(func(id string) {
		client.setWaitStatus(id, 0)
		client.setCopyFromFile(id, "/build/program", binary)
	})

	facade := newTestFacade(t, client, Config{})
	artifact, err := facade.Produce(context.Background(), testrun.Module{ID: "main"}, testInput(), nil)
	if err != nil {
		t.Fatalf("Produce returned error: %v", err)
	}
	if artifact.Binary != stages.BinaryExecutable {
		t.Fatalf("expected executable artifact, got %q", artifact.Binary)
	}
	if !bytes.Equal(artifact.Data, binary) {
		t.Fatalf("expected binary %v, got %v", binary, artifact.Data)
	}

	if len(client.imagePulls) != 1 || client.imagePulls[0] != defaultImage {
		t.Fatalf("expected one pull of %q, got %v", defaultImage, client.imagePulls)
	}
	if len(client.createCalls) != 1 {
		t.Fatalf("expected one container, got %d", len(client.createCalls))
	}
	create := client.createCalls[0]
	wantCmd := strings.Join([]string{"go", "build", "-o", "program", "main.go"}, " ")
	if got := strings.Join(create.config.Cmd, " "); got != wantCmd {
		t.Fatalf("expected command %q, got %q", wantCmd, got)
	}
	if create.config.WorkingDir != "/build" {
		t.Fatalf("expected workdir /build, got %q", create.config.WorkingDir)
	}
	if len(client.removeCalls) != 1 {
		t.Fatalf("expected container removal, got %d", len(client.removeCalls))
	}
}

func TestProduceCopiesSourcesAsTar(t *testing.T) {
	t.Parallel()

	client := newFakeDockerClient()
	client.onCreate(func(id string) {
		client.setWaitStatus(id, 0)
		client.setCopyFromFile(id, "/build/program", []byte("bin"))
	})

	facade := newTestFacade(t, client, Config{})
	if _, err := facade.Produce(context.Background(), testrun.Module{ID: "main"}, testInput(), nil); err != nil {
		t.Fatalf("Produce returned error: %v", err)
	}

	if len(client.copyToCalls) != 1 {
		t.Fatalf("expected one CopyToContainer call, got %d", len(client.copyToCalls))
	}
	call := client.copyToCalls[0]
	if call.path != "/build" {
		t.Fatalf("expected copy into /build, got %q", call.path)
	}

	tr := tar.NewReader(bytes.NewReader(call.data))
	header, err := tr.Next()
	if err != nil {
		t.Fatalf("reading tar: %v", err)
	}
	if header.Name != "main.go" {
		t.Fatalf("expected main.go in tar, got %q", header.Name)
	}
	content, err := io.ReadAll(tr)
	if err != nil {
		t.Fatalf("reading tar entry: %v", err)
	}
	if string(content) != testUnit().Files[0].Content {
		t.Fatalf("unexpected file content %q", content)
	}
}

func TestProduceReportsCompilerOutputOnFailure(t *testing.T) {
	t.Parallel()

	client := newFakeDockerClient()
	client.onCreate(func(id string) {
		client.setWaitStatus(id, 2)
		client.setLogs(id, "", "main.go:3:1: syntax error")
	})

	facade := newTestFacade(t, client, Config{})
	_, err := facade.Produce(context.Background(), testrun.Module{ID: "main"}, testInput(), nil)
	if err == nil {
		t.Fatal("expected error for failed build")
	}
	if !strings.Contains(err.Error(), "status 2") {
		t.Fatalf("expected exit status in error, got %q", err)
	}
	if !strings.Contains(err.Error(), "syntax error") {
		t.Fatalf("expected compiler output in error, got %q", err)
	}
	if len(client.removeCalls) != 1 {
		t.Fatalf("expected container removal after failure, got %d", len(client.removeCalls))
	}
}

func TestProduceCachesIdenticalUnits(t *testing.T) {
	t.Parallel()

	client := newFakeDockerClient()
	client.onCreate(func(id string) {
		client.setWaitStatus(id, 0)
		client.setCopyFromFile(id, "/build/program", []byte("bin"))
	})

	facade := newTestFacade(t, client, Config{})
	first, err := facade.Produce(context.Background(), testrun.Module{ID: "main"}, testInput(), nil)
	if err != nil {
		t.Fatalf("first Produce returned error: %v", err)
	}
	second, err := facade.Produce(context.Background(), testrun.Module{ID: "main"}, testInput(), nil)
	if err != nil {
		t.Fatalf("second Produce returned error: %v", err)
	}

	if !bytes.Equal(first.Data, second.Data) {
		t.Fatal("expected cached binary to match the compiled one")
	}
	if len(client.createCalls) != 1 {
		t.Fatalf("expected a single container for both calls, got %d", len(client.createCalls))
	}
}

func TestProduceWithCacheDisabledRecompiles(t *testing.T) {
	t.Parallel()

	client := newFakeDockerClient()
	for i := 0; i < 2; i++ {
		client.onCreate(func(id string) {
			client.setWaitStatus(id, 0)
			client.setCopyFromFile(id, "/build/program", []byte("bin"))
		})
	}

	facade := newTestFacade(t, client, Config{CacheSize: -1})
	for i := 0; i < 2; i++ {
		if _, err := facade.Produce(context.Background(), testrun.Module{ID: "main"}, testInput(), nil); err != nil {
			t.Fatalf("Produce %d returned error: %v", i, err)
		}
	}
	if len(client.createCalls) != 2 {
		t.Fatalf("expected two containers with cache disabled, got %d", len(client.createCalls))
	}
}

func TestProduceRejectsForeignPayload(t *testing.T) {
	t.Parallel()

	facade := newTestFacade(t, newFakeDockerClient(), Config{})
	input := testrun.BackendInput{Backend: stages.BackendGC, Payload: "not a unit"}
	_, err := facade.Produce(context.Background(), testrun.Module{ID: "main"}, input, nil)
	if err == nil {
		t.Fatal("expected error for foreign payload")
	}
	if !strings.Contains(err.Error(), "not CompileUnit") {
		t.Fatalf("unexpected error %q", err)
	}
}

func TestProduceAppliesMemoryLimit(t *testing.T) {
	t.Parallel()

	client := newFakeDockerClient()
	client.onCreate(func(id string) {
		client.setWaitStatus(id, 0)
		client.setCopyFromFile(id, "/work/program", []byte("bin"))
	})

	facade := newTestFacade(t, client, Config{Workdir: "/work", MemoryLimitBytes: 1 << 28})
	if _, err := facade.Produce(context.Background(), testrun.Module{ID: "main"}, testInput(), nil); err != nil {
		t.Fatalf("Produce returned error: %v", err)
	}

	host := client.createCalls[0].hostConfig
	if host.Resources.Memory != 1<<28 {
		t.Fatalf("expected memory limit %d, got %d", 1<<28, host.Resources.Memory)
	}
}

func TestCloseReleasesClient(t *testing.T) {
	t.Parallel()

	client := newFakeDockerClient()
	facade := newTestFacade(t, client, Config{})
	if err := facade.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if !client.closed {
		t.Fatal("expected underlying client to be closed")
	}
}
