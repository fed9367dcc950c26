package docker

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	typesimage "github.com/docker/docker/api/types/image"
	"github.com/docker/docker/pkg/stdcopy"
)

type fileSpec struct {
	Name string
	Mode int64
	Data []byte
}

func startOptions() container.StartOptions {
	return container.StartOptions{}
}

func (f *Facade) createContainer(ctx context.Context, command []string) (string, func(), error) {
	config := &container.Config{
		Image:      f.cfg.Image,
		Cmd:        command,
		WorkingDir: f.cfg.Workdir,
	}
	hostConfig := &container.HostConfig{}
	if f.cfg.MemoryLimitBytes > 0 {
		hostConfig.Resources = container.Resources{
			Memory:     f.cfg.MemoryLimitBytes,
			MemorySwap: f.cfg.MemoryLimitBytes,
		}
	}

	resp, err := f.cli.ContainerCreate(ctx, config, hostConfig, nil, nil, "")
	if err != nil {
		return "", nil, fmt.Errorf("create container: %w", err)
	}

	cleanup := func() {
		_ = f.cli.ContainerRemove(context.Background(), resp.ID, container.RemoveOptions{Force: true})
	}
	return resp.ID, cleanup, nil
}

func pullImage(ctx context.Context, cli dockerClient, ref string) error {
	reader, err := cli.ImagePull(ctx, ref, typesimage.PullOptions{})
	if err != nil {
		return fmt.Errorf("pull image %s: %w", ref, err)
	}
	defer reader.Close()
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return fmt.Errorf("consume pull output for %s: %w", ref, err)
	}
	return nil
}

func copyFiles(ctx context.Context, cli dockerClient, containerID, dstDir string, files []fileSpec) error {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, file := range files {
		header := &tar.Header{
			Name: file.Name,
			Mode: file.Mode,
			Size: int64(len(file.Data)),
		}
		if err := tw.WriteHeader(header); err != nil {
			return fmt.Errorf("write tar header for %s: %w", file.Name, err)
		}
		if _, err := tw.Write(file.Data); err != nil {
			return fmt.Errorf("write tar entry for %s: %w", file.Name, err)
		}
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("close tar stream: %w", err)
	}

	return cli.CopyToContainer(ctx, containerID, dstDir, &buf, types.CopyToContainerOptions{
		AllowOverwriteDirWithFile: true,
	})
}

func waitForExit(ctx context.Context, cli dockerClient, containerID string) (int64, error) {
	statusCh, errCh := cli.ContainerWait(ctx, containerID, container.WaitConditionNotRunning)
	select {
	case status := <-statusCh:
		if status.Error != nil {
			return 0, fmt.Errorf("container exited with error: %s", status.Error.Message)
		}
		return status.StatusCode, nil
	case err := <-errCh:
		return 0, fmt.Errorf("wait for container: %w", err)
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func fetchLogs(ctx context.Context, cli dockerClient, containerID string) (string, string, error) {
	logs, err := cli.ContainerLogs(ctx, containerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err != nil {
		return "", "", fmt.Errorf("fetch logs: %w", err)
	}
	defer logs.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, logs); err != nil {
		return "", "", fmt.Errorf("demux logs: %w", err)
	}
	return stdout.String(), stderr.String(), nil
}

func copyFileFromContainer(ctx context.Context, cli dockerClient, containerID, srcPath string) ([]byte, error) {
	reader, _, err := cli.CopyFromContainer(ctx, containerID, srcPath)
	if err != nil {
		return nil, fmt.Errorf("copy from container: %w", err)
	}
	defer reader.Close()

	tr := tar.NewReader(reader)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read tar stream: %w", err)
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", header.Name, err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("no regular file at %s", srcPath)
}
