package docker

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/stackup-dev/stackup/ctxlog"
	"github.com/stackup-dev/stackup/models"
	"github.com/stackup-dev/stackup/services"
	"golang.org/x/sync/errgroup"

	"github.com/moby/moby/client"
)

// attach follows every service's log stream until the context is
// cancelled. Output is demultiplexed to the operator's stdout/stderr.
func (p *DockerPlatform) attach(ctx context.Context, manifest *models.Manifest) error {
	logger := ctxlog.FromContext(ctx)

	keys := make([]string, 0, len(manifest.Services))
	for k := range manifest.Services {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	g, gctx := errgroup.WithContext(ctx)
	for _, key := range keys {
		key := key
		containerName := services.ContainerName(manifest.Name, key, manifest.Services[key])

		g.Go(func() error {
			rc, err := p.client.ContainerLogs(gctx, containerName, client.ContainerLogsOptions{
				ShowStdout: true,
				ShowStderr: true,
				Follow:     true,
				Timestamps: false,
				Since:      "0",
			})
			if err != nil {
				return fmt.Errorf("logs container %q: %w", containerName, err)
			}
			defer rc.Close()

			if err := services.DemuxDockerLogs(os.Stdout, os.Stderr, rc); err != nil {
				return fmt.Errorf("stream logs for %q: %w", containerName, err)
			}
			return nil
		})
	}

	logger.Info("attached to project logs", "project", manifest.Name)

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
