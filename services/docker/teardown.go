package docker

import (
	"context"
	"fmt"

	"github.com/containerd/errdefs"
	"github.com/stackup-dev/stackup/ctxlog"

	"github.com/moby/moby/client"
)

// Teardown stops and removes the project's containers and network. Named
// volumes are left alone unless removeVolumes is set; destroying volume
// data is an explicit operator decision.
func (p *DockerPlatform) Teardown(ctx context.Context, project string, removeVolumes bool) error {
	if err := p.TearDownServices(ctx, project); err != nil {
		return err
	}
	if removeVolumes {
		if err := p.TearDownVolumes(ctx, project); err != nil {
			return err
		}
	}
	return p.TearDownNetworks(ctx, project)
}

func (p *DockerPlatform) TearDownServices(ctx context.Context, project string) error {
	logger := ctxlog.FromContext(ctx)

	f := make(client.Filters).
		Add("label", labelProject+"="+project)

	containers, err := p.client.ContainerList(ctx, client.ContainerListOptions{
		All:     true,
		Filters: f,
	})
	if err != nil {
		return fmt.Errorf("list project containers (project=%s): %w", project, err)
	}

	for _, c := range containers.Items {
		// Stop (best-effort) then remove
		_, _ = p.client.ContainerStop(ctx, c.ID, client.ContainerStopOptions{})
		_, err = p.client.ContainerRemove(ctx, c.ID, client.ContainerRemoveOptions{
			Force:         true,
			RemoveVolumes: false,
		})
		if err != nil && !errdefs.IsNotFound(err) {
			return fmt.Errorf("remove container %q: %w", c.ID, err)
		}
		logger.Info("container removed", "id", c.ID)
	}

	return nil
}

// TearDownVolumes removes every volume this project created. External
// volumes were never labeled by us, so the filter leaves them untouched.
func (p *DockerPlatform) TearDownVolumes(ctx context.Context, project string) error {
	logger := ctxlog.FromContext(ctx)

	f := make(client.Filters).
		Add("label", labelProject+"="+project)

	vols, err := p.client.VolumeList(ctx, client.VolumeListOptions{
		Filters: f,
	})
	if err != nil {
		return fmt.Errorf("list project volumes (project=%s): %w", project, err)
	}

	for _, v := range vols.Items {
		if v.Name == "" {
			continue
		}
		if _, err := p.client.VolumeRemove(ctx, v.Name, client.VolumeRemoveOptions{}); err != nil {
			// Idempotent: if it vanished, ignore.
			if errdefs.IsNotFound(err) {
				continue
			}
			return fmt.Errorf("remove volume %q: %w", v.Name, err)
		}
		logger.Info("volume removed", "volume", v.Name)
	}

	return nil
}

func (p *DockerPlatform) TearDownNetworks(ctx context.Context, project string) error {
	f := make(client.Filters).
		Add("label", labelProject+"="+project)

	nets, err := p.client.NetworkList(ctx, client.NetworkListOptions{
		Filters: f,
	})
	if err != nil {
		return fmt.Errorf("list project networks (project=%s): %w", project, err)
	}

	for _, n := range nets.Items {
		if n.Name == "" || n.ID == "" {
			continue
		}
		// Prefer removing by ID to avoid name collisions.
		if _, err := p.client.NetworkRemove(ctx, n.ID, client.NetworkRemoveOptions{}); err != nil {
			if errdefs.IsNotFound(err) {
				continue
			}
			return fmt.Errorf("remove network %q (%s): %w", n.Name, n.ID, err)
		}
	}

	return nil
}
