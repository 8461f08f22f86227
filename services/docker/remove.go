package docker

import (
	"context"
	"fmt"

	"github.com/containerd/errdefs"
	"github.com/stackup-dev/stackup/models"
	"github.com/stackup-dev/stackup/services"

	"github.com/moby/moby/client"
)

// RemoveVolumes explicitly destroys the named project volumes. This is the
// only path that deletes volume data: neither container removal nor a
// plain teardown touches it.
func (p *DockerPlatform) RemoveVolumes(ctx context.Context, project string, volumes map[string]models.VolumeSpec, names []string) error {
	for _, logical := range names {
		if logical == "" {
			continue
		}

		spec, ok := volumes[logical]
		if !ok {
			return fmt.Errorf("volume %q is not declared in the manifest", logical)
		}
		if spec.External {
			return fmt.Errorf("volume %q is external and not managed by this project", logical)
		}

		name := services.VolumeName(project, logical, spec)

		// Idempotent remove:
		// - if it doesn't exist, ignore
		// - otherwise remove it
		if _, err := p.client.VolumeRemove(ctx, name, client.VolumeRemoveOptions{}); err != nil {
			if errdefs.IsNotFound(err) {
				continue
			}
			return fmt.Errorf("remove volume %q: %w", name, err)
		}
	}

	return nil
}
