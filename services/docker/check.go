package docker

import (
	"context"
	"fmt"

	"github.com/stackup-dev/stackup/ctxlog"
	"github.com/stackup-dev/stackup/graph"
	"github.com/stackup-dev/stackup/models"
	"github.com/stackup-dev/stackup/services"
)

// CheckManifest validates the manifest before any engine call: every
// service has an image source, dependency references resolve and are
// acyclic, and every named mount points at a declared volume. URL-shaped
// build args with suspicious hosts are logged as warnings, not errors; an
// external database is a legitimate target.
func (p *DockerPlatform) CheckManifest(ctx context.Context, manifest *models.Manifest) error {
	logger := ctxlog.FromContext(ctx)

	if manifest == nil || len(manifest.Services) == 0 {
		return fmt.Errorf("manifest declares no services")
	}

	for name, svc := range manifest.Services {
		if svc.Image == "" && svc.Build == nil {
			return fmt.Errorf("service %q has neither image nor build", name)
		}
		if svc.Build != nil {
			if err := svc.Build.Validate(); err != nil {
				return fmt.Errorf("service %q: %w", name, err)
			}
		}
		switch svc.Restart {
		case "", models.RestartPolicyNone, models.RestartPolicyAlways, models.RestartPolicyOnFailure:
		default:
			return fmt.Errorf("service %q has unknown restart policy %q", name, svc.Restart)
		}
	}

	g := graph.New(manifest.DependencyMap())
	if err := g.Validate(); err != nil {
		return err
	}

	declared, err := services.DeclaredVolumeSet(manifest.Volumes)
	if err != nil {
		return err
	}
	if err := services.CheckServiceVolumeMounts(manifest.Services, declared); err != nil {
		return err
	}

	for _, warning := range services.CheckConnectionStrings(manifest) {
		logger.Warn(warning)
	}

	return nil
}
