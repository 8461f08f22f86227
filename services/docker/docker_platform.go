package docker

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/stackup-dev/stackup/ctxlog"
	platforms "github.com/stackup-dev/stackup/interfaces"
	"github.com/stackup-dev/stackup/models"

	"github.com/moby/moby/client"
)

// Labels scoping every resource this tool creates, so teardown can find
// exactly its own containers, volumes and networks.
const (
	labelProject = "stackup.project"
	labelRun     = "stackup.run"
	labelService = "stackup.service"
	labelVolume  = "stackup.volume"
)

// DockerPlatform implements platforms.Platform against the Docker Engine
// API.
type DockerPlatform struct {
	client *client.Client

	// Per-invocation id recorded in labels.
	run uuid.UUID

	states *stateTracker
}

// NewDockerPlatform initializes the Docker platform using environment
// variables (e.g. DOCKER_HOST) and API version negotiation.
func NewDockerPlatform() (*DockerPlatform, error) {
	c, err := client.New(
		client.FromEnv,
	)
	if err != nil {
		return nil, err
	}

	return &DockerPlatform{
		client: c,
		run:    uuid.New(),
	}, nil
}

// Up validates the manifest, builds recipe-backed images, ensures the
// project network and volumes exist, and starts containers in dependency
// order. Aborting mid-way leaves already-started services running; this
// layer never rolls back.
func (p *DockerPlatform) Up(ctx context.Context, manifest *models.Manifest, opts platforms.UpOptions) error {
	logger := ctxlog.FromContext(ctx)

	if err := p.CheckManifest(ctx, manifest); err != nil {
		return err
	}

	names := make([]string, 0, len(manifest.Services))
	for name := range manifest.Services {
		names = append(names, name)
	}
	p.states = newStateTracker(names)

	if !opts.NoBuild {
		if err := p.buildServices(ctx, manifest); err != nil {
			return err
		}
	} else {
		for name := range manifest.Services {
			if err := p.states.transition(name, StateWaiting); err != nil {
				return err
			}
		}
	}

	networkName, err := p.NetworkSetup(ctx, manifest.Name)
	if err != nil {
		return err
	}

	if err := p.VolumeSetup(ctx, manifest.Name, manifest.Volumes); err != nil {
		return err
	}

	if err := p.startServices(ctx, manifest, networkName); err != nil {
		return err
	}

	logger.Info("project up", "project", manifest.Name, "services", len(manifest.Services))

	if opts.Attach {
		return p.attach(ctx, manifest)
	}
	return nil
}

// Build builds every recipe-backed service image without starting
// anything.
func (p *DockerPlatform) Build(ctx context.Context, manifest *models.Manifest) error {
	if err := p.CheckManifest(ctx, manifest); err != nil {
		return err
	}

	names := make([]string, 0, len(manifest.Services))
	for name := range manifest.Services {
		names = append(names, name)
	}
	p.states = newStateTracker(names)

	return p.buildServices(ctx, manifest)
}

// Down tears the project down. Named volumes survive unless their removal
// is explicitly requested.
func (p *DockerPlatform) Down(ctx context.Context, project string, opts platforms.DownOptions) error {
	if project == "" {
		return fmt.Errorf("project name is empty")
	}
	return p.Teardown(ctx, project, opts.RemoveVolumes)
}
