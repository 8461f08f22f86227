package docker

import (
	"context"
	"fmt"
	"net/netip"
	"strconv"

	"github.com/containerd/errdefs"
	"github.com/stackup-dev/stackup/ctxlog"
	"github.com/stackup-dev/stackup/graph"
	"github.com/stackup-dev/stackup/models"
	"github.com/stackup-dev/stackup/services"
	"golang.org/x/sync/errgroup"

	"github.com/moby/moby/api/types/container"
	"github.com/moby/moby/api/types/mount"
	"github.com/moby/moby/api/types/network"
	"github.com/moby/moby/client"
)

// NetworkSetup ensures the project network exists and returns its name.
// Every container joins it with its service name as alias, which is what
// makes "db" resolve to the database container across rebuilds.
func (p *DockerPlatform) NetworkSetup(ctx context.Context, project string) (string, error) {
	name := services.NetworkName(project)

	_, err := p.client.NetworkInspect(ctx, name, client.NetworkInspectOptions{})
	if err == nil {
		return name, nil
	}

	_, err = p.client.NetworkCreate(ctx, name, client.NetworkCreateOptions{
		Labels: map[string]string{
			labelProject: project,
			labelRun:     p.run.String(),
		},
	})
	if err != nil {
		// If it was created concurrently the engine returns a conflict;
		// rather than pattern match error strings, re-check inspect.
		if _, ie := p.client.NetworkInspect(ctx, name, client.NetworkInspectOptions{}); ie == nil {
			return name, nil
		}
		return "", fmt.Errorf("create network %q: %w", name, err)
	}

	return name, nil
}

// VolumeSetup creates every declared volume that does not exist yet. A
// volume is created empty exactly once; containers may come and go after
// that without touching it. External volumes must already exist.
func (p *DockerPlatform) VolumeSetup(ctx context.Context, project string, volumes map[string]models.VolumeSpec) error {
	logger := ctxlog.FromContext(ctx)

	for volKey, spec := range volumes {
		name := services.VolumeName(project, volKey, spec)

		_, err := p.client.VolumeInspect(ctx, name, client.VolumeInspectOptions{})
		if err == nil {
			continue
		}
		if !errdefs.IsNotFound(err) {
			return fmt.Errorf("inspect volume %q: %w", name, err)
		}
		if spec.External {
			return fmt.Errorf("external volume %q not found", name)
		}

		_, err = p.client.VolumeCreate(ctx, client.VolumeCreateOptions{
			Name: name,
			Labels: map[string]string{
				labelProject: project,
				labelRun:     p.run.String(),
				labelVolume:  volKey, // original logical name
			},
		})
		if err != nil {
			if _, ie := p.client.VolumeInspect(ctx, name, client.VolumeInspectOptions{}); ie == nil {
				continue
			}
			return fmt.Errorf("create volume %q: %w", name, err)
		}

		logger.Info("volume created", "volume", name)
	}

	return nil
}

// startServices launches containers wave by wave: every service in a wave
// has all of its dependencies launched in earlier waves, and services
// sharing a wave start concurrently. A failure stops the pipeline; later
// waves simply never start and their services stay waiting-on-dependencies.
func (p *DockerPlatform) startServices(ctx context.Context, manifest *models.Manifest, networkName string) error {
	batches, err := graph.New(manifest.DependencyMap()).Batches()
	if err != nil {
		return err
	}

	for _, wave := range batches {
		g, gctx := errgroup.WithContext(ctx)
		for _, name := range wave {
			name := name
			svc := manifest.Services[name]
			g.Go(func() error {
				if err := p.startService(gctx, manifest, networkName, name, svc); err != nil {
					p.states.fail(name, err)
					return err
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}

	return nil
}

func (p *DockerPlatform) startService(ctx context.Context, manifest *models.Manifest, networkName, serviceKey string, svc models.ServiceSpec) error {
	logger := ctxlog.FromContext(ctx)

	project := manifest.Name
	containerName := services.ContainerName(project, serviceKey, svc)

	image := svc.Image
	if svc.Build != nil {
		image = services.ImageTag(project, serviceKey, svc)
	}

	mounts := make([]mount.Mount, 0, len(svc.Volumes))
	for _, vm := range svc.Volumes {
		mounts = append(mounts, mount.Mount{
			Type:   mount.TypeVolume,
			Source: services.VolumeName(project, vm.Source, manifest.Volumes[vm.Source]),
			Target: vm.Target,
		})
	}

	exposed, portMap, err := portConfig(serviceKey, svc.Ports)
	if err != nil {
		return err
	}

	cCfg := &container.Config{
		Image:        image,
		Env:          svc.Environment.List(),
		ExposedPorts: exposed,
		Labels: map[string]string{
			labelProject: project,
			labelRun:     p.run.String(),
			labelService: serviceKey,
		},
	}

	hCfg := &container.HostConfig{
		Mounts:        mounts,
		PortBindings:  portMap,
		RestartPolicy: restartPolicy(svc.Restart),
	}

	nCfg := &network.NetworkingConfig{
		EndpointsConfig: map[string]*network.EndpointSettings{
			networkName: {
				// Service-name addressing: other containers reach this one
				// as "{serviceKey}".
				Aliases: []string{serviceKey},
			},
		},
	}

	// A stale container with the same name blocks creation; remove it.
	if _, err := p.client.ContainerInspect(ctx, containerName, client.ContainerInspectOptions{}); err == nil {
		_, _ = p.client.ContainerStop(ctx, containerName, client.ContainerStopOptions{})
		if _, err := p.client.ContainerRemove(ctx, containerName, client.ContainerRemoveOptions{
			Force:         true,
			RemoveVolumes: false,
		}); err != nil {
			return fmt.Errorf("remove existing container %q: %w", containerName, err)
		}
	}

	containerID := ""
	created, err := p.client.ContainerCreate(ctx, client.ContainerCreateOptions{
		Config:           cCfg,
		HostConfig:       hCfg,
		NetworkingConfig: nCfg,
		Name:             containerName,
		Image:            image,
	})
	if err != nil {
		// Race-safe: if something else created it, inspect and proceed
		inspected, ie := p.client.ContainerInspect(ctx, containerName, client.ContainerInspectOptions{})
		if ie != nil {
			return fmt.Errorf("create container %q: %w", containerName, err)
		}
		containerID = inspected.Container.ID
	} else {
		containerID = created.ID
	}

	if err := p.states.transition(serviceKey, StateStarting); err != nil {
		return err
	}

	// Port binding conflicts surface here and are fatal to this service.
	if _, err := p.client.ContainerStart(ctx, containerID, client.ContainerStartOptions{}); err != nil {
		return fmt.Errorf("start container %q: %w", containerName, err)
	}

	if err := p.states.transition(serviceKey, StateRunning); err != nil {
		return err
	}

	logger.Info("service started",
		"service", serviceKey,
		"container", containerName,
		"launched_at", p.states.launchedAt(serviceKey),
	)

	return nil
}

// portConfig translates declared port bindings into the engine's exposed
// port set and host publication map.
func portConfig(serviceKey string, bindings []models.PortBinding) (network.PortSet, network.PortMap, error) {
	exposed := network.PortSet{}
	portMap := network.PortMap{}

	for _, b := range bindings {
		port, ok := network.PortFrom(b.ContainerPort, network.IPProtocol(b.Protocol))
		if !ok {
			return nil, nil, fmt.Errorf("service %q has invalid port %d/%s", serviceKey, b.ContainerPort, b.Protocol)
		}
		exposed[port] = struct{}{}

		hostIP := b.HostIP
		if hostIP == "" {
			hostIP = "0.0.0.0"
		}
		addr, err := netip.ParseAddr(hostIP)
		if err != nil {
			return nil, nil, fmt.Errorf("service %q has invalid host ip %q: %w", serviceKey, hostIP, err)
		}
		portMap[port] = append(portMap[port], network.PortBinding{
			HostIP:   addr,
			HostPort: strconv.Itoa(int(b.HostPort)),
		})
	}

	return exposed, portMap, nil
}

func restartPolicy(policy models.RestartPolicy) container.RestartPolicy {
	switch policy {
	case models.RestartPolicyAlways:
		return container.RestartPolicy{Name: container.RestartPolicyAlways}
	case models.RestartPolicyOnFailure:
		return container.RestartPolicy{Name: container.RestartPolicyOnFailure}
	default:
		return container.RestartPolicy{Name: container.RestartPolicyDisabled}
	}
}
