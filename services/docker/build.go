package docker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/moby/go-archive"
	"github.com/stackup-dev/stackup/ctxlog"
	"github.com/stackup-dev/stackup/models"
	"github.com/stackup-dev/stackup/recipe"
	"github.com/stackup-dev/stackup/services"

	"github.com/moby/moby/client"
)

// buildServices builds every recipe-backed service image, in name order so
// repeated runs submit identical work. A build failure is fatal: the
// service is marked failed, no image is tagged, and nothing later is
// attempted.
func (p *DockerPlatform) buildServices(ctx context.Context, manifest *models.Manifest) error {
	keys := make([]string, 0, len(manifest.Services))
	for k := range manifest.Services {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		svc := manifest.Services[key]
		if svc.Build == nil {
			if err := p.states.transition(key, StateWaiting); err != nil {
				return err
			}
			continue
		}

		if err := p.states.transition(key, StateBuilding); err != nil {
			return err
		}
		if err := p.buildService(ctx, manifest.Name, key, svc); err != nil {
			p.states.fail(key, err)
			return err
		}
		if err := p.states.transition(key, StateWaiting); err != nil {
			return err
		}
	}

	return nil
}

func (p *DockerPlatform) buildService(ctx context.Context, project, serviceKey string, svc models.ServiceSpec) error {
	logger := ctxlog.FromContext(ctx)
	spec := svc.Build

	// Parse the recipe first so malformed stages and dangling --from
	// references fail before any context is tarred or sent to the engine.
	recipePath := filepath.Join(spec.Context, spec.Dockerfile)
	f, err := os.Open(recipePath)
	if err != nil {
		return fmt.Errorf("read build recipe %q: %w", recipePath, err)
	}
	rec, err := recipe.Parse(f)
	closeErr := f.Close()
	if err != nil {
		return fmt.Errorf("build service %q: %w", serviceKey, err)
	}
	if closeErr != nil {
		return fmt.Errorf("close build recipe %q: %w", recipePath, closeErr)
	}

	tag := services.ImageTag(project, serviceKey, svc)

	buildContext, err := archive.TarWithOptions(spec.Context, &archive.TarOptions{})
	if err != nil {
		return fmt.Errorf("tar build context %q: %w", spec.Context, err)
	}
	defer buildContext.Close()

	buildArgs := make(map[string]*string, len(spec.Args))
	for k, v := range spec.Args {
		v := v
		buildArgs[k] = &v
	}

	logger.Info("building image",
		"service", serviceKey,
		"tag", tag,
		"stages", len(rec.Stages),
		"runtime_base", rec.FinalStage().From,
		"context", spec.Context,
	)

	res, err := p.client.ImageBuild(ctx, buildContext, client.ImageBuildOptions{
		Tags:       []string{tag},
		Dockerfile: spec.Dockerfile,
		BuildArgs:  buildArgs,
		Remove:     true,
		Labels: map[string]string{
			labelProject: project,
			labelRun:     p.run.String(),
			labelService: serviceKey,
		},
	})
	if err != nil {
		return fmt.Errorf("build image %q: %w", tag, err)
	}
	defer res.Body.Close()

	// The engine reports compile failures through the message stream, not
	// the request error; a stream error means no image was produced.
	if err := streamBuildOutput(res.Body, os.Stdout); err != nil {
		return fmt.Errorf("build image %q: %w", tag, err)
	}

	return nil
}

// streamBuildOutput decodes the engine's JSON message stream, forwarding
// progress output and surfacing the first embedded error.
func streamBuildOutput(r io.Reader, w io.Writer) error {
	dec := json.NewDecoder(r)
	for {
		var msg jsonmessage.JSONMessage
		if err := dec.Decode(&msg); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("decode build output: %w", err)
		}
		if msg.Error != nil {
			return msg.Error
		}
		if msg.Stream != "" {
			fmt.Fprint(w, msg.Stream)
		}
	}
}
