package services

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/stackup-dev/stackup/models"
)

// DemuxDockerLogs splits the engine's multiplexed log stream into stdout
// and stderr writers. The 8-byte frame header carries the stream id and
// payload size.
func DemuxDockerLogs(dstOut, dstErr io.Writer, src io.Reader) error {
	r := bufio.NewReader(src)

	header := make([]byte, 8)
	for {
		if _, err := io.ReadFull(r, header); err != nil {
			// Clean EOF: stream ends
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil
			}
			return err
		}

		streamType := header[0] // 1=stdout, 2=stderr
		size := binary.BigEndian.Uint32(header[4:8])

		if size == 0 {
			continue
		}

		payload := make([]byte, size)
		if _, err := io.ReadFull(r, payload); err != nil {
			return err
		}

		var w io.Writer
		switch streamType {
		case 1:
			w = dstOut
		case 2:
			w = dstErr
		default:
			// Unknown stream, treat as stdout to avoid dropping data
			w = dstOut
		}

		if _, err := w.Write(payload); err != nil {
			return fmt.Errorf("write docker log payload: %w", err)
		}
	}
}

// ContainerName returns the project-scoped container name, honoring the
// service's container_name override.
func ContainerName(project, serviceKey string, spec models.ServiceSpec) string {
	if spec.ContainerName != "" {
		return spec.ContainerName
	}
	return fmt.Sprintf("%s-%s", safeName(project), safeName(serviceKey))
}

// ImageTag returns the tag a built service image is stored under. A
// declared image name wins; otherwise the tag is derived from project and
// service so rebuilds are idempotent.
func ImageTag(project, serviceKey string, spec models.ServiceSpec) string {
	if spec.Image != "" {
		return spec.Image
	}
	return fmt.Sprintf("%s-%s:latest", safeName(project), safeName(serviceKey))
}

// NetworkName returns the project network every container joins. Services
// address each other by service-name alias on this network.
func NetworkName(project string) string {
	return safeName(project) + "_default"
}

// VolumeName returns the engine-side name of a declared volume. External
// volumes are used verbatim; project volumes are prefixed so two projects
// with a "pgdata" volume never collide.
func VolumeName(project, volumeKey string, spec models.VolumeSpec) string {
	if spec.External {
		return volumeKey
	}
	return fmt.Sprintf("%s-%s", safeName(project), safeName(volumeKey))
}

func safeName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, " ", "-")
	return s
}

// DeclaredVolumeSet collects the manifest's top-level volume names.
func DeclaredVolumeSet(volumes map[string]models.VolumeSpec) (map[string]struct{}, error) {
	set := map[string]struct{}{}
	for name := range volumes {
		if strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("volumes block contains an empty name")
		}
		set[name] = struct{}{}
	}
	return set, nil
}

// CheckServiceVolumeMounts verifies that every named mount references a
// declared volume and that no service mounts two volumes on the same path.
func CheckServiceVolumeMounts(services map[string]models.ServiceSpec, declared map[string]struct{}) error {
	// Stable iteration (nicer error messages)
	keys := make([]string, 0, len(services))
	for k := range services {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, svcKey := range keys {
		svc := services[svcKey]
		seenMountPath := map[string]struct{}{}

		for _, m := range svc.Volumes {
			if _, ok := seenMountPath[m.Target]; ok {
				return fmt.Errorf("service %q has duplicate volume mount path %q", svcKey, m.Target)
			}
			seenMountPath[m.Target] = struct{}{}

			if _, ok := declared[m.Source]; !ok {
				return fmt.Errorf("service %q mounts volume %q, but %q is not declared in the volumes block", svcKey, m.Source, m.Source)
			}
		}
	}

	return nil
}

// CheckConnectionStrings inspects URL-shaped build args and returns a
// warning for each one whose host is neither a declared service name nor
// "localhost". A connection string baked into an image should address its
// database by service name, or it will break the moment the container's IP
// changes.
func CheckConnectionStrings(m *models.Manifest) []string {
	var warnings []string

	keys := make([]string, 0, len(m.Services))
	for k := range m.Services {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, svcKey := range keys {
		svc := m.Services[svcKey]
		if svc.Build == nil {
			continue
		}

		argNames := make([]string, 0, len(svc.Build.Args))
		for name := range svc.Build.Args {
			argNames = append(argNames, name)
		}
		sort.Strings(argNames)

		for _, name := range argNames {
			cs, err := models.ParseConnectionString(svc.Build.Args[name])
			if err != nil {
				// Not every build arg is a connection string.
				continue
			}
			if cs.Host == "localhost" || cs.Host == "127.0.0.1" {
				warnings = append(warnings, fmt.Sprintf(
					"service %q build arg %s addresses %s, which resolves to the container itself, not the host",
					svcKey, name, cs.Host))
				continue
			}
			if _, ok := m.Services[cs.Host]; !ok {
				warnings = append(warnings, fmt.Sprintf(
					"service %q build arg %s references host %q, which is not a declared service name",
					svcKey, name, cs.Host))
			}
		}
	}

	return warnings
}
