package models

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// VolumeMount attaches a named volume declared in the manifest's top-level
// volumes block to a path inside the container. YAML shorthand:
//
//	"pgdata:/var/lib/postgresql/data"
type VolumeMount struct {
	// Name of a declared volume.
	Source string

	// Absolute path inside the container.
	Target string
}

func (v *VolumeMount) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return fmt.Errorf("volume mount must be a \"name:/path\" string (line %d)", node.Line)
	}
	parsed, err := ParseVolumeMount(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// ParseVolumeMount parses the "name:/path" shorthand. Only named volumes
// are supported; host-path bind mounts are not part of this topology.
func ParseVolumeMount(raw string) (VolumeMount, error) {
	source, target, found := strings.Cut(strings.TrimSpace(raw), ":")
	if !found {
		return VolumeMount{}, fmt.Errorf("volume mount %q: want \"name:/path\"", raw)
	}

	source = strings.TrimSpace(source)
	target = strings.TrimSpace(target)

	if source == "" {
		return VolumeMount{}, fmt.Errorf("volume mount %q has an empty volume name", raw)
	}
	if strings.HasPrefix(source, "/") || strings.HasPrefix(source, ".") {
		return VolumeMount{}, fmt.Errorf("volume mount %q: host paths are not supported, use a named volume", raw)
	}
	if !strings.HasPrefix(target, "/") {
		return VolumeMount{}, fmt.Errorf("volume mount %q: mount path must be absolute", raw)
	}

	return VolumeMount{Source: source, Target: target}, nil
}

func (v VolumeMount) String() string {
	return v.Source + ":" + v.Target
}
