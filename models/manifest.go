package models

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Manifest is the top-level deployment descriptor: a set of named services,
// the named volumes they may mount, and a project name scoping every
// resource created from it.
type Manifest struct {
	Name     string                 `yaml:"name,omitempty"`
	Services map[string]ServiceSpec `yaml:"services"`
	Volumes  map[string]VolumeSpec  `yaml:"volumes,omitempty"`
}

// VolumeSpec is a top-level named volume declaration. The empty form
// ("pgdata:") is the common case; External marks a volume whose lifecycle
// is managed outside this project.
type VolumeSpec struct {
	External bool `yaml:"external,omitempty"`
}

// LoadManifest reads and decodes a manifest file. Unknown fields are
// rejected so typos surface as load errors instead of silently ignored
// configuration. A missing project name defaults to the manifest's
// directory name.
func LoadManifest(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest %q: %w", path, err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)

	var m Manifest
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("parse manifest %q: %w", path, err)
	}

	if m.Name == "" {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("resolve manifest path %q: %w", path, err)
		}
		m.Name = projectNameFromDir(filepath.Base(filepath.Dir(abs)))
	}

	if len(m.Services) == 0 {
		return nil, fmt.Errorf("manifest %q declares no services", path)
	}

	// Build args may reference the caller's environment (${VAR} or $VAR).
	// The expansion happens once at load time; whatever value ends up in the
	// image is frozen there until the next build.
	for name, svc := range m.Services {
		if svc.Build == nil {
			continue
		}
		for k, v := range svc.Build.Args {
			svc.Build.Args[k] = os.Expand(v, os.Getenv)
		}
		m.Services[name] = svc
	}

	return &m, nil
}

// DependencyMap flattens the manifest into service -> dependency names,
// the shape the topology graph consumes.
func (m *Manifest) DependencyMap() map[string][]string {
	deps := make(map[string][]string, len(m.Services))
	for name, svc := range m.Services {
		deps[name] = append([]string(nil), svc.DependsOn...)
	}
	return deps
}

func projectNameFromDir(dir string) string {
	name := strings.ToLower(strings.TrimSpace(dir))
	name = strings.ReplaceAll(name, " ", "-")
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "default"
	}
	return name
}
