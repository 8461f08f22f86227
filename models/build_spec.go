package models

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// BuildSpec points a service at a build recipe instead of a prebuilt image.
// YAML accepts the string shorthand ("build: .") and the mapping form.
type BuildSpec struct {
	// Directory sent to the engine as the build context. Defaults to ".".
	Context string `yaml:"context,omitempty"`

	// Recipe path relative to Context. Defaults to "Dockerfile".
	Dockerfile string `yaml:"dockerfile,omitempty"`

	// Build-time arguments, injected into the build only. A value baked
	// into the image this way is immutable for the artifact's lifetime;
	// rotating it requires a rebuild, not a restart.
	Args map[string]string `yaml:"args,omitempty"`
}

func (b *BuildSpec) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var dir string
		if err := node.Decode(&dir); err != nil {
			return err
		}
		*b = BuildSpec{Context: dir}
		b.applyDefaults()
		return nil
	}

	// Alias to avoid recursing back into this method.
	type plain BuildSpec
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*b = BuildSpec(p)
	b.applyDefaults()
	return nil
}

func (b *BuildSpec) applyDefaults() {
	if b.Context == "" {
		b.Context = "."
	}
	if b.Dockerfile == "" {
		b.Dockerfile = "Dockerfile"
	}
}

// Validate rejects the shapes the engine would fail on much later.
func (b *BuildSpec) Validate() error {
	if b.Context == "" {
		return fmt.Errorf("build context is empty")
	}
	if b.Dockerfile == "" {
		return fmt.Errorf("build dockerfile is empty")
	}
	for k := range b.Args {
		if k == "" {
			return fmt.Errorf("build args contain an empty key")
		}
	}
	return nil
}
