package models

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

type RestartPolicy string

const (
	RestartPolicyNone      RestartPolicy = "no"
	RestartPolicyAlways    RestartPolicy = "always"
	RestartPolicyOnFailure RestartPolicy = "on-failure"
)

// ServiceSpec is one declared, independently startable unit: either a
// prebuilt image or a build recipe, plus its network exposure, startup
// dependencies and volume bindings.
type ServiceSpec struct {
	// Exactly one of Image / Build is required. When both are set, Build
	// wins and Image names the tag applied to the built image.
	Image string     `yaml:"image,omitempty"`
	Build *BuildSpec `yaml:"build,omitempty"`

	// Container name override; defaults to "{project}-{service}".
	ContainerName string `yaml:"container_name,omitempty"`

	// Fixed (host, container) port pairs.
	Ports []PortBinding `yaml:"ports,omitempty"`

	// Keys reference other services in the same manifest.
	DependsOn DependsOn `yaml:"depends_on,omitempty"`

	Environment Environment `yaml:"environment,omitempty"`

	// Named volume mounts (string = "name:/mount/path").
	Volumes []VolumeMount `yaml:"volumes,omitempty"`

	Restart RestartPolicy `yaml:"restart,omitempty"`
}

// DependsOn is the service's startup dependency set. YAML accepts both the
// short list form and the compose long form:
//
//	depends_on: [db]
//	depends_on:
//	  db:
//	    condition: service_started
//
// Only service_started is supported; this layer orders process launches and
// never probes a dependency's internal readiness, so accepting
// service_healthy would promise a gate that does not exist.
type DependsOn []string

func (d *DependsOn) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var names []string
		if err := node.Decode(&names); err != nil {
			return err
		}
		*d = names
		return nil

	case yaml.MappingNode:
		var long map[string]*dependsOnCondition
		if err := node.Decode(&long); err != nil {
			return err
		}
		names := make([]string, 0, len(long))
		for name, cond := range long {
			if cond != nil && cond.Condition != "" && cond.Condition != "service_started" {
				return fmt.Errorf("depends_on %q: condition %q is not supported (only service_started)", name, cond.Condition)
			}
			names = append(names, name)
		}
		sort.Strings(names)
		*d = names
		return nil

	default:
		return fmt.Errorf("depends_on must be a list or a mapping (line %d)", node.Line)
	}
}

type dependsOnCondition struct {
	Condition string `yaml:"condition"`
}

// Environment decodes both the mapping form and the "KEY=VAL" list form.
// A bare "KEY" list entry inherits the value from the caller's environment.
type Environment map[string]string

func (e *Environment) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.MappingNode:
		var m map[string]string
		if err := node.Decode(&m); err != nil {
			return err
		}
		*e = m
		return nil

	case yaml.SequenceNode:
		var entries []string
		if err := node.Decode(&entries); err != nil {
			return err
		}
		m := make(map[string]string, len(entries))
		for _, entry := range entries {
			key, val, found := strings.Cut(entry, "=")
			key = strings.TrimSpace(key)
			if key == "" {
				return fmt.Errorf("environment entry %q has an empty key", entry)
			}
			if !found {
				val = os.Getenv(key)
			}
			m[key] = val
		}
		*e = m
		return nil

	default:
		return fmt.Errorf("environment must be a mapping or a list (line %d)", node.Line)
	}
}

// List renders the environment as sorted KEY=VAL pairs, the shape the
// container config wants. Sorted so container creation is deterministic.
func (e Environment) List() []string {
	out := make([]string, 0, len(e))
	for k, v := range e {
		out = append(out, fmt.Sprintf("%s=%s", k, v))
	}
	sort.Strings(out)
	return out
}
