package models

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// PortBinding is one fixed (host-port, container-port) pair. YAML uses the
// compose shorthand:
//
//	"8080:8080"
//	"127.0.0.1:5432:5432"
//	"8080:8080/udp"
type PortBinding struct {
	HostIP        string
	HostPort      uint16
	ContainerPort uint16
	Protocol      string // tcp (default) or udp
}

func (b *PortBinding) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return fmt.Errorf("port binding must be a \"host:container\" string (line %d)", node.Line)
	}
	parsed, err := ParsePortBinding(raw)
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// ParsePortBinding parses the "[ip:]host:container[/proto]" shorthand.
// Both ports are required: this layer publishes fixed mappings only, no
// ephemeral host ports.
func ParsePortBinding(raw string) (PortBinding, error) {
	b := PortBinding{Protocol: "tcp"}

	spec := strings.TrimSpace(raw)
	if spec == "" {
		return b, fmt.Errorf("port binding is empty")
	}

	if base, proto, found := strings.Cut(spec, "/"); found {
		switch proto {
		case "tcp", "udp":
			b.Protocol = proto
		default:
			return b, fmt.Errorf("port binding %q: unsupported protocol %q", raw, proto)
		}
		spec = base
	}

	parts := strings.Split(spec, ":")
	switch len(parts) {
	case 2:
		// host:container
	case 3:
		b.HostIP = parts[0]
		parts = parts[1:]
	default:
		return b, fmt.Errorf("port binding %q: want \"[ip:]host:container[/proto]\"", raw)
	}

	hostPort, err := parsePort(parts[0])
	if err != nil {
		return b, fmt.Errorf("port binding %q: host port: %w", raw, err)
	}
	containerPort, err := parsePort(parts[1])
	if err != nil {
		return b, fmt.Errorf("port binding %q: container port: %w", raw, err)
	}

	b.HostPort = hostPort
	b.ContainerPort = containerPort
	return b, nil
}

func (b PortBinding) String() string {
	s := fmt.Sprintf("%d:%d/%s", b.HostPort, b.ContainerPort, b.Protocol)
	if b.HostIP != "" {
		s = b.HostIP + ":" + s
	}
	return s
}

func parsePort(s string) (uint16, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid port %q", s)
	}
	if n == 0 {
		return 0, fmt.Errorf("port must be nonzero")
	}
	return uint16(n), nil
}
