package platforms

import (
	"context"

	"github.com/stackup-dev/stackup/models"
)

// Platform brings a manifest's topology up and down against a concrete
// container runtime.
type Platform interface {
	Up(ctx context.Context, manifest *models.Manifest, opts UpOptions) error
	Build(ctx context.Context, manifest *models.Manifest) error
	Down(ctx context.Context, project string, opts DownOptions) error

	// CheckManifest validates the manifest without changing any runtime
	// state.
	CheckManifest(ctx context.Context, manifest *models.Manifest) error

	// RemoveVolumes is the explicit destruction path for named volume
	// data; nothing else deletes it.
	RemoveVolumes(ctx context.Context, project string, volumes map[string]models.VolumeSpec, names []string) error
}

type UpOptions struct {
	// Skip image builds and start from whatever images are present.
	NoBuild bool

	// Follow container output after bring-up until the context is
	// cancelled.
	Attach bool
}

type DownOptions struct {
	// Named volumes survive teardown unless removal is explicitly
	// requested.
	RemoveVolumes bool
}
