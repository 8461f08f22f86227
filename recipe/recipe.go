// Package recipe models a multi-stage image build: an ordered sequence of
// stages, each with a base image, build arguments, a working directory,
// copy instructions (optionally sourced from a prior stage) and build
// commands. Only the final stage's filesystem reaches the runtime image;
// earlier stages exist solely to be copied from.
package recipe

import (
	"fmt"
	"strconv"
	"strings"
)

// Recipe is a parsed build recipe.
type Recipe struct {
	// Args declared before the first stage, visible to every FROM line.
	GlobalArgs map[string]string

	Stages []Stage
}

// Stage is one image-construction stage.
type Stage struct {
	// Optional stage name (FROM image AS name).
	Name string

	// Base image reference.
	From string

	// Build-time arguments with optional defaults. Injected at build time
	// only; they never leak into the runtime image's environment unless an
	// ENV captures them.
	Args map[string]string

	// Environment frozen into this stage's image config.
	Env map[string]string

	Workdir string

	Copies []Copy

	Runs []Command

	Expose []string

	Entrypoint *Command
	Cmd        *Command
}

// Copy is a single file-copy operation, sourced from the host context or,
// when From is set, from a named (or indexed) prior stage.
type Copy struct {
	From    string
	Sources []string
	Dest    string
}

// Command is a RUN/CMD/ENTRYPOINT payload. Shell form keeps the whole
// command line as a single element with JSON unset.
type Command struct {
	Args []string
	JSON bool
}

// FinalStage returns the stage whose filesystem is materialized into the
// runtime image.
func (r *Recipe) FinalStage() *Stage {
	if len(r.Stages) == 0 {
		return nil
	}
	return &r.Stages[len(r.Stages)-1]
}

// StageIndex resolves a stage reference (a name or a numeric index) to the
// stage's position, or -1 when nothing matches.
func (r *Recipe) StageIndex(ref string) int {
	for i, s := range r.Stages {
		if s.Name != "" && s.Name == ref {
			return i
		}
	}
	if n, err := strconv.Atoi(ref); err == nil && n >= 0 && n < len(r.Stages) {
		return n
	}
	return -1
}

// Validate enforces the structural invariants the engine would otherwise
// surface halfway through a build: at least one stage, non-empty base
// images, unique stage names, and copy sources that reference only prior
// stages. A dangling --from fails the recipe here, before any build work.
func (r *Recipe) Validate() error {
	if len(r.Stages) == 0 {
		return fmt.Errorf("recipe has no stages")
	}

	names := make(map[string]int, len(r.Stages))
	for i, stage := range r.Stages {
		if strings.TrimSpace(stage.From) == "" {
			return fmt.Errorf("stage %d has an empty base image", i)
		}
		if stage.Name != "" {
			if prev, ok := names[stage.Name]; ok {
				return fmt.Errorf("duplicate stage name %q (stages %d and %d)", stage.Name, prev, i)
			}
			names[stage.Name] = i
		}
	}

	for i, stage := range r.Stages {
		for _, cp := range stage.Copies {
			if len(cp.Sources) == 0 || cp.Dest == "" {
				return fmt.Errorf("stage %d: copy needs at least one source and a destination", i)
			}
			if cp.From == "" {
				continue
			}
			src := r.StageIndex(cp.From)
			if src < 0 {
				return fmt.Errorf("stage %d: copy --from=%q does not reference a declared stage", i, cp.From)
			}
			if src >= i {
				return fmt.Errorf("stage %d: copy --from=%q must reference an earlier stage", i, cp.From)
			}
		}
	}

	return nil
}
