package recipe

import (
	"fmt"
	"sort"
	"strings"
)

// render writes the recipe back out as canonical Dockerfile text. The
// output is stable: maps are emitted in sorted key order, so an unchanged
// recipe always renders to byte-identical text.
func (r *Recipe) render() string {
	var sb strings.Builder

	for _, name := range sortedKeys(r.GlobalArgs) {
		writeArg(&sb, name, r.GlobalArgs[name])
	}
	if len(r.GlobalArgs) > 0 {
		sb.WriteString("\n")
	}

	for i, stage := range r.Stages {
		if i > 0 {
			sb.WriteString("\n")
		}

		if stage.Name != "" {
			fmt.Fprintf(&sb, "FROM %s AS %s\n", stage.From, stage.Name)
		} else {
			fmt.Fprintf(&sb, "FROM %s\n", stage.From)
		}

		for _, name := range sortedKeys(stage.Args) {
			writeArg(&sb, name, stage.Args[name])
		}
		for _, name := range sortedKeys(stage.Env) {
			fmt.Fprintf(&sb, "ENV %s=%s\n", name, stage.Env[name])
		}
		if stage.Workdir != "" {
			fmt.Fprintf(&sb, "WORKDIR %s\n", stage.Workdir)
		}
		for _, cp := range stage.Copies {
			sb.WriteString("COPY ")
			if cp.From != "" {
				fmt.Fprintf(&sb, "--from=%s ", cp.From)
			}
			sb.WriteString(strings.Join(cp.Sources, " "))
			sb.WriteString(" " + cp.Dest + "\n")
		}
		for _, run := range stage.Runs {
			fmt.Fprintf(&sb, "RUN %s\n", run.render())
		}
		if len(stage.Expose) > 0 {
			fmt.Fprintf(&sb, "EXPOSE %s\n", strings.Join(stage.Expose, " "))
		}
		if stage.Entrypoint != nil {
			fmt.Fprintf(&sb, "ENTRYPOINT %s\n", stage.Entrypoint.render())
		}
		if stage.Cmd != nil {
			fmt.Fprintf(&sb, "CMD %s\n", stage.Cmd.render())
		}
	}

	return sb.String()
}

func (c Command) render() string {
	if !c.JSON {
		return strings.Join(c.Args, " ")
	}
	quoted := make([]string, len(c.Args))
	for i, a := range c.Args {
		quoted[i] = fmt.Sprintf("%q", a)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

func writeArg(sb *strings.Builder, name, def string) {
	if def != "" {
		fmt.Fprintf(sb, "ARG %s=%s\n", name, def)
	} else {
		fmt.Fprintf(sb, "ARG %s\n", name)
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
