package recipe

import (
	"fmt"
	"io"
	"strings"

	"github.com/moby/buildkit/frontend/dockerfile/parser"
)

// Parse reads a Dockerfile into a Recipe using buildkit's dockerfile
// parser, then validates it. Malformed input and dangling stage references
// fail here, before anything is handed to the engine.
func Parse(r io.Reader) (*Recipe, error) {
	res, err := parser.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse dockerfile: %w", err)
	}

	rec := &Recipe{}
	var cur *Stage

	for _, node := range res.AST.Children {
		inst := strings.ToUpper(node.Value)

		if inst != "FROM" && inst != "ARG" && cur == nil {
			return nil, fmt.Errorf("line %d: %s before any FROM", node.StartLine, inst)
		}

		switch inst {
		case "FROM":
			stage, err := parseFrom(node)
			if err != nil {
				return nil, err
			}
			rec.Stages = append(rec.Stages, stage)
			cur = &rec.Stages[len(rec.Stages)-1]

		case "ARG":
			args := map[string]string{}
			for _, tok := range argTokens(node) {
				name, def, _ := strings.Cut(tok, "=")
				if name == "" {
					return nil, fmt.Errorf("line %d: ARG with an empty name", node.StartLine)
				}
				args[name] = def
			}
			if cur == nil {
				if rec.GlobalArgs == nil {
					rec.GlobalArgs = map[string]string{}
				}
				for k, v := range args {
					rec.GlobalArgs[k] = v
				}
			} else {
				if cur.Args == nil {
					cur.Args = map[string]string{}
				}
				for k, v := range args {
					cur.Args[k] = v
				}
			}

		case "ENV":
			// The parser emits ENV as (key, value, separator) triples.
			toks := argTokens(node)
			if len(toks)%3 != 0 {
				return nil, fmt.Errorf("line %d: malformed ENV", node.StartLine)
			}
			if cur.Env == nil {
				cur.Env = map[string]string{}
			}
			for i := 0; i < len(toks); i += 3 {
				cur.Env[toks[i]] = toks[i+1]
			}

		case "WORKDIR":
			toks := argTokens(node)
			if len(toks) != 1 {
				return nil, fmt.Errorf("line %d: WORKDIR wants exactly one path", node.StartLine)
			}
			cur.Workdir = toks[0]

		case "COPY", "ADD":
			cp, err := parseCopy(node)
			if err != nil {
				return nil, err
			}
			cur.Copies = append(cur.Copies, cp)

		case "RUN":
			cur.Runs = append(cur.Runs, parseCommand(node))

		case "EXPOSE":
			cur.Expose = append(cur.Expose, argTokens(node)...)

		case "ENTRYPOINT":
			cmd := parseCommand(node)
			cur.Entrypoint = &cmd

		case "CMD":
			cmd := parseCommand(node)
			cur.Cmd = &cmd

		case "LABEL", "USER", "VOLUME", "STOPSIGNAL", "HEALTHCHECK", "SHELL", "ONBUILD":
			return nil, fmt.Errorf("line %d: %s is not supported by this recipe model", node.StartLine, inst)

		default:
			return nil, fmt.Errorf("line %d: unknown instruction %s", node.StartLine, node.Value)
		}
	}

	if err := rec.Validate(); err != nil {
		return nil, err
	}
	return rec, nil
}

func parseFrom(node *parser.Node) (Stage, error) {
	toks := argTokens(node)
	switch len(toks) {
	case 1:
		return Stage{From: toks[0]}, nil
	case 3:
		if !strings.EqualFold(toks[1], "AS") {
			return Stage{}, fmt.Errorf("line %d: malformed FROM, want \"FROM image [AS name]\"", node.StartLine)
		}
		return Stage{From: toks[0], Name: toks[2]}, nil
	default:
		return Stage{}, fmt.Errorf("line %d: malformed FROM, want \"FROM image [AS name]\"", node.StartLine)
	}
}

func parseCopy(node *parser.Node) (Copy, error) {
	cp := Copy{}
	for _, flag := range node.Flags {
		if v, ok := strings.CutPrefix(flag, "--from="); ok {
			cp.From = v
		}
		// Other flags (--chown, --chmod) are passed through untouched by
		// Render via the sources, so they are rejected instead.
		if !strings.HasPrefix(flag, "--from=") {
			return cp, fmt.Errorf("line %d: unsupported %s flag %q", node.StartLine, strings.ToUpper(node.Value), flag)
		}
	}

	toks := argTokens(node)
	if len(toks) < 2 {
		return cp, fmt.Errorf("line %d: %s wants at least a source and a destination", node.StartLine, strings.ToUpper(node.Value))
	}
	cp.Sources = toks[:len(toks)-1]
	cp.Dest = toks[len(toks)-1]
	return cp, nil
}

func parseCommand(node *parser.Node) Command {
	return Command{
		Args: argTokens(node),
		JSON: node.Attributes["json"],
	}
}

func argTokens(node *parser.Node) []string {
	var out []string
	for n := node.Next; n != nil; n = n.Next {
		out = append(out, n.Value)
	}
	return out
}
