package recipe

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderIsStable(t *testing.T) {
	t.Parallel()

	rec, err := Parse(strings.NewReader(twoStageDockerfile))
	require.NoError(t, err)

	first := rec.render()
	second := rec.render()
	assert.Equal(t, first, second)
}

func TestRenderRoundTrips(t *testing.T) {
	t.Parallel()

	rec, err := Parse(strings.NewReader(twoStageDockerfile))
	require.NoError(t, err)

	rendered := rec.render()
	reparsed, err := Parse(strings.NewReader(rendered))
	require.NoError(t, err)

	// Canonical form is a fixed point: render(parse(render(r))) == render(r).
	assert.Equal(t, rendered, reparsed.render())
}

func TestRenderKeepsStageReference(t *testing.T) {
	t.Parallel()

	rec, err := Parse(strings.NewReader(twoStageDockerfile))
	require.NoError(t, err)

	rendered := rec.render()
	assert.Contains(t, rendered, "FROM rust:1.78 AS builder")
	assert.Contains(t, rendered, "COPY --from=builder /app/target/release/backend .")
	assert.Contains(t, rendered, `CMD ["./backend"]`)
}

func TestRenderExecFormQuoting(t *testing.T) {
	t.Parallel()

	cmd := Command{Args: []string{"/bin/server", "--port", "8080"}, JSON: true}
	assert.Equal(t, `["/bin/server", "--port", "8080"]`, cmd.render())

	shell := Command{Args: []string{"cargo build --release"}}
	assert.Equal(t, "cargo build --release", shell.render())
}
