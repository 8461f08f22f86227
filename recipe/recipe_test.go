package recipe

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoStageDockerfile = `ARG DATABASE_URL
FROM rust:1.78 AS builder
ARG DATABASE_URL
ENV DATABASE_URL=$DATABASE_URL
WORKDIR /app
COPY . .
RUN cargo build --release

FROM debian:bookworm-slim
WORKDIR /usr/local/bin
COPY --from=builder /app/target/release/backend .
CMD ["./backend"]
`

func TestParseTwoStageRecipe(t *testing.T) {
	t.Parallel()

	rec, err := Parse(strings.NewReader(twoStageDockerfile))
	require.NoError(t, err)

	require.Len(t, rec.Stages, 2)
	assert.Equal(t, map[string]string{"DATABASE_URL": ""}, rec.GlobalArgs)

	compile := rec.Stages[0]
	assert.Equal(t, "builder", compile.Name)
	assert.Equal(t, "rust:1.78", compile.From)
	assert.Equal(t, map[string]string{"DATABASE_URL": ""}, compile.Args)
	assert.Equal(t, map[string]string{"DATABASE_URL": "$DATABASE_URL"}, compile.Env)
	assert.Equal(t, "/app", compile.Workdir)
	require.Len(t, compile.Copies, 1)
	assert.Empty(t, compile.Copies[0].From)
	require.Len(t, compile.Runs, 1)
	assert.Equal(t, []string{"cargo build --release"}, compile.Runs[0].Args)
	assert.False(t, compile.Runs[0].JSON)

	runtime := rec.FinalStage()
	require.NotNil(t, runtime)
	assert.Equal(t, "debian:bookworm-slim", runtime.From)
	require.Len(t, runtime.Copies, 1)
	assert.Equal(t, "builder", runtime.Copies[0].From)
	assert.Equal(t, []string{"/app/target/release/backend"}, runtime.Copies[0].Sources)
	require.NotNil(t, runtime.Cmd)
	assert.True(t, runtime.Cmd.JSON)
	assert.Equal(t, []string{"./backend"}, runtime.Cmd.Args)
}

func TestParseRejectsDanglingStageReference(t *testing.T) {
	t.Parallel()

	_, err := Parse(strings.NewReader(`FROM alpine
COPY --from=builder /bin/app /bin/app
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `--from="builder"`)
}

func TestParseRejectsForwardStageReference(t *testing.T) {
	t.Parallel()

	_, err := Parse(strings.NewReader(`FROM alpine AS first
COPY --from=second /x /x

FROM alpine AS second
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "earlier stage")
}

func TestParseRejectsDuplicateStageNames(t *testing.T) {
	t.Parallel()

	_, err := Parse(strings.NewReader(`FROM alpine AS build
FROM alpine AS build
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate stage name")
}

func TestParseRejectsInstructionBeforeFrom(t *testing.T) {
	t.Parallel()

	_, err := Parse(strings.NewReader("WORKDIR /app\nFROM alpine\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "before any FROM")
}

func TestParseMultiPairEnv(t *testing.T) {
	t.Parallel()

	rec, err := Parse(strings.NewReader("FROM alpine\nENV A=1 B=2\n"))
	require.NoError(t, err)
	require.Len(t, rec.Stages, 1)
	assert.Equal(t, map[string]string{"A": "1", "B": "2"}, rec.Stages[0].Env)
}

func TestParseRejectsEmptyRecipe(t *testing.T) {
	t.Parallel()

	_, err := Parse(strings.NewReader("# nothing here\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no instructions")
}

func TestParseRejectsRecipeWithoutStages(t *testing.T) {
	t.Parallel()

	_, err := Parse(strings.NewReader("ARG ONLY\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no stages")
}

func TestStageIndexResolvesNamesAndNumbers(t *testing.T) {
	t.Parallel()

	rec, err := Parse(strings.NewReader(twoStageDockerfile))
	require.NoError(t, err)

	assert.Equal(t, 0, rec.StageIndex("builder"))
	assert.Equal(t, 0, rec.StageIndex("0"))
	assert.Equal(t, 1, rec.StageIndex("1"))
	assert.Equal(t, -1, rec.StageIndex("missing"))
	assert.Equal(t, -1, rec.StageIndex("7"))
}

func TestValidateRejectsEmptyBaseImage(t *testing.T) {
	t.Parallel()

	rec := &Recipe{Stages: []Stage{{From: "  "}}}
	err := rec.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty base image")
}
