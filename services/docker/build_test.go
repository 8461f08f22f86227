package docker

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamBuildOutput(t *testing.T) {
	t.Parallel()

	src := strings.Join([]string{
		`{"stream":"Step 1/4 : FROM rust:1.78 AS builder\n"}`,
		`{"stream":" ---> a1b2c3\n"}`,
		`{"status":"Downloading","progressDetail":{"current":10,"total":100}}`,
		`{"stream":"Successfully tagged shop-app:latest\n"}`,
	}, "\n")

	var out bytes.Buffer
	require.NoError(t, streamBuildOutput(strings.NewReader(src), &out))

	assert.Contains(t, out.String(), "Step 1/4")
	assert.Contains(t, out.String(), "Successfully tagged shop-app:latest")
	// Status-only messages carry no stream text.
	assert.NotContains(t, out.String(), "Downloading")
}

func TestStreamBuildOutputSurfacesEngineError(t *testing.T) {
	t.Parallel()

	src := strings.Join([]string{
		`{"stream":"Step 3/4 : RUN cargo build --release\n"}`,
		`{"errorDetail":{"message":"executor failed running"},"error":"executor failed running"}`,
	}, "\n")

	var out bytes.Buffer
	err := streamBuildOutput(strings.NewReader(src), &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "executor failed running")
}

func TestStreamBuildOutputRejectsGarbage(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	err := streamBuildOutput(strings.NewReader("not json"), &out)
	require.Error(t, err)
}
