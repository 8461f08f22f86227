package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConnectionString(t *testing.T) {
	t.Parallel()

	c, err := ParseConnectionString("postgres://shop:secret@db:5432/orders")
	require.NoError(t, err)
	assert.Equal(t, ConnectionString{
		Scheme:   "postgres",
		User:     "shop",
		Password: "secret",
		Host:     "db",
		Port:     5432,
		Database: "orders",
	}, c)
}

func TestParseConnectionStringErrors(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{
		"db:5432",
		"postgres://db",
		"postgres://shop@db/orders",
	} {
		_, err := ParseConnectionString(raw)
		assert.Error(t, err, raw)
	}
}

func TestConnectionStringRoundTrip(t *testing.T) {
	t.Parallel()

	raw := "postgres://shop:secret@db:5432/orders"
	c, err := ParseConnectionString(raw)
	require.NoError(t, err)
	assert.Equal(t, raw, c.String())
}
