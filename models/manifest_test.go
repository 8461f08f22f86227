package models

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "stackup.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadManifest(t *testing.T) {
	t.Parallel()

	path := writeManifest(t, `
name: shop
services:
  db:
    image: postgres:16
    container_name: shop-db
    environment:
      POSTGRES_USER: shop
      POSTGRES_PASSWORD: secret
      POSTGRES_DB: orders
    ports:
      - "5432:5432"
    volumes:
      - pgdata:/var/lib/postgresql/data
    restart: always
  app:
    build:
      context: ./backend
      args:
        DATABASE_URL: postgres://shop:secret@db:5432/orders
    ports:
      - "8080:8080"
    depends_on:
      - db
volumes:
  pgdata:
`)

	m, err := LoadManifest(path)
	require.NoError(t, err)

	assert.Equal(t, "shop", m.Name)
	require.Len(t, m.Services, 2)

	db := m.Services["db"]
	assert.Equal(t, "postgres:16", db.Image)
	assert.Equal(t, "shop-db", db.ContainerName)
	assert.Equal(t, RestartPolicyAlways, db.Restart)
	require.Len(t, db.Ports, 1)
	assert.Equal(t, PortBinding{HostPort: 5432, ContainerPort: 5432, Protocol: "tcp"}, db.Ports[0])
	require.Len(t, db.Volumes, 1)
	assert.Equal(t, VolumeMount{Source: "pgdata", Target: "/var/lib/postgresql/data"}, db.Volumes[0])

	app := m.Services["app"]
	require.NotNil(t, app.Build)
	assert.Equal(t, "./backend", app.Build.Context)
	assert.Equal(t, "Dockerfile", app.Build.Dockerfile)
	assert.Equal(t, "postgres://shop:secret@db:5432/orders", app.Build.Args["DATABASE_URL"])
	assert.Equal(t, DependsOn{"db"}, app.DependsOn)

	require.Contains(t, m.Volumes, "pgdata")
	assert.False(t, m.Volumes["pgdata"].External)
}

func TestLoadManifestDefaultsProjectName(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "My Shop")
	require.NoError(t, os.Mkdir(dir, 0o755))
	path := filepath.Join(dir, "stackup.yaml")
	require.NoError(t, os.WriteFile(path, []byte("services:\n  db:\n    image: postgres:16\n"), 0o644))

	m, err := LoadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, "my-shop", m.Name)
}

func TestLoadManifestExpandsBuildArgs(t *testing.T) {
	t.Setenv("DB_PASSWORD", "hunter2")

	path := writeManifest(t, `
name: shop
services:
  app:
    build:
      context: .
      args:
        DATABASE_URL: postgres://shop:${DB_PASSWORD}@db:5432/orders
`)

	m, err := LoadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres://shop:hunter2@db:5432/orders", m.Services["app"].Build.Args["DATABASE_URL"])
}

func TestLoadManifestRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	path := writeManifest(t, `
name: shop
services:
  db:
    image: postgres:16
    imagee: typo
`)

	_, err := LoadManifest(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "imagee")
}

func TestLoadManifestRequiresServices(t *testing.T) {
	t.Parallel()

	path := writeManifest(t, "name: shop\nvolumes:\n  pgdata:\n")
	_, err := LoadManifest(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no services")
}

func TestDependencyMap(t *testing.T) {
	t.Parallel()

	m := &Manifest{
		Name: "shop",
		Services: map[string]ServiceSpec{
			"db":    {Image: "postgres:16"},
			"cache": {Image: "redis:7"},
			"app":   {Image: "shop-app", DependsOn: DependsOn{"db", "cache"}},
		},
	}

	deps := m.DependencyMap()
	assert.Equal(t, map[string][]string{
		"db":    nil,
		"cache": nil,
		"app":   {"db", "cache"},
	}, deps)
}
