package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/stackup-dev/stackup/ctxlog"
	platforms "github.com/stackup-dev/stackup/interfaces"
	"github.com/stackup-dev/stackup/models"
	"github.com/stackup-dev/stackup/services/docker"
	"github.com/urfave/cli/v2"
)

const defaultManifestPath = "stackup.yaml"

func selectPlatform(platform string) (platforms.Platform, error) {
	switch platform {
	case "docker":
		return docker.NewDockerPlatform()
	// case "podman":
	//     return podman.New(...), nil
	default:
		return nil, fmt.Errorf("%q is not a valid platform", platform)
	}
}

func loadManifest(c *cli.Context) (*models.Manifest, error) {
	return models.LoadManifest(c.String("file"))
}

func upCommand() *cli.Command {
	return &cli.Command{
		Name:  "up",
		Usage: "build images, create volumes and start services in dependency order",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "no-build", Usage: "start from existing images without building"},
			&cli.BoolFlag{Name: "attach", Usage: "follow container output after bring-up"},
		},
		Action: func(c *cli.Context) error {
			manifest, err := loadManifest(c)
			if err != nil {
				return err
			}
			p, err := selectPlatform(c.String("platform"))
			if err != nil {
				return err
			}
			return p.Up(c.Context, manifest, platforms.UpOptions{
				NoBuild: c.Bool("no-build"),
				Attach:  c.Bool("attach"),
			})
		},
	}
}

func buildCommand() *cli.Command {
	return &cli.Command{
		Name:  "build",
		Usage: "build service images without starting anything",
		Action: func(c *cli.Context) error {
			manifest, err := loadManifest(c)
			if err != nil {
				return err
			}
			p, err := selectPlatform(c.String("platform"))
			if err != nil {
				return err
			}
			return p.Build(c.Context, manifest)
		},
	}
}

func downCommand() *cli.Command {
	return &cli.Command{
		Name:  "down",
		Usage: "stop and remove the project's containers and network",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "volumes", Usage: "also remove the project's named volumes"},
		},
		Action: func(c *cli.Context) error {
			manifest, err := loadManifest(c)
			if err != nil {
				return err
			}
			p, err := selectPlatform(c.String("platform"))
			if err != nil {
				return err
			}
			return p.Down(c.Context, manifest.Name, platforms.DownOptions{
				RemoveVolumes: c.Bool("volumes"),
			})
		},
	}
}

func validateCommand() *cli.Command {
	return &cli.Command{
		Name:  "validate",
		Usage: "check the manifest without touching the engine",
		Action: func(c *cli.Context) error {
			manifest, err := loadManifest(c)
			if err != nil {
				return err
			}
			p, err := selectPlatform(c.String("platform"))
			if err != nil {
				return err
			}
			if err := p.CheckManifest(c.Context, manifest); err != nil {
				return err
			}
			ctxlog.FromContext(c.Context).Info("manifest is valid",
				"project", manifest.Name,
				"services", len(manifest.Services),
				"volumes", len(manifest.Volumes),
			)
			return nil
		},
	}
}

func volumeCommand() *cli.Command {
	return &cli.Command{
		Name:  "volume",
		Usage: "manage named volumes",
		Subcommands: []*cli.Command{
			{
				Name:      "rm",
				Usage:     "explicitly destroy named volumes and their data",
				ArgsUsage: "<volume>...",
				Action: func(c *cli.Context) error {
					if c.NArg() == 0 {
						return fmt.Errorf("volume rm: at least one volume name is required")
					}
					manifest, err := loadManifest(c)
					if err != nil {
						return err
					}
					p, err := selectPlatform(c.String("platform"))
					if err != nil {
						return err
					}
					return p.RemoveVolumes(c.Context, manifest.Name, manifest.Volumes, c.Args().Slice())
				},
			},
		},
	}
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	ctx = ctxlog.WithLogger(ctx, logger)

	app := &cli.App{
		Name:  "stackup",
		Usage: "build images and bring service topologies up in dependency order",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "file",
				Aliases: []string{"f"},
				Value:   defaultManifestPath,
				Usage:   "manifest path",
			},
			&cli.StringFlag{
				Name:  "platform",
				Value: "docker",
				Usage: "container platform",
			},
		},
		Commands: []*cli.Command{
			upCommand(),
			buildCommand(),
			downCommand(),
			validateCommand(),
			volumeCommand(),
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		logger.Error("stackup failed", "err", err)
		os.Exit(1)
	}
}
