package main

import (
	"context"
	"fmt"

	"github.com/philipparndt/gosection/internal/config"
	"github.com/philipparndt/gosection/pkg/geometry"
)

// configKey is a private context key used to store the loaded configuration.
type configKey struct{}

func withConfig(ctx context.Context, cfg config.Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// configFrom returns the configuration loaded by the root command.
func configFrom(ctx context.Context) config.Config {
	if cfg, ok := ctx.Value(configKey{}).(config.Config); ok {
		return cfg
	}
	return config.Default()
}

// vectorFlag converts a three element flag value into a vector
func vectorFlag(name string, values []float64) (geometry.Vector3, error) {
	if len(values) != 3 {
		return geometry.Vector3{}, fmt.Errorf("--%s needs 3 comma separated values, got %d", name, len(values))
	}
	return geometry.NewVector3(values[0], values[1], values[2]), nil
}

// planeFlag converts nx,ny,nz,d into a plane
func planeFlag(name string, values []float64) (geometry.Plane, error) {
	if len(values) != 4 {
		return geometry.Plane{}, fmt.Errorf("--%s needs nx,ny,nz,d, got %d value(s)", name, len(values))
	}
	plane := geometry.NewPlane(geometry.NewVector3(values[0], values[1], values[2]), values[3])
	if plane.IsDegenerate() {
		return geometry.Plane{}, fmt.Errorf("--%s has a zero normal", name)
	}
	return plane, nil
}
