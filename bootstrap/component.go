package bootstrap

import (
	"context"

	"github.com/skillsenselab/springkit/component"
)

// funcComponent adapts plain functions to the component lifecycle.
type funcComponent struct {
	name   string
	start  func(ctx context.Context) error
	stop   func(ctx context.Context) error
	health func(ctx context.Context) component.Health
}

func (f *funcComponent) Name() string { return f.name }

func (f *funcComponent) Start(ctx context.Context) error { return f.start(ctx) }

func (f *funcComponent) Stop(ctx context.Context) error { return f.stop(ctx) }

func (f *funcComponent) Health(ctx context.Context) component.Health { return f.health(ctx) }
