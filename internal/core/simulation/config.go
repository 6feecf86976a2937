package simulation

import (
	"github.com/zeusync/bodysync/internal/core/events"
	"github.com/zeusync/bodysync/internal/core/observability/log"
	"github.com/zeusync/bodysync/internal/core/registry"
	"github.com/zeusync/bodysync/internal/core/template"
)

// Config holds the settings a simulation is built from.
type Config struct {
	// TickRate is the number of steps per simulated second.
	TickRate           float64 `yaml:"tickRate" json:"tickRate"`
	VelocityIterations int     `yaml:"velocityIterations" json:"velocityIterations"`
	PositionIterations int     `yaml:"positionIterations" json:"positionIterations"`
	// Protocol is the ordered field list projected into and restored from state records.
	Protocol []string `yaml:"protocol" json:"protocol"`
	// Kinds are defined in order at construction.
	Kinds []Kind `yaml:"kinds" json:"kinds"`
}

func DefaultConfig() Config {
	return Config{
		TickRate:           60,
		VelocityIterations: 8,
		PositionIterations: 3,
		Protocol:           DefaultProtocol(),
	}
}

// DefaultProtocol is x, y, vx, vy, ang, rot.
func DefaultProtocol() []string {
	return []string{
		template.FieldX, template.FieldY,
		template.FieldVX, template.FieldVY,
		template.FieldAng, template.FieldRot,
	}
}

// Kind is one catalog entry. Exactly one of Structure and Template is expected;
// Structure inherits from Base (the default kind when empty), Template defines a
// multi-structure kind from scratch.
type Kind struct {
	Name      string                  `yaml:"name" json:"name"`
	Base      string                  `yaml:"base,omitempty" json:"base,omitempty"`
	Structure *template.StructureSpec `yaml:"structure,omitempty" json:"structure,omitempty"`
	Template  *template.TemplateSpec  `yaml:"template,omitempty" json:"template,omitempty"`
}

type options struct {
	logger     log.Log
	bus        events.Bus
	transforms Transforms
	namespaces []namedPredicate
}

type namedPredicate struct {
	name string
	pred registry.Predicate
}

type Option func(*options)

func WithLogger(logger log.Log) Option {
	return func(o *options) { o.logger = logger }
}

// WithBus publishes lifecycle events to bus.
func WithBus(bus events.Bus) Option {
	return func(o *options) { o.bus = bus }
}

// WithTransforms replaces the transform slots that are set in t; nil slots keep
// their defaults.
func WithTransforms(t Transforms) Option {
	return func(o *options) {
		if t.Write != nil {
			o.transforms.Write = t.Write
		}
		if t.Read != nil {
			o.transforms.Read = t.Read
		}
		if t.Serialize != nil {
			o.transforms.Serialize = t.Serialize
		}
		if t.Deserialize != nil {
			o.transforms.Deserialize = t.Deserialize
		}
	}
}

// WithNamespace registers an extra namespace before any kind is defined.
func WithNamespace(name string, pred registry.Predicate) Option {
	return func(o *options) { o.namespaces = append(o.namespaces, namedPredicate{name, pred}) }
}
