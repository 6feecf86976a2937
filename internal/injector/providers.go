package injector

import (
	"github.com/google/wire"

	"github.com/zeusync/bodysync/internal/config"
	"github.com/zeusync/bodysync/internal/core/engine"
	"github.com/zeusync/bodysync/internal/core/engine/box2d"
	"github.com/zeusync/bodysync/internal/core/events"
	"github.com/zeusync/bodysync/internal/core/observability/log"
	"github.com/zeusync/bodysync/internal/core/simulation"
	"github.com/zeusync/bodysync/internal/server"
)

// ServerSet builds an authoritative server from a loaded server file.
var ServerSet = wire.NewSet(
	ProvideLogger,
	wire.Bind(new(log.Log), new(*log.Logger)),
	ProvideWorld,
	events.NewBus,
	ProvideSimulation,
	ProvideServer,
)

// ProvideLogger builds the process logger; its cleanup flushes buffered entries.
func ProvideLogger(cfg config.Server) (*log.Logger, func()) {
	logger := log.NewWithConfig(cfg.Log)
	return logger, func() { _ = logger.Sync() }
}

// ProvideWorld is a Box2D world without gravity; kinds are top-down bodies.
func ProvideWorld() engine.World {
	return box2d.NewWorld(engine.Vec2{})
}

func ProvideSimulation(world engine.World, cfg config.Server, logger log.Log, bus events.Bus) (*simulation.Simulation, error) {
	return simulation.New(world, cfg.Simulation, simulation.WithLogger(logger), simulation.WithBus(bus))
}

// ProvideServer returns the server and a cleanup closing it.
func ProvideServer(sim *simulation.Simulation, bus events.Bus, cfg config.Server, logger log.Log) (*server.Server, func(), error) {
	srv, err := server.New(sim, bus, cfg.Server, server.WithLogger(logger))
	if err != nil {
		return nil, nil, err
	}
	return srv, func() { _ = srv.Close() }, nil
}
