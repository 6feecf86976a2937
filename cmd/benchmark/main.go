// Profiling:
// go build ./cmd/benchmark
// ./benchmark -profile cpu
// go tool pprof -http=":8000" -nodefraction=0.001 ./benchmark cpu.pprof

package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/pkg/profile"

	"github.com/zeusync/bodysync/internal/core/engine"
	"github.com/zeusync/bodysync/internal/core/engine/box2d"
	"github.com/zeusync/bodysync/internal/core/engine/memory"
	"github.com/zeusync/bodysync/internal/core/registry"
	"github.com/zeusync/bodysync/internal/core/simulation"
	"github.com/zeusync/bodysync/internal/core/template"
)

func main() {
	mode := flag.String("profile", "cpu", "cpu, mem or none")
	backend := flag.String("engine", "memory", "memory or box2d")
	rounds := flag.Int("rounds", 20, "create/sync/destroy rounds")
	ticks := flag.Int("ticks", 120, "ticks per round")
	entities := flag.Int("entities", 500, "instances per round")
	flag.Parse()

	var p interface{ Stop() }
	switch *mode {
	case "cpu":
		p = profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.NoShutdownHook)
	case "mem":
		p = profile.Start(profile.MemProfileAllocs, profile.ProfilePath("."), profile.NoShutdownHook)
	}

	start := time.Now()
	bytes, err := run(*backend, *rounds, *ticks, *entities)
	if p != nil {
		p.Stop()
	}
	if err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
	elapsed := time.Since(start)
	total := *rounds * *ticks
	fmt.Printf("%d ticks x %d instances in %v (%v/tick, %d bytes broadcast)\n",
		total, *entities, elapsed, elapsed/time.Duration(max(total, 1)), bytes)
}

func world(backend string) engine.World {
	if backend == "box2d" {
		return box2d.NewWorld(engine.Vec2{})
	}
	return memory.NewWorld()
}

func newSim(backend string) (*simulation.Simulation, error) {
	sim, err := simulation.New(world(backend), simulation.DefaultConfig())
	if err != nil {
		return nil, err
	}
	ball := template.StructureSpec{
		ModelSpec: template.ModelSpec{VX: template.Ptr(1.0), DampVel: template.Ptr(0.1)},
		Parts:     []template.PartSpec{{Form: &template.FormSpec{R: template.Ptr(0.5)}}},
	}
	if err := sim.Define("ball", ball); err != nil {
		return nil, err
	}
	return sim, nil
}

// run drives an authority and a replica the way the server and a client do:
// step, quantize and serialize the dynamics, apply them on the replica.
func run(backend string, rounds, ticks, entities int) (int, error) {
	bytes := 0
	for range rounds {
		authority, err := newSim(backend)
		if err != nil {
			return bytes, err
		}
		replica, err := newSim(backend)
		if err != nil {
			return bytes, err
		}
		for i := range entities {
			spec := template.StructureSpec{ModelSpec: template.ModelSpec{
				X: template.Ptr(float64(i%50) * 2),
				Y: template.Ptr(float64(i/50) * 2),
			}}
			if _, err := authority.Spawn("ball", spec); err != nil {
				return bytes, err
			}
			if _, err := replica.Spawn("ball", spec); err != nil {
				return bytes, err
			}
		}

		for range ticks {
			authority.Step()
			replica.Step()
			raw, err := authority.QuantizeAndSerialize(authority.Of(registry.Dynamics))
			if err != nil {
				return bytes, err
			}
			bytes += len(raw)
			if err := replica.DeserializeUpdate(raw); err != nil {
				return bytes, err
			}
		}
		authority.DestroyAll(authority.Of(registry.Instances))
		replica.DestroyAll(replica.Of(registry.Instances))
	}
	return bytes, nil
}
