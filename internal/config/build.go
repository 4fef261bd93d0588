package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/MJE43/stake-cycles/internal/driver"
	"github.com/MJE43/stake-cycles/internal/logic"
	"github.com/MJE43/stake-cycles/internal/rng"
	"github.com/MJE43/stake-cycles/internal/stages"
)

// Registry compiles every stage script. stageLog receives script log
// output and may be nil.
func (g *GameConfig) Registry(stageLog *log.Logger) (*stages.Registry, error) {
	reg := stages.NewRegistry()
	for _, s := range g.Stages {
		src := s.Script
		if s.ScriptFile != "" {
			raw, err := os.ReadFile(s.ScriptFile)
			if err != nil {
				return nil, fmt.Errorf("config: stage %s: %w", s.Name, err)
			}
			src = string(raw)
		}
		ev, err := stages.NewScriptEvaluator(s.Name, src, stageLog)
		if err != nil {
			return nil, fmt.Errorf("config: stage %s: %w", s.Name, err)
		}
		if s.TimeoutMS > 0 {
			ev.Timeout = time.Duration(s.TimeoutMS) * time.Millisecond
		}
		if err := reg.Register(s.Name, ev); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
	}
	return reg, nil
}

// RNGSeeds returns the provably-fair seed pair.
func (g *GameConfig) RNGSeeds() rng.Seeds {
	return rng.Seeds{Server: g.Seeds.Server, Client: g.Seeds.Client}
}

// NewDriver builds a driver for the definition.
func (g *GameConfig) NewDriver(logger, stageLog *log.Logger, listeners ...driver.RoundListener) (*driver.Driver, error) {
	reg, err := g.Registry(stageLog)
	if err != nil {
		return nil, err
	}
	graph, err := logic.NewStageGraph(g.Connections)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &driver.Driver{
		Name:      g.Name,
		Registry:  reg,
		Graph:     graph,
		Seeds:     g.RNGSeeds(),
		MaxRounds: g.MaxRounds,
		Logger:    logger,
		Listeners: listeners,
	}, nil
}
