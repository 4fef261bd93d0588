package logic

import "fmt"

// StageConnection is a static edge of the stage graph: leaving
// InitialStage through ExitName leads to FinalStage.
type StageConnection struct {
	InitialStage string `json:"initial_stage" yaml:"from"`
	ExitName     string `json:"exit_name" yaml:"exit"`
	FinalStage   string `json:"final_stage" yaml:"to"`
}

type exitKey struct {
	stage string
	exit  string
}

// StageGraph indexes stage connections by (stage, exit).
type StageGraph struct {
	conns []StageConnection
	next  map[exitKey]string
}

// NewStageGraph validates and indexes conns. Each (stage, exit) pair may
// lead to only one stage.
func NewStageGraph(conns []StageConnection) (*StageGraph, error) {
	g := &StageGraph{
		conns: make([]StageConnection, 0, len(conns)),
		next:  make(map[exitKey]string, len(conns)),
	}
	for _, c := range conns {
		if c.InitialStage == "" || c.ExitName == "" || c.FinalStage == "" {
			return nil, fmt.Errorf("logic: stage connection %+v is incomplete: %w", c, ErrMalformedInput)
		}
		k := exitKey{c.InitialStage, c.ExitName}
		if to, dup := g.next[k]; dup {
			return nil, fmt.Errorf("logic: exit %s.%s leads to both %s and %s: %w",
				c.InitialStage, c.ExitName, to, c.FinalStage, ErrMalformedInput)
		}
		g.next[k] = c.FinalStage
		g.conns = append(g.conns, c)
	}
	return g, nil
}

// Next returns the stage reached by leaving stage through exit.
func (g *StageGraph) Next(stage, exit string) (string, bool) {
	if g == nil {
		return "", false
	}
	to, ok := g.next[exitKey{stage, exit}]
	return to, ok
}

// Connections returns the edges in declaration order.
func (g *StageGraph) Connections() []StageConnection {
	if g == nil {
		return nil
	}
	out := make([]StageConnection, len(g.conns))
	copy(out, g.conns)
	return out
}

// Stages lists every stage named by an edge, in first-seen order.
func (g *StageGraph) Stages() []string {
	if g == nil {
		return nil
	}
	seen := map[string]bool{}
	var out []string
	for _, c := range g.conns {
		for _, s := range []string{c.InitialStage, c.FinalStage} {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	return out
}
