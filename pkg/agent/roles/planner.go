package roles

import (
	"context"
	"fmt"

	"codepilot/pkg/agent/llm"
	"codepilot/pkg/agent/roleloop"
)

// Planner explores the codebase with read-only tools and produces an
// implementation plan as numbered steps.
type Planner struct {
	loop *roleloop.Loop
	cfg  roleloop.Config
}

func NewPlanner(cfg Config) *Planner {
	loop, loopCfg := cfg.loopConfig("planner", mustPrompt(plannerSystemTemplate), DefaultPlannerTurns, llm.TemperatureDefault)
	return &Planner{loop: loop, cfg: loopCfg}
}

// Run creates a plan for the task. When the turn cap runs out before the
// model stops, the last plan text seen is returned as best effort.
func (p *Planner) Run(ctx context.Context, task string) (string, error) {
	seed, err := renderPrompt(plannerSeedTemplate, promptData{Task: task})
	if err != nil {
		return "", err
	}

	res, err := p.loop.Run(ctx, p.cfg, seed)
	if err != nil {
		return "", fmt.Errorf("planner: %w", err)
	}
	return res.FinalText, nil
}
