package roles

import (
	"context"
	"fmt"

	"codepilot/pkg/agent/llm"
	"codepilot/pkg/agent/roleloop"
)

// Implementer turns a plan into code changes. It is the only role with
// write access; the loop tracks every successful write_file call so the
// reviewer sees exactly what changed.
type Implementer struct {
	loop *roleloop.Loop
	cfg  roleloop.Config
}

func NewImplementer(cfg Config) *Implementer {
	loop, loopCfg := cfg.loopConfig("implementer", mustPrompt(implementerSystemTemplate), DefaultImplementerTurns, llm.TemperatureDeterministic)
	loopCfg.TrackWrites = true
	return &Implementer{loop: loop, cfg: loopCfg}
}

// Run implements the plan and returns the files written as path -> content.
// On a rework pass reviewFeedback carries the rejection reasons into the
// seed prompt; pass "" on the first attempt. Cap exhaustion returns whatever
// was written so far.
func (i *Implementer) Run(ctx context.Context, plan, task, reviewFeedback string) (map[string]string, error) {
	seed, err := renderPrompt(implementerSeedTemplate, promptData{
		Task:           task,
		Plan:           plan,
		ReviewFeedback: reviewFeedback,
	})
	if err != nil {
		return nil, err
	}

	res, err := i.loop.Run(ctx, i.cfg, seed)
	if err != nil {
		return nil, fmt.Errorf("implementer: %w", err)
	}
	return res.FileWrites, nil
}
