package roles

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"codepilot/pkg/agent/llm"
	"codepilot/pkg/agent/roleloop"
)

// Reviewer inspects code changes with read-only tools and decides APPROVE
// or REJECT. Anything that is not a clear decision rejects: an unsure
// reviewer must never let code through.
type Reviewer struct {
	loop *roleloop.Loop
	cfg  roleloop.Config
}

func NewReviewer(cfg Config) *Reviewer {
	loop, loopCfg := cfg.loopConfig("reviewer", mustPrompt(reviewerSystemTemplate), DefaultReviewerTurns, llm.TemperatureDefault)
	return &Reviewer{loop: loop, cfg: loopCfg}
}

// Run reviews the code changes against the plan and task. Returns the
// decision and the full review text as feedback. Turn-cap exhaustion
// rejects with a timeout message.
func (r *Reviewer) Run(ctx context.Context, codeChanges map[string]string, plan, task string) (bool, string, error) {
	seed, err := renderPrompt(reviewerSeedTemplate, promptData{
		Task:        task,
		Plan:        plan,
		CodeChanges: formatCodeChanges(codeChanges),
	})
	if err != nil {
		return false, "", err
	}

	res, err := r.loop.Run(ctx, r.cfg, seed)
	if err != nil {
		return false, "", fmt.Errorf("reviewer: %w", err)
	}
	if res.CapExhausted {
		return false, "Review timed out - please try again", nil
	}

	approved, feedback := parseDecision(res.FinalText)
	return approved, feedback, nil
}

// formatCodeChanges renders the change set for the seed prompt, one block
// per file in path order.
func formatCodeChanges(changes map[string]string) string {
	if len(changes) == 0 {
		return "No code changes to review."
	}

	paths := make([]string, 0, len(changes))
	for path := range changes {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	separator := strings.Repeat("=", 60)
	parts := make([]string, 0, len(changes)*4)
	for _, path := range paths {
		parts = append(parts, "\n"+separator, "File: "+path, separator, changes[path])
	}
	return strings.Join(parts, "\n")
}

// parseDecision extracts the verdict from the review text. The contract is
// a literal "DECISION: APPROVE" or "DECISION: REJECT" line; matching is
// case-insensitive and anything unclear rejects.
func parseDecision(review string) (approved bool, feedback string) {
	if review == "" {
		return false, "No review provided"
	}

	lower := strings.ToLower(review)
	switch {
	case strings.Contains(lower, "decision: approve"):
		return true, review
	case strings.Contains(lower, "decision: reject"):
		return false, review
	default:
		return false, "Unclear decision. Review:\n" + review
	}
}
