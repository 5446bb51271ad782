// Package roles configures the three role agents (planner, implementer,
// reviewer) on top of the shared role loop. Each role contributes a system
// prompt, a tool allow-list, a turn cap, and an output parser; the loop
// mechanics are identical across roles.
package roles

import (
	"codepilot/pkg/agent/llm"
	"codepilot/pkg/agent/roleloop"
	"codepilot/pkg/logx"
	"codepilot/pkg/tools"
)

// Default turn caps per role. The implementer gets more headroom because it
// interleaves reads, writes, and sandbox runs.
const (
	DefaultPlannerTurns     = 10
	DefaultImplementerTurns = 15
	DefaultReviewerTurns    = 10
)

// Config carries construction parameters shared by all role agents. Client
// and Tools are required; everything else has role defaults.
type Config struct {
	Client      llm.LLMClient
	Tools       *tools.Provider
	Logger      *logx.Logger
	MaxTurns    int
	MaxTokens   int
	Temperature float32
	Metrics     roleloop.Recorder
}

// loopConfig applies role defaults and builds the loop configuration.
func (c Config) loopConfig(role, systemPrompt string, defaultTurns int, defaultTemp float32) (*roleloop.Loop, roleloop.Config) {
	logger := c.Logger
	if logger == nil {
		logger = logx.NewLogger(role)
	}
	maxTurns := c.MaxTurns
	if maxTurns <= 0 {
		maxTurns = defaultTurns
	}
	temp := c.Temperature
	if temp <= 0 {
		temp = defaultTemp
	}
	return roleloop.New(c.Client, logger), roleloop.Config{
		Role:         role,
		SystemPrompt: systemPrompt,
		Tools:        c.Tools,
		MaxTurns:     maxTurns,
		MaxTokens:    c.MaxTokens,
		Temperature:  temp,
		Metrics:      c.Metrics,
	}
}
