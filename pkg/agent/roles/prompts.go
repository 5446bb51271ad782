package roles

import (
	"bytes"
	"embed"
	"fmt"
	"text/template"
)

//go:embed prompts/*.tpl.md
var promptFS embed.FS

// Prompt template names. System prompts are static; seed prompts
// interpolate promptData.
const (
	plannerSystemTemplate     = "planner_system.tpl.md"
	plannerSeedTemplate       = "planner_seed.tpl.md"
	implementerSystemTemplate = "implementer_system.tpl.md"
	implementerSeedTemplate   = "implementer_seed.tpl.md"
	reviewerSystemTemplate    = "reviewer_system.tpl.md"
	reviewerSeedTemplate      = "reviewer_seed.tpl.md"
)

//nolint:gochecknoglobals // Templates are static embedded assets, parsed once
var promptTemplates = template.Must(template.ParseFS(promptFS, "prompts/*.tpl.md"))

// promptData is the interpolation payload for seed templates. Unused fields
// render empty.
type promptData struct {
	Task           string
	Plan           string
	ReviewFeedback string
	CodeChanges    string
}

func renderPrompt(name string, data promptData) (string, error) {
	var buf bytes.Buffer
	if err := promptTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to render prompt %s: %w", name, err)
	}
	return buf.String(), nil
}

// mustPrompt renders a static prompt. Only construction-time system prompts
// go through here; a failure means a broken embedded template.
func mustPrompt(name string) string {
	out, err := renderPrompt(name, promptData{})
	if err != nil {
		panic(err)
	}
	return out
}
