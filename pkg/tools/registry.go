package tools

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"codepilot/pkg/exec"
	"codepilot/pkg/logx"
	"codepilot/pkg/retrieval"
	"codepilot/pkg/sandbox"
	"codepilot/pkg/workspace"
)

// AgentContext carries the dependencies tools draw on. Handles are injected
// here once and flow into tool construction; tools never reach for globals.
type AgentContext struct {
	Executor  exec.Executor
	WorkDir   string
	Retrieval *retrieval.Engine
	Sandbox   *sandbox.Manager
	Workspace *workspace.Manager
	Logger    *logx.Logger
}

// ToolFactory creates a tool instance configured for a specific agent context.
type ToolFactory func(ctx AgentContext) (Tool, error)

// ToolMeta describes a registered tool for discovery and prompt documentation.
type ToolMeta struct {
	Name        string
	Description string
}

type toolDescriptor struct {
	meta    ToolMeta
	factory ToolFactory
}

// Registry maps tool names to factories. It is mutable until sealed; the
// first Provider seals it.
type Registry struct {
	mu     sync.RWMutex
	sealed bool
	tools  map[string]toolDescriptor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]toolDescriptor)}
}

// Register adds a tool factory. It panics on a duplicate name or a sealed
// registry: both are wiring bugs, not runtime conditions.
func (r *Registry) Register(name string, factory ToolFactory, meta ToolMeta) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		panic(fmt.Sprintf("tool registry sealed - cannot register tool '%s'", name))
	}
	if _, exists := r.tools[name]; exists {
		panic(fmt.Sprintf("tool '%s' registered twice", name))
	}

	r.tools[name] = toolDescriptor{meta: meta, factory: factory}
}

// Seal prevents further registrations. Called automatically when the first
// Provider is created.
func (r *Registry) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sealed = true
}

// List returns metadata for all registered tools, sorted by name.
func (r *Registry) List() []ToolMeta {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]ToolMeta, 0, len(r.tools))
	for _, desc := range r.tools {
		result = append(result, desc.meta)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// Provider is the role-filtered view of a registry handed to an agent loop.
// Tool instances are created eagerly so missing dependencies surface at
// construction, not mid-run.
type Provider struct {
	tools map[string]Tool
	order []string
}

// Provider builds a provider exposing exactly the allowed tools. Unknown
// names and tools whose dependencies are missing from the context are
// construction errors. The registry is sealed as a side effect.
func (r *Registry) Provider(ctx AgentContext, allowed []string) (*Provider, error) {
	r.Seal()

	if ctx.WorkDir != "" {
		abs, err := filepath.Abs(ctx.WorkDir)
		if err != nil {
			return nil, fmt.Errorf("resolving workdir: %w", err)
		}
		ctx.WorkDir = abs
	}

	instances := make(map[string]Tool, len(allowed))
	order := make([]string, 0, len(allowed))

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, name := range allowed {
		if _, dup := instances[name]; dup {
			continue
		}
		desc, exists := r.tools[name]
		if !exists {
			return nil, fmt.Errorf("tool '%s' not registered", name)
		}
		tool, err := desc.factory(ctx)
		if err != nil {
			return nil, fmt.Errorf("creating tool '%s': %w", name, err)
		}
		instances[name] = tool
		order = append(order, name)
	}
	sort.Strings(order)

	return &Provider{tools: instances, order: order}, nil
}

// Get returns an allowed tool by name.
func (p *Provider) Get(name string) (Tool, error) {
	tool, ok := p.tools[name]
	if !ok {
		return nil, fmt.Errorf("tool '%s' not allowed in this context", name)
	}
	return tool, nil
}

// Names returns the allowed tool names in sorted order.
func (p *Provider) Names() []string {
	out := make([]string, len(p.order))
	copy(out, p.order)
	return out
}

// Definitions returns the allowed tools' definitions in sorted name order,
// ready to hand to an inference provider.
func (p *Provider) Definitions() []ToolDefinition {
	defs := make([]ToolDefinition, 0, len(p.order))
	for _, name := range p.order {
		defs = append(defs, p.tools[name].Definition())
	}
	return defs
}

// Exec dispatches one tool call. Unknown names, tool failures and panics all
// come back as error results, never as Go errors or aborts: the loop records
// them in the transcript and the agent reacts.
func (p *Provider) Exec(ctx context.Context, name string, args map[string]any) (res *ExecResult) {
	defer func() {
		if r := recover(); r != nil {
			res = errorResult("Error: tool '%s' panicked: %v", name, r)
		}
	}()

	tool, ok := p.tools[name]
	if !ok {
		return errorResult("Error: unknown tool '%s'.", name)
	}

	result, err := tool.Exec(ctx, args)
	if err != nil {
		return errorResult("Error executing tool '%s': %v", name, err)
	}
	if result == nil {
		return errorResult("Error: tool '%s' returned no result.", name)
	}
	return result
}

// DefaultRegistry registers every built-in tool.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.Register(ToolReadFile, func(ctx AgentContext) (Tool, error) {
		return NewReadFileTool(ctx.WorkDir), nil
	}, ToolMeta{Name: ToolReadFile, Description: "Read the contents of a workspace file"})

	r.Register(ToolWriteFile, func(ctx AgentContext) (Tool, error) {
		return NewWriteFileTool(ctx.WorkDir), nil
	}, ToolMeta{Name: ToolWriteFile, Description: "Write content to a workspace file, creating it if needed"})

	r.Register(ToolListFiles, func(ctx AgentContext) (Tool, error) {
		return NewListFilesTool(ctx.WorkDir), nil
	}, ToolMeta{Name: ToolListFiles, Description: "List entries in a workspace directory"})

	r.Register(ToolSearchCodebase, func(ctx AgentContext) (Tool, error) {
		if ctx.Retrieval == nil {
			return nil, fmt.Errorf("search_codebase requires a retrieval engine")
		}
		return NewSearchCodebaseTool(ctx.Retrieval), nil
	}, ToolMeta{Name: ToolSearchCodebase, Description: "Search the indexed codebase with hybrid keyword and semantic retrieval"})

	r.Register(ToolGrepSearch, func(ctx AgentContext) (Tool, error) {
		return NewGrepSearchTool(ctx.WorkDir), nil
	}, ToolMeta{Name: ToolGrepSearch, Description: "Search workspace files for lines matching a regular expression"})

	r.Register(ToolRunCommand, func(ctx AgentContext) (Tool, error) {
		if ctx.Executor == nil {
			return nil, fmt.Errorf("run_command requires an executor")
		}
		return NewRunCommandTool(ctx.Executor, ctx.WorkDir), nil
	}, ToolMeta{Name: ToolRunCommand, Description: "Execute a shell command in the workspace"})

	r.Register(ToolVCSStatus, func(ctx AgentContext) (Tool, error) {
		if ctx.Executor == nil {
			return nil, fmt.Errorf("vcs_status requires an executor")
		}
		return NewVCSStatusTool(ctx.Executor, ctx.WorkDir), nil
	}, ToolMeta{Name: ToolVCSStatus, Description: "Show version control status of the workspace"})

	r.Register(ToolUploadToSandbox, func(ctx AgentContext) (Tool, error) {
		if ctx.Sandbox == nil {
			return nil, fmt.Errorf("upload_to_sandbox requires a sandbox manager")
		}
		return NewUploadToSandboxTool(ctx.Sandbox, ctx.WorkDir), nil
	}, ToolMeta{Name: ToolUploadToSandbox, Description: "Copy a workspace file into the sandbox session"})

	r.Register(ToolExecuteInSandbox, func(ctx AgentContext) (Tool, error) {
		if ctx.Sandbox == nil {
			return nil, fmt.Errorf("execute_in_sandbox requires a sandbox manager")
		}
		return NewExecuteInSandboxTool(ctx.Sandbox), nil
	}, ToolMeta{Name: ToolExecuteInSandbox, Description: "Execute a code snippet inside the sandbox session"})

	r.Register(ToolRunCommandInSandbox, func(ctx AgentContext) (Tool, error) {
		if ctx.Sandbox == nil {
			return nil, fmt.Errorf("run_command_in_sandbox requires a sandbox manager")
		}
		return NewRunCommandInSandboxTool(ctx.Sandbox), nil
	}, ToolMeta{Name: ToolRunCommandInSandbox, Description: "Run a shell command inside the sandbox session"})

	r.Register(ToolCloneRepository, func(ctx AgentContext) (Tool, error) {
		if ctx.Workspace == nil {
			return nil, fmt.Errorf("clone_repository requires a workspace manager")
		}
		return NewCloneRepositoryTool(ctx.Workspace), nil
	}, ToolMeta{Name: ToolCloneRepository, Description: "Clone a public GitHub repository into a session directory"})

	r.Register(ToolCleanupRepository, func(ctx AgentContext) (Tool, error) {
		if ctx.Workspace == nil {
			return nil, fmt.Errorf("cleanup_repository requires a workspace manager")
		}
		return NewCleanupRepositoryTool(ctx.Workspace), nil
	}, ToolMeta{Name: ToolCleanupRepository, Description: "Remove a previously cloned repository session"})

	return r
}
