package tools

// Tool name constants - use these instead of magic strings to prevent typos
// and enable compile-time checking.
const (
	// Workspace file tools.
	ToolReadFile  = "read_file"
	ToolWriteFile = "write_file"
	ToolListFiles = "list_files"

	// Search tools.
	ToolSearchCodebase = "search_codebase"
	ToolGrepSearch     = "grep_search"

	// Execution tools.
	ToolRunCommand = "run_command"
	ToolVCSStatus  = "vcs_status"

	// Sandbox tools.
	ToolUploadToSandbox     = "upload_to_sandbox"
	ToolExecuteInSandbox    = "execute_in_sandbox"
	ToolRunCommandInSandbox = "run_command_in_sandbox"

	// Repository tools.
	ToolCloneRepository   = "clone_repository"
	ToolCleanupRepository = "cleanup_repository"
)

// Role-specific tool availability - defines which tools each agent role may
// call during its loop.
//
//nolint:gochecknoglobals // Allow-lists are fixed per role and shared across construction sites
var (
	// PlannerTools - read-only exploration, plus repository sessions for
	// tasks that reference an external repo.
	PlannerTools = []string{
		ToolSearchCodebase,
		ToolReadFile,
		ToolListFiles,
		ToolCloneRepository,
		ToolCleanupRepository,
	}

	// ImplementerTools - full read/write development set with command
	// execution and sandbox access.
	ImplementerTools = []string{
		ToolSearchCodebase,
		ToolReadFile,
		ToolListFiles,
		ToolWriteFile,
		ToolGrepSearch,
		ToolRunCommand,
		ToolVCSStatus,
		ToolUploadToSandbox,
		ToolExecuteInSandbox,
		ToolRunCommandInSandbox,
	}

	// ReviewerTools - read-only verification.
	ReviewerTools = []string{
		ToolReadFile,
		ToolSearchCodebase,
		ToolGrepSearch,
		ToolVCSStatus,
	}
)
