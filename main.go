// codepilot runs a coding task through three LLM role agents (planner,
// implementer, reviewer) sequenced by a state machine, over a hybrid
// keyword+vector retrieval index of the workspace.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"codepilot/pkg/agent"
	"codepilot/pkg/agent/roleloop"
	"codepilot/pkg/agent/roles"
	"codepilot/pkg/config"
	"codepilot/pkg/exec"
	"codepilot/pkg/logx"
	"codepilot/pkg/metrics"
	"codepilot/pkg/orchestrator"
	"codepilot/pkg/persistence"
	"codepilot/pkg/retrieval"
	"codepilot/pkg/retrieval/embeddings"
	"codepilot/pkg/sandbox"
	"codepilot/pkg/tools"
	"codepilot/pkg/workspace"
)

const historyLimit = 20

func main() {
	var (
		configPath  string
		task        string
		indexDir    string
		query       string
		history     bool
		metricsAddr string
		workDir     string
	)
	flag.StringVar(&configPath, "config", "", "Path to YAML config file")
	flag.StringVar(&task, "task", "", "Task to run through the plan/code/review workflow")
	flag.StringVar(&indexDir, "index", "", "Directory to index for retrieval (default: the workdir)")
	flag.StringVar(&query, "query", "", "Run a retrieval query against the index and exit")
	flag.BoolVar(&history, "history", false, "List recent task runs and exit")
	flag.StringVar(&metricsAddr, "metrics-addr", "", "Listen address for Prometheus metrics (e.g. :9090)")
	flag.StringVar(&workDir, "workdir", "", "Workspace directory the agents operate on")
	flag.Parse()

	if task == "" && query == "" && indexDir == "" && !history {
		fmt.Fprintln(os.Stderr, "nothing to do: pass -task, -query, -index or -history")
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if workDir != "" {
		cfg.Workspace.Root = workDir
	}

	logger := logx.NewLogger("codepilot")
	isTTY := term.IsTerminal(int(os.Stdout.Fd()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if history {
		if err := printHistory(ctx, cfg.Storage.DatabasePath); err != nil {
			log.Fatalf("Failed to read run history: %v", err)
		}
		return
	}

	m := metrics.New()
	if metricsAddr != "" {
		serveMetrics(metricsAddr, m, logger)
	}

	// The embedder is required to index or query. A task run without one
	// degrades: search_codebase reports an empty index instead.
	embedder, err := buildEmbedder(cfg.Retrieval)
	if err != nil {
		if task == "" {
			log.Fatalf("Failed to create embedder: %v", err)
		}
		logger.Warn("⚠️  Embeddings unavailable, running without a search index: %v", err)
	}

	engine := retrieval.NewEngine(embedder, retrieval.FusionConfig{
		BM25Weight:      cfg.Retrieval.BM25Weight,
		EmbeddingWeight: cfg.Retrieval.EmbeddingWeight,
		KConst:          cfg.Retrieval.KConst,
	}, nil)
	engine.SetRecorder(m)

	if embedder != nil {
		dir := indexDir
		if dir == "" {
			dir = cfg.Workspace.Root
		}
		if err := buildIndex(ctx, engine, dir, logger); err != nil {
			if task == "" {
				log.Fatalf("Failed to build index: %v", err)
			}
			logger.Warn("⚠️  Indexing failed, continuing without search: %v", err)
		}
	}

	if query != "" {
		if err := runQuery(ctx, engine, query, cfg.Retrieval.TopK); err != nil {
			log.Fatalf("Query failed: %v", err)
		}
	}

	if task == "" {
		return
	}

	if !runTask(ctx, cfg, m, engine, task, isTTY, logger) {
		os.Exit(1)
	}
}

// runTask wires the role agents and drives one task to a terminal state.
// Returns true when the reviewer approved.
func runTask(ctx context.Context, cfg config.Config, m *metrics.Metrics, engine *retrieval.Engine, task string, isTTY bool, logger *logx.Logger) bool {
	executor := exec.NewLocalExec()

	sandboxMgr, err := sandbox.NewManager(executor, sandbox.Config{
		Interpreter: cfg.Sandbox.Interpreter,
		Timeout:     cfg.SandboxTimeout(),
	}, nil)
	if err != nil {
		log.Fatalf("Failed to create sandbox manager: %v", err)
	}
	defer func() { _ = sandboxMgr.Close() }()

	workspaceMgr, err := workspace.NewManager(cfg.Workspace.Root, executor, nil)
	if err != nil {
		log.Fatalf("Failed to create workspace manager: %v", err)
	}

	registry := tools.DefaultRegistry()
	agentCtx := tools.AgentContext{
		Executor:  executor,
		WorkDir:   cfg.Workspace.Root,
		Retrieval: engine,
		Sandbox:   sandboxMgr,
		Workspace: workspaceMgr,
		Logger:    logger,
	}

	plannerTools, err := registry.Provider(agentCtx, tools.PlannerTools)
	if err != nil {
		log.Fatalf("Failed to create planner tools: %v", err)
	}
	implementerTools, err := registry.Provider(agentCtx, tools.ImplementerTools)
	if err != nil {
		log.Fatalf("Failed to create implementer tools: %v", err)
	}
	reviewerTools, err := registry.Provider(agentCtx, tools.ReviewerTools)
	if err != nil {
		log.Fatalf("Failed to create reviewer tools: %v", err)
	}

	plannerClient, err := agent.NewLLMClient(cfg.Agents.Planner.Model)
	if err != nil {
		log.Fatalf("Failed to create planner client: %v", err)
	}
	implementerClient, err := agent.NewLLMClient(cfg.Agents.Implementer.Model)
	if err != nil {
		log.Fatalf("Failed to create implementer client: %v", err)
	}
	reviewerClient, err := agent.NewLLMClient(cfg.Agents.Reviewer.Model)
	if err != nil {
		log.Fatalf("Failed to create reviewer client: %v", err)
	}

	// Role loops report to Prometheus always, and to the run store when it
	// opened. The orchestrator's run history rides the same store.
	var roleRecorder roleloop.Recorder = m
	var runRecorder *persistence.RunRecorder

	store, err := persistence.Open(cfg.Storage.DatabasePath)
	if err != nil {
		logger.Warn("⚠️  Run store unavailable, history disabled: %v", err)
	} else {
		defer func() { _ = store.Close() }()
		runRecorder = persistence.NewRunRecorder(store)
		roleRecorder = roleloop.MultiRecorder(m, runRecorder)
	}

	planner := roles.NewPlanner(roles.Config{
		Client:    plannerClient,
		Tools:     plannerTools,
		MaxTurns:  cfg.Agents.Planner.MaxTurns,
		MaxTokens: cfg.Agents.Planner.MaxTokens,
		Metrics:   roleRecorder,
	})
	implementer := roles.NewImplementer(roles.Config{
		Client:    implementerClient,
		Tools:     implementerTools,
		MaxTurns:  cfg.Agents.Implementer.MaxTurns,
		MaxTokens: cfg.Agents.Implementer.MaxTokens,
		Metrics:   roleRecorder,
	})
	reviewer := roles.NewReviewer(roles.Config{
		Client:    reviewerClient,
		Tools:     reviewerTools,
		MaxTurns:  cfg.Agents.Reviewer.MaxTurns,
		MaxTokens: cfg.Agents.Reviewer.MaxTokens,
		Metrics:   roleRecorder,
	})

	orchCfg := orchestrator.Config{
		Planner:       planner,
		Implementer:   implementer,
		Reviewer:      reviewer,
		MaxIterations: cfg.Orchestrator.MaxIterations,
		Metrics:       m,
	}
	if runRecorder != nil {
		orchCfg.Recorder = runRecorder
	}

	orch, err := orchestrator.New(orchCfg)
	if err != nil {
		log.Fatalf("Failed to create orchestrator: %v", err)
	}

	result, runErr := orch.Run(ctx, task)
	if runErr != nil {
		logger.Error("Task run failed: %v", runErr)
	}

	printResult(result, isTTY)
	dumpMetrics(m, logger, isTTY)

	return runErr == nil && result.Success
}

// buildEmbedder creates the embedding backend the config selects.
// Credentials come from the environment only.
func buildEmbedder(cfg config.RetrievalConfig) (retrieval.Embedder, error) {
	if cfg.Embeddings.Provider == config.ProviderOllama {
		emb, err := embeddings.NewOllamaEmbedder(embeddings.OllamaConfig{
			HostURL: os.Getenv(config.EnvOllamaHost),
			Model:   cfg.Embeddings.Model,
		})
		if err != nil {
			return nil, err
		}
		return emb, nil
	}

	key, err := config.GetAPIKey(config.ProviderOpenAI)
	if err != nil {
		return nil, err
	}
	emb, err := embeddings.NewOpenAIEmbedder(embeddings.OpenAIConfig{
		APIKey:     key,
		Model:      cfg.Embeddings.Model,
		Dimensions: cfg.Embeddings.Dimensions,
	})
	if err != nil {
		return nil, err
	}
	return emb, nil
}

// buildIndex scans dir and loads both sub-indexes.
func buildIndex(ctx context.Context, engine *retrieval.Engine, dir string, logger *logx.Logger) error {
	scanner := retrieval.NewScanner(logger)
	docs, scanStats, err := scanner.Scan(dir)
	if err != nil {
		return fmt.Errorf("scanning %s: %w", dir, err)
	}
	logger.Info("Scanned %s: %d files, %d functions, %d classes", dir, scanStats.Files, scanStats.Functions, scanStats.Classes)
	if len(docs) == 0 {
		logger.Warn("No indexable symbols found under %s", dir)
		return nil
	}

	stats, err := engine.Index(ctx, docs)
	if err != nil {
		return fmt.Errorf("indexing %s: %w", dir, err)
	}
	logger.Info("✅ Index ready: %d keyword entries, %d embeddings", stats.BM25Indexed, stats.EmbeddingIndexed)
	return nil
}

func runQuery(ctx context.Context, engine *retrieval.Engine, query string, topK int) error {
	results, err := engine.Search(ctx, query, topK)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println("No results.")
		return nil
	}
	for _, res := range results {
		doc := res.Document
		fmt.Printf("%d. %s:%d-%d  %s (%s)  score=%.4f\n",
			res.Rank, doc.File, doc.StartLine, doc.EndLine, doc.Symbol, doc.Kind, res.Score)
	}
	return nil
}

func printHistory(ctx context.Context, dbPath string) error {
	store, err := persistence.Open(dbPath)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	runs, err := store.ListRuns(ctx, historyLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No recorded runs.")
		return nil
	}

	for _, run := range runs {
		fmt.Printf("#%-4d %-8s iterations=%d started=%s  %s\n",
			run.ID, run.Status, run.Iterations, run.StartedAt, truncate(run.Task, 60))
		if run.Error != "" {
			fmt.Printf("      error: %s\n", run.Error)
		}
		passes, err := store.GetRunPasses(ctx, run.ID)
		if err != nil {
			return err
		}
		if len(passes) > 0 {
			parts := make([]string, len(passes))
			for i, p := range passes {
				parts[i] = fmt.Sprintf("%s:%s", p.State, p.Outcome)
			}
			fmt.Printf("      %s\n", strings.Join(parts, " → "))
		}
	}
	return nil
}

// printResult writes the run outcome: a readable block on a terminal, JSON
// when piped.
func printResult(result *orchestrator.TaskResult, pretty bool) {
	if !pretty {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to encode result: %v\n", err)
			return
		}
		fmt.Println(string(data))
		return
	}

	sep := strings.Repeat("=", 60)
	fmt.Println(sep)
	fmt.Printf("Task:   %s\n", result.Task)
	fmt.Printf("Status: %s (%d iterations)\n", result.Status, result.Iterations)
	if result.Error != "" {
		fmt.Printf("Error:  %s\n", result.Error)
	}
	if result.Plan != "" {
		fmt.Println("\nPlan:")
		fmt.Println(indent(result.Plan))
	}
	if len(result.CodeChanges) > 0 {
		files := make([]string, 0, len(result.CodeChanges))
		for path := range result.CodeChanges {
			files = append(files, path)
		}
		sort.Strings(files)
		fmt.Println("\nFiles written:")
		for _, f := range files {
			fmt.Printf("  %s\n", f)
		}
	}
	if result.ReviewFeedback != "" {
		fmt.Println("\nReview:")
		fmt.Println(indent(result.ReviewFeedback))
	}
	fmt.Println(sep)
}

func dumpMetrics(m *metrics.Metrics, logger *logx.Logger, pretty bool) {
	snapshot, err := m.Snapshot()
	if err != nil {
		logger.Warn("failed to render metrics snapshot: %v", err)
		return
	}
	if snapshot == "" {
		return
	}
	if pretty {
		fmt.Println("Metrics:")
		fmt.Print(snapshot)
		return
	}
	fmt.Fprint(os.Stderr, snapshot)
}

func serveMetrics(addr string, m *metrics.Metrics, logger *logx.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("Serving metrics on %s/metrics", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server: %v", err)
		}
	}()
}

func indent(s string) string {
	return "  " + strings.ReplaceAll(s, "\n", "\n  ")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
