package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/goforge/internal/agent"
	"github.com/nextlevelbuilder/goforge/internal/background"
	"github.com/nextlevelbuilder/goforge/internal/bus"
	"github.com/nextlevelbuilder/goforge/internal/config"
	"github.com/nextlevelbuilder/goforge/internal/mcp"
	"github.com/nextlevelbuilder/goforge/internal/memory"
	"github.com/nextlevelbuilder/goforge/internal/providers"
	"github.com/nextlevelbuilder/goforge/internal/session"
	"github.com/nextlevelbuilder/goforge/internal/skills"
	"github.com/nextlevelbuilder/goforge/internal/tasks"
	"github.com/nextlevelbuilder/goforge/internal/tools"
	"github.com/nextlevelbuilder/goforge/internal/trace"
	"github.com/nextlevelbuilder/goforge/internal/worktree"
)

// resumePickLatest is the NoOptDefVal sentinel for a bare --resume.
const resumePickLatest = "\x00pick"

// mateToolNames is the capability set handed to every teammate: file
// primitives and the two read-side worktree tools. Protocol tools are
// layered on per mate by the team manager.
var mateToolNames = []string{
	"read_file", "write_file", "edit_file", "list_dir", "glob", "grep", "bash",
	"workspace_read", "workspace_write", "workspace_list",
	"worktree_status", "worktree_run",
}

func runCmd() *cobra.Command {
	var resumeKey string

	cmd := &cobra.Command{
		Use:   "run [\"task\"]",
		Short: "Start the agent: interactive REPL, or one-shot when a task is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return err
			}

			key, err := resolveResumeKey(cfg, resumeKey)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}

			rt, err := buildRuntime(cmd.Context(), cfg, key)
			if err != nil {
				return err
			}
			defer rt.shutdown()

			if len(args) == 1 {
				return rt.oneShot(cmd.Context(), args[0])
			}
			return rt.repl(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&resumeKey, "resume", "", "resume an existing session (bare flag picks interactively)")
	cmd.Flags().Lookup("resume").NoOptDefVal = resumePickLatest
	return cmd
}

// resolveResumeKey maps the --resume flag to a concrete session key, or
// "" for a fresh session. A named key that does not exist is fatal.
func resolveResumeKey(cfg *config.Config, flag string) (string, error) {
	switch flag {
	case "":
		return "", nil
	case resumePickLatest:
		keys, err := session.ListKeys(cfg.Sessions.RootDir)
		if err != nil {
			return "", err
		}
		if len(keys) == 0 {
			return "", fmt.Errorf("no sessions to resume under %s", cfg.Sessions.RootDir)
		}
		if len(keys) == 1 {
			return keys[0], nil
		}
		var picked string
		form := huh.NewForm(huh.NewGroup(
			huh.NewSelect[string]().
				Title("Resume which session?").
				Options(huh.NewOptions(keys...)...).
				Value(&picked),
		))
		if err := form.Run(); err != nil {
			// Non-interactive or cancelled: fall back to the newest.
			return keys[0], nil
		}
		return picked, nil
	default:
		if _, err := session.Open(cfg.Sessions.RootDir, flag); err != nil {
			return "", fmt.Errorf("cannot resume: %w", err)
		}
		return flag, nil
	}
}

// runtime is everything one live session needs, wired together.
type runtime struct {
	cfg      *config.Config
	sess     *session.Session
	provider providers.Provider
	model    string
	tracer   *trace.Tracer

	registry *tools.Registry
	loop     *agent.Loop
	team     *tools.TeamManager
	store    *tasks.Store
	board    *tasks.Board
	bus      *bus.Bus
	bg       *background.Executor
	wt       *worktree.Manager
	mem      *memory.Store
	mcpMgr   *mcp.Manager
	otlp     *trace.OTLP

	stopSkills context.CancelFunc
}

// buildRuntime assembles the full component graph for one session. An
// empty key creates a fresh session.
func buildRuntime(ctx context.Context, cfg *config.Config, key string) (*runtime, error) {
	provider, err := providers.NewRegistry(cfg).Pick(cfg.Agent.Provider)
	if err != nil {
		return nil, err
	}
	model := cfg.Agent.Model
	if model == "" {
		model = provider.DefaultModel()
	}

	var sess *session.Session
	if key == "" {
		sess, err = session.New(cfg.Sessions.RootDir)
	} else {
		sess, err = session.Open(cfg.Sessions.RootDir, key)
	}
	if err != nil {
		return nil, err
	}

	tracer := trace.NewTracer(sess.TracePath())
	otlp, err := trace.NewOTLP(ctx, cfg.Telemetry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%stelemetry disabled: %v%s\n", dim, err, reset)
	}
	if otlp != nil {
		tracer = tracer.WithOTLP(otlp)
	}

	store, err := tasks.NewStore(sess)
	if err != nil {
		return nil, err
	}
	board := tasks.NewBoard(sess)
	msgBus := bus.New(sess)
	trackers := bus.NewTrackers()
	bg := background.NewExecutor(cfg.Agent.Workspace, cfg.Background.TimeoutSec)
	wt := worktree.NewManager(cfg.Agent.Workspace, store, cfg.Worktrees.RunTimeoutSec, cfg.Worktrees.MaxOutputBytes)

	skillsLoader := skills.NewLoader(cfg.Skills.Dir)
	var stopSkills context.CancelFunc
	if cfg.Skills.HotReload {
		watchCtx, cancel := context.WithCancel(context.Background())
		skillsLoader.Watch(watchCtx)
		stopSkills = cancel
	}

	var mem *memory.Store
	if cfg.Memory.MemoryEnabled() {
		path := cfg.Memory.Path
		if path == "" {
			path = filepath.Join(cfg.Agent.Workspace, ".goforge", "memory.db")
		}
		mem, err = memory.Open(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%smemory store disabled: %v%s\n", dim, err, reset)
			mem = nil
		}
	}

	todos := tools.NewTodoState()
	compactReq := tools.NewCompactRequest()

	// Leaf tools.
	registry := tools.NewRegistry()
	ws, restrict := cfg.Agent.Workspace, cfg.Agent.RestrictToWorkspace
	writeTool := tools.NewWriteFileTool(ws, restrict)
	editTool := tools.NewEditFileTool(ws, restrict)
	registry.Register(tools.NewReadFileTool(ws, restrict))
	registry.Register(writeTool)
	registry.Register(editTool)
	registry.Register(tools.NewListDirTool(ws, restrict))
	registry.Register(tools.NewGlobTool(ws, restrict))
	registry.Register(tools.NewGrepTool(ws, restrict))
	registry.Register(tools.NewBashTool(ws, restrict, 120))
	registry.Register(tools.NewWorkspaceWriteTool(sess))
	registry.Register(tools.NewWorkspaceReadTool(sess))
	registry.Register(tools.NewWorkspaceListTool(sess))
	registry.Register(tools.NewTodoWriteTool(todos))
	registry.Register(tools.NewCompactTool(compactReq))
	registry.Register(tools.NewLoadSkillTool(skillsLoader))
	registry.Register(tools.NewWebSearchTool(cfg.Providers.Brave.APIKey))
	registry.Register(tools.NewWebFetchTool())
	registry.Register(tools.NewTaskCreateTool(store))
	registry.Register(tools.NewTaskUpdateTool(store))
	registry.Register(tools.NewTaskListTool(store))
	registry.Register(tools.NewWorktreeCreateTool(wt))
	registry.Register(tools.NewWorktreeStatusTool(wt))
	registry.Register(tools.NewWorktreeRunTool(wt))
	registry.Register(tools.NewWorktreeRemoveTool(wt))
	registry.Register(tools.NewWorktreeKeepTool(wt))
	registry.Register(tools.NewWorktreeListTool(wt))
	registry.Register(tools.NewBackgroundRunTool(bg))
	registry.Register(tools.NewCheckBackgroundTool(bg))
	if mem != nil {
		registry.Register(tools.NewMemorySearchTool(mem))
		registry.Register(tools.NewMemoryGetTool(mem))
	}

	// Sub-agents: the manager sees the live registry, children get a
	// filtered snapshot.
	sm := tools.NewSubagentManager(provider, model, cfg.Subagents, tracer, func() *tools.Registry {
		return registry
	}, bg)
	registry.Register(tools.NewBackgroundAgentTool(sm))

	// Team.
	tm := tools.NewTeamManager(sess, msgBus, trackers, board, provider, model, cfg.Team, tracer, func() *tools.Registry {
		return registry.Filtered(mateToolNames, "Task")
	})
	tools.RegisterLeadTools(registry, tm, store)

	// MCP bridges.
	mcpMgr := mcp.NewManager(registry, cfg.MCPServers)
	mcpMgr.Start(ctx)

	// The Task tool goes in last so children inherit everything above.
	registry.Register(tools.NewTaskTool(sm))

	loop := agent.NewLoop(agent.LoopConfig{
		Provider:      provider,
		Model:         model,
		Tools:         registry,
		Session:       sess,
		Tracer:        tracer,
		Team:          tm,
		Background:    bg,
		Todos:         todos,
		Compact:       compactReq,
		Skills:        skillsLoader,
		Memory:        mem,
		AgentCfg:      cfg.Agent,
		CompactionCfg: cfg.Compaction,
		OnEvent:       printEvent,
	})
	writeTool.OnWrite(loop.NoteWrite)
	editTool.OnWrite(loop.NoteWrite)

	if key != "" {
		if err := loop.LoadHistory(); err != nil {
			return nil, fmt.Errorf("load session history: %w", err)
		}
	}

	sessionRunID := trace.NewRunID()
	sm.SetRunID(sessionRunID)
	tm.SetRunID(sessionRunID)

	return &runtime{
		cfg:        cfg,
		sess:       sess,
		provider:   provider,
		model:      model,
		tracer:     tracer,
		registry:   registry,
		loop:       loop,
		team:       tm,
		store:      store,
		board:      board,
		bus:        msgBus,
		bg:         bg,
		wt:         wt,
		mem:        mem,
		mcpMgr:     mcpMgr,
		otlp:       otlp,
		stopSkills: stopSkills,
	}, nil
}

func (rt *runtime) shutdown() {
	if rt.stopSkills != nil {
		rt.stopSkills()
	}
	rt.mcpMgr.Stop()
	if rt.mem != nil {
		rt.mem.Close()
	}
	if rt.otlp != nil {
		rt.otlp.Shutdown(context.Background())
	}
}

func (rt *runtime) oneShot(ctx context.Context, task string) error {
	answer, err := rt.loop.Run(ctx, task)
	if err != nil {
		return err
	}
	fmt.Println(answer)
	return nil
}
