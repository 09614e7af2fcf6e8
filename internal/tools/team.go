package tools

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/nextlevelbuilder/goforge/internal/bus"
	"github.com/nextlevelbuilder/goforge/internal/config"
	"github.com/nextlevelbuilder/goforge/internal/providers"
	"github.com/nextlevelbuilder/goforge/internal/session"
	"github.com/nextlevelbuilder/goforge/internal/tasks"
	"github.com/nextlevelbuilder/goforge/internal/trace"
)

// LeadName is the main agent's name on the bus.
const LeadName = "lead"

// Teammate statuses.
const (
	MateWorking  = "working"
	MateIdle     = "idle"
	MateShutdown = "shutdown"
)

// TeammateRecord is one roster entry in team/config.json.
type TeammateRecord struct {
	Name   string `json:"name"`
	Role   string `json:"role"`
	Status string `json:"status"`
}

type teamConfig struct {
	Members []TeammateRecord `json:"members"`
}

// TeamManager owns the teammate pool of one session: the persisted
// roster, the running goroutines, and the shared bus/board/trackers the
// protocol tools operate on.
type TeamManager struct {
	mu       sync.Mutex
	sess     *session.Session
	bus      *bus.Bus
	trackers *bus.Trackers
	board    *tasks.Board
	provider providers.Provider
	model    string
	cfg      config.TeamConfig
	tracer   *trace.Tracer
	runID    string

	// mateTools returns the file/workspace tool subset a teammate
	// starts from; protocol tools are layered on per mate.
	mateTools func() *Registry

	mates map[string]*Teammate
	live  bool
	wg    sync.WaitGroup
}

func NewTeamManager(
	sess *session.Session,
	b *bus.Bus,
	trackers *bus.Trackers,
	board *tasks.Board,
	provider providers.Provider,
	model string,
	cfg config.TeamConfig,
	tracer *trace.Tracer,
	mateTools func() *Registry,
) *TeamManager {
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = 50
	}
	if cfg.PollIntervalSec <= 0 {
		cfg.PollIntervalSec = 5
	}
	if cfg.IdleTimeoutSec <= 0 {
		cfg.IdleTimeoutSec = 60
	}
	return &TeamManager{
		sess:      sess,
		bus:       b,
		trackers:  trackers,
		board:     board,
		provider:  provider,
		model:     model,
		cfg:       cfg,
		tracer:    tracer,
		mateTools: mateTools,
		mates:     make(map[string]*Teammate),
	}
}

// SetRunID seeds the run id stamped on teammate trace events.
func (tm *TeamManager) SetRunID(id string) {
	tm.mu.Lock()
	tm.runID = id
	tm.mu.Unlock()
}

// Live reports whether the team subsystem has been used this session.
// The main loop checks it before touching the inbox directory, so a
// teamless run never creates team state on disk.
func (tm *TeamManager) Live() bool {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return tm.live
}

// Bus exposes the message bus for the lead's inbox drain.
func (tm *TeamManager) Bus() *bus.Bus { return tm.bus }

// Trackers exposes the request tables for the protocol tools.
func (tm *TeamManager) Trackers() *bus.Trackers { return tm.trackers }

// Spawn starts a named teammate goroutine. Names are unique; a shutdown
// teammate is not resurrected within the session.
func (tm *TeamManager) Spawn(name, role string) error {
	if name == "" || name == LeadName {
		return fmt.Errorf("invalid teammate name %q", name)
	}

	tm.mu.Lock()
	defer tm.mu.Unlock()

	if existing, ok := tm.mates[name]; ok {
		if existing.Status() == MateShutdown {
			return fmt.Errorf("teammate %q already shut down this session", name)
		}
		return fmt.Errorf("teammate %q already running", name)
	}

	mate := newTeammate(tm, name, role)
	tm.mates[name] = mate
	tm.live = true
	if err := tm.saveRosterLocked(); err != nil {
		delete(tm.mates, name)
		return err
	}

	tm.tracer.Emit(trace.EventTeammateSpawn, tm.runID, trace.Fields{"name": name, "role": role})
	tm.wg.Add(1)
	go func() {
		defer tm.wg.Done()
		mate.run()
	}()
	return nil
}

// Members returns the roster names, sorted.
func (tm *TeamManager) Members() []string {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	names := make([]string, 0, len(tm.mates))
	for name := range tm.mates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Roster renders the teammate table for /team.
func (tm *TeamManager) Roster() string {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	if len(tm.mates) == 0 {
		return "No teammates."
	}
	names := make([]string, 0, len(tm.mates))
	for name := range tm.mates {
		names = append(names, name)
	}
	sort.Strings(names)
	var b strings.Builder
	for i, name := range names {
		if i > 0 {
			b.WriteByte('\n')
		}
		mate := tm.mates[name]
		fmt.Fprintf(&b, "%-12s %-20s %s", name, mate.role, mate.Status())
	}
	return b.String()
}

// Wait blocks until every teammate goroutine has exited.
func (tm *TeamManager) Wait() {
	tm.wg.Wait()
}

// noteStatus persists a teammate status change and emits the trace
// event.
func (tm *TeamManager) noteStatus(name, status string) {
	tm.mu.Lock()
	tm.saveRosterLocked()
	runID := tm.runID
	tm.mu.Unlock()
	tm.tracer.Emit(trace.EventTeammateStatus, runID, trace.Fields{"name": name, "status": status})
}

// saveRosterLocked writes team/config.json. Caller holds the lock.
func (tm *TeamManager) saveRosterLocked() error {
	names := make([]string, 0, len(tm.mates))
	for name := range tm.mates {
		names = append(names, name)
	}
	sort.Strings(names)

	cfg := teamConfig{Members: make([]TeammateRecord, 0, len(names))}
	for _, name := range names {
		mate := tm.mates[name]
		cfg.Members = append(cfg.Members, TeammateRecord{
			Name:   name,
			Role:   mate.role,
			Status: mate.Status(),
		})
	}

	if err := os.MkdirAll(tm.sess.TeamDir(), 0o755); err != nil {
		return fmt.Errorf("save team config: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("save team config: %w", err)
	}
	tmp := tm.sess.TeamConfigPath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("save team config: %w", err)
	}
	return os.Rename(tmp, tm.sess.TeamConfigPath())
}
