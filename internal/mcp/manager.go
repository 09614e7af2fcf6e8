// Package mcp bridges external MCP servers into the tool registry. Each
// configured server is connected at startup; its tools are registered
// under mcp_<server>_<tool> names. Connection failures degrade
// gracefully: the server is skipped with a warning.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	mcpgo "github.com/mark3labs/mcp-go/mcp"

	"github.com/nextlevelbuilder/goforge/internal/config"
	"github.com/nextlevelbuilder/goforge/internal/tools"
)

// ServerStatus reports one server's connection state for doctor and /events.
type ServerStatus struct {
	Name      string
	Transport string
	Connected bool
	ToolCount int
	Error     string
}

type serverState struct {
	name      string
	transport string
	client    *mcpclient.Client
	connected atomic.Bool
	toolNames []string
	lastErr   string
}

// Manager owns the MCP server connections of one runtime.
type Manager struct {
	mu       sync.Mutex
	servers  map[string]*serverState
	registry *tools.Registry
	configs  map[string]config.MCPServerConfig
}

func NewManager(registry *tools.Registry, configs map[string]config.MCPServerConfig) *Manager {
	return &Manager{
		servers:  make(map[string]*serverState),
		registry: registry,
		configs:  configs,
	}
}

// Start connects every configured server. Individual failures are logged
// and skipped; Start only returns an error when nothing was asked for
// could not even be attempted.
func (m *Manager) Start(ctx context.Context) {
	for name, cfg := range m.configs {
		if err := m.connect(ctx, name, cfg); err != nil {
			slog.Warn("mcp server unavailable", "server", name, "error", err)
			m.mu.Lock()
			m.servers[name] = &serverState{name: name, transport: cfg.Transport, lastErr: err.Error()}
			m.mu.Unlock()
		}
	}
}

func (m *Manager) connect(ctx context.Context, name string, cfg config.MCPServerConfig) error {
	client, err := newClient(cfg)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}

	transportType := cfg.Transport
	if transportType == "" {
		transportType = "stdio"
	}
	if transportType != "stdio" {
		if err := client.Start(ctx); err != nil {
			client.Close()
			return fmt.Errorf("start transport: %w", err)
		}
	}

	initReq := mcpgo.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcpgo.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcpgo.Implementation{Name: "goforge", Version: "1.0.0"}
	if _, err := client.Initialize(ctx, initReq); err != nil {
		client.Close()
		return fmt.Errorf("initialize: %w", err)
	}

	listed, err := client.ListTools(ctx, mcpgo.ListToolsRequest{})
	if err != nil {
		client.Close()
		return fmt.Errorf("list tools: %w", err)
	}

	ss := &serverState{name: name, transport: transportType, client: client}
	ss.connected.Store(true)

	allow := toSet(cfg.AllowedTools)
	deny := toSet(cfg.DeniedTools)
	for _, remote := range listed.Tools {
		if _, denied := deny[remote.Name]; denied {
			continue
		}
		if len(allow) > 0 {
			if _, ok := allow[remote.Name]; !ok {
				continue
			}
		}

		bt := newBridgeTool(name, remote, client, &ss.connected)
		if _, exists := m.registry.Get(bt.Name()); exists {
			slog.Warn("mcp tool name collision, skipped", "server", name, "tool", bt.Name())
			continue
		}
		m.registry.Register(bt)
		ss.toolNames = append(ss.toolNames, bt.Name())
	}

	m.mu.Lock()
	m.servers[name] = ss
	m.mu.Unlock()

	slog.Info("mcp server connected", "server", name, "transport", transportType, "tools", len(ss.toolNames))
	return nil
}

func newClient(cfg config.MCPServerConfig) (*mcpclient.Client, error) {
	switch cfg.Transport {
	case "", "stdio":
		env := make([]string, 0, len(cfg.Env))
		for k, v := range cfg.Env {
			env = append(env, k+"="+v)
		}
		return mcpclient.NewStdioMCPClient(cfg.Command, env, cfg.Args...)
	case "sse":
		var opts []transport.ClientOption
		if len(cfg.Headers) > 0 {
			opts = append(opts, mcpclient.WithHeaders(cfg.Headers))
		}
		return mcpclient.NewSSEMCPClient(cfg.URL, opts...)
	case "http":
		var opts []transport.StreamableHTTPCOption
		if len(cfg.Headers) > 0 {
			opts = append(opts, transport.WithHTTPHeaders(cfg.Headers))
		}
		return mcpclient.NewStreamableHttpClient(cfg.URL, opts...)
	default:
		return nil, fmt.Errorf("unsupported transport %q", cfg.Transport)
	}
}

// Stop closes every connection and unregisters the bridged tools.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ss := range m.servers {
		if ss.client != nil {
			ss.client.Close()
		}
		for _, toolName := range ss.toolNames {
			m.registry.Unregister(toolName)
		}
	}
	m.servers = make(map[string]*serverState)
}

// Status returns per-server connection state, one entry per configured
// server.
func (m *Manager) Status() []ServerStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ServerStatus, 0, len(m.servers))
	for _, ss := range m.servers {
		out = append(out, ServerStatus{
			Name:      ss.name,
			Transport: ss.transport,
			Connected: ss.connected.Load(),
			ToolCount: len(ss.toolNames),
			Error:     ss.lastErr,
		})
	}
	return out
}

func toSet(items []string) map[string]struct{} {
	if len(items) == 0 {
		return nil
	}
	s := make(map[string]struct{}, len(items))
	for _, item := range items {
		s[item] = struct{}{}
	}
	return s
}
