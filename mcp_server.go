package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/cwsl/rnnoise-go/internal/rnnmodel"
)

// MCPServer exposes denoiser operational state as Model Context Protocol
// tools: stream listing with per-stream stats, aggregate analytics, and
// a hot model reload.
type MCPServer struct {
	sessions  *SessionManager
	stats     *StatsRecorder
	modelPath ModelConfig

	mu           sync.RWMutex
	currentModel rnnmodel.Runtime

	mcpServer  *server.MCPServer
	httpServer *server.StreamableHTTPServer
}

// NewMCPServer wires tool handlers against the running session manager
// and installs the current model, which reload_model can hot-swap.
func NewMCPServer(sessions *SessionManager, stats *StatsRecorder, cfg ModelConfig, model rnnmodel.Runtime) *MCPServer {
	m := &MCPServer{
		sessions:     sessions,
		stats:        stats,
		modelPath:    cfg,
		currentModel: model,
	}

	m.mcpServer = server.NewMCPServer(
		"rnnoise-go",
		"1.0.0",
		server.WithToolCapabilities(true),
	)
	m.registerTools()
	m.httpServer = server.NewStreamableHTTPServer(m.mcpServer)
	return m
}

func (m *MCPServer) registerTools() {
	m.mcpServer.AddTool(
		mcp.NewTool("list_streams",
			mcp.WithDescription("List currently open denoising streams with their source, age, and frame throughput."),
			mcp.WithString("format",
				mcp.Description("Output format: 'json' for structured data or 'text' for human-readable summary"),
				mcp.DefaultString("json"),
			),
		),
		m.handleListStreams,
	)

	m.mcpServer.AddTool(
		mcp.NewTool("get_session_analytics",
			mcp.WithDescription("Get aggregate analytics over recently closed streams: country, client, and duration-bucket counts."),
		),
		m.handleGetSessionAnalytics,
	)

	m.mcpServer.AddTool(
		mcp.NewTool("reload_model",
			mcp.WithDescription("Hot-reload the RNN gain/VAD model from the manifest and weights files configured at startup, without restarting the daemon. Existing streams keep using the previous model until they close."),
		),
		m.handleReloadModel,
	)
}

func (m *MCPServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.httpServer.ServeHTTP(w, r)
}

func (m *MCPServer) handleListStreams(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	format := request.GetString("format", "json")
	snap := m.sessions.Snapshot()

	streams := make([]map[string]interface{}, 0, len(snap))
	for _, s := range snap {
		streams = append(streams, map[string]interface{}{
			"id":               s.ID,
			"source_ip":        s.SourceIP,
			"created_at":       s.CreatedAt,
			"last_active":      s.LastActive,
			"frames_processed": s.FramesProcessed,
			"last_vad_prob":    s.LastVADProb,
			"age_sec":          time.Since(s.CreatedAt).Seconds(),
		})
	}

	if format == "text" {
		text := fmt.Sprintf("Active streams: %d\n\n", len(streams))
		for i, s := range streams {
			text += fmt.Sprintf("%d. %s | %s | %d frames | vad=%.2f\n",
				i+1, s["id"], s["source_ip"], s["frames_processed"], s["last_vad_prob"])
		}
		return mcp.NewToolResultText(text), nil
	}

	jsonData, err := json.MarshalIndent(map[string]interface{}{
		"active_streams": len(streams),
		"streams":        streams,
	}, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal data: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonData)), nil
}

func (m *MCPServer) handleGetSessionAnalytics(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if m.stats == nil {
		return mcp.NewToolResultError("session analytics are not enabled"), nil
	}
	entries := m.stats.Snapshot(time.Now().Add(-statsRetention))
	summary := summarizeStats(entries)

	jsonData, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal data: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonData)), nil
}

func (m *MCPServer) handleReloadModel(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	m.mu.RLock()
	cfg := m.modelPath
	m.mu.RUnlock()

	if cfg.ManifestPath == "" || cfg.WeightsPath == "" {
		return mcp.NewToolResultError("no manifest_path/weights_path configured, nothing to reload"), nil
	}

	model, err := rnnmodel.LoadModel(cfg.ManifestPath, cfg.WeightsPath)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("reload failed: %v", err)), nil
	}

	m.mu.Lock()
	m.currentModel = model
	m.mu.Unlock()
	m.sessions.SetModel(model)

	return mcp.NewToolResultText("model reloaded; new streams will use the updated weights"), nil
}
