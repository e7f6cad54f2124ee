package tools

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/vthunder/mneme/internal/logging"
)

// ExternalServerConfig describes an external stdio MCP server whose tools
// should be proxied into this registry (spec.md §4.9 "tools may also be
// sourced from an external MCP server over stdio"). Grounded on
// internal/mcp/proxy.go's ExternalServerConfig/ProxyClient, adapted with
// self-contained JSON-RPC result types since the types that file
// originally depended on (ToolDef, PropDef, jsonRPCResponse, *Server) lived
// in the deleted hand-rolled internal/mcp/server.go.
type ExternalServerConfig struct {
	Name    string
	Command string
	Args    []string
	Env     map[string]string
}

// mcpPropDef is one property of an external tool's input schema, as
// returned by that server's tools/list.
type mcpPropDef struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// mcpToolDef is one tool definition discovered from an external server.
type mcpToolDef struct {
	Name        string
	Description string
	Properties  map[string]mcpPropDef
	Required    []string
}

type jsonRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type jsonRPCResponse struct {
	ID     any             `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *jsonRPCError   `json:"error"`
}

type toolsListResult struct {
	Tools []struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		InputSchema struct {
			Properties map[string]mcpPropDef `json:"properties"`
			Required   []string              `json:"required"`
		} `json:"inputSchema"`
	} `json:"tools"`
}

type toolsCallResult struct {
	IsError bool `json:"isError"`
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

// Bridge manages a stdio MCP server subprocess and proxies tool calls to
// it, grounded on internal/mcp/proxy.go's ProxyClient.
type Bridge struct {
	name   string
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
	mu     sync.Mutex
	nextID int64
}

// StartBridge launches an external MCP server subprocess and completes
// the MCP initialize handshake.
func StartBridge(cfg ExternalServerConfig) (*Bridge, error) {
	cmd := exec.Command(cfg.Command, cfg.Args...)
	cmd.Env = os.Environ()
	for k, v := range cfg.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", cfg.Command, err)
	}

	b := &Bridge{
		name:   cfg.Name,
		cmd:    cmd,
		stdin:  stdin,
		stdout: bufio.NewReader(stdout),
	}
	if err := b.initialize(); err != nil {
		cmd.Process.Kill()
		cmd.Wait()
		return nil, fmt.Errorf("initialize %s: %w", cfg.Name, err)
	}
	logging.Info("mcp_bridge", "ready name=%s pid=%d", cfg.Name, cmd.Process.Pid)
	return b, nil
}

func (b *Bridge) newID() int64 {
	return atomic.AddInt64(&b.nextID, 1)
}

func (b *Bridge) sendRequest(method string, params any) (json.RawMessage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	req := map[string]any{
		"jsonrpc": "2.0",
		"id":      b.newID(),
		"method":  method,
	}
	if params != nil {
		req["params"] = params
	}
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	if _, err := fmt.Fprintf(b.stdin, "%s\n", data); err != nil {
		return nil, fmt.Errorf("write to %s: %w", b.name, err)
	}

	for {
		line, err := b.stdout.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("read from %s: %w", b.name, err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var resp jsonRPCResponse
		if err := json.Unmarshal([]byte(line), &resp); err != nil {
			logging.Warn("mcp_bridge", "skipping non-JSON line from %s: %.80s", b.name, line)
			continue
		}
		if resp.ID == nil {
			continue
		}
		if resp.Error != nil {
			return nil, fmt.Errorf("rpc error %d: %s", resp.Error.Code, resp.Error.Message)
		}
		return resp.Result, nil
	}
}

func (b *Bridge) sendNotification(method string, params any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	notif := map[string]any{"jsonrpc": "2.0", "method": method}
	if params != nil {
		notif["params"] = params
	}
	data, err := json.Marshal(notif)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	_, err = fmt.Fprintf(b.stdin, "%s\n", data)
	return err
}

func (b *Bridge) initialize() error {
	_, err := b.sendRequest("initialize", map[string]any{
		"protocolVersion": "2024-11-05",
		"clientInfo":      map[string]string{"name": "mneme", "version": "0.1.0"},
		"capabilities":    map[string]any{},
	})
	if err != nil {
		return fmt.Errorf("initialize handshake: %w", err)
	}
	return b.sendNotification("notifications/initialized", nil)
}

// DiscoverTools lists tools exposed by the external server.
func (b *Bridge) DiscoverTools() ([]mcpToolDef, error) {
	result, err := b.sendRequest("tools/list", nil)
	if err != nil {
		return nil, fmt.Errorf("tools/list: %w", err)
	}
	var listResult toolsListResult
	if err := json.Unmarshal(result, &listResult); err != nil {
		return nil, fmt.Errorf("parse tools list: %w", err)
	}
	defs := make([]mcpToolDef, 0, len(listResult.Tools))
	for _, t := range listResult.Tools {
		defs = append(defs, mcpToolDef{
			Name:        t.Name,
			Description: t.Description,
			Properties:  t.InputSchema.Properties,
			Required:    t.InputSchema.Required,
		})
	}
	return defs, nil
}

// CallTool invokes a named tool on the external server.
func (b *Bridge) CallTool(name string, args map[string]any) (string, error) {
	result, err := b.sendRequest("tools/call", map[string]any{"name": name, "arguments": args})
	if err != nil {
		return "", fmt.Errorf("tools/call %s: %w", name, err)
	}
	var callResult toolsCallResult
	if err := json.Unmarshal(result, &callResult); err != nil {
		return "", fmt.Errorf("parse call result: %w", err)
	}
	if callResult.IsError {
		if len(callResult.Content) > 0 {
			return "", fmt.Errorf("%s", callResult.Content[0].Text)
		}
		return "", fmt.Errorf("tool returned error")
	}
	if len(callResult.Content) == 0 {
		return "", nil
	}
	return callResult.Content[0].Text, nil
}

// Close terminates the external server process.
func (b *Bridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stdin.Close()
	if b.cmd.Process != nil {
		b.cmd.Process.Kill()
	}
	b.cmd.Wait()
}

// RegisterExternal starts cfg's server, discovers its tools, and
// registers each as an Active-tier tool on reg whose handler proxies the
// call through the bridge. Destructive external tools are not
// distinguishable from the wire protocol alone, so everything proxied in
// is conservatively Active — it still passes through schema validation
// and allowlist checks like any other tool.
func RegisterExternal(reg *Registry, cfg ExternalServerConfig) (*Bridge, error) {
	bridge, err := StartBridge(cfg)
	if err != nil {
		return nil, err
	}
	defs, err := bridge.DiscoverTools()
	if err != nil {
		bridge.Close()
		return nil, fmt.Errorf("discover tools from %s: %w", cfg.Name, err)
	}
	for _, def := range defs {
		props := make(map[string]Property, len(def.Properties))
		for name, p := range def.Properties {
			props[name] = Property{Type: PropertyType(p.Type), Description: p.Description}
		}
		toolName := fmt.Sprintf("%s.%s", cfg.Name, def.Name)
		externalName := def.Name
		reg.Register(Tool{
			Name:        toolName,
			Description: def.Description,
			Schema:      Schema{Properties: props, Required: def.Required},
			Capability:  Active,
			Handler: func(ctx context.Context, args map[string]any) Result {
				return callBridge(bridge, externalName, args)
			},
		})
	}
	logging.Info("mcp_bridge", "registered %d tools from %s", len(defs), cfg.Name)
	return bridge, nil
}

func callBridge(bridge *Bridge, name string, args map[string]any) Result {
	content, err := bridge.CallTool(name, args)
	if err != nil {
		return errResult("%v", err)
	}
	return Result{Content: content}
}
