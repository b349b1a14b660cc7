// Package server implements the MCP server for agent-driven package audits.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	chainspect "github.com/chainspect/chainspect/core"
	"github.com/chainspect/chainspect/core/report"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

const (
	// maxOutputBytes is the maximum response size before truncation (1 MB).
	maxOutputBytes = 1 << 20
)

// Server is the chainspect MCP server.
type Server struct {
	version      string
	allowedPaths []string

	mu    sync.RWMutex
	cache *chainspect.AuditResult
}

// New creates a new MCP server. If allowedPaths is empty, any path is allowed.
func New(version string, allowedPaths []string) *Server {
	// Resolve allowed paths to absolute for consistent comparison.
	resolved := make([]string, 0, len(allowedPaths))
	for _, p := range allowedPaths {
		abs, err := filepath.Abs(p)
		if err == nil {
			resolved = append(resolved, abs)
		}
	}
	return &Server{
		version:      version,
		allowedPaths: resolved,
	}
}

// Serve starts the MCP server on stdio and blocks until the client disconnects.
func (s *Server) Serve() error {
	srv := mcpserver.NewMCPServer(
		"chainspect",
		s.version,
		mcpserver.WithRecovery(),
		mcpserver.WithToolCapabilities(false),
		mcpserver.WithResourceCapabilities(false, false),
	)

	s.registerTools(srv)
	s.registerResources(srv)

	return mcpserver.ServeStdio(srv)
}

func (s *Server) registerTools(srv *mcpserver.MCPServer) {
	// audit tool runs the full audit pipeline over a directory.
	srv.AddTool(
		mcp.NewTool("audit",
			mcp.WithDescription("Audit a project's lockfiles for typosquats, known-malicious packages, and vulnerabilities"),
			mcp.WithString("path",
				mcp.Description("Absolute path to the directory to audit"),
				mcp.Required(),
			),
			mcp.WithBoolean("offline",
				mcp.Description("Skip OSV.dev vulnerability lookups"),
				mcp.DefaultBool(false),
			),
			mcp.WithReadOnlyHintAnnotation(true),
		),
		s.handleAudit,
	)

	// check_package tool checks a single name without touching disk.
	srv.AddTool(
		mcp.NewTool("check_package",
			mcp.WithDescription("Check a single package name against the popular-package catalog for name confusion"),
			mcp.WithString("name",
				mcp.Description("Package name to check"),
				mcp.Required(),
			),
			mcp.WithString("ecosystem",
				mcp.Description("Package ecosystem"),
				mcp.Enum("npm", "pypi", "crates"),
				mcp.DefaultString("npm"),
			),
			mcp.WithReadOnlyHintAnnotation(true),
		),
		s.handleCheckPackage,
	)

	// get_findings tool returns findings from the last audit.
	srv.AddTool(
		mcp.NewTool("get_findings",
			mcp.WithDescription("Get findings from the last audit"),
			mcp.WithString("format",
				mcp.Description("Output format: json or csv"),
				mcp.Enum("json", "csv"),
				mcp.DefaultString("json"),
			),
			mcp.WithReadOnlyHintAnnotation(true),
		),
		s.handleGetFindings,
	)

	// get_inventory tool returns the package inventory from the last audit.
	srv.AddTool(
		mcp.NewTool("get_inventory",
			mcp.WithDescription("Get the package inventory from the last audit"),
			mcp.WithReadOnlyHintAnnotation(true),
		),
		s.handleGetInventory,
	)
}

func (s *Server) registerResources(srv *mcpserver.MCPServer) {
	srv.AddResource(
		mcp.NewResource("chainspect://findings", "Findings JSON",
			mcp.WithResourceDescription("Audit findings in chainspect JSON format"),
			mcp.WithMIMEType("application/json"),
		),
		s.handleResourceFindings,
	)

	srv.AddResource(
		mcp.NewResource("chainspect://inventory", "Package Inventory",
			mcp.WithResourceDescription("Packages collected from the audited lockfiles"),
			mcp.WithMIMEType("application/json"),
		),
		s.handleResourceInventory,
	)
}

// isPathAllowed checks if the given path is under one of the allowed workspace roots.
func (s *Server) isPathAllowed(path string) error {
	if len(s.allowedPaths) == 0 {
		return nil
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("cannot resolve path: %w", err)
	}

	for _, allowed := range s.allowedPaths {
		// Use filepath.Rel to check containment properly.
		rel, err := filepath.Rel(allowed, abs)
		if err != nil {
			continue
		}
		// If the relative path doesn't start with "..", it's under the allowed root.
		if !strings.HasPrefix(rel, "..") {
			return nil
		}
	}

	return fmt.Errorf("path %q is outside allowed workspaces", path)
}

func (s *Server) handleAudit(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError("missing required argument: path"), nil
	}

	if err := s.isPathAllowed(path); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	offline := request.GetBool("offline", false)

	result, err := chainspect.RunAuditWithOptions(ctx, path, chainspect.AuditOptions{
		DisableOSV: offline,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("audit failed: %v", err)), nil
	}

	// Cache the result for subsequent tool/resource calls.
	s.mu.Lock()
	s.cache = result
	s.mu.Unlock()

	summary := fmt.Sprintf("Audit complete: %d findings across %d packages from %d lockfiles",
		result.Findings.Len(), result.Inventory.Len(), len(result.Manifests))

	return mcp.NewToolResultText(summary), nil
}

func (s *Server) handleCheckPackage(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError("missing required argument: name"), nil
	}

	ecosystem := request.GetString("ecosystem", "npm")

	result := chainspect.CheckPackage(name, ecosystem, 0)
	if result.Len() == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("%s (%s): no name-confusion findings", name, ecosystem)), nil
	}

	data, err := json.MarshalIndent(result.Findings(), "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshalling findings: %v", err)), nil
	}

	return mcp.NewToolResultText(truncate(string(data))), nil
}

func (s *Server) handleGetFindings(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.mu.RLock()
	cache := s.cache
	s.mu.RUnlock()

	if cache == nil {
		return mcp.NewToolResultError("no audit results available: run the audit tool first"), nil
	}

	format := request.GetString("format", "json")

	var data []byte
	var err error

	switch format {
	case "csv":
		r := report.NewCSVReporter()
		data, err = r.Generate(cache.Findings)
	default:
		r := report.NewJSONReporter(s.version)
		data, err = r.Generate(cache.Findings)
	}

	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("report generation failed: %v", err)), nil
	}

	return mcp.NewToolResultText(truncate(string(data))), nil
}

func (s *Server) handleGetInventory(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.mu.RLock()
	cache := s.cache
	s.mu.RUnlock()

	if cache == nil {
		return mcp.NewToolResultError("no audit results available: run the audit tool first"), nil
	}

	data, err := json.MarshalIndent(cache.Inventory.Packages(), "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshalling inventory: %v", err)), nil
	}

	return mcp.NewToolResultText(truncate(string(data))), nil
}

// Resource handlers.

func (s *Server) handleResourceFindings(_ context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	s.mu.RLock()
	cache := s.cache
	s.mu.RUnlock()

	if cache == nil {
		return nil, fmt.Errorf("no audit results available")
	}

	r := report.NewJSONReporter(s.version)
	data, err := r.Generate(cache.Findings)
	if err != nil {
		return nil, fmt.Errorf("generating findings JSON: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     truncate(string(data)),
		},
	}, nil
}

func (s *Server) handleResourceInventory(_ context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	s.mu.RLock()
	cache := s.cache
	s.mu.RUnlock()

	if cache == nil {
		return nil, fmt.Errorf("no audit results available")
	}

	data, err := json.MarshalIndent(cache.Inventory.Packages(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("generating inventory JSON: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     truncate(string(data)),
		},
	}, nil
}

// truncate limits output to maxOutputBytes, appending a truncation notice if needed.
func truncate(s string) string {
	if len(s) <= maxOutputBytes {
		return s
	}
	return s[:maxOutputBytes] + "\n... [truncated: output exceeded 1MB limit]"
}
