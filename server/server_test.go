package server

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
)

const squattedLock = `{
  "name": "squatted",
  "lockfileVersion": 3,
  "packages": {
    "node_modules/lodahs": {"version": "1.0.0"},
    "node_modules/react": {"version": "18.2.0"}
  }
}
`

const cleanLock = `{
  "name": "clean",
  "lockfileVersion": 3,
  "packages": {
    "node_modules/lodash": {"version": "4.17.21"}
  }
}
`

func TestIsPathAllowed_NoRestrictions(t *testing.T) {
	s := New("0.1.0", nil)

	if err := s.isPathAllowed("/any/path"); err != nil {
		t.Fatalf("expected no error for unrestricted server, got: %v", err)
	}
}

func TestIsPathAllowed_AllowedPath(t *testing.T) {
	dir := t.TempDir()
	s := New("0.1.0", []string{dir})

	sub := filepath.Join(dir, "subdir")
	if err := s.isPathAllowed(sub); err != nil {
		t.Fatalf("expected path under allowed root to be allowed, got: %v", err)
	}
}

func TestIsPathAllowed_DisallowedPath(t *testing.T) {
	s := New("0.1.0", []string{"/allowed/workspace"})

	if err := s.isPathAllowed("/other/path"); err == nil {
		t.Fatal("expected error for path outside allowed workspace")
	}
}

func TestIsPathAllowed_ExactRoot(t *testing.T) {
	dir := t.TempDir()
	s := New("0.1.0", []string{dir})

	if err := s.isPathAllowed(dir); err != nil {
		t.Fatalf("expected exact root path to be allowed, got: %v", err)
	}
}

func TestIsPathAllowed_TraversalBlocked(t *testing.T) {
	dir := t.TempDir()
	s := New("0.1.0", []string{dir})

	traversal := filepath.Join(dir, "..", "escape")
	if err := s.isPathAllowed(traversal); err == nil {
		t.Fatal("expected path traversal to be blocked")
	}
}

func TestHandleAudit_CleanDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "package-lock.json", cleanLock)

	s := New("0.1.0", nil)
	req := makeToolRequest(t, "audit", map[string]any{"path": dir, "offline": true})

	result, err := s.handleAudit(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success, got error: %s", toolResultText(result))
	}

	text := toolResultText(result)
	if !strings.Contains(text, "0 findings") {
		t.Fatalf("expected 0 findings in summary, got: %s", text)
	}
}

func TestHandleAudit_WithFindings(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "package-lock.json", squattedLock)

	s := New("0.1.0", nil)
	req := makeToolRequest(t, "audit", map[string]any{"path": dir, "offline": true})

	result, err := s.handleAudit(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success, got error: %s", toolResultText(result))
	}

	text := toolResultText(result)
	if strings.Contains(text, "0 findings") {
		t.Fatalf("expected findings in summary, got: %s", text)
	}
}

func TestHandleAudit_DisallowedPath(t *testing.T) {
	dir := t.TempDir()
	s := New("0.1.0", []string{"/allowed/only"})

	req := makeToolRequest(t, "audit", map[string]any{"path": dir})

	result, err := s.handleAudit(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error for disallowed path")
	}

	text := toolResultText(result)
	if !strings.Contains(text, "outside allowed workspaces") {
		t.Fatalf("expected workspace error, got: %s", text)
	}
}

func TestHandleAudit_MissingPath(t *testing.T) {
	s := New("0.1.0", nil)
	req := makeToolRequest(t, "audit", map[string]any{})

	result, err := s.handleAudit(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error for missing path argument")
	}
}

func TestHandleCheckPackage_Clean(t *testing.T) {
	s := New("0.1.0", nil)
	req := makeToolRequest(t, "check_package", map[string]any{"name": "lodash"})

	result, err := s.handleCheckPackage(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success, got error: %s", toolResultText(result))
	}

	text := toolResultText(result)
	if !strings.Contains(text, "no name-confusion findings") {
		t.Fatalf("expected clean verdict, got: %s", text)
	}
}

func TestHandleCheckPackage_Typosquat(t *testing.T) {
	s := New("0.1.0", nil)
	req := makeToolRequest(t, "check_package", map[string]any{"name": "lodahs", "ecosystem": "npm"})

	result, err := s.handleCheckPackage(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success, got error: %s", toolResultText(result))
	}

	text := toolResultText(result)
	if !strings.Contains(text, "TYPO-001") {
		t.Fatalf("expected a TYPO-001 finding, got: %s", text)
	}
	if !strings.Contains(text, "lodash") {
		t.Fatalf("expected the impersonated target in output, got: %s", text)
	}
}

func TestHandleCheckPackage_MissingName(t *testing.T) {
	s := New("0.1.0", nil)
	req := makeToolRequest(t, "check_package", map[string]any{})

	result, err := s.handleCheckPackage(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error for missing name argument")
	}
}

func TestHandleGetFindings_BeforeAudit(t *testing.T) {
	s := New("0.1.0", nil)
	req := makeToolRequest(t, "get_findings", map[string]any{})

	result, err := s.handleGetFindings(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error before any audit")
	}

	text := toolResultText(result)
	if !strings.Contains(text, "no audit results") {
		t.Fatalf("expected no-audit-results message, got: %s", text)
	}
}

func TestHandleGetFindings_JSON(t *testing.T) {
	s := auditSquattedDir(t)
	req := makeToolRequest(t, "get_findings", map[string]any{"format": "json"})

	result, err := s.handleGetFindings(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success, got error: %s", toolResultText(result))
	}

	text := toolResultText(result)
	if !strings.Contains(text, `"findings"`) {
		t.Fatalf("expected JSON findings output, got: %s", text)
	}
}

func TestHandleGetFindings_CSV(t *testing.T) {
	s := auditSquattedDir(t)
	req := makeToolRequest(t, "get_findings", map[string]any{"format": "csv"})

	result, err := s.handleGetFindings(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success, got error: %s", toolResultText(result))
	}

	text := toolResultText(result)
	if !strings.HasPrefix(text, "rule_id,severity") {
		t.Fatalf("expected CSV header, got: %s", text)
	}
}

func TestHandleGetInventory(t *testing.T) {
	s := auditSquattedDir(t)
	req := makeToolRequest(t, "get_inventory", map[string]any{})

	result, err := s.handleGetInventory(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success, got error: %s", toolResultText(result))
	}

	text := toolResultText(result)
	if !strings.Contains(text, `"react"`) {
		t.Fatalf("expected react in inventory, got: %s", text)
	}
}

func TestHandleResourceFindings_BeforeAudit(t *testing.T) {
	s := New("0.1.0", nil)
	req := mcp.ReadResourceRequest{}
	req.Params.URI = "chainspect://findings"

	if _, err := s.handleResourceFindings(context.Background(), req); err == nil {
		t.Fatal("expected error before any audit")
	}
}

func TestHandleResourceFindings(t *testing.T) {
	s := auditSquattedDir(t)
	req := mcp.ReadResourceRequest{}
	req.Params.URI = "chainspect://findings"

	contents, err := s.handleResourceFindings(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("expected 1 resource content, got %d", len(contents))
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("expected TextResourceContents, got %T", contents[0])
	}
	if tc.URI != "chainspect://findings" {
		t.Errorf("URI = %q", tc.URI)
	}
	if !strings.Contains(tc.Text, `"findings"`) {
		t.Error("resource text missing findings payload")
	}
}

func TestHandleResourceInventory(t *testing.T) {
	s := auditSquattedDir(t)
	req := mcp.ReadResourceRequest{}
	req.Params.URI = "chainspect://inventory"

	contents, err := s.handleResourceInventory(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("expected 1 resource content, got %d", len(contents))
	}
}

func TestTruncate(t *testing.T) {
	short := "short output"
	if got := truncate(short); got != short {
		t.Errorf("truncate(short) = %q, want unchanged", got)
	}

	long := strings.Repeat("x", maxOutputBytes+10)
	got := truncate(long)
	if len(got) <= maxOutputBytes {
		t.Error("expected truncation notice appended")
	}
	if !strings.Contains(got, "truncated") {
		t.Error("expected truncation notice")
	}
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("writing file %s: %v", name, err)
	}
}

func makeToolRequest(t *testing.T, name string, args map[string]any) mcp.CallToolRequest {
	t.Helper()
	argsJSON, err := json.Marshal(args)
	if err != nil {
		t.Fatalf("marshaling args: %v", err)
	}
	var raw any
	if err := json.Unmarshal(argsJSON, &raw); err != nil {
		t.Fatalf("unmarshaling args: %v", err)
	}
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: raw,
		},
	}
}

func toolResultText(result *mcp.CallToolResult) string {
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

// auditSquattedDir audits a temporary directory containing a lockfile with
// a typosquatted package, returning the server with cached results.
func auditSquattedDir(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "package-lock.json", squattedLock)

	s := New("0.1.0", nil)
	req := makeToolRequest(t, "audit", map[string]any{"path": dir, "offline": true})
	result, err := s.handleAudit(context.Background(), req)
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	if result.IsError {
		t.Fatalf("audit failed: %s", toolResultText(result))
	}
	return s
}
