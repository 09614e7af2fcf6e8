package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nextlevelbuilder/goforge/internal/session"
)

// Workspace tools operate under <session>/workspace/, the scratch space
// shared by the main agent, sub-agents and teammates of one session.

// WorkspaceWriteTool writes a scratch file.
type WorkspaceWriteTool struct {
	sess *session.Session
}

func NewWorkspaceWriteTool(sess *session.Session) *WorkspaceWriteTool {
	return &WorkspaceWriteTool{sess: sess}
}

func (t *WorkspaceWriteTool) Name() string { return "workspace_write" }
func (t *WorkspaceWriteTool) Description() string {
	return "Write a file into the session workspace (shared scratch space)"
}
func (t *WorkspaceWriteTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path":    map[string]interface{}{"type": "string", "description": "Workspace-relative path"},
			"content": map[string]interface{}{"type": "string", "description": "File content"},
		},
		"required": []string{"path", "content"},
	}
}

func (t *WorkspaceWriteTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	path, _ := args["path"].(string)
	content, _ := args["content"].(string)
	resolved, err := workspaceResolve(t.sess, path)
	if err != nil {
		return ErrorResult(err.Error())
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return ErrorResult(fmt.Sprintf("workspace write: %v", err))
	}
	if err := os.WriteFile(resolved, []byte(content), 0o644); err != nil {
		return ErrorResult(fmt.Sprintf("workspace write: %v", err))
	}
	return SilentResult(fmt.Sprintf("Wrote %d bytes to workspace/%s", len(content), path))
}

// WorkspaceReadTool reads a scratch file.
type WorkspaceReadTool struct {
	sess *session.Session
}

func NewWorkspaceReadTool(sess *session.Session) *WorkspaceReadTool {
	return &WorkspaceReadTool{sess: sess}
}

func (t *WorkspaceReadTool) Name() string { return "workspace_read" }
func (t *WorkspaceReadTool) Description() string {
	return "Read a file from the session workspace"
}
func (t *WorkspaceReadTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": map[string]interface{}{"type": "string", "description": "Workspace-relative path"},
		},
		"required": []string{"path"},
	}
}

func (t *WorkspaceReadTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	path, _ := args["path"].(string)
	resolved, err := workspaceResolve(t.sess, path)
	if err != nil {
		return ErrorResult(err.Error())
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return ErrorResult(fmt.Sprintf("workspace read %s: %v", path, err))
	}
	content := string(data)
	if len(content) > maxReadBytes {
		content = content[:maxReadBytes] + "\n... (truncated)"
	}
	return SilentResult(content)
}

// WorkspaceListTool lists the scratch directory tree.
type WorkspaceListTool struct {
	sess *session.Session
}

func NewWorkspaceListTool(sess *session.Session) *WorkspaceListTool {
	return &WorkspaceListTool{sess: sess}
}

func (t *WorkspaceListTool) Name() string { return "workspace_list" }
func (t *WorkspaceListTool) Description() string {
	return "List all files in the session workspace"
}
func (t *WorkspaceListTool) Parameters() map[string]interface{} {
	return map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
}

func (t *WorkspaceListTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	root := t.sess.WorkspaceDir()
	var files []string
	filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		files = append(files, fmt.Sprintf("%s (%d bytes)", rel, info.Size()))
		return nil
	})
	if len(files) == 0 {
		return SilentResult("Workspace is empty.")
	}
	return SilentResult(strings.Join(files, "\n"))
}

func workspaceResolve(sess *session.Session, path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path is required")
	}
	root := sess.WorkspaceDir()
	resolved := filepath.Clean(filepath.Join(root, path))
	if !isPathInside(resolved, root) {
		return "", fmt.Errorf("path %q escapes the workspace", path)
	}
	return resolved, nil
}
