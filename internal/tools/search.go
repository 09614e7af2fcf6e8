package tools

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

const maxGrepMatches = 200

// GlobTool matches file paths against a shell glob pattern, walking the
// workspace tree.
type GlobTool struct {
	workspace string
	restrict  bool
}

func NewGlobTool(workspace string, restrict bool) *GlobTool {
	return &GlobTool{workspace: workspace, restrict: restrict}
}

func (t *GlobTool) Name() string { return "glob" }
func (t *GlobTool) Description() string {
	return "Find files matching a glob pattern like **/*.go or src/*.json"
}
func (t *GlobTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"pattern": map[string]interface{}{"type": "string", "description": "Glob pattern, matched against workspace-relative paths"},
			"path":    map[string]interface{}{"type": "string", "description": "Directory to search from; defaults to the workspace root"},
		},
		"required": []string{"pattern"},
	}
}

func (t *GlobTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	pattern, _ := args["pattern"].(string)
	if pattern == "" {
		return ErrorResult("pattern is required")
	}
	root, _ := args["path"].(string)
	if root == "" {
		root = "."
	}
	resolved, err := resolvePath(root, t.workspace, t.restrict)
	if err != nil {
		return ErrorResult(err.Error())
	}

	var matches []string
	err = filepath.WalkDir(resolved, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if d.Name() == ".git" || d.Name() == "node_modules" {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(resolved, path)
		if err != nil {
			return nil
		}
		if ok, _ := matchGlob(pattern, rel); ok {
			matches = append(matches, rel)
		}
		if len(matches) >= maxGrepMatches {
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil {
		return ErrorResult(fmt.Sprintf("glob: %v", err))
	}
	if len(matches) == 0 {
		return SilentResult("No files match " + pattern)
	}
	return SilentResult(strings.Join(matches, "\n"))
}

// matchGlob supports ** across path separators on top of path.Match
// semantics for the rest of the pattern.
func matchGlob(pattern, name string) (bool, error) {
	name = filepath.ToSlash(name)
	pattern = filepath.ToSlash(pattern)
	if !strings.Contains(pattern, "**") {
		return filepath.Match(pattern, name)
	}

	parts := strings.Split(pattern, "**")
	// Leading part must prefix-match, trailing part must suffix-match.
	rest := name
	if parts[0] != "" {
		prefix := strings.TrimSuffix(parts[0], "/")
		ok, err := filepath.Match(prefix+"/*", dirPrefix(name, prefix))
		if err != nil {
			return false, err
		}
		if !ok && !strings.HasPrefix(name, prefix+"/") {
			return false, nil
		}
		rest = strings.TrimPrefix(name, prefix+"/")
	}
	last := parts[len(parts)-1]
	if last == "" {
		return true, nil
	}
	last = strings.TrimPrefix(last, "/")
	// Try matching the tail pattern against every suffix of rest.
	segs := strings.Split(rest, "/")
	for i := range segs {
		candidate := strings.Join(segs[i:], "/")
		if ok, _ := filepath.Match(last, candidate); ok {
			return true, nil
		}
	}
	return false, nil
}

func dirPrefix(name, prefix string) string {
	if strings.HasPrefix(name, prefix+"/") {
		return prefix + "/" + strings.SplitN(strings.TrimPrefix(name, prefix+"/"), "/", 2)[0]
	}
	return name
}

// GrepTool searches file contents with a regular expression.
type GrepTool struct {
	workspace string
	restrict  bool
}

func NewGrepTool(workspace string, restrict bool) *GrepTool {
	return &GrepTool{workspace: workspace, restrict: restrict}
}

func (t *GrepTool) Name() string { return "grep" }
func (t *GrepTool) Description() string {
	return "Search file contents with a regular expression, returning matching lines"
}
func (t *GrepTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"pattern": map[string]interface{}{"type": "string", "description": "Go regular expression"},
			"path":    map[string]interface{}{"type": "string", "description": "File or directory to search; defaults to the workspace root"},
			"glob":    map[string]interface{}{"type": "string", "description": "Only search files matching this glob"},
		},
		"required": []string{"pattern"},
	}
}

func (t *GrepTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	pattern, _ := args["pattern"].(string)
	if pattern == "" {
		return ErrorResult("pattern is required")
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return ErrorResult(fmt.Sprintf("invalid regex: %v", err))
	}

	root, _ := args["path"].(string)
	if root == "" {
		root = "."
	}
	resolved, err := resolvePath(root, t.workspace, t.restrict)
	if err != nil {
		return ErrorResult(err.Error())
	}
	fileGlob, _ := args["glob"].(string)

	var b strings.Builder
	count := 0
	walkErr := filepath.WalkDir(resolved, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if d.Name() == ".git" || d.Name() == "node_modules" {
				return filepath.SkipDir
			}
			return nil
		}
		rel, _ := filepath.Rel(resolved, path)
		if fileGlob != "" {
			if ok, _ := matchGlob(fileGlob, rel); !ok {
				return nil
			}
		}
		data, err := os.ReadFile(path)
		if err != nil || !utf8Valid(data) {
			return nil
		}
		for i, line := range strings.Split(string(data), "\n") {
			if re.MatchString(line) {
				fmt.Fprintf(&b, "%s:%d: %s\n", rel, i+1, truncate(strings.TrimSpace(line), 200))
				count++
				if count >= maxGrepMatches {
					return filepath.SkipAll
				}
			}
		}
		return nil
	})
	if walkErr != nil {
		return ErrorResult(fmt.Sprintf("grep: %v", walkErr))
	}
	if count == 0 {
		return SilentResult("No matches for " + pattern)
	}
	out := strings.TrimRight(b.String(), "\n")
	if count >= maxGrepMatches {
		out += fmt.Sprintf("\n... (stopped at %d matches)", maxGrepMatches)
	}
	return SilentResult(out)
}

// utf8Valid is a cheap binary-file filter: reject anything with NUL
// bytes in the first KB.
func utf8Valid(data []byte) bool {
	n := len(data)
	if n > 1024 {
		n = 1024
	}
	for _, b := range data[:n] {
		if b == 0 {
			return false
		}
	}
	return true
}
