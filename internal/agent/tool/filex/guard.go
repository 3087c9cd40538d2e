package filex

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// fsGuard resolves tool-supplied paths against the workspace and
// enforces the allow-list every file tool shares.
type fsGuard struct {
	workspace    string
	allowedPaths []string
}

func newFSGuard(workspace string, allowedPaths []string) *fsGuard {
	return &fsGuard{
		workspace:    workspace,
		allowedPaths: allowedPaths,
	}
}

// resolvePath turns a tool argument into an absolute, cleaned path;
// relative paths anchor at the workspace.
func (g *fsGuard) resolvePath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", fmt.Errorf("path is required")
	}
	if filepath.IsAbs(path) {
		return filepath.Clean(path), nil
	}
	if g.workspace != "" {
		return filepath.Clean(filepath.Join(g.workspace, path)), nil
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	return absPath, nil
}

// checkPathAllowed rejects paths outside every allowed root. An empty
// allow-list permits everything.
func (g *fsGuard) checkPathAllowed(path string) error {
	if len(g.allowedPaths) == 0 {
		return nil
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	for _, allowed := range g.allowedPaths {
		allowedPath := strings.TrimSpace(allowed)
		if allowedPath == "" {
			continue
		}
		allowedAbs, err := filepath.Abs(allowedPath)
		if err != nil {
			continue
		}
		if ok, err := isPathWithin(absPath, allowedAbs); err == nil && ok {
			return nil
		}
	}
	return fmt.Errorf("path not allowed: %s", path)
}

func isPathWithin(path string, root string) (bool, error) {
	pathAbs, err := filepath.Abs(path)
	if err != nil {
		return false, err
	}
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return false, err
	}
	rel, err := filepath.Rel(filepath.Clean(rootAbs), filepath.Clean(pathAbs))
	if err != nil {
		return false, err
	}
	if rel == "." {
		return true, nil
	}
	if strings.HasPrefix(rel, ".."+string(os.PathSeparator)) || rel == ".." {
		return false, nil
	}
	return true, nil
}
