// Package workspace provides per-project sandboxed file storage for
// generated artifacts. Developer and tester output files land here, under
// <root>/<project-id>/, and every path is confined to that directory.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"devteam/pkg/logx"
	"devteam/pkg/utils"
)

// Manager owns a workspace root directory and hands out per-project
// sandboxed file operations.
type Manager struct {
	root   string
	logger *logx.Logger
}

// NewManager creates a workspace manager rooted at the given directory.
// The root is created if it does not exist.
func NewManager(root string) (*Manager, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace root: %w", err)
	}
	if err := os.MkdirAll(absRoot, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create workspace root: %w", err)
	}
	return &Manager{
		root:   absRoot,
		logger: logx.NewLogger("workspace"),
	}, nil
}

// Root returns the absolute workspace root directory.
func (m *Manager) Root() string {
	return m.root
}

// ProjectDir returns the absolute directory for a project, creating it if
// needed.
func (m *Manager) ProjectDir(projectID string) (string, error) {
	dir := filepath.Join(m.root, utils.SanitizeIdentifier(projectID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create project directory: %w", err)
	}
	return dir, nil
}

// resolve maps a relative artifact path into the project sandbox, rejecting
// absolute paths and any path that escapes the project directory.
func (m *Manager) resolve(projectID, relPath string) (string, error) {
	if relPath == "" {
		return "", fmt.Errorf("empty artifact path")
	}
	if filepath.IsAbs(relPath) {
		return "", fmt.Errorf("absolute artifact path not allowed: %s", relPath)
	}

	projectDir, err := m.ProjectDir(projectID)
	if err != nil {
		return "", err
	}

	full := filepath.Join(projectDir, filepath.Clean(relPath))
	rel, err := filepath.Rel(projectDir, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("artifact path escapes project directory: %s", relPath)
	}
	return full, nil
}

// WriteFile writes an artifact into the project sandbox, creating parent
// directories as needed. Returns the path relative to the project directory.
func (m *Manager) WriteFile(projectID, relPath, content string) (string, error) {
	full, err := m.resolve(projectID, relPath)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("failed to create artifact directory: %w", err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("failed to write artifact: %w", err)
	}

	projectDir, _ := m.ProjectDir(projectID)
	rel, _ := filepath.Rel(projectDir, full)
	m.logger.Debug("Wrote artifact %s (%d bytes) for project %s", rel, len(content), projectID)
	return rel, nil
}

// ReadFile reads an artifact from the project sandbox.
func (m *Manager) ReadFile(projectID, relPath string) (string, error) {
	full, err := m.resolve(projectID, relPath)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return "", fmt.Errorf("failed to read artifact: %w", err)
	}
	return string(data), nil
}

// ListFiles returns the relative paths of all artifacts in the project
// sandbox, sorted.
func (m *Manager) ListFiles(projectID string) ([]string, error) {
	projectDir, err := m.ProjectDir(projectID)
	if err != nil {
		return nil, err
	}

	var files []string
	walkErr := filepath.Walk(projectDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(projectDir, path)
		if relErr != nil {
			return relErr
		}
		files = append(files, rel)
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", walkErr)
	}

	sort.Strings(files)
	return files, nil
}
