package workspace

import (
	"path/filepath"
	"testing"
)

func TestWriteAndReadFile(t *testing.T) {
	m, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	rel, err := m.WriteFile("proj-1", "src/main.go", "package main")
	if err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if rel != filepath.Join("src", "main.go") {
		t.Errorf("unexpected relative path: %q", rel)
	}

	content, err := m.ReadFile("proj-1", "src/main.go")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if content != "package main" {
		t.Errorf("unexpected content: %q", content)
	}
}

func TestListFiles(t *testing.T) {
	m, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	for _, path := range []string{"b.go", "a.go", "nested/c.go"} {
		if _, err := m.WriteFile("proj", path, "x"); err != nil {
			t.Fatalf("WriteFile(%s): %v", path, err)
		}
	}

	files, err := m.ListFiles("proj")
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	if len(files) != 3 {
		t.Fatalf("expected 3 files, got %v", files)
	}
	if files[0] != "a.go" {
		t.Errorf("expected sorted output, got %v", files)
	}
}

func TestPathEscapeRejected(t *testing.T) {
	m, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	escapes := []string{
		"../outside.txt",
		"../../etc/passwd",
		"nested/../../outside.txt",
		"/etc/passwd",
		"",
	}
	for _, path := range escapes {
		if _, err := m.WriteFile("proj", path, "x"); err == nil {
			t.Errorf("expected rejection for %q", path)
		}
	}
}

func TestProjectsIsolated(t *testing.T) {
	m, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	if _, err := m.WriteFile("proj-a", "file.txt", "a"); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := m.ReadFile("proj-b", "file.txt"); err == nil {
		t.Error("project b should not see project a's files")
	}
}

func TestProjectIDSanitized(t *testing.T) {
	m, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	dir, err := m.ProjectDir("proj:with spaces/and slashes")
	if err != nil {
		t.Fatalf("ProjectDir: %v", err)
	}
	base := filepath.Base(dir)
	if base != "proj-with-spaces-and-slashes" {
		t.Errorf("unexpected project dir name: %q", base)
	}
}
