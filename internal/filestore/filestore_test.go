package filestore

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"codearena/pkg/errors"
)

func TestNewMaterializerMissingDir(t *testing.T) {
	_, err := NewMaterializer(filepath.Join(t.TempDir(), "nope"))
	if !errors.Is(err, errors.StorageDirMissing) {
		t.Fatalf("expected StorageDirMissing, got %v", err)
	}
}

func TestWriteUniqueNames(t *testing.T) {
	dir := t.TempDir()
	m, err := NewMaterializer(dir)
	if err != nil {
		t.Fatalf("NewMaterializer: %v", err)
	}

	first, err := m.Write([]byte("console.log(1)"), "js")
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	second, err := m.Write([]byte("console.log(2)"), "js")
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if first == second {
		t.Fatal("two writes produced the same path")
	}

	namePattern := regexp.MustCompile(`^\d+-[0-9a-f]{9}\.js$`)
	if !namePattern.MatchString(filepath.Base(first)) {
		t.Errorf("unexpected file name %q", filepath.Base(first))
	}

	content, err := os.ReadFile(first)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(content) != "console.log(1)" {
		t.Errorf("content = %q", content)
	}
}

func TestWriteJava(t *testing.T) {
	dir := t.TempDir()
	m, err := NewMaterializer(dir)
	if err != nil {
		t.Fatalf("NewMaterializer: %v", err)
	}

	first, err := m.WriteJava([]byte("public class Main {}"), "Main")
	if err != nil {
		t.Fatalf("WriteJava: %v", err)
	}
	second, err := m.WriteJava([]byte("public class Main {}"), "Main")
	if err != nil {
		t.Fatalf("WriteJava: %v", err)
	}
	if first == second {
		t.Fatal("two java writes collided")
	}
	if filepath.Base(first) != "Main.java" {
		t.Errorf("file name = %q, want Main.java", filepath.Base(first))
	}
	if !strings.HasPrefix(first, dir) {
		t.Errorf("path %q not under %q", first, dir)
	}
}

func TestRemoveTolerantOfAbsence(t *testing.T) {
	dir := t.TempDir()
	m, err := NewMaterializer(dir)
	if err != nil {
		t.Fatalf("NewMaterializer: %v", err)
	}
	if err := m.Remove(filepath.Join(dir, "never-existed.js")); err != nil {
		t.Fatalf("Remove: %v", err)
	}
}
