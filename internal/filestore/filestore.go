// Package filestore materializes generated source files into the shared
// directory the sandbox CLI reads from.
package filestore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"codearena/pkg/errors"

	"github.com/google/uuid"
)

// Materializer writes generated source files under a shared base directory.
// Every write gets a unique name so concurrent jobs never collide; Java files
// get a unique subdirectory instead, because the filename must match the
// public class.
type Materializer struct {
	dir string
}

// NewMaterializer opens a materializer over an existing directory. The
// directory must pre-exist: a missing directory is a configuration error,
// not something to silently create mid-job.
func NewMaterializer(dir string) (*Materializer, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, errors.Newf(errors.StorageDirMissing,
			"generated-file directory %q does not exist", dir)
	}
	return &Materializer{dir: dir}, nil
}

// EnsureDir creates the shared directory. Called once at process startup.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, errors.StorageError, "create directory %q failed: %v", dir, err)
	}
	return nil
}

// Dir returns the base directory.
func (m *Materializer) Dir() string {
	return m.dir
}

// Write persists content under a unique name and returns the absolute path.
func (m *Materializer) Write(content []byte, ext string) (string, error) {
	name := fmt.Sprintf("%d-%s.%s", time.Now().UnixMilli(), shortID(), strings.TrimPrefix(ext, "."))
	path := filepath.Join(m.dir, name)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", errors.Wrapf(err, errors.StorageError, "write %q failed: %v", path, err)
	}
	return path, nil
}

// WriteJava persists a Java source file as <ClassName>.java inside a unique
// subdirectory, keeping the compiler's filename rule and collision safety at
// the same time.
func (m *Materializer) WriteJava(content []byte, className string) (string, error) {
	if className == "" {
		return "", errors.New(errors.InvalidParams).WithMessage("java class name is required")
	}
	sub := filepath.Join(m.dir, fmt.Sprintf("%d-%s", time.Now().UnixMilli(), shortID()))
	if err := os.Mkdir(sub, 0o755); err != nil {
		return "", errors.Wrapf(err, errors.StorageError, "create directory %q failed: %v", sub, err)
	}
	path := filepath.Join(sub, className+".java")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", errors.Wrapf(err, errors.StorageError, "write %q failed: %v", path, err)
	}
	return path, nil
}

// Remove deletes a previously materialized file, tolerating absence.
func (m *Materializer) Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, errors.StorageError, "remove %q failed: %v", path, err)
	}
	return nil
}

func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
}
