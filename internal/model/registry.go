package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrNotFound is returned when the registry has no model under the requested
// name.
var ErrNotFound = errors.New("model not found")

const metaSuffix = "_meta"

// Registry stores models as JSON file pairs in a directory.
type Registry struct {
	dir string
}

// NewRegistry ensures dir exists and returns a Registry rooted there.
func NewRegistry(dir string) (*Registry, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("registry: directory must not be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("registry: mkdir %s: %w", dir, err)
	}
	return &Registry{dir: dir}, nil
}

// Save writes the model and its metadata under name, replacing any previous
// pair with the same name.
func (r *Registry) Save(name string, m *LogisticModel, meta Metadata) error {
	if err := validName(name); err != nil {
		return err
	}
	if err := writeJSON(r.modelPath(name), m); err != nil {
		return fmt.Errorf("registry: save model %s: %w", name, err)
	}
	if err := writeJSON(r.metaPath(name), meta); err != nil {
		return fmt.Errorf("registry: save metadata %s: %w", name, err)
	}
	return nil
}

// Load reads the model and its metadata stored under name.
func (r *Registry) Load(name string) (*LogisticModel, Metadata, error) {
	var meta Metadata
	if err := validName(name); err != nil {
		return nil, meta, err
	}

	var m LogisticModel
	if err := readJSON(r.modelPath(name), &m); err != nil {
		if os.IsNotExist(err) {
			return nil, meta, fmt.Errorf("registry: %s: %w", name, ErrNotFound)
		}
		return nil, meta, fmt.Errorf("registry: load model %s: %w", name, err)
	}
	if err := readJSON(r.metaPath(name), &meta); err != nil {
		if os.IsNotExist(err) {
			return nil, meta, fmt.Errorf("registry: %s metadata: %w", name, ErrNotFound)
		}
		return nil, meta, fmt.Errorf("registry: load metadata %s: %w", name, err)
	}
	return &m, meta, nil
}

// List returns the names of stored models, sorted.
func (r *Registry) List() ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("registry: read dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		base := strings.TrimSuffix(e.Name(), ".json")
		if strings.HasSuffix(base, metaSuffix) {
			continue
		}
		names = append(names, base)
	}
	sort.Strings(names)
	return names, nil
}

// Meta reads only the metadata for name, without the model parameters.
func (r *Registry) Meta(name string) (Metadata, error) {
	var meta Metadata
	if err := validName(name); err != nil {
		return meta, err
	}
	if err := readJSON(r.metaPath(name), &meta); err != nil {
		if os.IsNotExist(err) {
			return meta, fmt.Errorf("registry: %s metadata: %w", name, ErrNotFound)
		}
		return meta, fmt.Errorf("registry: load metadata %s: %w", name, err)
	}
	return meta, nil
}

func (r *Registry) modelPath(name string) string {
	return filepath.Join(r.dir, name+".json")
}

func (r *Registry) metaPath(name string) string {
	return filepath.Join(r.dir, name+metaSuffix+".json")
}

// validName rejects names that would escape the registry directory or
// collide with metadata files.
func validName(name string) error {
	if name == "" {
		return fmt.Errorf("registry: model name must not be empty")
	}
	if strings.ContainsAny(name, `/\`) || name != filepath.Base(name) {
		return fmt.Errorf("registry: invalid model name %q", name)
	}
	if strings.HasSuffix(name, metaSuffix) {
		return fmt.Errorf("registry: model name %q must not end in %q", name, metaSuffix)
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
