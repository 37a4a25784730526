package namespace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// Record is the persisted form of a namespace.
type Record struct {
	ID          string            `yaml:"id"`
	Name        string            `yaml:"name,omitempty"`
	Color       string            `yaml:"color,omitempty"`
	Default     bool              `yaml:"default,omitempty"`
	Permissions []string          `yaml:"permissions,omitempty"`
	Rules       map[string]string `yaml:"rules,omitempty"`
}

// Persister loads and saves namespace records.
type Persister interface {
	Load() ([]Record, error)
	Save(records []Record) error
}

type storeFile struct {
	Namespaces []Record `yaml:"namespaces"`
}

// Store keeps namespace records in a YAML file.
type Store struct {
	path string
}

// NewStore returns a store backed by path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file.
func (s *Store) Path() string { return s.path }

// Load reads the records. A missing file yields no records.
func (s *Store) Load() ([]Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", s.path, err)
	}
	var f storeFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", s.path, err)
	}
	for i, r := range f.Namespaces {
		if r.ID == "" {
			return nil, fmt.Errorf("%s: namespace %d has no id", s.path, i)
		}
	}
	return f.Namespaces, nil
}

// Save writes records atomically.
func (s *Store) Save(records []Record) error {
	data, err := yaml.Marshal(storeFile{Namespaces: records})
	if err != nil {
		return fmt.Errorf("failed to marshal namespaces: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(s.path), err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", s.path, err)
	}
	return nil
}

func recordFor(ns *Namespace, isDefault bool) Record {
	r := Record{
		ID:      ns.ID,
		Name:    ns.Name,
		Color:   ns.Color.Hex(),
		Default: isDefault,
	}
	for op, ok := range ns.Permissions {
		if ok {
			r.Permissions = append(r.Permissions, op)
		}
	}
	sort.Strings(r.Permissions)
	if len(ns.Rules) > 0 {
		r.Rules = make(map[string]string, len(ns.Rules))
		for k, v := range ns.Rules {
			r.Rules[k] = v
		}
	}
	return r
}
