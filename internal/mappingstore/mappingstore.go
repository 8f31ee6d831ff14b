// Package mappingstore persists named CSV column mappings so a bank's
// export format is configured once and reused on every import. Mappings are
// stored as YAML files, one per name.
package mappingstore

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"mietwerk/bankrecon/internal/csvparser"
)

var log = logrus.New()

// SetLogger allows setting a custom logger.
func SetLogger(logger *logrus.Logger) {
	if logger != nil {
		log = logger
	}
}

// NamedMapping is one persisted bank format: the column mapping plus the
// file-level hints, keyed by a human-chosen name.
type NamedMapping struct {
	Name             string                  `yaml:"name"`
	Mapping          csvparser.ColumnMapping `yaml:"mapping"`
	Delimiter        string                  `yaml:"delimiter"`
	DecimalSeparator string                  `yaml:"decimal_separator"`
	DateFormat       string                  `yaml:"date_format,omitempty"`
	SkipRows         int                     `yaml:"skip_rows,omitempty"`
	Encoding         string                  `yaml:"encoding,omitempty"`
	DefaultCurrency  string                  `yaml:"default_currency,omitempty"`
}

// Hints converts the persisted form into parser hints.
func (m *NamedMapping) Hints() csvparser.FormatHints {
	hints := csvparser.FormatHints{
		DateFormat:      m.DateFormat,
		SkipRows:        m.SkipRows,
		Encoding:        m.Encoding,
		DefaultCurrency: m.DefaultCurrency,
	}
	if m.Delimiter != "" {
		hints.Delimiter = []rune(m.Delimiter)[0]
	}
	if m.DecimalSeparator != "" {
		hints.DecimalSeparator = []rune(m.DecimalSeparator)[0]
	}
	return hints
}

// FromDetected builds a named mapping from an auto-detector proposal, for
// the operator to confirm and save.
func FromDetected(name string, detected *csvparser.DetectedFormat) NamedMapping {
	return NamedMapping{
		Name:             name,
		Mapping:          detected.Mapping,
		Delimiter:        string(detected.Hints.Delimiter),
		DecimalSeparator: string(detected.Hints.DecimalSeparator),
		SkipRows:         detected.Hints.SkipRows,
	}
}

// Store manages the mapping files in one directory.
type Store struct {
	dir string
}

// New creates a store rooted at dir. The directory is created on first save.
func New(dir string) *Store {
	return &Store{dir: dir}
}

// nameRe restricts mapping names to filesystem-safe tokens.
var nameRe = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)

func (s *Store) path(name string) (string, error) {
	if !nameRe.MatchString(name) {
		return "", fmt.Errorf("invalid mapping name %q", name)
	}
	return filepath.Join(s.dir, name+".yaml"), nil
}

// Save writes a mapping to disk, overwriting any previous version.
func (s *Store) Save(m NamedMapping) error {
	path, err := s.path(m.Name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating mapping directory: %w", err)
	}
	data, err := yaml.Marshal(&m)
	if err != nil {
		return fmt.Errorf("marshaling mapping: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing mapping file: %w", err)
	}
	log.WithField("mapping", m.Name).Info("Saved CSV mapping")
	return nil
}

// Load reads a mapping by name.
func (s *Store) Load(name string) (*NamedMapping, error) {
	path, err := s.path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("mapping %q not found", name)
		}
		return nil, fmt.Errorf("reading mapping file: %w", err)
	}
	var m NamedMapping
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing mapping file %s: %w", path, err)
	}
	if m.Name == "" {
		m.Name = name
	}
	return &m, nil
}

// List returns the names of all stored mappings, sorted.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading mapping directory: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), ".yaml"))
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes a stored mapping.
func (s *Store) Delete(name string) error {
	path, err := s.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("mapping %q not found", name)
		}
		return fmt.Errorf("deleting mapping file: %w", err)
	}
	return nil
}
