// Package prompt manages the named prompt templates used by the dialogue
// agents and the conversion pipeline.
//
// Templates carry {placeholder} markers. Rendering substitutes variables by
// name: scalars are stringified, lists and maps are JSON-encoded, and
// unknown placeholders render empty. Rendering never fails; only looking up
// a template that does not exist is an error.
//
// Defaults are compiled in. A directory of .txt files overrides templates
// by base name, and Watch reloads overrides when files change on disk.
package prompt

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// ErrUnknownTemplate indicates a template name with no default and no
// directory override.
var ErrUnknownTemplate = errors.New("unknown prompt template")

// Store holds named templates and serves rendered prompts.
type Store struct {
	mu        sync.RWMutex
	dir       string
	overrides map[string]string
	templates map[string]string
	logger    *zap.Logger
}

// New returns a Store carrying only the compiled-in defaults.
func New(logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		overrides: make(map[string]string),
		templates: defaultTemplates(),
		logger:    logger,
	}
}

// NewFromDir returns a Store with defaults overridden by the .txt files in
// dir. A missing directory is an error; an empty one is not.
func NewFromDir(dir string, logger *zap.Logger) (*Store, error) {
	s := New(logger)
	s.dir = dir
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads every .txt override from the configured directory. The
// compiled-in defaults always survive; only overrides are replaced.
func (s *Store) Reload() error {
	if s.dir == "" {
		return nil
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("reading prompt directory %s: %w", s.dir, err)
	}

	merged := defaultTemplates()
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ".txt")
		content, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("reading prompt file %s: %w", entry.Name(), err)
		}
		merged[name] = string(content)
	}

	s.mu.Lock()
	for name, text := range s.overrides {
		merged[name] = text
	}
	s.templates = merged
	s.mu.Unlock()

	s.logger.Debug("prompt templates loaded",
		zap.String("dir", s.dir),
		zap.Int("count", len(merged)),
	)
	return nil
}

// SetOverride pins a template to the given text. Pinned templates beat
// both defaults and directory files, and survive Reload.
func (s *Store) SetOverride(name, text string) {
	s.mu.Lock()
	s.overrides[name] = text
	s.templates[name] = text
	s.mu.Unlock()
}

// Get returns the raw template by name.
func (s *Store) Get(name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.templates[name]
	return t, ok
}

// Render renders the named template with vars.
func (s *Store) Render(name string, vars map[string]any) (string, error) {
	t, ok := s.Get(name)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTemplate, name)
	}
	return RenderText(t, vars), nil
}

// Names returns the sorted template names currently available.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.templates))
	for name := range s.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
