// Package rules loads versioned detection rule sets.
// Rule sets are immutable values: a reload compiles a fresh set and
// swaps it in, so detectors holding an older set keep deterministic
// behaviour for in-flight scans.
package rules

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/pelletier/go-toml/v2"

	"github.com/railsup-labs/railsup-cli/internal/core/domain"
	"github.com/railsup-labs/railsup-cli/internal/core/ports/driven"
	"github.com/railsup-labs/railsup-cli/internal/logger"
)

// Ensure Store implements the interface.
var _ driven.RuleStore = (*Store)(nil)

//go:embed defaults.toml
var defaultsTOML []byte

// ruleFile is the TOML shape of a rule set file.
type ruleFile struct {
	Version string     `toml:"version"`
	Rules   []ruleSpec `toml:"rule"`
}

type ruleSpec struct {
	ID          string  `toml:"id"`
	Pattern     string  `toml:"pattern"`
	Replacement string  `toml:"replacement"`
	Explanation string  `toml:"explanation"`
	Confidence  float64 `toml:"confidence"`
	Category    string  `toml:"category"`
}

// Store provides the current rule set and optional live reload from a
// TOML file on disk.
type Store struct {
	mu      sync.RWMutex
	path    string
	ruleSet domain.RuleSet

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewStore creates a rule store. With an empty path the embedded
// default rule set is used and Reload is a no-op.
func NewStore(path string) (*Store, error) {
	s := &Store{path: path}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// RuleSet returns the current rule set.
func (s *Store) RuleSet() domain.RuleSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ruleSet
}

// Reload re-reads the backing file (or the embedded defaults) and
// swaps in a freshly compiled rule set.
func (s *Store) Reload() error {
	data := defaultsTOML
	if s.path != "" {
		var err error
		data, err = os.ReadFile(s.path)
		if err != nil {
			return fmt.Errorf("read rule set: %w", err)
		}
	}

	rs, err := Parse(data)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.ruleSet = rs
	s.mu.Unlock()

	logger.Info("Loaded rule set %s (%d rules)", rs.Version, len(rs.Rules))
	return nil
}

// Parse compiles a TOML rule set. A rule with an invalid pattern fails
// the whole load: a silently dropped rule would weaken detection.
func Parse(data []byte) (domain.RuleSet, error) {
	var f ruleFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return domain.RuleSet{}, fmt.Errorf("parse rule set: %w", err)
	}
	if f.Version == "" {
		return domain.RuleSet{}, fmt.Errorf("rule set: %w: missing version", domain.ErrInvalidInput)
	}

	rs := domain.RuleSet{
		Version: f.Version,
		Rules:   make([]domain.Rule, 0, len(f.Rules)),
	}

	seen := make(map[string]bool, len(f.Rules))
	for _, spec := range f.Rules {
		if spec.ID == "" {
			return domain.RuleSet{}, fmt.Errorf("rule set: %w: rule without id", domain.ErrInvalidInput)
		}
		if seen[spec.ID] {
			return domain.RuleSet{}, fmt.Errorf("rule set: %w: duplicate rule id %q", domain.ErrInvalidInput, spec.ID)
		}
		seen[spec.ID] = true

		re, err := regexp.Compile(spec.Pattern)
		if err != nil {
			return domain.RuleSet{}, fmt.Errorf("rule %s: compile pattern: %w", spec.ID, err)
		}

		category := domain.RuleCategory(spec.Category)
		if category != domain.CategoryUnsafe {
			category = domain.CategoryDeprecation
		}

		confidence := spec.Confidence
		if confidence <= 0 || confidence > 1 {
			confidence = 0.5
		}

		rs.Rules = append(rs.Rules, domain.Rule{
			ID:          spec.ID,
			Pattern:     re,
			Replacement: spec.Replacement,
			Explanation: spec.Explanation,
			Confidence:  confidence,
			Category:    category,
		})
	}

	return rs, nil
}

// Watch reloads the rule set whenever the backing file changes on
// disk. No-op for the embedded defaults. Call Close to stop watching.
func (s *Store) Watch() error {
	if s.path == "" {
		return nil
	}
	if s.watcher != nil {
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("rules watch: %w", err)
	}
	if err := w.Add(s.path); err != nil {
		w.Close()
		return fmt.Errorf("rules watch %s: %w", s.path, err)
	}

	s.watcher = w
	s.done = make(chan struct{})

	go func() {
		for {
			select {
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := s.Reload(); err != nil {
					// Keep the previous rule set on a bad edit.
					logger.Error("Rule set reload failed: %v", err)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Warn("Rules watcher: %v", err)
			case <-s.done:
				return
			}
		}
	}()

	return nil
}

// Close stops the file watcher, if running.
func (s *Store) Close() error {
	if s.watcher == nil {
		return nil
	}
	close(s.done)
	err := s.watcher.Close()
	s.watcher = nil
	return err
}
