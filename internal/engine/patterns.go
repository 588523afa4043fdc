package engine

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/miradorstack/mirador-remediate/internal/models"
)

// Pattern pairs a symptom signature with a root cause and remediation action.
type Pattern struct {
	Name       string            `yaml:"name"`
	Symptoms   []string          `yaml:"symptoms"`
	RootCause  string            `yaml:"rootCause"`
	Action     models.ActionType `yaml:"action"`
	Confidence float64           `yaml:"confidence"`
}

// PatternFile is the YAML root structure of a pattern pack.
type PatternFile struct {
	Patterns []Pattern `yaml:"patterns"`
}

// DefaultPatterns returns the built-in pattern table. Order matters: when two
// patterns tie on similarity, the earlier entry wins.
func DefaultPatterns() []Pattern {
	return []Pattern{
		{
			Name:       "high_cpu_low_memory",
			Symptoms:   []string{"cpu high", "memory normal", "latency increased"},
			RootCause:  "CPU-bound process or infinite loop",
			Action:     models.ActionRestartService,
			Confidence: 0.8,
		},
		{
			Name:       "high_memory",
			Symptoms:   []string{"memory high", "cpu normal", "latency normal"},
			RootCause:  "Memory leak or cache bloat",
			Action:     models.ActionRestartService,
			Confidence: 0.7,
		},
		{
			Name:       "high_latency",
			Symptoms:   []string{"latency high", "cpu normal", "memory normal"},
			RootCause:  "Database slow or external API timeout",
			Action:     models.ActionScaleUp,
			Confidence: 0.6,
		},
		{
			Name:       "service_down",
			Symptoms:   []string{"health failed", "cpu zero", "memory zero"},
			RootCause:  "Process crashed or OOM killed",
			Action:     models.ActionRestartService,
			Confidence: 0.9,
		},
		{
			Name:       "network_issue",
			Symptoms:   []string{"latency spiked", "errors increased", "cpu normal"},
			RootCause:  "Network congestion or DNS issues",
			Action:     models.ActionRetryAndThrottle,
			Confidence: 0.5,
		},
	}
}

// Table holds the active pattern pack. It is safe for concurrent use and can
// be reloaded while the control loop is running.
type Table struct {
	mu       sync.RWMutex
	patterns []Pattern
	logger   *slog.Logger
}

// NewTable constructs a table over the provided patterns.
func NewTable(patterns []Pattern, logger *slog.Logger) *Table {
	if logger == nil {
		logger = slog.Default()
	}
	if len(patterns) == 0 {
		patterns = DefaultPatterns()
	}
	return &Table{patterns: patterns, logger: logger}
}

// LoadTable reads a pattern pack from path. A missing or empty path falls back
// to the built-in defaults.
func LoadTable(path string, logger *slog.Logger) (*Table, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if path == "" {
		return NewTable(nil, logger), nil
	}

	patterns, err := readPatternFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("pattern pack not found, using built-in patterns", slog.String("path", path))
			return NewTable(nil, logger), nil
		}
		return nil, err
	}
	return NewTable(patterns, logger), nil
}

// Reload replaces the active patterns from path. The previous table survives a
// failed reload.
func (t *Table) Reload(path string) error {
	patterns, err := readPatternFile(path)
	if err != nil {
		return err
	}
	if len(patterns) == 0 {
		return errors.New("pattern pack contains no patterns")
	}

	t.mu.Lock()
	t.patterns = patterns
	t.mu.Unlock()

	t.logger.Info("pattern pack reloaded", slog.String("path", path), slog.Int("patterns", len(patterns)))
	return nil
}

// Patterns returns a copy of the active pattern slice.
func (t *Table) Patterns() []Pattern {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]Pattern(nil), t.patterns...)
}

// Len returns the number of active patterns.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.patterns)
}

// Match returns the maximum-similarity pattern for the symptom phrases.
// Ties keep the earlier, higher-priority entry.
func (t *Table) Match(phrases []string) (Pattern, float64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if len(phrases) == 0 || len(t.patterns) == 0 {
		return Pattern{}, 0, false
	}

	best := Pattern{}
	bestScore := -1.0
	for _, pattern := range t.patterns {
		score := phraseSimilarity(phrases, pattern.Symptoms)
		if score > bestScore {
			bestScore = score
			best = pattern
		}
	}
	if bestScore <= 0 {
		return Pattern{}, 0, false
	}
	return best, bestScore, true
}

// Watch reloads the pattern pack whenever path changes on disk. It blocks
// until ctx is cancelled; callers run it in its own goroutine.
func (t *Table) Watch(ctx context.Context, path string) error {
	if path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory: editors replace files on save, which would drop a
	// direct file watch.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}

	target := filepath.Clean(path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := t.Reload(path); err != nil {
				t.logger.Warn("pattern pack reload failed", slog.String("path", path), slog.Any("error", err))
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			t.logger.Warn("pattern pack watcher error", slog.Any("error", err))
		}
	}
}

func readPatternFile(path string) ([]Pattern, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file PatternFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	return file.Patterns, nil
}

// phraseSimilarity is the overlap coefficient between two symptom phrase sets:
// |A∩B| / min(|A|,|B|), with phrases normalised to lowercase.
func phraseSimilarity(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	setA := make(map[string]struct{}, len(a))
	for _, phrase := range a {
		setA[normalisePhrase(phrase)] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	for _, phrase := range b {
		setB[normalisePhrase(phrase)] = struct{}{}
	}

	shared := 0
	for phrase := range setA {
		if _, ok := setB[phrase]; ok {
			shared++
		}
	}

	smaller := len(setA)
	if len(setB) < smaller {
		smaller = len(setB)
	}
	return float64(shared) / float64(smaller)
}

func normalisePhrase(phrase string) string {
	return strings.Join(strings.Fields(strings.ToLower(phrase)), " ")
}
