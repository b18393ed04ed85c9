// Package placeholder resolves test-data keys such as "<source_city>" from
// YAML files: the channel's own file first, then the common file.
package placeholder

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// CommonFile holds values shared by every channel.
const CommonFile = "common_test_data.yaml"

// Source looks up a test-data value.
type Source interface {
	Get(key string) (any, bool)
}

// Resolver reads {channel}_test_data.yaml and common_test_data.yaml from a
// directory. Files are loaded once, on first use; a missing file is empty.
type Resolver struct {
	dir     string
	channel string
	logger  *zap.Logger

	once   sync.Once
	layers []map[string]any
	err    error
}

// NewResolver creates a Resolver over dir for channel.
func NewResolver(dir, channel string, logger *zap.Logger) *Resolver {
	return &Resolver{
		dir:     dir,
		channel: strings.ToLower(strings.TrimSpace(channel)),
		logger:  logger.Named("placeholder"),
	}
}

// Files returns the lookup order.
func (r *Resolver) Files() []string {
	return []string{
		filepath.Join(r.dir, r.channel+"_test_data.yaml"),
		filepath.Join(r.dir, CommonFile),
	}
}

// Load reads the files eagerly and reports the first parse error.
func (r *Resolver) Load() error {
	r.once.Do(func() {
		for _, path := range r.Files() {
			layer, err := readLayer(path)
			if err != nil {
				r.err = err
				return
			}
			r.layers = append(r.layers, layer)
		}
	})
	return r.err
}

// Get strips angle brackets from key and returns the first value found.
func (r *Resolver) Get(key string) (any, bool) {
	if err := r.Load(); err != nil {
		r.logger.Warn("Test data unavailable", zap.Error(err))
		return nil, false
	}
	clean := Clean(key)
	for _, layer := range r.layers {
		if v, ok := layer[clean]; ok {
			return v, true
		}
	}
	r.logger.Debug("Test data key not found", zap.String("key", clean), zap.Strings("files", r.Files()))
	return nil, false
}

// Clean removes the angle brackets around a placeholder key.
func Clean(key string) string {
	return strings.NewReplacer("<", "", ">", "").Replace(strings.TrimSpace(key))
}

func readLayer(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read test data %s: %w", path, err)
	}
	layer := map[string]any{}
	if err := yaml.Unmarshal(data, &layer); err != nil {
		return nil, fmt.Errorf("failed to parse test data %s: %w", path, err)
	}
	return layer, nil
}

// Map is a fixed Source, handy for dry runs and tests.
type Map map[string]any

func (m Map) Get(key string) (any, bool) {
	v, ok := m[Clean(key)]
	return v, ok
}
