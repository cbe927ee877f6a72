package pose

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

var ErrNoPoses = errors.New("pose file defines no poses")

type poseFile struct {
	Poses []Definition `yaml:"poses"`
}

// Registry resolves names to built-in presets first, then to custom poses loaded from YAML.
type Registry struct {
	mu     sync.RWMutex
	custom map[string]Definition
	files  map[string][]string // file -> pose names it defined
	log    zerolog.Logger
}

func NewRegistry(log zerolog.Logger) *Registry {
	return &Registry{
		custom: make(map[string]Definition),
		files:  make(map[string][]string),
		log:    log.With().Str("component", "pose").Logger(),
	}
}

// Lookup resolves name case-insensitively.
func (r *Registry) Lookup(name string) (Definition, bool) {
	if p, ok := ParsePreset(name); ok {
		return p.Definition(), true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.custom[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Definition{}, false
	}
	return cloneDefinition(d), true
}

// Names returns every built-in and custom pose name, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(presetNames)+len(r.custom))
	for _, n := range presetNames {
		names = append(names, n)
	}
	for n := range r.custom {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Register adds or replaces a custom pose. Built-in names cannot be shadowed.
func (r *Registry) Register(d Definition) error {
	name := strings.ToLower(strings.TrimSpace(d.Name))
	if name == "" {
		return errors.New("pose name is empty")
	}
	if _, ok := ParsePreset(name); ok {
		return fmt.Errorf("pose %q is built in", name)
	}
	d.Name = name

	r.mu.Lock()
	defer r.mu.Unlock()
	r.custom[name] = cloneDefinition(d)
	return nil
}

// LoadFile replaces every pose previously loaded from path with the file's contents.
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read pose file: %w", err)
	}
	var f poseFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse pose file %s: %w", path, err)
	}
	if len(f.Poses) == 0 {
		return fmt.Errorf("%s: %w", path, ErrNoPoses)
	}

	r.forgetFile(path)
	var names []string
	for _, d := range f.Poses {
		if err := r.Register(d); err != nil {
			r.log.Warn().Err(err).Str("file", path).Msg("Skipping pose")
			continue
		}
		names = append(names, strings.ToLower(strings.TrimSpace(d.Name)))
	}

	r.mu.Lock()
	r.files[path] = names
	r.mu.Unlock()

	r.log.Info().Str("file", path).Int("poses", len(names)).Msg("Custom poses loaded")
	return nil
}

func (r *Registry) forgetFile(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.files[path] {
		delete(r.custom, n)
	}
	delete(r.files, path)
}

func isPoseFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// LoadDir loads every .yaml/.yml file in dir. Bad files are logged and skipped.
func (r *Registry) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read pose directory: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !isPoseFile(e.Name()) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if err := r.LoadFile(path); err != nil {
			r.log.Warn().Err(err).Msg("Pose file not loaded")
		}
	}
	return nil
}

// Watch reloads pose files in dir as they change until ctx is done.
// Removed files drop their poses.
func (r *Registry) Watch(ctx context.Context, dir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create pose watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !isPoseFile(event.Name) {
					continue
				}
				switch {
				case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
					r.forgetFile(event.Name)
					r.log.Info().Str("file", event.Name).Msg("Pose file removed")
				case event.Has(fsnotify.Write), event.Has(fsnotify.Create):
					if err := r.LoadFile(event.Name); err != nil {
						r.log.Warn().Err(err).Msg("Pose reload failed")
					}
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				r.log.Warn().Err(err).Msg("Pose watcher error")
			}
		}
	}()
	return nil
}

func cloneDefinition(d Definition) Definition {
	w := make(map[string]float32, len(d.Weights))
	for k, v := range d.Weights {
		w[k] = v
	}
	d.Weights = w
	return d
}
