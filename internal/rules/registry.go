// Package rules – rule set registry and hot reload.
//
// The Registry owns the currently published Set and swaps it atomically when
// the rule file changes on disk. Readers snapshot the active Set once per
// evaluation; a swap never affects an evaluation already in flight.
package rules

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Registry publishes rule set versions loaded from a single YAML file.
// The zero value is not usable; construct with NewRegistry.
type Registry struct {
	path    string
	current atomic.Pointer[Set]
}

// NewRegistry loads the rule file at path and returns a registry with that
// set published as current.
func NewRegistry(path string) (*Registry, error) {
	set, err := LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load rule file %q: %w", path, err)
	}
	r := &Registry{path: path}
	r.current.Store(set)
	return r, nil
}

// Current returns the active rule set. The returned Set is immutable; hold it
// for the duration of one evaluation to pin the version.
func (r *Registry) Current() *Set { return r.current.Load() }

// Reload re-reads the rule file and publishes it as the current set. A load
// or validation failure leaves the previous set in place.
func (r *Registry) Reload() error {
	set, err := LoadFile(r.path)
	if err != nil {
		return err
	}
	prev := r.current.Swap(set)
	if prev != nil && prev.Version() != set.Version() {
		log.Info().
			Str("previous_version", prev.Version()).
			Str("version", set.Version()).
			Int("rules", set.Len()).
			Msg("rule set published")
	}
	return nil
}

// Watch blocks, reloading the rule file whenever it changes on disk, until
// ctx is cancelled. Events are debounced so editors that write in several
// steps trigger a single reload; reload failures are logged and the previous
// version stays active.
func (r *Registry) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create rule file watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory, not the file: editors and config tooling often
	// replace the file via rename, which drops a file-level watch.
	if err := watcher.Add(filepath.Dir(r.path)); err != nil {
		return fmt.Errorf("watch rule file dir: %w", err)
	}

	const debounce = 200 * time.Millisecond
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(r.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
				timerC = timer.C
			} else {
				timer.Reset(debounce)
			}

		case <-timerC:
			if err := r.Reload(); err != nil {
				log.Error().Err(err).Str("path", r.path).Msg("rule set reload failed; keeping previous version")
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("rule file watcher error")
		}
	}
}
