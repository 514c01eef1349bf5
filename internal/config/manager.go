package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

// Manager holds the live configuration and supports hot reload of the
// backing YAML file. Only key sets and tunables are swapped at runtime;
// structural settings (ports, base URL) require a restart.
type Manager struct {
	mu   sync.RWMutex
	cfg  *Config
	path string

	onReload []func(*Config)
}

// NewManager wraps an already loaded configuration.
func NewManager(cfg *Config, path string) *Manager {
	return &Manager{cfg: cfg, path: path}
}

// Current returns the live configuration snapshot.
func (m *Manager) Current() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// ClientKeys returns the accepted client key set.
func (m *Manager) ClientKeys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg.Security.ClientKeys
}

// AdminKeys returns the accepted admin key set.
func (m *Manager) AdminKeys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg.Security.AdminKeys
}

// OnReload registers a callback invoked with the new configuration after
// every successful reload.
func (m *Manager) OnReload(fn func(*Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onReload = append(m.onReload, fn)
}

func (m *Manager) reload() {
	next, err := Load(m.path)
	if err != nil {
		log.WithError(err).Warn("config reload failed; keeping previous configuration")
		return
	}
	m.mu.Lock()
	m.cfg = next
	callbacks := append([]func(*Config){}, m.onReload...)
	m.mu.Unlock()

	for _, fn := range callbacks {
		fn(next)
	}
	log.WithField("path", m.path).Info("configuration reloaded")
}

// Watch reloads the configuration whenever the file changes. Editors
// often replace the file (rename+create), so the parent directory is
// watched and events are debounced.
func (m *Manager) Watch(ctx context.Context) error {
	if m.path == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	dir := filepath.Dir(m.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		var pending *time.Timer
		target := filepath.Clean(m.path)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if pending != nil {
					pending.Stop()
				}
				pending = time.AfterFunc(200*time.Millisecond, m.reload)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.WithError(err).Warn("config watcher error")
			}
		}
	}()
	return nil
}
