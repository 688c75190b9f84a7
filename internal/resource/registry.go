// Package resource serves read-only resources and prompts: a URI/name-keyed
// content table, optionally hot-reloaded from disk via an atomic snapshot
// swap so readers never observe a partial update.
package resource

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
)

// Resource is static content addressed by URI.
type Resource struct {
	URI         string
	MimeType    string
	Description string
	Content     []byte
}

// Prompt is static content addressed by name.
type Prompt struct {
	Name        string
	Description string
	Content     string
}

type snapshot struct {
	resources map[string]Resource
	prompts   map[string]Prompt
}

// Registry serves Resources and Prompts from an atomically-swapped
// snapshot. The zero value is not usable; construct with New or LoadFromDir.
type Registry struct {
	current atomic.Pointer[snapshot]
	dir     string
	watcher *fsnotify.Watcher
	stop    chan struct{}
}

// New builds an empty registry (no on-disk directory, no watch).
func New() *Registry {
	r := &Registry{}
	r.current.Store(&snapshot{resources: map[string]Resource{}, prompts: map[string]Prompt{}})
	return r
}

// Resource looks up a resource by URI.
func (r *Registry) Resource(uri string) (Resource, bool) {
	snap := r.current.Load()
	res, ok := snap.resources[uri]
	return res, ok
}

// Prompt looks up a prompt by name.
func (r *Registry) Prompt(name string) (Prompt, bool) {
	snap := r.current.Load()
	p, ok := snap.prompts[name]
	return p, ok
}

// ListResources returns every resource in the current snapshot.
func (r *Registry) ListResources() []Resource {
	snap := r.current.Load()
	out := make([]Resource, 0, len(snap.resources))
	for _, v := range snap.resources {
		out = append(out, v)
	}
	return out
}

// ListPrompts returns every prompt in the current snapshot.
func (r *Registry) ListPrompts() []Prompt {
	snap := r.current.Load()
	out := make([]Prompt, 0, len(snap.prompts))
	for _, v := range snap.prompts {
		out = append(out, v)
	}
	return out
}

// Set atomically replaces the current snapshot. Exposed directly so tests
// and cmd/mcpserver's built-in catalogue can seed content without touching a
// filesystem.
func (r *Registry) Set(resources map[string]Resource, prompts map[string]Prompt) {
	r.current.Store(&snapshot{resources: resources, prompts: prompts})
}

// LoadFromDir populates the registry by reading every regular file directly
// in dir (subdirectories are skipped) as a Resource keyed by a "file://" URI;
// no prompts are loaded. It then starts a background watch that
// reloads the whole directory on any change, swapping the snapshot
// atomically. Readers take the current reference and use it for the whole
// request; the swap is a single pointer store, so a reload never surfaces
// mid-request.
func LoadFromDir(dir string) (*Registry, error) {
	r := &Registry{dir: dir, stop: make(chan struct{})}
	if err := r.reload(); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Warn("resource registry: fsnotify unavailable, hot-reload disabled", "error", err)
		return r, nil
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		slog.Warn("resource registry: watch failed, hot-reload disabled", "dir", dir, "error", err)
		return r, nil
	}
	r.watcher = watcher
	go r.watchLoop()
	return r, nil
}

func (r *Registry) reload() error {
	resources := make(map[string]Resource)

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(r.dir, entry.Name())
		content, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("resource registry: skipping unreadable file", "path", path, "error", err)
			continue
		}
		uri := "file://" + entry.Name()
		resources[uri] = Resource{
			URI:      uri,
			MimeType: mimeTypeFor(entry.Name()),
			Content:  content,
		}
	}

	snap := r.current.Load()
	prompts := map[string]Prompt{}
	if snap != nil {
		prompts = snap.prompts
	}
	r.current.Store(&snapshot{resources: resources, prompts: prompts})
	return nil
}

func (r *Registry) watchLoop() {
	for {
		select {
		case <-r.stop:
			return
		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				if err := r.reload(); err != nil {
					slog.Error("resource registry: reload failed", "error", err)
				}
			}
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("resource registry: watch error", "error", err)
		}
	}
}

// Close stops the background watch, if any.
func (r *Registry) Close() {
	if r.watcher != nil {
		r.watcher.Close()
	}
	if r.stop != nil {
		close(r.stop)
	}
}

func mimeTypeFor(name string) string {
	switch filepath.Ext(name) {
	case ".json":
		return "application/json"
	case ".md":
		return "text/markdown"
	case ".txt":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}
