package builder

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"dentaldesk/internal/log"
)

// Catalog holds the shipped templates: the built-in seeds plus any JSON
// seed files found in a templates directory.
type Catalog struct {
	dir string

	mu    sync.RWMutex
	files []TemplateDefinition

	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
}

// NewCatalog creates a catalog reading seed files from dir ("" for none)
func NewCatalog(dir string) *Catalog {
	return &Catalog{dir: dir}
}

// Load (re)reads the seed files. Malformed files are logged and skipped.
func (c *Catalog) Load() error {
	if c.dir == "" {
		return nil
	}
	paths, err := filepath.Glob(filepath.Join(c.dir, "*.json"))
	if err != nil {
		return fmt.Errorf("list templates: %w", err)
	}

	var files []TemplateDefinition
	for _, path := range paths {
		t, err := readTemplateFile(path)
		if err != nil {
			log.Warn("Skipping template %s: %v", path, err)
			continue
		}
		files = append(files, t)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].ID < files[j].ID })

	c.mu.Lock()
	c.files = files
	c.mu.Unlock()

	log.Debug("Loaded %d template file(s) from %s", len(files), c.dir)
	return nil
}

func readTemplateFile(path string) (TemplateDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return TemplateDefinition{}, err
	}
	var t TemplateDefinition
	if err := json.Unmarshal(data, &t); err != nil {
		return TemplateDefinition{}, err
	}
	if t.ID == "" {
		t.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if t.Name == "" {
		t.Name = t.ID
	}
	if t.Widgets == nil {
		t.Widgets = Tree{}
	}
	if err := validateTree(t.Widgets); err != nil {
		return TemplateDefinition{}, err
	}
	t.BuiltIn = true
	return t, nil
}

// validateTree checks that every widget has an id and a known type, and
// that no id appears twice anywhere in the tree.
func validateTree(tree Tree) error {
	seen := make(map[string]bool)
	for _, n := range tree {
		if err := validateNode(n, seen); err != nil {
			return err
		}
	}
	return nil
}

func validateNode(n *Node, seen map[string]bool) error {
	if n == nil || n.ID == "" {
		return ErrInvalidWidget
	}
	if seen[n.ID] {
		return fmt.Errorf("%w: %q", ErrDuplicateID, n.ID)
	}
	seen[n.ID] = true
	if !Valid(n.Type) {
		return fmt.Errorf("%w: %q", ErrUnknownType, n.Type)
	}
	for _, c := range n.Children {
		if err := validateNode(c, seen); err != nil {
			return err
		}
	}
	return nil
}

// Templates returns built-in seeds followed by file seeds. A file seed
// with a built-in id replaces the built-in.
func (c *Catalog) Templates() []TemplateDefinition {
	c.mu.RLock()
	defer c.mu.RUnlock()

	overridden := make(map[string]bool, len(c.files))
	for _, t := range c.files {
		overridden[t.ID] = true
	}

	var out []TemplateDefinition
	for _, t := range BuiltInTemplates() {
		if !overridden[t.ID] {
			out = append(out, t)
		}
	}
	return append(out, c.files...)
}

// Get returns the shipped template with id
func (c *Catalog) Get(id string) (TemplateDefinition, bool) {
	for _, t := range c.Templates() {
		if t.ID == id {
			return t, true
		}
	}
	return TemplateDefinition{}, false
}

// Watch reloads the catalog when files in the templates directory change.
// Bursts of events are coalesced.
func (c *Catalog) Watch(ctx context.Context) error {
	if c.dir == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(c.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", c.dir, err)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	c.watcher = watcher
	c.cancel = cancel

	go func() {
		var timer *time.Timer
		for {
			select {
			case <-watchCtx.Done():
				if timer != nil {
					timer.Stop()
				}
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Ext(event.Name) != ".json" {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(300*time.Millisecond, func() {
					log.Info("Templates changed (%s), reloading", filepath.Base(event.Name))
					if err := c.Load(); err != nil {
						log.Error("Failed to reload templates: %v", err)
					}
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Error("Template watcher error: %v", err)
			}
		}
	}()

	log.Info("Watching %s for template changes", c.dir)
	return nil
}

// Close stops watching
func (c *Catalog) Close() error {
	if c.cancel != nil {
		c.cancel()
	}
	if c.watcher != nil {
		return c.watcher.Close()
	}
	return nil
}
