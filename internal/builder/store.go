package builder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"dentaldesk/internal/log"
	"dentaldesk/internal/storage"
)

// Document ids inside the website-builder collection
const (
	StateKey          = "state"
	LegacyTemplateKey = "templates"
	LegacySettingsKey = "canvas-settings"
)

// State is the persisted builder state of a tenant
type State struct {
	Templates      []TemplateDefinition `json:"templates"`
	CanvasWidgets  Tree                 `json:"canvasWidgets"`
	CanvasSettings CanvasSettings       `json:"canvasSettings"`
}

// DefaultState is the state of a tenant that never saved anything
func DefaultState() State {
	return State{
		Templates:      []TemplateDefinition{},
		CanvasWidgets:  Tree{},
		CanvasSettings: DefaultCanvasSettings(),
	}
}

// DecodeState parses a state document. Missing settings fields keep their defaults.
func DecodeState(data []byte) (State, error) {
	st := DefaultState()
	if err := json.Unmarshal(data, &st); err != nil {
		return State{}, fmt.Errorf("decode builder state: %w", err)
	}
	if st.Templates == nil {
		st.Templates = []TemplateDefinition{}
	}
	if st.CanvasWidgets == nil {
		st.CanvasWidgets = Tree{}
	}
	if err := validateTree(st.CanvasWidgets); err != nil {
		return State{}, fmt.Errorf("decode builder state: %w", err)
	}
	for i, t := range st.Templates {
		if t.Widgets == nil {
			st.Templates[i].Widgets = Tree{}
			continue
		}
		if err := validateTree(t.Widgets); err != nil {
			return State{}, fmt.Errorf("decode builder state: template %q: %w", t.ID, err)
		}
	}
	return st, nil
}

// Source names where a loaded state came from
type Source string

const (
	SourcePrimary  Source = "primary"
	SourceCache    Source = "cache"
	SourceLegacy   Source = "legacy"
	SourceDefaults Source = "defaults"
)

// StateStore persists builder state in a primary store with a local cache
// as fallback. Either may be nil.
type StateStore struct {
	primary storage.Storage
	cache   storage.Storage
}

// NewStateStore creates a state store
func NewStateStore(primary, cache storage.Storage) *StateStore {
	return &StateStore{primary: primary, cache: cache}
}

// Load returns the tenant's state. It never fails: the primary store is
// tried first, then the cached state, then the cache's older separate
// templates and settings documents, then defaults.
func (s *StateStore) Load(ctx context.Context, tenant string) (State, Source) {
	st, src := s.load(ctx, tenant)
	st.CanvasWidgets = NormalizeSections(st.CanvasWidgets)
	return st, src
}

func (s *StateStore) load(ctx context.Context, tenant string) (State, Source) {
	if st, err := readState(ctx, s.primary, tenant); err == nil {
		return st, SourcePrimary
	} else if !errors.Is(err, storage.ErrNotFound) {
		log.Warn("Builder state for %s unavailable from primary store: %v", tenant, err)
	}

	if st, err := readState(ctx, s.cache, tenant); err == nil {
		return st, SourceCache
	} else if errors.Is(err, storage.ErrNotFound) {
		if st, ok := s.readLegacy(ctx, tenant); ok {
			return st, SourceLegacy
		}
	} else {
		log.Warn("Builder state for %s unavailable from local cache: %v", tenant, err)
	}

	return DefaultState(), SourceDefaults
}

func readState(ctx context.Context, store storage.Storage, tenant string) (State, error) {
	if store == nil {
		return State{}, storage.ErrNotFound
	}
	item, err := store.Get(ctx, tenant, storage.CollectionWebsiteBuilder, StateKey)
	if err != nil {
		return State{}, err
	}
	return DecodeState(item.Content)
}

// readLegacy reads the separate templates and canvas-settings documents
// written before state was stored as one document.
func (s *StateStore) readLegacy(ctx context.Context, tenant string) (State, bool) {
	if s.cache == nil {
		return State{}, false
	}
	st := DefaultState()
	found := false

	if item, err := s.cache.Get(ctx, tenant, storage.CollectionWebsiteBuilder, LegacyTemplateKey); err == nil {
		var templates []TemplateDefinition
		if err := json.Unmarshal(item.Content, &templates); err != nil {
			log.Warn("Ignoring unreadable cached templates for %s: %v", tenant, err)
		} else if templates != nil {
			st.Templates = validTemplates(tenant, templates)
			found = true
		}
	}
	if item, err := s.cache.Get(ctx, tenant, storage.CollectionWebsiteBuilder, LegacySettingsKey); err == nil {
		settings := DefaultCanvasSettings()
		if err := json.Unmarshal(item.Content, &settings); err != nil {
			log.Warn("Ignoring unreadable cached canvas settings for %s: %v", tenant, err)
		} else {
			st.CanvasSettings = settings
			found = true
		}
	}
	return st, found
}

// validTemplates drops cached templates whose widget trees are malformed
func validTemplates(tenant string, templates []TemplateDefinition) []TemplateDefinition {
	out := make([]TemplateDefinition, 0, len(templates))
	for _, t := range templates {
		if t.Widgets == nil {
			t.Widgets = Tree{}
		}
		if err := validateTree(t.Widgets); err != nil {
			log.Warn("Ignoring cached template %q for %s: %v", t.ID, tenant, err)
			continue
		}
		out = append(out, t)
	}
	return out
}

// Save persists st, widgets sorted top to bottom. The local cache is
// written first; the primary store's result is returned. Last write wins.
func (s *StateStore) Save(ctx context.Context, tenant string, st State) error {
	st.CanvasWidgets = Clone(SortByVerticalPosition(st.CanvasWidgets))
	if st.Templates == nil {
		st.Templates = []TemplateDefinition{}
	}
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode builder state: %w", err)
	}

	if s.cache != nil {
		if _, err := s.cache.Put(ctx, tenant, storage.CollectionWebsiteBuilder, StateKey, data); err != nil {
			log.Warn("Failed to cache builder state for %s: %v", tenant, err)
		}
	}
	if s.primary == nil {
		return nil
	}
	if _, err := s.primary.Put(ctx, tenant, storage.CollectionWebsiteBuilder, StateKey, data); err != nil {
		return fmt.Errorf("save builder state: %w", err)
	}
	return nil
}
