package builder

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"dentaldesk/internal/log"
)

// AddWidgetRequest describes a widget dropped on the canvas. Nil Index
// appends; nil X/Y leave the position unset.
type AddWidgetRequest struct {
	Type        WidgetType `json:"type"`
	ContainerID string     `json:"containerId,omitempty"`
	Index       *int       `json:"index,omitempty"`
	X           *float64   `json:"x,omitempty"`
	Y           *float64   `json:"y,omitempty"`
	Props       Props      `json:"props,omitempty"`
}

// Canvas is a read-only view of a session
type Canvas struct {
	Widgets  Tree           `json:"widgets"`
	Settings CanvasSettings `json:"settings"`
	Extent   Size           `json:"extent"`
	Bounds   Size           `json:"bounds"`
	CanUndo  bool           `json:"canUndo"`
	CanRedo  bool           `json:"canRedo"`
	Dirty    bool           `json:"dirty"`
}

type dragState struct {
	id       string
	originX  float64
	originY  float64
	pointerX float64
	pointerY float64
	moved    bool
}

// Session is one tenant's live editing state: the widget tree and its
// history, canvas settings, user templates and any drag in progress.
// All methods are safe for concurrent use.
type Session struct {
	tenant  string
	store   *StateStore
	catalog *Catalog
	newID   IDFunc

	mu        sync.Mutex
	tree      Tree
	history   *History
	settings  CanvasSettings
	templates []TemplateDefinition
	drag      *dragState
	revision  int
	savedRev  int

	// held for the duration of a save
	saving sync.Mutex
}

// NewSession creates an empty session. Call Hydrate to load persisted state.
func NewSession(tenant string, store *StateStore, catalog *Catalog, historyLimit int, newID IDFunc) *Session {
	if catalog == nil {
		catalog = NewCatalog("")
	}
	return &Session{
		tenant:    tenant,
		store:     store,
		catalog:   catalog,
		newID:     newID,
		tree:      Tree{},
		history:   NewHistory(historyLimit),
		settings:  DefaultCanvasSettings(),
		templates: []TemplateDefinition{},
	}
}

// Tenant returns the tenant the session edits
func (s *Session) Tenant() string { return s.tenant }

// Hydrate replaces the session state with the persisted state
func (s *Session) Hydrate(ctx context.Context) Source {
	st, src := s.store.Load(ctx, s.tenant)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaceLocked(st)
	s.savedRev = s.revision

	log.Debug("Hydrated builder session %s from %s (%d widgets)", s.tenant, src, Count(s.tree))
	return src
}

func (s *Session) replaceLocked(st State) {
	s.drag = nil
	s.tree = NormalizeSections(st.CanvasWidgets)
	if s.tree == nil {
		s.tree = Tree{}
	}
	s.history.Reset(s.tree)
	s.settings = st.CanvasSettings

	s.templates = s.templates[:0:0]
	for _, t := range st.Templates {
		if !t.BuiltIn {
			s.templates = append(s.templates, t)
		}
	}
	s.revision++
}

// commitLocked makes tree live and records it in history
func (s *Session) commitLocked(tree Tree) {
	s.tree = tree
	s.history.Commit(tree)
	s.revision++
}

// finishDragLocked commits a pending drag so other edits land after it
func (s *Session) finishDragLocked() {
	if s.drag == nil {
		return
	}
	if s.drag.moved {
		s.commitLocked(s.tree)
	}
	s.drag = nil
}

func (s *Session) canvasLocked() Canvas {
	ext := Extent(s.tree)
	return Canvas{
		Widgets:  s.tree,
		Settings: s.settings,
		Extent:   ext,
		Bounds:   s.settings.Bounds(ext),
		CanUndo:  s.history.CanUndo(),
		CanRedo:  s.history.CanRedo(),
		Dirty:    s.revision != s.savedRev,
	}
}

// Canvas returns the current canvas view
func (s *Session) Canvas() Canvas {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canvasLocked()
}

// Widgets returns the live tree. Callers must not modify it.
func (s *Session) Widgets() Tree {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree
}

// AddWidget drops a new widget on the canvas or into a container
func (s *Session) AddWidget(req AddWidgetRequest) (*Node, error) {
	if !Valid(req.Type) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, req.Type)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.finishDragLocked()

	n := NewNode(req.Type, s.newID(), req.Props, s.newID)
	if req.X != nil {
		n.Props["x"] = max(0, *req.X)
	}
	if req.Y != nil {
		n.Props["y"] = max(0, *req.Y)
	}
	index := End
	if req.Index != nil {
		index = *req.Index
	}

	if req.ContainerID == "" {
		s.commitLocked(InsertAt(s.tree, n, index))
	} else {
		s.commitLocked(InsertInContainer(s.tree, req.ContainerID, n, index))
	}
	return n, nil
}

// RemoveWidget deletes a widget and its children
func (s *Session) RemoveWidget(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finishDragLocked()

	if Find(s.tree, id) == nil {
		return ErrWidgetNotFound
	}
	s.commitLocked(Remove(s.tree, id))
	return nil
}

// MoveWidget reparents a widget; containerID "" moves it to the root
func (s *Session) MoveWidget(id, containerID string, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finishDragLocked()

	tree, err := Move(s.tree, id, containerID, index)
	if err != nil {
		return err
	}
	s.commitLocked(tree)
	return nil
}

// DuplicateWidget copies a widget's subtree to the end of the canvas
func (s *Session) DuplicateWidget(id string) (*Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finishDragLocked()

	tree, dup := Duplicate(s.tree, id, s.newID)
	if dup == nil {
		return nil, ErrWidgetNotFound
	}
	s.commitLocked(tree)
	return dup, nil
}

// UpdateWidget merges patch into a widget's props
func (s *Session) UpdateWidget(id string, patch Props) (*Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finishDragLocked()

	if Find(s.tree, id) == nil {
		return nil, ErrWidgetNotFound
	}
	tree := UpdateProperties(s.tree, id, patch, s.newID)
	s.commitLocked(tree)
	return Find(tree, id), nil
}

// BeginDrag starts repositioning id from pointer position (px, py).
// A drag already in progress is ended first.
func (s *Session) BeginDrag(id string, px, py float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finishDragLocked()

	n := Find(s.tree, id)
	if n == nil {
		return ErrWidgetNotFound
	}
	x, _ := n.Props.Number("x")
	y, _ := n.Props.Number("y")
	s.drag = &dragState{id: id, originX: x, originY: y, pointerX: px, pointerY: py}
	return nil
}

// DragTo moves the dragged widget by the pointer delta since BeginDrag.
// Intermediate positions are not recorded in history.
func (s *Session) DragTo(px, py float64) (*Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := s.drag
	if d == nil {
		return nil, ErrNoDrag
	}
	s.tree = Reposition(s.tree, d.id, d.originX+px-d.pointerX, d.originY+py-d.pointerY)
	d.moved = true
	s.revision++
	return Find(s.tree, d.id), nil
}

// EndDrag finishes the drag, committing one history entry if the widget moved
func (s *Session) EndDrag() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.drag == nil {
		return false, ErrNoDrag
	}
	moved := s.drag.moved
	s.finishDragLocked()
	return moved, nil
}

// Undo restores the previous snapshot. It reports false when there is none.
func (s *Session) Undo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finishDragLocked()

	tree, ok := s.history.Undo()
	if ok {
		s.tree = tree
		s.revision++
	}
	return ok
}

// Redo reapplies the next snapshot. It reports false when there is none.
func (s *Session) Redo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finishDragLocked()

	tree, ok := s.history.Redo()
	if ok {
		s.tree = tree
		s.revision++
	}
	return ok
}

// Settings returns the canvas settings
func (s *Session) Settings() CanvasSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// UpdateSettings applies a partial settings change
func (s *Session) UpdateSettings(patch map[string]any) (CanvasSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings, err := s.settings.Merge(patch)
	if err != nil {
		return s.settings, err
	}
	s.settings = settings
	s.revision++
	return settings, nil
}

// Extent returns the furthest edges reached by the widgets
func (s *Session) Extent() Size {
	return Extent(s.Widgets())
}

// Bounds returns the canvas pixel size
func (s *Session) Bounds() Size {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings.Bounds(Extent(s.tree))
}

// Templates returns the shipped templates followed by the tenant's own
func (s *Session) Templates() []TemplateDefinition {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append(s.catalog.Templates(), s.templates...)
}

func (s *Session) findTemplateLocked(id string) (TemplateDefinition, bool) {
	for _, t := range s.templates {
		if t.ID == id {
			return t, true
		}
	}
	return s.catalog.Get(id)
}

// ApplyTemplate replaces the canvas with a copy of template id. Settings
// are replaced only when the template carries its own.
func (s *Session) ApplyTemplate(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finishDragLocked()

	t, ok := s.findTemplateLocked(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
	}
	if t.CanvasSettings != nil {
		s.settings = *t.CanvasSettings
	}
	s.commitLocked(t.Instantiate(s.newID))
	return nil
}

// SaveAsTemplate stores the current canvas as a new tenant template
func (s *Session) SaveAsTemplate(name, description string) (TemplateDefinition, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return TemplateDefinition{}, fmt.Errorf("template name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.finishDragLocked()

	settings := s.settings
	t := TemplateDefinition{
		ID:             s.newID(),
		Name:           name,
		Description:    description,
		Widgets:        Clone(SortByVerticalPosition(s.tree)),
		CanvasSettings: &settings,
	}
	s.templates = append(s.templates, t)
	s.revision++
	return t, nil
}

// State returns the persistable state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Session) stateLocked() State {
	templates := make([]TemplateDefinition, len(s.templates))
	copy(templates, s.templates)
	return State{
		Templates:      templates,
		CanvasWidgets:  Clone(s.tree),
		CanvasSettings: s.settings,
	}
}

// ReplaceState discards the session state, history included, in favor of st
func (s *Session) ReplaceState(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaceLocked(st)
}

// Save persists the session. A save already in flight makes this call
// return ErrSaveInProgress instead of waiting.
func (s *Session) Save(ctx context.Context) error {
	if !s.saving.TryLock() {
		return ErrSaveInProgress
	}
	defer s.saving.Unlock()

	s.mu.Lock()
	s.finishDragLocked()
	st := s.stateLocked()
	rev := s.revision
	s.mu.Unlock()

	if err := s.store.Save(ctx, s.tenant, st); err != nil {
		return err
	}

	s.mu.Lock()
	s.savedRev = rev
	s.mu.Unlock()
	return nil
}

// Dirty reports whether there are unsaved changes
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revision != s.savedRev
}

// Close flushes unsaved changes
func (s *Session) Close(ctx context.Context) error {
	if !s.Dirty() {
		return nil
	}
	return s.Save(ctx)
}
