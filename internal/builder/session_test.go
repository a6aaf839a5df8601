package builder

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"dentaldesk/internal/storage"
)

func newTestSession(t *testing.T) (*Session, *storage.MemoryStorage) {
	t.Helper()
	primary := storage.NewMemoryStorage()
	s := NewSession("clinic", NewStateStore(primary, nil), NewCatalog(""), 0, testIDs("w"))
	s.Hydrate(context.Background())
	return s, primary
}

func ptr[T any](v T) *T { return &v }

func TestSession_AddUndoRedo(t *testing.T) {
	s, _ := newTestSession(t)

	a, err := s.AddWidget(AddWidgetRequest{Type: TypeHeading, X: ptr(10.0), Y: ptr(-5.0)})
	if err != nil {
		t.Fatal(err)
	}
	if y, _ := a.Props.Number("y"); y != 0 {
		t.Errorf("y = %v, want clamped to 0", y)
	}
	if _, err := s.AddWidget(AddWidgetRequest{Type: TypeButton, Index: ptr(0)}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddWidget(AddWidgetRequest{Type: "marquee"}); !errors.Is(err, ErrUnknownType) {
		t.Errorf("unknown type: %v", err)
	}

	if got := s.Widgets(); len(got) != 2 || got[1].ID != a.ID {
		t.Fatalf("widgets = %v", ids(got))
	}
	if !s.Undo() || len(s.Widgets()) != 1 {
		t.Fatalf("undo: %v", ids(s.Widgets()))
	}
	if !s.Undo() || len(s.Widgets()) != 0 {
		t.Fatalf("second undo: %v", ids(s.Widgets()))
	}
	if s.Undo() {
		t.Error("undo past the initial state should report false")
	}
	if !s.Redo() || !s.Redo() || len(s.Widgets()) != 2 {
		t.Errorf("redo: %v", ids(s.Widgets()))
	}
	if s.Redo() {
		t.Error("redo past the newest state should report false")
	}
}

func TestSession_AddIntoContainer(t *testing.T) {
	s, _ := newTestSession(t)

	section, err := s.AddWidget(AddWidgetRequest{Type: TypeSection, Props: Props{"columns": 2}})
	if err != nil {
		t.Fatal(err)
	}
	col := section.Children[1].ID
	text, err := s.AddWidget(AddWidgetRequest{Type: TypeText, ContainerID: col})
	if err != nil {
		t.Fatal(err)
	}
	if c := Find(s.Widgets(), col); !equalIDs(c.Children, text.ID) {
		t.Errorf("column children = %v", ids(c.Children))
	}
	if err := s.MoveWidget(text.ID, "", End); err != nil {
		t.Fatal(err)
	}
	if got := s.Widgets(); len(got) != 2 || got[1].ID != text.ID {
		t.Errorf("after move to root: %v", ids(got))
	}
	if err := s.MoveWidget(section.ID, col, End); !errors.Is(err, ErrInvalidMove) {
		t.Errorf("move into own column: %v", err)
	}
}

func TestSession_RemoveDuplicateUpdate(t *testing.T) {
	s, _ := newTestSession(t)
	card, _ := s.AddWidget(AddWidgetRequest{Type: TypeCard})

	dup, err := s.DuplicateWidget(card.ID)
	if err != nil {
		t.Fatal(err)
	}
	if dup.ID == card.ID || len(s.Widgets()) != 2 {
		t.Errorf("duplicate = %+v", dup)
	}

	updated, err := s.UpdateWidget(dup.ID, Props{"title": "Implants"})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Props.String("title") != "Implants" {
		t.Errorf("props = %v", updated.Props)
	}

	if err := s.RemoveWidget(card.ID); err != nil {
		t.Fatal(err)
	}
	if err := s.RemoveWidget(card.ID); !errors.Is(err, ErrWidgetNotFound) {
		t.Errorf("second remove: %v", err)
	}
	if _, err := s.DuplicateWidget("missing"); !errors.Is(err, ErrWidgetNotFound) {
		t.Errorf("duplicate missing: %v", err)
	}
	if _, err := s.UpdateWidget("missing", Props{}); !errors.Is(err, ErrWidgetNotFound) {
		t.Errorf("update missing: %v", err)
	}
}

func TestSession_DragCommitsOnce(t *testing.T) {
	s, _ := newTestSession(t)
	b, _ := s.AddWidget(AddWidgetRequest{Type: TypeButton, X: ptr(100.0), Y: ptr(100.0)})
	before := s.history.Len()

	if err := s.BeginDrag(b.ID, 500, 500); err != nil {
		t.Fatal(err)
	}
	for _, p := range [][2]float64{{510, 520}, {540, 560}, {300, 420}} {
		if _, err := s.DragTo(p[0], p[1]); err != nil {
			t.Fatal(err)
		}
	}
	if s.history.Len() != before {
		t.Fatal("intermediate drag positions must not be recorded")
	}

	moved, err := s.EndDrag()
	if err != nil || !moved {
		t.Fatalf("EndDrag = %v, %v", moved, err)
	}
	if s.history.Len() != before+1 {
		t.Errorf("history grew by %d, want 1", s.history.Len()-before)
	}

	n := Find(s.Widgets(), b.ID)
	if x, _ := n.Props.Number("x"); x != 0 {
		t.Errorf("x = %v, want clamped 0", x)
	}
	if y, _ := n.Props.Number("y"); y != 20 {
		t.Errorf("y = %v, want 20", y)
	}

	s.Undo()
	if x, _ := Find(s.Widgets(), b.ID).Props.Number("x"); x != 100 {
		t.Errorf("undo should restore the pre-drag position, x = %v", x)
	}
}

func TestSession_DragWithoutMovement(t *testing.T) {
	s, _ := newTestSession(t)
	b, _ := s.AddWidget(AddWidgetRequest{Type: TypeButton})
	before := s.history.Len()

	if _, err := s.DragTo(1, 1); !errors.Is(err, ErrNoDrag) {
		t.Errorf("DragTo without drag: %v", err)
	}
	if err := s.BeginDrag("missing", 0, 0); !errors.Is(err, ErrWidgetNotFound) {
		t.Errorf("BeginDrag missing: %v", err)
	}
	if err := s.BeginDrag(b.ID, 0, 0); err != nil {
		t.Fatal(err)
	}
	if moved, _ := s.EndDrag(); moved {
		t.Error("a click without movement is not a move")
	}
	if s.history.Len() != before {
		t.Error("a drag without movement should not be recorded")
	}
	if _, err := s.EndDrag(); !errors.Is(err, ErrNoDrag) {
		t.Errorf("second EndDrag: %v", err)
	}
}

func TestSession_EditDuringDragCommitsDragFirst(t *testing.T) {
	s, _ := newTestSession(t)
	b, _ := s.AddWidget(AddWidgetRequest{Type: TypeButton, X: ptr(0.0), Y: ptr(0.0)})
	s.BeginDrag(b.ID, 0, 0)
	s.DragTo(40, 40)

	if _, err := s.AddWidget(AddWidgetRequest{Type: TypeText}); err != nil {
		t.Fatal(err)
	}
	s.Undo()
	if x, _ := Find(s.Widgets(), b.ID).Props.Number("x"); x != 40 {
		t.Errorf("undoing the add should keep the drag, x = %v", x)
	}
}

func TestSession_Settings(t *testing.T) {
	s, _ := newTestSession(t)

	got, err := s.UpdateSettings(map[string]any{"padding": 0, "extraWidth": 0, "minWidth": 0})
	if err != nil {
		t.Fatal(err)
	}
	if got.Padding != 0 || s.Settings().Padding != 0 {
		t.Errorf("settings = %+v", got)
	}
	if _, err := s.UpdateSettings(map[string]any{"alignment": "diagonal"}); err == nil {
		t.Error("expected validation error")
	}

	s.AddWidget(AddWidgetRequest{Type: TypeButton, X: ptr(50.0), Y: ptr(0.0)})
	if ext := s.Extent(); ext.Width != 200 {
		t.Errorf("extent = %+v", ext)
	}
	if b := s.Bounds(); b.Width != 200 {
		t.Errorf("bounds = %+v", b)
	}
}

func TestSession_Templates(t *testing.T) {
	s, _ := newTestSession(t)

	if err := s.ApplyTemplate("services-overview"); err != nil {
		t.Fatal(err)
	}
	widgets := s.Widgets()
	want := []float64{0, 120, 320, 560}
	for i, n := range widgets {
		if strings.HasPrefix(n.ID, "services-overview") {
			t.Errorf("template widget ids should be fresh, got %s", n.ID)
		}
		if y := yOf(t, n); y != want[i] {
			t.Errorf("%s.y = %v, want %v", n.Type, y, want[i])
		}
	}

	saved, err := s.SaveAsTemplate("  My page ", "copy of services")
	if err != nil {
		t.Fatal(err)
	}
	if saved.Name != "My page" || len(saved.Widgets) != 4 || saved.BuiltIn {
		t.Errorf("saved = %+v", saved)
	}
	all := s.Templates()
	if last := all[len(all)-1]; last.ID != saved.ID {
		t.Errorf("own templates should follow the shipped ones, last = %s", last.ID)
	}
	if st := s.State(); len(st.Templates) != 1 {
		t.Errorf("persisted templates = %d, want only the tenant's own", len(st.Templates))
	}

	if err := s.ApplyTemplate("blank"); err != nil {
		t.Fatal(err)
	}
	if len(s.Widgets()) != 0 {
		t.Error("blank template should clear the canvas")
	}
	if err := s.ApplyTemplate(saved.ID); err != nil {
		t.Fatal(err)
	}
	if len(s.Widgets()) != 4 {
		t.Errorf("applying own template: %d widgets", len(s.Widgets()))
	}

	if err := s.ApplyTemplate("nope"); !errors.Is(err, ErrTemplateNotFound) {
		t.Errorf("unknown template: %v", err)
	}
	if _, err := s.SaveAsTemplate(" ", ""); err == nil {
		t.Error("expected error for empty name")
	}
}

func TestSession_ApplyTemplateSettings(t *testing.T) {
	s, _ := newTestSession(t)
	if err := s.ApplyTemplate("appointment-promo"); err != nil {
		t.Fatal(err)
	}
	if s.Settings().Background != "#f0fdfa" {
		t.Errorf("template settings not applied: %+v", s.Settings())
	}
}

func TestSession_SaveAndHydrate(t *testing.T) {
	s, primary := newTestSession(t)
	if s.Dirty() {
		t.Fatal("fresh session should be clean")
	}
	s.AddWidget(AddWidgetRequest{Type: TypeFooter, Y: ptr(800.0)})
	s.AddWidget(AddWidgetRequest{Type: TypeNavbar, Y: ptr(0.0)})
	if !s.Dirty() {
		t.Fatal("session should be dirty after edits")
	}

	if err := s.Save(context.Background()); err != nil {
		t.Fatal(err)
	}
	if s.Dirty() {
		t.Error("session should be clean after save")
	}

	other := NewSession("clinic", NewStateStore(primary, nil), nil, 0, testIDs("z"))
	if src := other.Hydrate(context.Background()); src != SourcePrimary {
		t.Errorf("source = %s", src)
	}
	got := other.Widgets()
	if len(got) != 2 || got[0].Type != TypeNavbar {
		t.Errorf("hydrated widgets = %v", ids(got))
	}
	if other.Canvas().CanUndo {
		t.Error("hydrated session should start with fresh history")
	}
}

func TestSession_ReplaceState(t *testing.T) {
	s, _ := newTestSession(t)
	s.AddWidget(AddWidgetRequest{Type: TypeText})

	st := DefaultState()
	st.CanvasWidgets = Tree{leaf("a"), leaf("b")}
	st.Templates = []TemplateDefinition{{ID: "mine", Name: "Mine"}, {ID: "seed", Name: "Seed", BuiltIn: true}}
	s.ReplaceState(st)

	if got := s.Widgets(); !equalIDs(got, "a", "b") {
		t.Errorf("widgets = %v", ids(got))
	}
	if y := yOf(t, s.Widgets()[1]); y != 200 {
		t.Errorf("replaced widgets should be normalized, b.y = %v", y)
	}
	if s.Canvas().CanUndo {
		t.Error("history should be reset")
	}
	if st := s.State(); len(st.Templates) != 1 || st.Templates[0].ID != "mine" {
		t.Errorf("templates = %+v", st.Templates)
	}
}

type blockingStore struct {
	*storage.MemoryStorage
	entered chan struct{}
	release chan struct{}
}

func (b *blockingStore) Put(ctx context.Context, tenant, collection, id string, content []byte) (*storage.Item, error) {
	b.entered <- struct{}{}
	<-b.release
	return b.MemoryStorage.Put(ctx, tenant, collection, id, content)
}

func TestSession_ConcurrentSaveIsRejected(t *testing.T) {
	store := &blockingStore{
		MemoryStorage: storage.NewMemoryStorage(),
		entered:       make(chan struct{}),
		release:       make(chan struct{}),
	}
	s := NewSession("clinic", NewStateStore(store, nil), nil, 0, testIDs("w"))
	s.AddWidget(AddWidgetRequest{Type: TypeText})

	done := make(chan error, 1)
	go func() { done <- s.Save(context.Background()) }()
	<-store.entered

	if err := s.Save(context.Background()); !errors.Is(err, ErrSaveInProgress) {
		t.Errorf("second save = %v, want ErrSaveInProgress", err)
	}
	// edits are not blocked by the save
	if _, err := s.AddWidget(AddWidgetRequest{Type: TypeButton}); err != nil {
		t.Fatal(err)
	}

	close(store.release)
	if err := <-done; err != nil {
		t.Fatalf("first save: %v", err)
	}
	if !s.Dirty() {
		t.Error("edit made during the save should still be unsaved")
	}
}

func TestSession_SaveFailureKeepsDirty(t *testing.T) {
	s := NewSession("clinic", NewStateStore(storage.NewNoopStorage(), nil), nil, 0, testIDs("w"))
	s.AddWidget(AddWidgetRequest{Type: TypeText})

	if err := s.Save(context.Background()); err == nil {
		t.Fatal("expected save error")
	}
	if !s.Dirty() {
		t.Error("failed save should leave the session dirty")
	}
}

func TestSession_CloseFlushesChanges(t *testing.T) {
	s, primary := newTestSession(t)
	s.AddWidget(AddWidgetRequest{Type: TypeText})

	if err := s.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
	if ok, _ := primary.Exists(context.Background(), "clinic", storage.CollectionWebsiteBuilder, StateKey); !ok {
		t.Error("close should persist unsaved changes")
	}
}

func TestManager(t *testing.T) {
	primary := storage.NewMemoryStorage()
	m := NewManager(NewStateStore(primary, nil), NewCatalog(""), 0)
	ctx := context.Background()

	a := m.Session(ctx, "north")
	if m.Session(ctx, "north") != a {
		t.Error("same tenant should get the same session")
	}
	if m.Session(ctx, "south") == a {
		t.Error("tenants should not share sessions")
	}

	a.AddWidget(AddWidgetRequest{Type: TypeHeading})
	if err := m.Close(ctx); err != nil {
		t.Fatal(err)
	}
	if ok, _ := primary.Exists(ctx, "north", storage.CollectionWebsiteBuilder, StateKey); !ok {
		t.Error("dirty session not flushed")
	}
	if ok, _ := primary.Exists(ctx, "south", storage.CollectionWebsiteBuilder, StateKey); ok {
		t.Error("clean session should not be written")
	}
}

// gatedStorage blocks reads for one tenant until released
type gatedStorage struct {
	storage.Storage
	tenant  string
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedStorage) Get(ctx context.Context, tenant, collection, id string) (*storage.Item, error) {
	if tenant == g.tenant {
		g.once.Do(func() { close(g.entered) })
		<-g.release
	}
	return g.Storage.Get(ctx, tenant, collection, id)
}

func TestManager_SlowHydrateDoesNotBlockOtherTenants(t *testing.T) {
	gate := &gatedStorage{
		Storage: storage.NewMemoryStorage(),
		tenant:  "slow",
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	m := NewManager(NewStateStore(gate, nil), NewCatalog(""), 0)
	ctx := context.Background()

	slow := make(chan *Session, 2)
	for i := 0; i < 2; i++ {
		go func() { slow <- m.Session(ctx, "slow") }()
	}
	<-gate.entered

	fast := make(chan *Session, 1)
	go func() { fast <- m.Session(ctx, "fast") }()
	select {
	case s := <-fast:
		if s.Tenant() != "fast" {
			t.Errorf("tenant = %s", s.Tenant())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("hydrating one tenant blocked another")
	}

	close(gate.release)
	a, b := <-slow, <-slow
	if a != b {
		t.Error("concurrent callers for one tenant should share a session")
	}
}
