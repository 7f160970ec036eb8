package tree

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"familytree/domain/config"
	"familytree/domain/core/valueobjects"
	"familytree/domain/events"
	"familytree/domain/snapshot"
	"familytree/infrastructure/messaging/eventbus"
	"familytree/infrastructure/notify"
	"familytree/infrastructure/persistence"
	"familytree/infrastructure/persistence/storage"
	"familytree/infrastructure/render"
	pkgerrors "familytree/pkg/errors"
)

// stubStore hands out a fixed snapshot without running load-time repair
type stubStore struct {
	mu    sync.Mutex
	snap  *snapshot.Snapshot
	saved []*snapshot.Snapshot
}

func (s *stubStore) Save(_ context.Context, snap *snapshot.Snapshot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, snap)
	return true
}

func (s *stubStore) Load(context.Context) *snapshot.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap == nil {
		return nil
	}
	return s.snap.Clone()
}

func (s *stubStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = nil
	return nil
}

type treeFixture struct {
	tree     *Tree
	renderer *render.HeadlessRenderer
	notifier *notify.Recorder
	bus      *eventbus.Bus
	store    *stubStore
	config   *config.DomainConfig
}

func newTreeFixture(t *testing.T) *treeFixture {
	t.Helper()
	cfg := config.DefaultDomainConfig()
	cfg.DragDebounce = 20 * time.Millisecond

	f := &treeFixture{
		renderer: render.NewHeadlessRenderer(),
		notifier: notify.NewRecorder(),
		bus:      eventbus.New(nil),
		store:    &stubStore{},
		config:   cfg,
	}
	f.tree = New(Deps{
		Renderer:  f.renderer,
		Notifier:  f.notifier,
		Store:     f.store,
		Publisher: f.bus,
		Config:    cfg,
	})
	return f
}

func person(name, gender string) PersonInput {
	return PersonInput{Name: name, Gender: gender}
}

func (f *treeFixture) add(t *testing.T, in PersonInput) valueobjects.PersonID {
	t.Helper()
	id, err := f.tree.AddPerson(context.Background(), in)
	require.NoError(t, err)
	return id
}

func TestTree_AddPersonDrawsParentConnection(t *testing.T) {
	f := newTreeFixture(t)

	a := f.add(t, person("Ada", "female"))
	in := person("Byron", "male")
	in.MotherID = a.String()
	b := f.add(t, in)

	assert.Equal(t, valueobjects.PersonID("p1"), a)
	assert.Equal(t, valueobjects.PersonID("p2"), b)
	assert.Equal(t, []valueobjects.Connection{
		{From: b, To: a, Kind: valueobjects.ConnectionParent},
	}, f.tree.Connections())
	assert.True(t, f.renderer.NeedsRedraw())
}

func TestTree_AddPersonValidation(t *testing.T) {
	f := newTreeFixture(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		input PersonInput
		check func(error) bool
	}{
		{"missing name", PersonInput{Gender: "male"}, pkgerrors.IsValidation},
		{"missing gender", PersonInput{Name: "Ada"}, pkgerrors.IsValidation},
		{"unknown gender", PersonInput{Name: "Ada", Gender: "robot"}, pkgerrors.IsValidation},
		{"bad color", PersonInput{Name: "Ada", Gender: "female", Color: "blue-ish"}, pkgerrors.IsValidation},
		{"same parents", PersonInput{Name: "Ada", Gender: "female", MotherID: "p9", FatherID: "p9"}, pkgerrors.IsValidation},
		{"unknown mother", PersonInput{Name: "Ada", Gender: "female", MotherID: "p9"}, pkgerrors.IsNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.tree.AddPerson(ctx, tt.input)
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error: %v", err)
		})
	}

	assert.Equal(t, 0, f.tree.Family().Len())
	assert.False(t, f.tree.CanUndo())
}

func TestTree_SpouseIsMirrored(t *testing.T) {
	f := newTreeFixture(t)

	a := f.add(t, person("Ada", "female"))
	in := person("William", "male")
	in.SpouseID = a.String()
	b := f.add(t, in)

	pa, ok := f.tree.Person(a)
	require.True(t, ok)
	assert.Equal(t, b, pa.SpouseID)

	conns := f.tree.Connections()
	require.Len(t, conns, 1)
	assert.Equal(t, valueobjects.ConnectionSpouse, conns[0].Kind)

	require.NoError(t, f.tree.ClearRelation(context.Background(), b, valueobjects.RelationSpouse))
	pa, _ = f.tree.Person(a)
	assert.True(t, pa.SpouseID.IsZero())
	assert.Empty(t, f.tree.Connections())
}

func TestTree_UndoRedo(t *testing.T) {
	f := newTreeFixture(t)
	ctx := context.Background()

	a := f.add(t, person("Ada", "female"))
	in := person("Byron", "male")
	in.MotherID = a.String()
	b := f.add(t, in)
	require.Len(t, f.tree.Connections(), 1)

	require.True(t, f.tree.Undo(ctx))
	_, ok := f.tree.Person(b)
	assert.False(t, ok)
	assert.Empty(t, f.tree.Connections())
	assert.NotContains(t, f.renderer.Nodes(), b)
	assert.True(t, f.tree.CanRedo())

	require.True(t, f.tree.Redo(ctx))
	_, ok = f.tree.Person(b)
	assert.True(t, ok)
	assert.Len(t, f.tree.Connections(), 1)
	assert.False(t, f.tree.CanRedo())

	require.True(t, f.tree.Undo(ctx))
	require.True(t, f.tree.Undo(ctx))
	assert.False(t, f.tree.Undo(ctx))
	assert.Equal(t, 0, f.tree.Family().Len())
}

func TestTree_NewMutationClearsRedo(t *testing.T) {
	f := newTreeFixture(t)
	ctx := context.Background()

	f.add(t, person("Ada", "female"))
	require.True(t, f.tree.Undo(ctx))
	require.True(t, f.tree.CanRedo())

	f.add(t, person("Byron", "male"))
	assert.False(t, f.tree.CanRedo())
	assert.False(t, f.tree.Redo(ctx))
}

func TestTree_HiddenConnectionSuppressedAndRestored(t *testing.T) {
	f := newTreeFixture(t)
	ctx := context.Background()

	a := f.add(t, person("Ada", "female"))
	in := person("Byron", "male")
	in.MotherID = a.String()
	b := f.add(t, in)

	require.NoError(t, f.tree.HideConnection(ctx, a, b))
	assert.Empty(t, f.tree.Connections())
	pb, _ := f.tree.Person(b)
	assert.Equal(t, a, pb.MotherID, "hiding keeps the relation")
	assert.Equal(t, []valueobjects.ConnectionKey{valueobjects.NewConnectionKey(a, b)}, f.tree.HiddenConnections())

	require.NoError(t, f.tree.ShowConnection(ctx, b, a))
	assert.Len(t, f.tree.Connections(), 1)

	require.True(t, f.tree.Undo(ctx))
	assert.Empty(t, f.tree.Connections())
}

func TestTree_ConnectionTogglesRejectBadEndpoints(t *testing.T) {
	f := newTreeFixture(t)
	ctx := context.Background()
	a := f.add(t, person("Ada", "female"))

	assert.True(t, pkgerrors.IsValidation(f.tree.HideConnection(ctx, a, a)))
	assert.True(t, pkgerrors.IsNotFound(f.tree.AddLineOnly(ctx, a, "p42")))
}

func TestTree_LineOnlyAndDisconnect(t *testing.T) {
	f := newTreeFixture(t)
	ctx := context.Background()

	a := f.add(t, person("Ada", "female"))
	b := f.add(t, person("Charles", "male"))

	require.NoError(t, f.tree.AddLineOnly(ctx, a, b))
	conns := f.tree.Connections()
	require.Len(t, conns, 1)
	assert.Equal(t, valueobjects.ConnectionLineOnly, conns[0].Kind)

	require.NoError(t, f.tree.SetRelation(ctx, b, valueobjects.RelationMother, a))
	changed, err := f.tree.Disconnect(ctx, b, a)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Empty(t, f.tree.Connections())
	assert.Empty(t, f.tree.LineOnlyConnections())

	changed, err = f.tree.Disconnect(ctx, a, b)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestTree_DeletePersonLeavesDanglingReference(t *testing.T) {
	f := newTreeFixture(t)
	ctx := context.Background()

	a := f.add(t, person("Ada", "female"))
	in := person("Byron", "male")
	in.MotherID = a.String()
	b := f.add(t, in)
	require.NoError(t, f.tree.HideConnection(ctx, a, b))

	require.NoError(t, f.tree.DeletePerson(ctx, a))
	pb, _ := f.tree.Person(b)
	assert.Equal(t, a, pb.MotherID)
	assert.Empty(t, f.tree.Connections())
	assert.Empty(t, f.tree.HiddenConnections())
	assert.NotContains(t, f.renderer.Nodes(), a)

	assert.True(t, pkgerrors.IsNotFound(f.tree.DeletePerson(ctx, a)))

	require.True(t, f.tree.Undo(ctx))
	_, ok := f.tree.Person(a)
	assert.True(t, ok)
	assert.Contains(t, f.renderer.Nodes(), a)
}

func TestTree_UpdatePersonKeepsPosition(t *testing.T) {
	f := newTreeFixture(t)
	ctx := context.Background()

	in := person("Ada", "female")
	in.X, in.Y = 40, 80
	a := f.add(t, in)

	update := person("Ada Lovelace", "female")
	update.Color = "#ff0000"
	require.NoError(t, f.tree.UpdatePerson(ctx, a, update))

	p, _ := f.tree.Person(a)
	assert.Equal(t, "Ada Lovelace", p.Name)
	node := f.renderer.Nodes()[a]
	assert.Equal(t, 40.0, node.X)
	assert.Equal(t, 80.0, node.Y)
	assert.Equal(t, "#ff0000", node.Color)

	assert.True(t, pkgerrors.IsNotFound(f.tree.UpdatePerson(ctx, "p9", update)))
}

func TestTree_PublishesEvents(t *testing.T) {
	f := newTreeFixture(t)

	var (
		mu        sync.Mutex
		saved     []valueobjects.PersonID
		lastRegen events.ConnectionsRegenerated
	)
	eventbus.Subscribe(f.bus, "saved", 0, func(_ context.Context, e events.PersonSaved) error {
		mu.Lock()
		defer mu.Unlock()
		saved = append(saved, e.PersonID)
		return nil
	})
	eventbus.Subscribe(f.bus, "regen", 0, func(_ context.Context, e events.ConnectionsRegenerated) error {
		mu.Lock()
		defer mu.Unlock()
		lastRegen = e
		return nil
	})

	a := f.add(t, person("Ada", "female"))
	in := person("Byron", "male")
	in.MotherID = a.String()
	f.add(t, in)

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, saved, a)
	assert.Equal(t, 1, lastRegen.Parent)
	assert.Equal(t, 1, lastRegen.Total())
}

func TestTree_SaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	cfg := config.DefaultDomainConfig()
	manager := persistence.NewManager(storage.NewMemoryStore(0), nil, notify.NewRecorder(), cfg, nil)

	source := New(Deps{Renderer: render.NewHeadlessRenderer(), Store: manager, Config: cfg})
	a, err := source.AddPerson(ctx, person("Ada", "female"))
	require.NoError(t, err)
	in := person("Byron", "male")
	in.MotherID = a.String()
	b, err := source.AddPerson(ctx, in)
	require.NoError(t, err)
	require.NoError(t, source.SetNodeStyle(ctx, "rectangle"))
	source.SetCamera(12, 34, 2)
	require.True(t, source.Save(ctx))

	target := New(Deps{Renderer: render.NewHeadlessRenderer(), Store: manager, Config: cfg})
	require.True(t, target.Load(ctx))

	assert.Equal(t, []valueobjects.Connection{
		{From: b, To: a, Kind: valueobjects.ConnectionParent},
	}, target.Connections())
	assert.Equal(t, snapshot.NodeStyleRectangle, target.NodeStyle())
	assert.False(t, target.CanUndo(), "history restarts at the loaded state")

	c, err := target.AddPerson(ctx, person("Charles", "male"))
	require.NoError(t, err)
	assert.Equal(t, valueobjects.PersonID("p3"), c)
}

func TestTree_LoadWithoutData(t *testing.T) {
	f := newTreeFixture(t)
	assert.False(t, f.tree.Load(context.Background()))
	assert.False(t, f.tree.IsRebuilding())
	assert.Zero(t, f.notifier.Count(notify.LevelError))
}

func TestTree_LoadRecoversRelationsFromBackup(t *testing.T) {
	f := newTreeFixture(t)
	ctx := context.Background()

	var repaired []events.SnapshotRepaired
	eventbus.Subscribe(f.bus, "repaired", 0, func(_ context.Context, e events.SnapshotRepaired) error {
		repaired = append(repaired, e)
		return nil
	})

	snap := snapshot.New()
	snap.Persons = []snapshot.PersonRecord{
		{ID: "p1", Name: "Ada", Gender: "female"},
		{ID: "p2", Name: "Byron", Gender: "male"},
	}
	snap.RelationsBackup = map[string]snapshot.RelationRecord{
		"p2": {MotherID: "p1"},
	}
	snap.NextID = 3
	f.store.snap = snap

	require.True(t, f.tree.Load(ctx))

	assert.Equal(t, []valueobjects.Connection{
		{From: "p2", To: "p1", Kind: valueobjects.ConnectionParent},
	}, f.tree.Connections())
	require.Len(t, repaired, 1)
	assert.Equal(t, "post-regenerate", repaired[0].Stage)
	assert.Equal(t, 1, repaired[0].Restored)
	assert.Equal(t, 1, f.notifier.Count(notify.LevelInfo))
}

func TestTree_LoadAllHiddenDoesNotRecover(t *testing.T) {
	f := newTreeFixture(t)

	snap := snapshot.New()
	snap.Persons = []snapshot.PersonRecord{
		{ID: "p1", Name: "Ada", Gender: "female"},
		{ID: "p2", Name: "Byron", Gender: "male", MotherID: "p1"},
	}
	snap.HiddenConnections = []string{valueobjects.NewConnectionKey("p1", "p2").String()}
	f.store.snap = snap

	require.True(t, f.tree.Load(context.Background()))
	assert.Empty(t, f.tree.Connections())
	assert.Zero(t, f.notifier.Count(notify.LevelWarning))
	assert.Zero(t, f.notifier.Count(notify.LevelInfo))
}

func TestTree_GenerationsReportsCycles(t *testing.T) {
	f := newTreeFixture(t)
	ctx := context.Background()

	var cycles []events.GenerationCycleDetected
	eventbus.Subscribe(f.bus, "cycles", 0, func(_ context.Context, e events.GenerationCycleDetected) error {
		cycles = append(cycles, e)
		return nil
	})

	snap := snapshot.New()
	snap.Persons = []snapshot.PersonRecord{
		{ID: "p1", Name: "Ada", Gender: "female", MotherID: "p2"},
		{ID: "p2", Name: "Eve", Gender: "female", MotherID: "p1"},
	}
	require.NoError(t, f.tree.RestoreSnapshot(ctx, snap))

	report := f.tree.Generations(ctx)
	assert.Len(t, report.Generations, 2)
	assert.True(t, report.HasCycles())
	require.Len(t, cycles, 1)
	assert.Equal(t, report.CycleCuts, cycles[0].PersonIDs)
}

func TestTree_GenerationsSimpleLine(t *testing.T) {
	f := newTreeFixture(t)

	a := f.add(t, person("Ada", "female"))
	in := person("Byron", "male")
	in.MotherID = a.String()
	b := f.add(t, in)

	report := f.tree.Generations(context.Background())
	assert.Equal(t, 0, report.Generations[a])
	assert.Equal(t, 1, report.Generations[b])
	assert.False(t, report.HasCycles())
}

func TestTree_DragNodeDebouncesUndo(t *testing.T) {
	f := newTreeFixture(t)
	ctx := context.Background()
	a := f.add(t, person("Ada", "female"))
	before, _ := f.tree.history.Depth()

	for i := 1; i <= 5; i++ {
		require.NoError(t, f.tree.DragNode(a, float64(i*10), 0))
	}

	assert.Eventually(t, func() bool {
		depth, _ := f.tree.history.Depth()
		return depth == before+1
	}, time.Second, 5*time.Millisecond)

	require.True(t, f.tree.Undo(ctx))
	assert.Equal(t, 0.0, f.renderer.Nodes()[a].X)
}

func TestTree_MoveNodeIsUndoable(t *testing.T) {
	f := newTreeFixture(t)
	ctx := context.Background()
	a := f.add(t, person("Ada", "female"))

	require.NoError(t, f.tree.MoveNode(ctx, a, 100, 200))
	assert.Equal(t, 100.0, f.renderer.Nodes()[a].X)

	require.True(t, f.tree.Undo(ctx))
	assert.Equal(t, 0.0, f.renderer.Nodes()[a].X)

	assert.True(t, pkgerrors.IsNotFound(f.tree.MoveNode(ctx, "p9", 1, 1)))
}

func TestTree_ApplyShape(t *testing.T) {
	f := newTreeFixture(t)
	ctx := context.Background()

	a := f.add(t, person("Ada", "female"))
	in := person("Byron", "male")
	in.MotherID = a.String()
	b := f.add(t, in)

	require.NoError(t, f.tree.ApplyShape(ctx, "tree"))
	nodes := f.renderer.Nodes()
	assert.Less(t, nodes[a].Y, nodes[b].Y, "parents sit above children")
	assert.Len(t, f.tree.Connections(), 1)

	assert.True(t, pkgerrors.IsValidation(f.tree.ApplyShape(ctx, "spiral")))
}

func TestTree_SettingsAndPreferences(t *testing.T) {
	f := newTreeFixture(t)
	ctx := context.Background()

	settings := snapshot.DefaultSettings()
	settings.NodeRadius = 70
	require.NoError(t, f.tree.UpdateSettings(ctx, settings))
	assert.Equal(t, 70.0, f.tree.Settings().NodeRadius)

	a := f.add(t, person("Ada", "female"))
	assert.Equal(t, 70.0, f.renderer.Nodes()[a].Radius)

	bad := settings
	bad.FamilyLineStyle = "wavy"
	assert.True(t, pkgerrors.IsValidation(f.tree.UpdateSettings(ctx, bad)))

	prefs := snapshot.DisplayPreferences{ShowDateOfBirth: true}
	require.NoError(t, f.tree.SetDisplayPreferences(ctx, prefs))
	assert.Equal(t, prefs, f.tree.DisplayPreferences())

	assert.True(t, pkgerrors.IsValidation(f.tree.SetNodeStyle(ctx, "hexagon")))
}

func TestTree_Clear(t *testing.T) {
	f := newTreeFixture(t)
	ctx := context.Background()
	f.store.snap = snapshot.New()

	f.add(t, person("Ada", "female"))
	require.NoError(t, f.tree.Clear(ctx))

	assert.Equal(t, 0, f.tree.Family().Len())
	assert.Empty(t, f.renderer.Nodes())
	assert.Nil(t, f.store.Load(ctx))

	id := f.add(t, person("Byron", "male"))
	assert.Equal(t, valueobjects.PersonID("p1"), id)
}

func TestTree_SnapshotFlushesPendingDrag(t *testing.T) {
	f := newTreeFixture(t)
	f.config.DragDebounce = time.Hour
	a := f.add(t, person("Ada", "female"))
	before, _ := f.tree.history.Depth()

	require.NoError(t, f.tree.DragNode(a, 55, 66))
	snap := f.tree.Snapshot()

	after, _ := f.tree.history.Depth()
	assert.Equal(t, before+1, after)
	require.Len(t, snap.Persons, 1)
	assert.Equal(t, 55.0, snap.Persons[0].X)
}

func TestTree_PendingDragIsItsOwnUndoStep(t *testing.T) {
	f := newTreeFixture(t)
	f.config.DragDebounce = time.Hour
	ctx := context.Background()
	a := f.add(t, person("Ada", "female"))

	require.NoError(t, f.tree.DragNode(a, 100, 0))
	f.add(t, person("Bob", "male"))

	require.True(t, f.tree.Undo(ctx))
	assert.Equal(t, 1, f.tree.Family().Len())
	assert.Equal(t, 100.0, f.renderer.Nodes()[a].X, "undoing the add keeps the drag")

	require.True(t, f.tree.Undo(ctx))
	assert.Equal(t, 0.0, f.renderer.Nodes()[a].X)
}

// slowStore tracks how many store calls run at once
type slowStore struct {
	stubStore
	inFlight   atomic.Int32
	overlapped atomic.Bool
}

func (s *slowStore) enter() func() {
	if s.inFlight.Add(1) > 1 {
		s.overlapped.Store(true)
	}
	time.Sleep(2 * time.Millisecond)
	return func() { s.inFlight.Add(-1) }
}

func (s *slowStore) Save(ctx context.Context, snap *snapshot.Snapshot) bool {
	defer s.enter()()
	return s.stubStore.Save(ctx, snap)
}

func (s *slowStore) Load(ctx context.Context) *snapshot.Snapshot {
	defer s.enter()()
	return s.stubStore.Load(ctx)
}

func TestTree_SaveAndLoadDoNotOverlap(t *testing.T) {
	store := &slowStore{}
	store.snap = snapshot.New()
	tr := New(Deps{
		Renderer: render.NewHeadlessRenderer(),
		Store:    store,
		Config:   config.DefaultDomainConfig(),
	})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			tr.Save(ctx)
		}()
		go func() {
			defer wg.Done()
			tr.Load(ctx)
		}()
	}
	wg.Wait()

	assert.False(t, store.overlapped.Load())
}
