package kura

import (
	"reflect"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// World owns all entities, tables and component records.
//
// A World is not safe for concurrent structural changes. Readers may run in
// parallel as long as no goroutine changes the world at the same time;
// BeginReadonly and EndReadonly mark such windows.
type World struct {
	id           uuid.UUID
	cfg          Config
	logger       zerolog.Logger
	customLogger bool

	entities entityIndex
	types    typeRegistry
	index    componentIndex

	tables     []*Table // indexed by table id, nil once deleted
	tableIndex map[string]uint32
	tableCount int

	// nonTrivial marks low ids that need more than the direct column lookup
	// of a table: ids used in pairs, stored sparsely or not inheritable.
	nonTrivial   bitmask256
	dontFragment *roaring.Bitmap // handles of don't fragment records
	names        map[string]Entity

	events   *EventBus
	readonly atomic.Bool
}

// NewWorld creates a World and its builtin entities.
//
// Parameters:
//   - opts: options applied on top of DefaultConfig.
//
// Returns:
//   - The newly created World.
func NewWorld(opts ...WorldOption) *World {
	w := &World{
		id:     uuid.New(),
		cfg:    DefaultConfig(),
		events: &EventBus{},
	}
	for _, opt := range opts {
		opt(w)
	}
	if !w.customLogger {
		level, err := zerolog.ParseLevel(w.cfg.LogLevel)
		if err != nil {
			log.Warn().Err(err).Str("level", w.cfg.LogLevel).Msg("unknown log level, using info")
			level = zerolog.InfoLevel
		}
		w.logger = log.Logger.Level(level)
	}
	w.logger = w.logger.With().Str("world", w.id.String()).Logger()

	w.entities = newEntityIndex(w.cfg.InitialCapacity)
	w.types = newTypeRegistry()
	w.index = newComponentIndex()
	w.tables = make([]*Table, 0, 16)
	w.tableIndex = make(map[string]uint32, 16)
	w.dontFragment = roaring.New()
	w.names = make(map[string]Entity)

	w.newTable(nil, typeKey(nil))
	w.initBuiltins()
	w.logger.Debug().Int("capacity", w.cfg.InitialCapacity).Bool("debug", w.cfg.Debug).Msg("world created")
	return w
}

func (w *World) initBuiltins() {
	for _, b := range [...]Entity{Wildcard, IsA, ChildOf, Identifier, Name} {
		w.reserveEntity(b.Index())
		w.entities.records[b.Index()].flags |= flagBuiltin
	}
	w.types.set(Name.ID(), newTypeInfo(Name, reflect.TypeFor[string]()))

	childOf := w.ensureRecord(ChildOf.ID())
	childOf.traits |= traitExclusive
	childOf.pinned = true
	identifier := w.ensureRecord(Identifier.ID())
	identifier.traits |= traitDontInherit
	identifier.pinned = true
	isA := w.ensureRecord(IsA.ID())
	isA.traits |= traitDontInherit
	isA.pinned = true
	w.ensureRecord(identifierName).pinned = true
}

// reserveEntity makes the entity at a reserved index alive in the root table.
func (w *World) reserveEntity(index uint32) Entity {
	e := w.entities.reserve(index)
	root := w.tables[0]
	r := &w.entities.records[index]
	r.table = root.id
	r.row = int32(root.appendRow(e))
	return e
}

// ID returns the unique id of the world, used to tag its log lines.
func (w *World) ID() uuid.UUID { return w.id }

// Config returns the configuration the world runs with.
func (w *World) Config() Config { return w.cfg }

// Logger returns the world logger.
func (w *World) Logger() *zerolog.Logger { return &w.logger }

// Events returns the bus the world publishes storage events to.
func (w *World) Events() *EventBus { return w.events }

// IsAlive reports whether e refers to a live entity. Stale handles of a
// recycled index are not alive.
func (w *World) IsAlive(e Entity) bool {
	return w.entities.get(e) != nil
}

// Exists reports whether any generation of the index of e is alive.
func (w *World) Exists(e Entity) bool {
	return w.entities.aliveAt(e.Index()) != 0
}

// Alive returns the live entity at index, or 0.
func (w *World) Alive(index uint32) Entity {
	return w.entities.aliveAt(index)
}

// NewEntity creates an empty entity in the root table.
func (w *World) NewEntity() Entity {
	if err := w.checkWritable(); err != nil {
		w.misuse(err, "NewEntity")
		return 0
	}
	e := w.entities.create()
	root := w.tables[0]
	r := &w.entities.records[e.Index()]
	r.table = root.id
	r.row = int32(root.appendRow(e))
	return e
}

// NewEntityNamed creates an entity and gives it a unique name.
func (w *World) NewEntityNamed(name string) (Entity, error) {
	if _, taken := w.names[name]; taken {
		return 0, eris.Wrapf(ErrInvalidParameter, "name %q is already taken", name)
	}
	e := w.NewEntity()
	if e == 0 {
		return 0, eris.Wrap(ErrAccessViolation, "cannot create entity")
	}
	if err := w.SetName(e, name); err != nil {
		return 0, err
	}
	return e, nil
}

// BeginReadonly starts a window in which only read accessors may be used.
// Structural changes fail with ErrAccessViolation, and GetMut panics when
// debug checks are on.
func (w *World) BeginReadonly() {
	w.readonly.Store(true)
}

// EndReadonly closes the readonly window.
func (w *World) EndReadonly() {
	w.readonly.Store(false)
}

// IsReadonly reports whether a readonly window is open.
func (w *World) IsReadonly() bool {
	return w.readonly.Load()
}

func (w *World) checkWritable() error {
	if w.readonly.Load() {
		return ErrAccessViolation
	}
	return nil
}

// Stats is a snapshot of storage counters.
type Stats struct {
	Entities         int `json:"entities"`
	Tables           int `json:"tables"`
	ComponentRecords int `json:"component_records"`
	SparseEntries    int `json:"sparse_entries"`
}

// Stats returns the current storage counters.
func (w *World) Stats() Stats {
	s := Stats{
		Entities:         w.entities.alive,
		Tables:           w.tableCount,
		ComponentRecords: w.index.count,
	}
	for _, cr := range w.index.arena {
		if cr != nil {
			s.SparseEntries += cr.SparseCount()
		}
	}
	return s
}
