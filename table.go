package kura

import (
	"encoding/binary"
	"maps"
	"slices"
	"unsafe"
)

// TableFlags summarize the ids of a table so accessors can skip work.
type TableFlags uint16

const (
	// TableHasIsA is set when the table holds at least one (IsA, base) pair.
	TableHasIsA TableFlags = 1 << iota
	// TableHasChildOf is set when the table holds a (ChildOf, parent) pair.
	TableHasChildOf
	// TableHasPairs is set when the table holds any pair.
	TableHasPairs
	// TableHasSparse is set when the table holds an id stored in sparse sets.
	TableHasSparse
	// TableHasName is set when the table holds the (Identifier, Name) pair.
	TableHasName
)

// tableRecord links a component record to one table. Concrete ids come
// first in type order, followed by the wildcard ids the table matches.
type tableRecord struct {
	handle uint32 // component record handle
	index  int    // position of the first matching id in the type
	count  int    // number of ids in the type the record matches
	column int    // column index, -1 when the id carries no table storage
}

// Table stores every entity that has exactly the same set of ids. Row i of
// each column and of the entity list belongs to the same entity.
type Table struct {
	id         uint32
	key        string
	typ        []ID
	colIndex   []int // type position -> column, -1 without storage
	columns    []column
	entities   []Entity
	records    []tableRecord
	lowColumns [HiComponentID]int16 // low id -> column+1, 0 when absent
	flags      TableFlags
	add        map[ID]uint32
	remove     map[ID]uint32
}

// ID returns the table id. The root table has id 0.
func (t *Table) ID() uint32 { return t.id }

// Type returns a copy of the sorted ids of the table.
func (t *Table) Type() []ID { return slices.Clone(t.typ) }

// Count returns the number of rows.
func (t *Table) Count() int { return len(t.entities) }

// Entities returns a copy of the entities in row order.
func (t *Table) Entities() []Entity { return slices.Clone(t.entities) }

// Flags returns the flags of the table.
func (t *Table) Flags() TableFlags { return t.flags }

// Has reports whether the type of the table matches id, which may be a
// wildcard pair.
func (t *Table) Has(id ID) bool {
	if !id.IsWildcard() {
		_, ok := slices.BinarySearch(t.typ, id)
		return ok
	}
	for _, c := range t.typ {
		if idMatches(id, c) {
			return true
		}
	}
	return false
}

// HasFlags reports whether all flags in f are set.
func (t *Table) HasFlags(f TableFlags) bool { return t.flags&f == f }

func typeKey(typ []ID) string {
	buf := make([]byte, 0, len(typ)*8)
	for _, id := range typ {
		buf = binary.LittleEndian.AppendUint64(buf, uint64(id))
	}
	return string(buf)
}

// tableForType returns the table holding exactly typ, creating it when it
// does not exist. typ must be sorted and contain validated ids.
func (w *World) tableForType(typ []ID) *Table {
	key := typeKey(typ)
	if id, ok := w.tableIndex[key]; ok {
		return w.tables[id]
	}
	return w.newTable(typ, key)
}

func (w *World) newTable(typ []ID, key string) *Table {
	t := &Table{
		id:       uint32(len(w.tables)),
		key:      key,
		typ:      slices.Clone(typ),
		colIndex: make([]int, len(typ)),
		add:      make(map[ID]uint32),
		remove:   make(map[ID]uint32),
	}
	for i, id := range t.typ {
		cr := w.ensureRecord(id)
		t.colIndex[i] = -1
		if cr.kind == StorageColumn {
			t.colIndex[i] = len(t.columns)
			t.columns = append(t.columns, newColumn(cr.ti, 0))
			if !id.IsPair() && uint64(id) < HiComponentID {
				t.lowColumns[id] = int16(t.colIndex[i] + 1)
			}
		}
		if cr.kind == StorageSparse {
			t.flags |= TableHasSparse
		}
		t.records = append(t.records, tableRecord{handle: cr.handle, index: i, count: 1, column: t.colIndex[i]})
		if !id.IsPair() {
			continue
		}
		t.flags |= TableHasPairs
		switch id.First() {
		case IsA.Index():
			t.flags |= TableHasIsA
		case ChildOf.Index():
			t.flags |= TableHasChildOf
		}
		if id == identifierName {
			t.flags |= TableHasName
		}
	}
	// Wildcard records follow the concrete ones in order of first match.
	wildcards := make(map[ID]int)
	for i, id := range t.typ {
		if !id.IsPair() {
			continue
		}
		cr := w.index.get(id)
		for _, wc := range [...]*ComponentRecord{cr.first, cr.second} {
			if wc == nil {
				continue
			}
			if ri, ok := wildcards[wc.id]; ok {
				t.records[ri].count++
				continue
			}
			wildcards[wc.id] = len(t.records)
			t.records = append(t.records, tableRecord{handle: wc.handle, index: i, count: 1, column: t.colIndex[i]})
		}
	}
	for ri := range t.records {
		w.index.byHandle(t.records[ri].handle).addTable(t.id, ri)
	}

	w.tables = append(w.tables, t)
	w.tableIndex[key] = t.id
	w.tableCount++
	w.logger.Debug().Uint32("table", t.id).Int("ids", len(t.typ)).Msg("table created")
	Publish(w.events, TableCreated{Table: t})
	return t
}

// tableWith returns the table reached from t by adding id.
func (w *World) tableWith(t *Table, id ID) *Table {
	if next, ok := t.add[id]; ok {
		return w.tables[next]
	}
	i, found := slices.BinarySearch(t.typ, id)
	if found {
		return t
	}
	typ := slices.Insert(slices.Clone(t.typ), i, id)
	next := w.tableForType(typ)
	t.add[id] = next.id
	next.remove[id] = t.id
	return next
}

// tableWithout returns the table reached from t by removing id.
func (w *World) tableWithout(t *Table, id ID) *Table {
	if next, ok := t.remove[id]; ok {
		return w.tables[next]
	}
	i, found := slices.BinarySearch(t.typ, id)
	if !found {
		return t
	}
	typ := slices.Delete(slices.Clone(t.typ), i, i+1)
	next := w.tableForType(typ)
	t.remove[id] = next.id
	next.add[id] = t.id
	return next
}

// appendRow adds e to t with zeroed columns and returns its row.
func (t *Table) appendRow(e Entity) int {
	for i := range t.columns {
		t.columns[i].push()
	}
	t.entities = append(t.entities, e)
	return len(t.entities) - 1
}

// removeRow swap-removes row and returns the entity moved into it, or 0
// when row was the last one.
func (t *Table) removeRow(row int) Entity {
	for i := range t.columns {
		t.columns[i].removeSwap(row)
	}
	last := len(t.entities) - 1
	var moved Entity
	if row < last {
		moved = t.entities[last]
		t.entities[row] = moved
	}
	t.entities = t.entities[:last]
	return moved
}

// removeRow drops the row of an entity and repairs the record of the entity
// that took its place.
func (w *World) removeRow(t *Table, row int) {
	w.assert(row >= 0 && row < len(t.entities), "row %d out of bounds in table %d", row, t.id)
	if moved := t.removeRow(row); moved != 0 {
		w.entities.records[moved.Index()].row = int32(row)
	}
}

// moveEntity moves e from its current table to dst. Values of ids present
// in both tables are copied; ids only in dst start zeroed and get OnAdd,
// ids only in the source get OnRemove before their value is dropped. When
// init is not nil the value of added starts as a copy of init.
func (w *World) moveEntity(e Entity, dst *Table, added ID, init unsafe.Pointer) {
	r := &w.entities.records[e.Index()]
	src := w.tables[r.table]
	if src == dst {
		return
	}
	srcRow := int(r.row)
	dstRow := dst.appendRow(e)

	si, di := 0, 0
	for si < len(src.typ) || di < len(dst.typ) {
		switch {
		case di == len(dst.typ) || (si < len(src.typ) && src.typ[si] < dst.typ[di]):
			if c := src.colIndex[si]; c >= 0 {
				col := &src.columns[c]
				if h := col.ti.Hooks.OnRemove; h != nil {
					h(e, col.at(srcRow))
				}
			}
			si++
		case si == len(src.typ) || dst.typ[di] < src.typ[si]:
			if c := dst.colIndex[di]; c >= 0 {
				col := &dst.columns[c]
				if init != nil && dst.typ[di] == added {
					col.ti.copyValue(col.at(dstRow), init)
				}
				if h := col.ti.Hooks.OnAdd; h != nil {
					h(e, col.at(dstRow))
				}
			}
			di++
		default:
			if sc, dc := src.colIndex[si], dst.colIndex[di]; sc >= 0 && dc >= 0 {
				dst.columns[dc].copyFrom(dstRow, &src.columns[sc], srcRow)
			}
			si++
			di++
		}
	}

	w.removeRow(src, srcRow)
	r = &w.entities.records[e.Index()]
	r.table = dst.id
	r.row = int32(dstRow)
}

// DeleteEmptyTables frees every empty table except the root table and
// releases component records that no longer hold any table. It returns the
// number of deleted tables.
func (w *World) DeleteEmptyTables() int {
	if err := w.checkWritable(); err != nil {
		w.misuse(err, "DeleteEmptyTables")
		return 0
	}
	var deleted []*Table
	for _, t := range w.tables[1:] {
		if t != nil && len(t.entities) == 0 {
			deleted = append(deleted, t)
		}
	}
	w.deleteTables(deleted)
	return len(deleted)
}

// deleteTables frees the given empty tables and purges edges leading to
// them.
func (w *World) deleteTables(tables []*Table) {
	if len(tables) == 0 {
		return
	}
	gone := make(map[uint32]*Table, len(tables))
	for _, t := range tables {
		w.assert(len(t.entities) == 0 && t.id != 0, "table %d is not deletable", t.id)
		gone[t.id] = t
	}
	for _, t := range w.tables {
		if t == nil || gone[t.id] != nil {
			continue
		}
		maps.DeleteFunc(t.add, func(_ ID, next uint32) bool { return gone[next] != nil })
		maps.DeleteFunc(t.remove, func(_ ID, next uint32) bool { return gone[next] != nil })
	}
	for _, t := range tables {
		if w.tables[t.id] == t {
			w.deleteTable(t)
		}
	}
}

func (w *World) deleteTable(t *Table) {
	records := make([]*ComponentRecord, 0, len(t.records))
	for _, tr := range t.records {
		cr := w.index.byHandle(tr.handle)
		cr.removeTable(t.id)
		records = append(records, cr)
	}
	delete(w.tableIndex, t.key)
	w.tables[t.id] = nil
	w.tableCount--
	w.logger.Debug().Uint32("table", t.id).Int("ids", len(t.typ)).Msg("table deleted")
	Publish(w.events, TableDeleted{TableID: t.id, Type: t.typ})
	for _, cr := range records {
		w.releaseRecord(cr)
	}
}

// TableOf returns the table of e, or nil if e is not alive.
func (w *World) TableOf(e Entity) *Table {
	r := w.entities.get(e)
	if r == nil {
		return nil
	}
	return w.tables[r.table]
}

// Tables returns all live tables ordered by id.
func (w *World) Tables() []*Table {
	out := make([]*Table, 0, w.tableCount)
	for _, t := range w.tables {
		if t != nil {
			out = append(out, t)
		}
	}
	return out
}

// TablesWith returns the tables whose type matches id, ordered by table id.
func (w *World) TablesWith(id ID) []*Table {
	cr := w.index.get(id)
	if cr == nil {
		return nil
	}
	out := make([]*Table, 0, len(cr.cache))
	it := cr.tables.Iterator()
	for it.HasNext() {
		out = append(out, w.tables[it.Next()])
	}
	return out
}

// tableRecordFor returns the record linking cr to t, or nil.
func (t *Table) tableRecordFor(cr *ComponentRecord) *tableRecord {
	ri, ok := cr.cache[t.id]
	if !ok {
		return nil
	}
	return &t.records[ri]
}

// ColumnIndexOf returns the column of id in table, or -1 when the table does
// not hold id or id has no column storage.
func (w *World) ColumnIndexOf(table *Table, id ID) int {
	if table == nil {
		w.misuse(ErrInvalidParameter, "ColumnIndexOf: nil table")
		return -1
	}
	if !id.IsPair() && uint64(id) < HiComponentID {
		if c := table.lowColumns[id]; c > 0 {
			return int(c - 1)
		}
	}
	cr := w.index.get(id)
	if cr == nil {
		return -1
	}
	tr := table.tableRecordFor(cr)
	if tr == nil {
		return -1
	}
	return tr.column
}
