package writer

// Table is the two level registry stream -> schema key -> *Slot.
//
// The map structure is guarded by one shared/exclusive lock; every slot has
// its own guard, so work on one slot never needs exclusive access to the
// table. Table methods only ever hold the structural lock for map access.
type Table struct {
	guard   rwGuard
	streams map[string]map[string]*Slot
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{streams: make(map[string]map[string]*Slot)}
}

// Lookup returns the slot for a pair, or nil. It never creates anything.
func (t *Table) Lookup(stream, schemaKey string) (*Slot, error) {
	var slot *Slot
	err := t.guard.read(func() error {
		slot = t.streams[stream][schemaKey]
		return nil
	})
	return slot, err
}

// Insert stores slot for a pair, creating the stream entry if needed. Any
// slot already stored for the pair is replaced; use GetOrInsert unless
// replacement is intended.
func (t *Table) Insert(stream, schemaKey string, slot *Slot) error {
	return t.guard.write(func() error {
		t.insertLocked(stream, schemaKey, slot)
		return nil
	})
}

// GetOrInsert returns the slot for a pair, inserting an empty one when none
// exists. The existence check and the insert happen under one exclusive
// section, so concurrent callers for a new pair all get the same slot.
func (t *Table) GetOrInsert(stream, schemaKey string) (slot *Slot, err error) {
	err = t.guard.write(func() error {
		if existing := t.streams[stream][schemaKey]; existing != nil {
			slot = existing
			return nil
		}
		slot = NewSlot(stream, schemaKey)
		t.insertLocked(stream, schemaKey, slot)
		return nil
	})
	return slot, err
}

func (t *Table) insertLocked(stream, schemaKey string, slot *Slot) {
	inner, ok := t.streams[stream]
	if !ok {
		inner = make(map[string]*Slot)
		t.streams[stream] = inner
	}
	inner[schemaKey] = slot
}

// DeleteStream removes a stream entry and returns the slots it held. Absent
// streams are a no-op.
func (t *Table) DeleteStream(stream string) ([]*Slot, error) {
	var removed []*Slot
	err := t.guard.write(func() error {
		inner, ok := t.streams[stream]
		if !ok {
			return nil
		}
		removed = make([]*Slot, 0, len(inner))
		for _, slot := range inner {
			removed = append(removed, slot)
		}
		delete(t.streams, stream)
		return nil
	})
	return removed, err
}

// Slots returns every slot in the table, flattened across streams, in no
// particular order. Each call reflects the table at that moment.
func (t *Table) Slots() ([]*Slot, error) {
	var slots []*Slot
	err := t.guard.read(func() error {
		for _, inner := range t.streams {
			for _, slot := range inner {
				slots = append(slots, slot)
			}
		}
		return nil
	})
	return slots, err
}

// Streams returns the number of stream entries.
func (t *Table) Streams() (int, error) {
	var n int
	err := t.guard.read(func() error {
		n = len(t.streams)
		return nil
	})
	return n, err
}

// Poisoned reports whether the structural lock is poisoned.
func (t *Table) Poisoned() bool {
	return t.guard.isPoisoned()
}
