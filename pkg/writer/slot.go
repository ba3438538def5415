package writer

// SlotState is the variant held by a Slot.
type SlotState int

const (
	// SlotEmpty: no writer. Either never opened or finalized by FlushAll; the
	// next append opens a fresh file through this slot.
	SlotEmpty SlotState = iota
	// SlotOpen: the slot owns an open StreamFileWriter.
	SlotOpen
	// SlotRetired: the slot was removed from the table by DeleteStream. An
	// appender still holding it must look the pair up again.
	SlotRetired
)

func (s SlotState) String() string {
	switch s {
	case SlotEmpty:
		return "empty"
	case SlotOpen:
		return "open"
	case SlotRetired:
		return "retired"
	default:
		return "unknown"
	}
}

// Slot is the guarded holder of at most one StreamFileWriter for a
// (stream, schema) pair. state and writer are only touched under guard.
type Slot struct {
	stream    string
	schemaKey string

	guard  mutexGuard
	state  SlotState
	writer *StreamFileWriter
}

// NewSlot returns an empty slot for a pair.
func NewSlot(stream, schemaKey string) *Slot {
	return &Slot{stream: stream, schemaKey: schemaKey}
}

// Stream returns the slot's stream name.
func (s *Slot) Stream() string { return s.stream }

// SchemaKey returns the slot's schema key.
func (s *Slot) SchemaKey() string { return s.schemaKey }

// SlotInfo is a point-in-time view of a slot.
type SlotInfo struct {
	Stream    string `json:"stream"`
	SchemaKey string `json:"schema_key"`
	State     string `json:"state"`
	Poisoned  bool   `json:"poisoned"`
	Path      string `json:"path,omitempty"`
	Batches   int64  `json:"batches"`
	Rows      int64  `json:"rows"`
	Bytes     int64  `json:"bytes"`
}

// Info describes the slot. It waits for any in-flight write on the slot.
func (s *Slot) Info() SlotInfo {
	info := SlotInfo{Stream: s.stream, SchemaKey: s.schemaKey}
	err := s.guard.do(func() error {
		info.State = s.state.String()
		if s.state == SlotOpen {
			info.Path = s.writer.Path()
			info.Batches = s.writer.Batches()
			info.Rows = s.writer.Rows()
			info.Bytes = s.writer.Size()
		}
		return nil
	})
	if err != nil {
		info.Poisoned = true
		info.State = "poisoned"
	}
	return info
}
