// Package writer stages columnar batches into local files, one open file per
// (stream, schema key) pair.
//
// Appends to different pairs only share the table's read lock; appends to
// the same pair are serialized by that pair's slot. File I/O never happens
// under the table lock. A panic inside a locked section poisons that lock and
// is reported as ErrTablePoisoned or ErrSlotPoisoned instead of crashing.
package writer

import (
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/dd0wney/cluso-logstage/pkg/columnar"
	"github.com/dd0wney/cluso-logstage/pkg/logging"
	"github.com/dd0wney/cluso-logstage/pkg/staging"
)

// Options configures a Registry.
type Options struct {
	// Resolver maps pairs to staging paths. Required.
	Resolver staging.Resolver
	// Encoders builds the encoder for each new file. Defaults to
	// uncompressed Arrow IPC.
	Encoders columnar.EncoderFactory
	// BufferSize is the per-file write buffer (0 = bufio default).
	BufferSize int
	Logger     logging.Logger
	Observer   Observer
}

// Registry is the process-wide set of stream writers. Construct one per
// process and share it; the zero value is not usable.
type Registry struct {
	table      *Table
	resolver   staging.Resolver
	encoders   columnar.EncoderFactory
	bufferSize int
	logger     logging.Logger
	observer   Observer
}

// NewRegistry creates an empty registry.
func NewRegistry(opts Options) (*Registry, error) {
	if opts.Resolver == nil {
		return nil, errors.New("writer: Options.Resolver is required")
	}
	if opts.Encoders == nil {
		opts.Encoders = columnar.NewIPCEncoderFactory(columnar.Options{})
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNopLogger()
	}
	if opts.Observer == nil {
		opts.Observer = NopObserver{}
	}

	return &Registry{
		table:      NewTable(),
		resolver:   opts.Resolver,
		encoders:   opts.Encoders,
		bufferSize: opts.BufferSize,
		logger:     opts.Logger.With(logging.Component("writer")),
		observer:   opts.Observer,
	}, nil
}

// Append writes batch to the staged file of (stream, schemaKey), opening the
// file on first use. Callers validate stream and schemaKey beforehand.
func (r *Registry) Append(stream, schemaKey string, batch columnar.Batch) error {
	start := time.Now()
	rows, bytes, err := r.append(stream, schemaKey, batch)

	status := "success"
	if err != nil {
		status = KindOf(err).String()
	}
	r.observer.ObserveAppend(status, time.Since(start), rows, bytes)
	return err
}

func (r *Registry) append(stream, schemaKey string, batch columnar.Batch) (rows, bytes int64, err error) {
	if batch == nil {
		return 0, 0, NewError("append").Target(stream, schemaKey).Kind(KindEncoding).
			Cause(errors.New("nil batch")).Err()
	}

	for {
		slot, err := r.table.Lookup(stream, schemaKey)
		if err != nil {
			return 0, 0, tableError("append", stream, schemaKey, err)
		}
		if slot == nil {
			// First write to this pair: take the exclusive path. GetOrInsert
			// re-checks under the write lock, so racing appenders share one slot.
			slot, err = r.table.GetOrInsert(stream, schemaKey)
			if err != nil {
				return 0, 0, tableError("append", stream, schemaKey, err)
			}
		}

		bytes, retry, err := r.appendToSlot(slot, batch)
		if retry {
			continue
		}
		if err != nil {
			return 0, 0, err
		}
		return batch.NumRows(), bytes, nil
	}
}

// appendToSlot writes under the slot guard. retry is set when the slot was
// retired by DeleteStream after the caller found it.
func (r *Registry) appendToSlot(slot *Slot, batch columnar.Batch) (written int64, retry bool, err error) {
	err = slot.guard.do(func() error {
		switch slot.state {
		case SlotRetired:
			retry = true
			return nil

		case SlotOpen:
			before := slot.writer.Size()
			if err := slot.writer.Write(batch); err != nil {
				if KindOf(err) == KindIO {
					r.dropWriter(slot)
				}
				return err
			}
			written = slot.writer.Size() - before
			return nil

		case SlotEmpty:
			w, err := openStreamFileWriter(r.resolver, r.encoders, r.bufferSize, slot.stream, slot.schemaKey, batch)
			if err != nil {
				return err
			}
			slot.writer = w
			slot.state = SlotOpen
			written = w.Size()

			r.observer.WriterOpened()
			r.logger.Debug("opened staged file",
				logging.Stream(slot.stream), logging.SchemaKey(slot.schemaKey), logging.Path(w.Path()))
			return nil

		default:
			return fmt.Errorf("invalid slot state %d", slot.state)
		}
	})
	if isGuardFailure(err) {
		err = NewError("append").Target(slot.stream, slot.schemaKey).Kind(KindSlotPoisoned).Cause(err).Err()
	}
	return written, retry, err
}

// dropWriter empties a slot whose writer hit an I/O error. The file handle
// keeps failing once a write failed, so the next append opens a new file.
// Caller holds the slot guard.
func (r *Registry) dropWriter(slot *Slot) {
	w := slot.writer
	slot.writer = nil
	slot.state = SlotEmpty
	r.observer.WriterClosed("discarded")

	if err := w.Abandon(); err != nil {
		r.logger.Warn("failed to close staged file after write error",
			logging.Stream(slot.stream), logging.SchemaKey(slot.schemaKey), logging.Error(err))
	}
	r.logger.Warn("dropped staged file after write error",
		logging.Stream(slot.stream), logging.SchemaKey(slot.schemaKey), logging.Path(w.Path()))
}

// DeleteStream drops every writer of a stream. Open files are closed without
// a footer and left on disk; nothing is drained. Deleting an unknown stream
// is a no-op. The only possible error is a poisoned table.
func (r *Registry) DeleteStream(stream string) error {
	slots, err := r.table.DeleteStream(stream)
	if err != nil {
		return tableError("delete_stream", stream, "", err)
	}
	if len(slots) == 0 {
		return nil
	}

	for _, slot := range slots {
		if err := r.retireSlot(slot); err != nil {
			r.logger.Warn("failed to close writer of deleted stream",
				logging.Stream(stream), logging.SchemaKey(slot.schemaKey), logging.Error(err))
		}
	}
	r.observer.StreamDeleted()
	r.logger.Info("stream deleted", logging.Stream(stream), logging.Count(len(slots)))
	return nil
}

func (r *Registry) retireSlot(slot *Slot) error {
	err := slot.guard.do(func() error {
		w := slot.writer
		slot.writer = nil
		slot.state = SlotRetired
		if w == nil {
			return nil
		}
		r.observer.WriterClosed("discarded")
		return w.Discard()
	})
	if isGuardFailure(err) {
		return NewError("delete_stream").Target(slot.stream, slot.schemaKey).Kind(KindSlotPoisoned).Cause(err).Err()
	}
	return err
}

// FlushAll finalizes every open writer and leaves its slot empty, so every
// staged file written so far gets its footer. Slots stay in the table and the
// next append to a pair opens a new file. A failing slot does not stop the
// others; all failures are returned together.
func (r *Registry) FlushAll() error {
	start := time.Now()
	slots, err := r.table.Slots()
	if err != nil {
		return tableError("flush_all", "", "", err)
	}

	var result *multierror.Error
	finalized, failed := 0, 0
	for _, slot := range slots {
		path, ok, err := r.finalizeSlot(slot)
		switch {
		case err != nil:
			failed++
			result = multierror.Append(result, err)
			r.logger.Error("failed to finalize staged file",
				logging.Stream(slot.stream), logging.SchemaKey(slot.schemaKey), logging.Error(err))
		case ok:
			finalized++
			r.logger.Debug("finalized staged file",
				logging.Stream(slot.stream), logging.SchemaKey(slot.schemaKey), logging.Path(path))
		}
	}

	elapsed := time.Since(start)
	r.observer.ObserveFlush(elapsed, finalized, failed)
	if finalized > 0 || failed > 0 {
		r.logger.Info("flushed staged files",
			logging.Count(finalized), logging.Int("failed", failed), logging.Latency(elapsed))
	}
	return result.ErrorOrNil()
}

// finalizeSlot finalizes the slot's writer if it has one. ok reports whether
// a writer was finalized.
func (r *Registry) finalizeSlot(slot *Slot) (path string, ok bool, err error) {
	err = slot.guard.do(func() error {
		if slot.state != SlotOpen {
			return nil
		}
		w := slot.writer
		slot.writer = nil
		slot.state = SlotEmpty
		path = w.Path()

		if err := w.Finalize(); err != nil {
			r.observer.WriterClosed("finalize_failed")
			return err
		}
		r.observer.WriterClosed("finalized")
		ok = true
		return nil
	})
	if isGuardFailure(err) {
		err = NewError("flush_all").Target(slot.stream, slot.schemaKey).Kind(KindSlotPoisoned).Cause(err).Err()
	}
	return path, ok, err
}

// Snapshot describes every slot.
func (r *Registry) Snapshot() ([]SlotInfo, error) {
	slots, err := r.table.Slots()
	if err != nil {
		return nil, tableError("snapshot", "", "", err)
	}
	infos := make([]SlotInfo, 0, len(slots))
	for _, slot := range slots {
		infos = append(infos, slot.Info())
	}
	return infos, nil
}

// Check reports whether the table is usable.
func (r *Registry) Check() error {
	if r.table.Poisoned() {
		return NewError("check").Kind(KindTablePoisoned).Cause(errGuardPoisoned).Err()
	}
	return nil
}

func isGuardFailure(err error) bool {
	return errors.Is(err, errGuardPoisoned)
}

func tableError(op, stream, schemaKey string, err error) error {
	return NewError(op).Target(stream, schemaKey).Kind(KindTablePoisoned).Cause(err).Err()
}
