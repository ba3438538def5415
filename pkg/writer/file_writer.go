package writer

import (
	"errors"
	"os"
	"time"

	"github.com/dd0wney/cluso-logstage/pkg/columnar"
	"github.com/dd0wney/cluso-logstage/pkg/staging"
)

// StreamFileWriter owns one staged file and the streaming encoder writing
// into it. It is not safe for concurrent use; its Slot serializes access.
//
// A file only becomes independently readable after Finalize writes the
// end-of-stream marker.
type StreamFileWriter struct {
	stream    string
	schemaKey string
	file      *stagedFile
	enc       columnar.Encoder
	openedAt  time.Time
	batches   int64
	rows      int64
}

// openStreamFileWriter creates the stream directory, creates a fresh file at
// the time-bucketed path, builds an encoder from the batch schema and writes
// the batch. Nothing is left on disk when the encoder cannot be built or the
// first batch is rejected.
func openStreamFileWriter(res staging.Resolver, encoders columnar.EncoderFactory, bufferSize int,
	stream, schemaKey string, batch columnar.Batch) (*StreamFileWriter, error) {

	if err := os.MkdirAll(res.StreamDir(stream), 0755); err != nil {
		return nil, NewError("create").Target(stream, schemaKey).Kind(KindIO).Cause(err).Err()
	}

	f, path, err := staging.CreateNew(res.BucketedPath(stream, schemaKey))
	if err != nil {
		return nil, NewError("create").Target(stream, schemaKey).Kind(KindIO).Cause(err).Err()
	}

	sf := newStagedFile(path, f, bufferSize)
	enc, err := encoders.NewEncoder(sf, batch.Schema())
	if err != nil {
		discard(sf)
		return nil, NewError("create").Target(stream, schemaKey).Path(path).Kind(KindEncoding).Cause(err).Err()
	}

	w := &StreamFileWriter{
		stream:    stream,
		schemaKey: schemaKey,
		file:      sf,
		enc:       enc,
		openedAt:  time.Now(),
	}
	if err := w.Write(batch); err != nil {
		discard(sf)
		return nil, err
	}
	return w, nil
}

func discard(sf *stagedFile) {
	sf.Abort()
	os.Remove(sf.path)
}

// Write serializes one batch and pushes it to the OS, so a batch is on disk
// once Write returns.
func (w *StreamFileWriter) Write(batch columnar.Batch) error {
	if batch == nil {
		return NewError("write").Target(w.stream, w.schemaKey).Path(w.file.path).
			Kind(KindEncoding).Cause(columnar.ErrSchemaMismatch).Err()
	}

	if err := w.enc.Write(batch); err != nil {
		kind := KindEncoding
		if ioErr := w.file.takeIOErr(); ioErr != nil {
			kind = KindIO
			err = errors.Join(err, ioErr)
		}
		return NewError("write").Target(w.stream, w.schemaKey).Path(w.file.path).Kind(kind).Cause(err).Err()
	}
	if err := w.file.Flush(); err != nil {
		w.file.takeIOErr()
		return NewError("write").Target(w.stream, w.schemaKey).Path(w.file.path).Kind(KindIO).Cause(err).Err()
	}

	w.batches++
	w.rows += batch.NumRows()
	return nil
}

// Finalize writes the footer, syncs and closes the file. The writer is
// unusable afterwards whether or not Finalize succeeded.
func (w *StreamFileWriter) Finalize() error {
	if err := w.enc.Finalize(); err != nil {
		w.file.Abort()
		kind := KindEncoding
		if w.file.takeIOErr() != nil {
			kind = KindIO
		}
		return NewError("finalize").Target(w.stream, w.schemaKey).Path(w.file.path).Kind(kind).Cause(err).Err()
	}
	if err := w.file.Close(); err != nil {
		return NewError("finalize").Target(w.stream, w.schemaKey).Path(w.file.path).Kind(KindIO).Cause(err).Err()
	}
	return nil
}

// Discard closes the file without a footer. Batches already written stay on
// disk.
func (w *StreamFileWriter) Discard() error {
	if err := w.file.Close(); err != nil {
		return NewError("discard").Target(w.stream, w.schemaKey).Path(w.file.path).Kind(KindIO).Cause(err).Err()
	}
	return nil
}

// Abandon closes the file after a failed Write. The file is cut back to the
// last batch that fully reached disk, so it stays a readable stream without
// a footer.
func (w *StreamFileWriter) Abandon() error {
	if err := w.file.Rollback(); err != nil {
		return NewError("abandon").Target(w.stream, w.schemaKey).Path(w.file.path).Kind(KindIO).Cause(err).Err()
	}
	return nil
}

// Path returns the staged file path.
func (w *StreamFileWriter) Path() string { return w.file.path }

// Batches returns the number of batches written.
func (w *StreamFileWriter) Batches() int64 { return w.batches }

// Rows returns the number of rows written.
func (w *StreamFileWriter) Rows() int64 { return w.rows }

// Size returns the number of bytes handed to the file.
func (w *StreamFileWriter) Size() int64 { return w.file.written }

// Age returns how long the writer has been open.
func (w *StreamFileWriter) Age() time.Duration { return time.Since(w.openedAt) }
