package writer

import (
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/dd0wney/cluso-logstage/pkg/columnar"
	"github.com/dd0wney/cluso-logstage/pkg/columnar/columnartest"
	"github.com/dd0wney/cluso-logstage/pkg/staging"
)

var testNow = time.Date(2025, 3, 14, 9, 27, 0, 0, time.UTC)

func newTestDir(t *testing.T) *staging.Dir {
	t.Helper()
	dir, err := staging.NewDir(t.TempDir(),
		staging.WithHost("test"),
		staging.WithClock(func() time.Time { return testNow }))
	if err != nil {
		t.Fatalf("NewDir: %v", err)
	}
	return dir
}

func newTestRegistry(t *testing.T, opts Options) (*Registry, *staging.Dir) {
	t.Helper()
	dir := newTestDir(t)
	opts.Resolver = dir
	r, err := NewRegistry(opts)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return r, dir
}

func readStaged(t *testing.T, path string) *columnar.FileContents {
	t.Helper()
	contents, err := columnar.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile(%s): %v", path, err)
	}
	t.Cleanup(contents.Release)
	return contents
}

func stagedMessages(t *testing.T, path string) []string {
	t.Helper()
	var msgs []string
	for _, b := range readStaged(t, path).Batches {
		msgs = append(msgs, columnartest.Messages(b)...)
	}
	return msgs
}

func mustAppend(t *testing.T, r *Registry, stream, key string, batch columnar.Batch) {
	t.Helper()
	defer batch.Release()
	if err := r.Append(stream, key, batch); err != nil {
		t.Fatalf("Append(%s, %s): %v", stream, key, err)
	}
}

func slotInfo(t *testing.T, r *Registry, stream, key string) SlotInfo {
	t.Helper()
	slot, err := r.table.Lookup(stream, key)
	if err != nil || slot == nil {
		t.Fatalf("no slot for %s/%s (err %v)", stream, key, err)
	}
	return slot.Info()
}

var errFinalizeFailed = errors.New("finalize failed")

type failingFinalizeEncoder struct {
	columnar.Encoder
}

func (e failingFinalizeEncoder) Finalize() error {
	return errFinalizeFailed
}

// schemaSwitchFactory uses the default IPC encoder, but hands batches of
// MetricSchema to fn instead.
func schemaSwitchFactory(fn func(enc columnar.Encoder) columnar.Encoder) columnar.EncoderFactory {
	base := columnar.NewIPCEncoderFactory(columnar.Options{})
	return columnar.EncoderFactoryFunc(func(w io.Writer, schema *arrow.Schema) (columnar.Encoder, error) {
		enc, err := base.NewEncoder(w, schema)
		if err != nil {
			return nil, err
		}
		if schema.Equal(columnartest.MetricSchema) {
			return fn(enc), nil
		}
		return enc, nil
	})
}

// blockingEncoder parks every Write until release is closed and reports the
// first Write on entered.
type blockingEncoder struct {
	columnar.Encoder
	once    *sync.Once
	entered chan struct{}
	release chan struct{}
}

func (e blockingEncoder) Write(batch columnar.Batch) error {
	e.once.Do(func() { close(e.entered) })
	<-e.release
	return e.Encoder.Write(batch)
}

type recordingObserver struct {
	mu        sync.Mutex
	appends   map[string]int
	rows      int64
	opened    int
	closed    map[string]int
	flushes   int
	finalized int
	failed    int
	deleted   int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{appends: make(map[string]int), closed: make(map[string]int)}
}

func (o *recordingObserver) ObserveAppend(status string, _ time.Duration, rows, _ int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.appends[status]++
	o.rows += rows
}

func (o *recordingObserver) WriterOpened() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opened++
}

func (o *recordingObserver) WriterClosed(reason string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed[reason]++
}

func (o *recordingObserver) ObserveFlush(_ time.Duration, finalized, failed int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.flushes++
	o.finalized += finalized
	o.failed += failed
}

func (o *recordingObserver) StreamDeleted() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.deleted++
}
