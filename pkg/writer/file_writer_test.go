package writer

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/dd0wney/cluso-logstage/pkg/columnar"
	"github.com/dd0wney/cluso-logstage/pkg/columnar/columnartest"
	"github.com/dd0wney/cluso-logstage/pkg/staging"
)

func TestStreamFileWriter_Lifecycle(t *testing.T) {
	dir := newTestDir(t)
	factory := columnar.NewIPCEncoderFactory(columnar.Options{})

	b1 := columnartest.LogBatch(0, "first", "second")
	defer b1.Release()
	w, err := openStreamFileWriter(dir, factory, 0, "orders", "v1", b1)
	if err != nil {
		t.Fatalf("openStreamFileWriter: %v", err)
	}

	if want := dir.BucketedPath("orders", "v1"); w.Path() != want {
		t.Errorf("Path() = %s, want %s", w.Path(), want)
	}
	if w.Batches() != 1 || w.Rows() != 2 {
		t.Errorf("after first batch: batches=%d rows=%d", w.Batches(), w.Rows())
	}

	// The first batch is on disk before Finalize.
	info, err := os.Stat(w.Path())
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Size() == 0 || info.Size() != w.Size() {
		t.Errorf("file size %d, writer size %d", info.Size(), w.Size())
	}
	if contents := readStaged(t, w.Path()); contents.Finalized || len(contents.Batches) != 1 {
		t.Errorf("before finalize: finalized=%v batches=%d", contents.Finalized, len(contents.Batches))
	}

	b2 := columnartest.LogBatch(10, "third")
	defer b2.Release()
	if err := w.Write(b2); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	contents := readStaged(t, w.Path())
	if !contents.Finalized {
		t.Error("file has no end-of-stream marker")
	}
	if contents.Rows != 3 || len(contents.Batches) != 2 {
		t.Errorf("rows=%d batches=%d, want 3 and 2", contents.Rows, len(contents.Batches))
	}
	if !contents.Schema.Equal(columnartest.LogSchema) {
		t.Error("schema changed on disk")
	}
}

func TestStreamFileWriter_SchemaMismatch(t *testing.T) {
	dir := newTestDir(t)
	b := columnartest.LogBatch(0, "ok")
	defer b.Release()

	w, err := openStreamFileWriter(dir, columnar.NewIPCEncoderFactory(columnar.Options{}), 0, "orders", "v1", b)
	if err != nil {
		t.Fatalf("openStreamFileWriter: %v", err)
	}

	m := columnartest.MetricBatch(0, 1.5)
	defer m.Release()
	err = w.Write(m)
	if KindOf(err) != KindEncoding {
		t.Fatalf("Write(mismatched) = %v, want encoding error", err)
	}
	if !errors.Is(err, columnar.ErrSchemaMismatch) {
		t.Errorf("cause lost: %v", err)
	}

	if err := w.Write(nil); KindOf(err) != KindEncoding {
		t.Errorf("Write(nil) = %v", err)
	}
	if w.Batches() != 1 {
		t.Errorf("Batches() = %d after rejected writes", w.Batches())
	}
}

func TestStreamFileWriter_CreateFailures(t *testing.T) {
	b := columnartest.LogBatch(0, "x")
	defer b.Release()

	t.Run("stream dir not creatable", func(t *testing.T) {
		root := filepath.Join(t.TempDir(), "file")
		if err := os.WriteFile(root, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
		dir, err := staging.NewDir(root, staging.WithHost("test"))
		if err != nil {
			t.Fatal(err)
		}

		_, err = openStreamFileWriter(dir, columnar.NewIPCEncoderFactory(columnar.Options{}), 0, "orders", "v1", b)
		if KindOf(err) != KindIO || !errors.Is(err, ErrIO) {
			t.Errorf("err = %v, want io error", err)
		}
	})

	t.Run("encoder not buildable", func(t *testing.T) {
		dir := newTestDir(t)
		factory := columnar.EncoderFactoryFunc(func(io.Writer, *arrow.Schema) (columnar.Encoder, error) {
			return nil, errors.New("unsupported schema")
		})

		_, err := openStreamFileWriter(dir, factory, 0, "orders", "v1", b)
		if KindOf(err) != KindEncoding {
			t.Errorf("err = %v, want encoding error", err)
		}
		files, _ := dir.ListFiles("orders")
		if len(files) != 0 {
			t.Errorf("files left behind: %v", files)
		}
	})
}

func TestStreamFileWriter_NeverReopens(t *testing.T) {
	dir := newTestDir(t)
	factory := columnar.NewIPCEncoderFactory(columnar.Options{})
	b := columnartest.LogBatch(0, "x")
	defer b.Release()

	first, err := openStreamFileWriter(dir, factory, 0, "orders", "v1", b)
	if err != nil {
		t.Fatal(err)
	}
	if err := first.Finalize(); err != nil {
		t.Fatal(err)
	}

	second, err := openStreamFileWriter(dir, factory, 0, "orders", "v1", b)
	if err != nil {
		t.Fatal(err)
	}
	defer second.Discard()

	if second.Path() == first.Path() {
		t.Fatal("second writer reused the finalized file")
	}
	if second.Path() != staging.Sequenced(first.Path(), 1) {
		t.Errorf("second path = %s", second.Path())
	}
	if !readStaged(t, first.Path()).Finalized {
		t.Error("finalized file was modified")
	}
}

func TestStagedFile_RollbackDropsUnflushedBytes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "staged.data.arrows")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	sf := newStagedFile(path, f, 16)

	sf.Write([]byte("abc"))
	if err := sf.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	// Larger than the buffer, so it goes straight to the file.
	sf.Write(bytes.Repeat([]byte("x"), 40))
	sf.Write([]byte("yz"))

	if err := sf.Rollback(); err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "abc" {
		t.Errorf("file holds %q, want %q", data, "abc")
	}
}
