package columnar

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/golang/snappy"
)

// continuationMarker opens every IPC message; a zero length after it is the
// end-of-stream marker written by Finalize.
const continuationMarker = 0xFFFFFFFF

// FileContents is what ReadFile found in a staged file.
type FileContents struct {
	Schema  *arrow.Schema
	Batches []Batch
	Rows    int64
	// Finalized is set only when an end-of-stream message was read.
	Finalized bool
	// Truncated is set when the stream stopped inside a message, e.g. after
	// a crash mid-write. Batches holds everything before that message.
	Truncated bool
}

// Release releases every batch.
func (c *FileContents) Release() {
	for _, b := range c.Batches {
		b.Release()
	}
	c.Batches = nil
}

// ReadFile reads every batch of a staged file. Files that were never
// finalized are readable up to the last complete batch; Finalized reports
// whether the end-of-stream marker is present.
func ReadFile(path string) (*FileContents, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var src io.Reader = f
	if strings.HasSuffix(path, SnappyExtension) {
		src = snappy.NewReader(f)
	}
	data, err := io.ReadAll(src)
	if err != nil {
		// A cut snappy frame still leaves the complete frames before it.
		if len(data) == 0 || !(errors.Is(err, snappy.ErrCorrupt) || errors.Is(err, io.ErrUnexpectedEOF)) {
			return nil, fmt.Errorf("columnar: read %s: %w", path, err)
		}
	}
	return Decode(data)
}

// Decode reads an in-memory IPC stream. A stream cut inside a record batch
// message decodes to the batches before it with Truncated set.
func Decode(data []byte) (*FileContents, error) {
	src := bytes.NewReader(data)
	msgs := &trackingMessageReader{
		MessageReader: ipc.NewMessageReader(src, ipc.WithAllocator(memory.DefaultAllocator)),
		data:          data,
		src:           src,
	}
	rdr, err := ipc.NewReaderFromMessageReader(msgs, ipc.WithAllocator(memory.DefaultAllocator))
	if err != nil {
		return nil, fmt.Errorf("columnar: open stream: %w", err)
	}
	defer rdr.Release()

	contents := &FileContents{Schema: rdr.Schema()}
	for rdr.Next() {
		rec := rdr.Record()
		rec.Retain()
		contents.Batches = append(contents.Batches, rec)
		contents.Rows += rec.NumRows()
	}
	if err := rdr.Err(); err != nil {
		contents.Release()
		return nil, fmt.Errorf("columnar: read stream: %w", err)
	}
	contents.Finalized = msgs.sawEndOfStream
	contents.Truncated = msgs.truncated
	return contents, nil
}

// trackingMessageReader tells the three ways a stream can end apart: an
// end-of-stream message, a clean end between messages, and a cut inside a
// message. The last two end the stream without an error.
type trackingMessageReader struct {
	ipc.MessageReader
	data []byte
	src  *bytes.Reader

	sawEndOfStream bool
	truncated      bool
}

func (t *trackingMessageReader) Message() (*ipc.Message, error) {
	start := t.offset()
	msg, err := t.MessageReader.Message()
	if err == nil {
		return msg, nil
	}

	switch rest := t.data[start:t.offset()]; {
	case errors.Is(err, io.EOF) && len(rest) == 0:
		return nil, io.EOF
	case errors.Is(err, io.EOF) && isEndOfStream(rest):
		t.sawEndOfStream = true
		return nil, io.EOF
	case errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF):
		t.truncated = true
		return nil, io.EOF
	default:
		return nil, err
	}
}

func (t *trackingMessageReader) offset() int {
	return len(t.data) - t.src.Len()
}

// isEndOfStream reports whether b is exactly an end-of-stream marker: the
// continuation token and a zero length, or a bare zero length from
// pre-continuation writers.
func isEndOfStream(b []byte) bool {
	switch len(b) {
	case 8:
		return binary.LittleEndian.Uint32(b) == continuationMarker && binary.LittleEndian.Uint32(b[4:]) == 0
	case 4:
		return binary.LittleEndian.Uint32(b) == 0
	default:
		return false
	}
}
