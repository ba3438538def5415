// Package columnar adapts Arrow IPC streams to the staging writer. A staged
// file is one Arrow IPC stream: a schema message, any number of record batch
// messages and an end-of-stream marker written by Finalize. Files written with
// snappy compression wrap the whole stream in a snappy framed stream.
package columnar

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/golang/snappy"
)

// Batch is the unit of append.
type Batch = arrow.Record

var (
	ErrSchemaMismatch = errors.New("columnar: batch schema does not match writer schema")
	ErrNilSchema      = errors.New("columnar: schema is nil")
	ErrFinalized      = errors.New("columnar: encoder already finalized")
)

// Compression selects how a staged file is compressed.
type Compression string

const (
	CompressionNone   Compression = "none"
	CompressionLZ4    Compression = "lz4"
	CompressionZstd   Compression = "zstd"
	CompressionSnappy Compression = "snappy"
)

// ParseCompression parses a compression name. Empty means none.
func ParseCompression(s string) (Compression, error) {
	switch c := Compression(strings.ToLower(strings.TrimSpace(s))); c {
	case "", CompressionNone:
		return CompressionNone, nil
	case CompressionLZ4, CompressionZstd, CompressionSnappy:
		return c, nil
	default:
		return "", fmt.Errorf("columnar: unknown compression %q", s)
	}
}

const (
	// FileExtension is the extension of an uncompressed or body-compressed stream.
	FileExtension = ".arrows"
	// SnappyExtension is appended to FileExtension for snappy framed files.
	SnappyExtension = ".sz"
)

// Extension returns the file extension for files written with c.
func (c Compression) Extension() string {
	if c == CompressionSnappy {
		return FileExtension + SnappyExtension
	}
	return FileExtension
}

// Encoder serializes successive batches into one stream.
type Encoder interface {
	// Write appends one batch. The batch schema must equal the schema the
	// encoder was created with.
	Write(batch Batch) error
	// Finalize writes the end-of-stream marker and flushes every layer the
	// encoder owns. It does not close the underlying writer.
	Finalize() error
}

// EncoderFactory builds an Encoder over w for schema.
type EncoderFactory interface {
	NewEncoder(w io.Writer, schema *arrow.Schema) (Encoder, error)
}

// EncoderFactoryFunc adapts a function to EncoderFactory.
type EncoderFactoryFunc func(w io.Writer, schema *arrow.Schema) (Encoder, error)

func (f EncoderFactoryFunc) NewEncoder(w io.Writer, schema *arrow.Schema) (Encoder, error) {
	return f(w, schema)
}

// Options configures the IPC encoder factory.
type Options struct {
	Compression Compression
	Allocator   memory.Allocator
}

// IPCEncoderFactory creates Arrow IPC stream encoders.
type IPCEncoderFactory struct {
	opts Options
}

// NewIPCEncoderFactory returns a factory for opts.
func NewIPCEncoderFactory(opts Options) *IPCEncoderFactory {
	if opts.Compression == "" {
		opts.Compression = CompressionNone
	}
	if opts.Allocator == nil {
		opts.Allocator = memory.DefaultAllocator
	}
	return &IPCEncoderFactory{opts: opts}
}

// Compression returns the configured compression.
func (f *IPCEncoderFactory) Compression() Compression {
	return f.opts.Compression
}

// NewEncoder implements EncoderFactory.
func (f *IPCEncoderFactory) NewEncoder(w io.Writer, schema *arrow.Schema) (Encoder, error) {
	if schema == nil {
		return nil, ErrNilSchema
	}

	enc := &ipcEncoder{schema: schema}
	out := w
	if f.opts.Compression == CompressionSnappy {
		enc.framed = snappy.NewBufferedWriter(w)
		out = enc.framed
	}

	ipcOpts := []ipc.Option{
		ipc.WithSchema(schema),
		ipc.WithAllocator(f.opts.Allocator),
	}
	switch f.opts.Compression {
	case CompressionLZ4:
		ipcOpts = append(ipcOpts, ipc.WithLZ4())
	case CompressionZstd:
		ipcOpts = append(ipcOpts, ipc.WithZstd())
	}
	enc.w = ipc.NewWriter(out, ipcOpts...)
	return enc, nil
}

type ipcEncoder struct {
	w         *ipc.Writer
	framed    *snappy.Writer
	schema    *arrow.Schema
	finalized bool
}

func (e *ipcEncoder) Write(batch Batch) error {
	if e.finalized {
		return ErrFinalized
	}
	if batch == nil || !batch.Schema().Equal(e.schema) {
		return ErrSchemaMismatch
	}
	if err := e.w.Write(batch); err != nil {
		return fmt.Errorf("columnar: write batch: %w", err)
	}
	if e.framed != nil {
		return e.framed.Flush()
	}
	return nil
}

func (e *ipcEncoder) Finalize() error {
	if e.finalized {
		return ErrFinalized
	}
	e.finalized = true
	if err := e.w.Close(); err != nil {
		return fmt.Errorf("columnar: write end of stream: %w", err)
	}
	if e.framed != nil {
		// Close flushes the framing but leaves the file open.
		return e.framed.Close()
	}
	return nil
}
