package writer

import (
	"bufio"
	"fmt"
	"os"
)

// stagedFile is the buffered file handle under a StreamFileWriter. It counts
// bytes and remembers the first I/O failure so encoder errors caused by the
// file can be told apart from encoding errors.
type stagedFile struct {
	path    string
	file    *os.File
	writer  *bufio.Writer
	written int64
	ioErr   error

	// committed is how many bytes the last successful Flush left on disk.
	committed int64
}

func newStagedFile(path string, file *os.File, bufferSize int) *stagedFile {
	sf := &stagedFile{path: path, file: file}
	if bufferSize > 0 {
		sf.writer = bufio.NewWriterSize(file, bufferSize)
	} else {
		sf.writer = bufio.NewWriter(file)
	}
	return sf
}

// Write implements io.Writer for the encoder.
func (sf *stagedFile) Write(p []byte) (int, error) {
	n, err := sf.writer.Write(p)
	sf.written += int64(n)
	if err != nil && sf.ioErr == nil {
		sf.ioErr = err
	}
	return n, err
}

// Flush pushes buffered bytes to the OS.
func (sf *stagedFile) Flush() error {
	if err := sf.writer.Flush(); err != nil {
		if sf.ioErr == nil {
			sf.ioErr = err
		}
		return err
	}
	sf.committed = sf.written
	return nil
}

// Rollback cuts the file back to the last successful Flush and closes it.
// Buffered bytes are dropped.
func (sf *stagedFile) Rollback() error {
	truncErr := sf.file.Truncate(sf.committed)
	if err := sf.file.Close(); err != nil {
		return err
	}
	if truncErr != nil {
		return fmt.Errorf("failed to truncate %s to %d bytes: %w", sf.path, sf.committed, truncErr)
	}
	return nil
}

// Close flushes, syncs and closes the file.
func (sf *stagedFile) Close() error {
	if err := sf.Flush(); err != nil {
		sf.file.Close()
		return fmt.Errorf("failed to flush %s: %w", sf.path, err)
	}
	if err := sf.file.Sync(); err != nil {
		sf.file.Close()
		return fmt.Errorf("failed to sync %s: %w", sf.path, err)
	}
	return sf.file.Close()
}

// Abort closes the file without flushing buffered bytes.
func (sf *stagedFile) Abort() error {
	return sf.file.Close()
}

// takeIOErr returns and clears the recorded I/O failure.
func (sf *stagedFile) takeIOErr() error {
	err := sf.ioErr
	sf.ioErr = nil
	return err
}
