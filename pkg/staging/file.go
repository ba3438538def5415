package staging

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// maxSequence bounds the number of files created in one bucket.
const maxSequence = 10000

// ErrSequenceExhausted is returned when every sequenced name in a bucket is taken.
var ErrSequenceExhausted = errors.New("staging: no free file name in bucket")

// CreateNew creates path exclusively. If a file already exists there, a
// sequence number is inserted before the ".data" suffix until a free name is
// found, so an existing staged file is never reopened. It returns the file and
// the name actually used.
func CreateNew(path string) (*os.File, string, error) {
	for seq := 0; seq < maxSequence; seq++ {
		candidate := Sequenced(path, seq)
		f, err := os.OpenFile(candidate, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			return f, candidate, nil
		}
		if !os.IsExist(err) {
			return nil, "", fmt.Errorf("failed to create staged file %s: %w", candidate, err)
		}
	}
	return nil, "", fmt.Errorf("%w: %s", ErrSequenceExhausted, path)
}

// Sequenced returns path with sequence number seq. Sequence 0 is path itself.
func Sequenced(path string, seq int) string {
	if seq == 0 {
		return path
	}
	dir, base := filepath.Split(path)
	idx := strings.LastIndex(base, ".data")
	if idx < 0 {
		idx = len(base) - len(filepath.Ext(base))
	}
	return dir + base[:idx] + fmt.Sprintf(".%d", seq) + base[idx:]
}
