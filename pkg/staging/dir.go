// Package staging resolves where staged files live on local disk.
//
// Layout:
//
//	<root>/<stream>/<schemaKey>.date=YYYY-MM-DD.hour=HH.minute=MM.<host>.data<ext>
//
// One file per (stream, schema, time bucket). The minute component is
// truncated to the configured bucket width.
package staging

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Resolver maps streams and schema keys to staging paths.
type Resolver interface {
	// StreamDir returns the directory holding a stream's staged files.
	StreamDir(stream string) string
	// BucketedPath returns the path for the current time bucket.
	BucketedPath(stream, schemaKey string) string
}

// DefaultBucket is the default time bucket width.
const DefaultBucket = time.Minute

// ErrInvalidBucket is returned for bucket widths that do not tile an hour.
var ErrInvalidBucket = errors.New("staging: bucket must be a whole number of minutes dividing 60")

// Dir is the filesystem Resolver.
type Dir struct {
	root      string
	host      string
	extension string
	bucket    time.Duration
	now       func() time.Time
}

// Option configures a Dir.
type Option func(*Dir)

// WithBucket sets the time bucket width.
func WithBucket(d time.Duration) Option {
	return func(dir *Dir) { dir.bucket = d }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(dir *Dir) { dir.now = now }
}

// WithHost sets the host component of file names.
func WithHost(host string) Option {
	return func(dir *Dir) { dir.host = host }
}

// WithExtension sets the file extension, including the leading dot.
func WithExtension(ext string) Option {
	return func(dir *Dir) { dir.extension = ext }
}

// NewDir creates a Dir rooted at root.
func NewDir(root string, opts ...Option) (*Dir, error) {
	d := &Dir{
		root:      root,
		extension: ".arrows",
		bucket:    DefaultBucket,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}

	if err := ValidateBucket(d.bucket); err != nil {
		return nil, err
	}
	if d.host == "" {
		host, err := os.Hostname()
		if err != nil || host == "" {
			host = "localhost"
		}
		d.host = host
	}
	// Dots in the host would break the name fields.
	d.host = strings.ReplaceAll(d.host, ".", "_")
	return d, nil
}

// ValidateBucket reports whether d is usable as a bucket width.
func ValidateBucket(d time.Duration) error {
	if d < time.Minute || d > time.Hour || d%time.Minute != 0 {
		return ErrInvalidBucket
	}
	if 60%int(d/time.Minute) != 0 {
		return ErrInvalidBucket
	}
	return nil
}

// Root returns the staging root.
func (d *Dir) Root() string {
	return d.root
}

// StreamDir implements Resolver.
func (d *Dir) StreamDir(stream string) string {
	return filepath.Join(d.root, stream)
}

// BucketedPath implements Resolver.
func (d *Dir) BucketedPath(stream, schemaKey string) string {
	return filepath.Join(d.StreamDir(stream), d.fileName(schemaKey, d.now()))
}

func (d *Dir) fileName(schemaKey string, t time.Time) string {
	t = t.UTC()
	width := int(d.bucket / time.Minute)
	minute := t.Minute() - t.Minute()%width
	return fmt.Sprintf("%s.date=%s.hour=%02d.minute=%02d.%s.data%s",
		schemaKey, t.Format("2006-01-02"), t.Hour(), minute, d.host, d.extension)
}

// ListFiles returns the staged files of a stream, sorted by name. A stream
// without a directory has no files.
func (d *Dir) ListFiles(stream string) ([]string, error) {
	entries, err := os.ReadDir(d.StreamDir(stream))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.Contains(e.Name(), ".data") {
			continue
		}
		files = append(files, filepath.Join(d.StreamDir(stream), e.Name()))
	}
	sort.Strings(files)
	return files, nil
}
