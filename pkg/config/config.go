// Package config loads the logstage server configuration. Values are
// layered: defaults, then a YAML file, then LOGSTAGE_* environment
// variables, then command line flags.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/dd0wney/cluso-logstage/pkg/columnar"
	"github.com/dd0wney/cluso-logstage/pkg/logging"
	"github.com/dd0wney/cluso-logstage/pkg/staging"
	"github.com/dd0wney/cluso-logstage/pkg/validation"
)

// EnvPrefix prefixes every environment variable read by ApplyEnv.
const EnvPrefix = "LOGSTAGE_"

// Config is the server configuration.
type Config struct {
	StagingDir      string        `yaml:"staging_dir" validate:"required"`
	ListenAddr      string        `yaml:"listen_addr" validate:"required,hostname_port"`
	FlushInterval   time.Duration `yaml:"flush_interval"`
	Bucket          time.Duration `yaml:"bucket"`
	Compression     string        `yaml:"compression"`
	BufferSize      int           `yaml:"buffer_size"`
	Host            string        `yaml:"host"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes" validate:"gt=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	LogLevel        string        `yaml:"log_level" validate:"oneof=debug info warn error"`
	LogFormat       string        `yaml:"log_format" validate:"oneof=json console"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		StagingDir:      "./staging",
		ListenAddr:      ":8080",
		FlushInterval:   time.Minute,
		Bucket:          staging.DefaultBucket,
		Compression:     string(columnar.CompressionNone),
		MaxBodyBytes:    64 << 20,
		ShutdownTimeout: 30 * time.Second,
		LogLevel:        "info",
		LogFormat:       string(logging.FormatJSON),
	}
}

// Load returns the defaults overlaid with the YAML file at path. An empty
// path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overlays LOGSTAGE_* variables found by lookup, e.g. os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	for _, f := range c.fields() {
		v, ok := lookup(EnvPrefix + f.env)
		if !ok {
			continue
		}
		if err := f.set(v); err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, f.env, err)
		}
	}
	return nil
}

// RegisterFlags adds one flag per field to fs. Flag defaults are only shown
// in help; ApplyFlags copies flags the user actually set.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("staging-dir", d.StagingDir, "root directory for staged files")
	fs.String("listen", d.ListenAddr, "HTTP listen address")
	fs.Duration("flush-interval", d.FlushInterval, "how often open staged files are finalized")
	fs.Duration("bucket", d.Bucket, "time bucket width of staged file names (must divide an hour)")
	fs.String("compression", d.Compression, "staged file compression: none, lz4, zstd or snappy")
	fs.Int("buffer-size", d.BufferSize, "write buffer per staged file in bytes (0 = default)")
	fs.String("host", d.Host, "host name embedded in staged file names (default: os hostname)")
	fs.Int64("max-body-bytes", d.MaxBodyBytes, "largest accepted ingest request body")
	fs.Duration("shutdown-timeout", d.ShutdownTimeout, "grace period for in-flight requests on shutdown")
	fs.String("log-level", d.LogLevel, "log level: debug, info, warn or error")
	fs.String("log-format", d.LogFormat, "log format: json or console")
}

// ApplyFlags overlays every flag registered by RegisterFlags that was set on
// the command line.
func (c *Config) ApplyFlags(fs *pflag.FlagSet) error {
	for _, f := range c.fields() {
		flag := fs.Lookup(f.flag)
		if flag == nil || !flag.Changed {
			continue
		}
		if err := f.set(flag.Value.String()); err != nil {
			return fmt.Errorf("--%s: %w", f.flag, err)
		}
	}
	return nil
}

// Validate checks every field and reports all problems at once.
func (c *Config) Validate() error {
	return validation.NewConfigValidator("Config").
		Struct(c).
		MinDuration("FlushInterval", c.FlushInterval, time.Second).
		MinDuration("ShutdownTimeout", c.ShutdownTimeout, 0).
		NonNegative("BufferSize", c.BufferSize).
		Custom("Bucket", func() error { return staging.ValidateBucket(c.Bucket) }).
		Custom("Compression", func() error {
			_, err := columnar.ParseCompression(c.Compression)
			return err
		}).
		Validate()
}

// CompressionValue returns the parsed compression. Call after Validate.
func (c *Config) CompressionValue() columnar.Compression {
	comp, _ := columnar.ParseCompression(c.Compression)
	return comp
}

// Level returns the parsed log level.
func (c *Config) Level() logging.Level {
	return logging.ParseLevel(c.LogLevel)
}

type field struct {
	env  string
	flag string
	set  func(string) error
}

func (c *Config) fields() []field {
	return []field{
		{"STAGING_DIR", "staging-dir", setString(&c.StagingDir)},
		{"LISTEN_ADDR", "listen", setString(&c.ListenAddr)},
		{"FLUSH_INTERVAL", "flush-interval", setDuration(&c.FlushInterval)},
		{"BUCKET", "bucket", setDuration(&c.Bucket)},
		{"COMPRESSION", "compression", setString(&c.Compression)},
		{"BUFFER_SIZE", "buffer-size", setInt(&c.BufferSize)},
		{"HOST", "host", setString(&c.Host)},
		{"MAX_BODY_BYTES", "max-body-bytes", setInt64(&c.MaxBodyBytes)},
		{"SHUTDOWN_TIMEOUT", "shutdown-timeout", setDuration(&c.ShutdownTimeout)},
		{"LOG_LEVEL", "log-level", setString(&c.LogLevel)},
		{"LOG_FORMAT", "log-format", setString(&c.LogFormat)},
	}
}

func setString(p *string) func(string) error {
	return func(v string) error {
		*p = strings.TrimSpace(v)
		return nil
	}
}

func setDuration(p *time.Duration) func(string) error {
	return func(v string) error {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return err
		}
		*p = d
		return nil
	}
}

func setInt(p *int) func(string) error {
	return func(v string) error {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return err
		}
		*p = n
		return nil
	}
}

func setInt64(p *int64) func(string) error {
	return func(v string) error {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return err
		}
		*p = n
		return nil
	}
}
