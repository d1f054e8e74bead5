package config

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/docker/go-units"
	"github.com/pingcap-incubator/tinydoc/log"
	"github.com/pingcap/errors"
)

type Config struct {
	LogLevel string `toml:"log-level"`

	DBPath string `toml:"db-path"` // Directory to store the data in. Should exist and be writable.

	// Interval of the background flusher which persists the not-yet-flushed buffer.
	FlushInterval Duration `toml:"flush-interval"`
	// When the not-yet-flushed buffer holds more parts than this, Apply triggers a flush on its own.
	// Zero disables the threshold.
	FlushThreshold int `toml:"flush-threshold"`

	Engine Engine `toml:"engine"`
}

// Engine holds the badger options the durable store is opened with.
type Engine struct {
	NumCompactors    int      `toml:"num-compactors"`
	ValueThreshold   int      `toml:"value-threshold"`
	NumMemTables     int      `toml:"num-mem-tables"`
	MaxTableSize     ByteSize `toml:"max-table-size"`
	ValueLogFileSize ByteSize `toml:"value-log-file-size"`
	SyncWrites       bool     `toml:"sync-writes"`
}

// Duration is a time.Duration which decodes from strings such as "500ms" in TOML files.
type Duration struct {
	time.Duration
}

func NewDuration(d time.Duration) Duration {
	return Duration{Duration: d}
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return errors.WithStack(err)
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// ByteSize is a size in bytes which decodes from strings such as "64MB" or "1GiB" in TOML files.
// Units are binary, "64MB" is 64 * 1024 * 1024 bytes.
type ByteSize int64

func (b *ByteSize) UnmarshalText(text []byte) error {
	n, err := units.RAMInBytes(string(text))
	if err != nil {
		return errors.WithStack(err)
	}
	*b = ByteSize(n)
	return nil
}

func (b ByteSize) MarshalText() ([]byte, error) {
	return []byte(units.BytesSize(float64(b))), nil
}

func (c *Config) Validate() error {
	if len(c.DBPath) == 0 {
		return errors.New("db path must not be empty")
	}
	if c.FlushInterval.Duration <= 0 {
		return errors.Errorf("flush interval must be positive, got %v", c.FlushInterval.Duration)
	}
	if c.FlushThreshold < 0 {
		return errors.Errorf("flush threshold must not be negative, got %d", c.FlushThreshold)
	}
	if c.Engine.NumCompactors < 1 {
		log.Warnf("engine num-compactors is %d, compaction will not run", c.Engine.NumCompactors)
	}
	return nil
}

const (
	KB ByteSize = 1024
	MB ByteSize = 1024 * 1024
)

func getLogLevel() (logLevel string) {
	logLevel = "info"
	if l := os.Getenv("LOG_LEVEL"); len(l) != 0 {
		logLevel = l
	}
	return
}

func NewDefaultConfig() *Config {
	return &Config{
		LogLevel:       getLogLevel(),
		DBPath:         "/tmp/tinydoc",
		FlushInterval:  NewDuration(time.Second),
		FlushThreshold: 4096,
		Engine: Engine{
			NumCompactors:    3,
			ValueThreshold:   256,
			NumMemTables:     3,
			MaxTableSize:     64 * MB,
			ValueLogFileSize: 256 * MB,
			SyncWrites:       true,
		},
	}
}

func NewTestConfig() *Config {
	return &Config{
		LogLevel:       getLogLevel(),
		DBPath:         "/tmp/tinydoc-test",
		FlushInterval:  NewDuration(50 * time.Millisecond),
		FlushThreshold: 0,
		Engine: Engine{
			NumCompactors:    1,
			ValueThreshold:   256,
			NumMemTables:     2,
			MaxTableSize:     4 * MB,
			ValueLogFileSize: 16 * MB,
			SyncWrites:       false,
		},
	}
}

// LoadFile overlays the TOML file at path on top of the default configuration.
func LoadFile(path string) (*Config, error) {
	c := NewDefaultConfig()
	meta, err := toml.DecodeFile(path, c)
	if err != nil {
		return nil, errors.Annotatef(err, "decode config %s", path)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		log.Warnf("config file %s contains unknown items %v", path, undecoded)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}
