package groupcombine

import (
	"fmt"
	"strconv"

	"github.com/alecthomas/units"
	"github.com/pbnjay/memory"
	"gopkg.in/yaml.v3"
)

const (
	DefaultMemoryLimit = Bytes(32 * units.MiB)
	DefaultKeyLimit    = 1024 * 1024
)

// Config holds the flush thresholds of an Aggregator.  A table is flushed
// once its estimated size reaches MemoryLimit or its key count reaches
// KeyLimit, so zero for either means flush after every insertion.
type Config struct {
	MemoryLimit Bytes `yaml:"memory_limit"`
	KeyLimit    int   `yaml:"key_limit"`
}

// DefaultConfig returns the default thresholds.  The memory limit is capped
// at a quarter of physical memory on small machines.
func DefaultConfig() Config {
	limit := DefaultMemoryLimit
	if total := memory.TotalMemory(); total > 0 && Bytes(total/4) < limit {
		limit = Bytes(total / 4)
	}
	return Config{
		MemoryLimit: limit,
		KeyLimit:    DefaultKeyLimit,
	}
}

func (c Config) validate() error {
	if c.MemoryLimit < 0 {
		return fmt.Errorf("memory limit must not be negative: %s", c.MemoryLimit)
	}
	if c.KeyLimit < 0 {
		return fmt.Errorf("key limit must not be negative: %d", c.KeyLimit)
	}
	return nil
}

// Bytes is a byte count that parses and prints with base-2 unit suffixes,
// e.g., "32MiB".  A plain number is a count of bytes.
type Bytes int64

func ParseBytes(s string) (Bytes, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Bytes(n), nil
	}
	b, err := units.ParseBase2Bytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size %q: %w", s, err)
	}
	return Bytes(b), nil
}

func (b Bytes) String() string {
	return units.Base2Bytes(b).String()
}

// Set implements flag.Value.
func (b *Bytes) Set(s string) error {
	v, err := ParseBytes(s)
	if err != nil {
		return err
	}
	*b = v
	return nil
}

func (b *Bytes) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	return b.Set(s)
}

func (b Bytes) MarshalYAML() (interface{}, error) {
	return b.String(), nil
}
