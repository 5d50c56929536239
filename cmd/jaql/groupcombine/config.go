package groupcombine

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/taksan/jaql/runtime/op/groupcombine"
	"gopkg.in/yaml.v3"
)

type fileConfig struct {
	groupcombine.Config `yaml:",inline"`
	TempDir             string `yaml:"temp_dir"`
}

// loadConfig applies the settings in the -config file to any setting not
// given on the command line.
func (c *Command) loadConfig() error {
	if c.configPath == "" {
		return nil
	}
	f, err := os.Open(c.configPath)
	if err != nil {
		return err
	}
	defer f.Close()
	conf := fileConfig{Config: groupcombine.DefaultConfig()}
	d := yaml.NewDecoder(f)
	d.KnownFields(true)
	if err := d.Decode(&conf); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%s: %w", c.configPath, err)
	}
	set := make(map[string]bool)
	c.flags.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})
	if !set["memlimit"] {
		c.conf.MemoryLimit = conf.MemoryLimit
	}
	if !set["keylimit"] {
		c.conf.KeyLimit = conf.KeyLimit
	}
	if !set["tempdir"] && conf.TempDir != "" {
		c.tempDir = conf.TempDir
	}
	return nil
}
