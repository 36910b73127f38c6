// Package config handles exotic.toml call-site tuning.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/tliron/commonlog"

	"github.com/chazu/exotic/memo"
	"github.com/chazu/exotic/stringswitch"
	"github.com/chazu/exotic/structural"
	"github.com/chazu/exotic/typeswitch"
	"github.com/chazu/exotic/visitor"
)

// FileName is the name FindAndLoad looks for.
const FileName = "exotic.toml"

// Config represents an exotic.toml file.
type Config struct {
	TypeSwitch   TypeSwitch `toml:"typeswitch"`
	StringSwitch Depth      `toml:"stringswitch"`
	Structural   Depth      `toml:"structural"`
	Visitor      Depth      `toml:"visitor"`
	Memo         Depth      `toml:"memo"`
	Log          Log        `toml:"log"`
	Bench        Bench      `toml:"bench"`

	// Dir is the directory containing the exotic.toml file (set at load time).
	Dir string `toml:"-"`
}

// TypeSwitch tunes type switches.
type TypeSwitch struct {
	MaxDepth       int `toml:"max-depth"`
	StrategyCutoff int `toml:"strategy-cutoff"`
}

// Depth tunes a call site that only has a guard bound.
type Depth struct {
	MaxDepth int `toml:"max-depth"`
}

// Log configures commonlog.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Bench configures the bench command.
type Bench struct {
	Iterations int    `toml:"iterations"`
	Profile    string `toml:"profile"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.TypeSwitch.MaxDepth <= 0 {
		c.TypeSwitch.MaxDepth = typeswitch.DefaultMaxDepth
	}
	if c.TypeSwitch.StrategyCutoff <= 0 {
		c.TypeSwitch.StrategyCutoff = typeswitch.DefaultStrategyCutoff
	}
	if c.StringSwitch.MaxDepth <= 0 {
		c.StringSwitch.MaxDepth = stringswitch.DefaultMaxDepth
	}
	if c.Structural.MaxDepth <= 0 {
		c.Structural.MaxDepth = structural.DefaultMaxDepth
	}
	if c.Visitor.MaxDepth <= 0 {
		c.Visitor.MaxDepth = visitor.DefaultMaxDepth
	}
	if c.Memo.MaxDepth <= 0 {
		c.Memo.MaxDepth = memo.DefaultMaxDepth
	}
	if c.Bench.Iterations <= 0 {
		c.Bench.Iterations = 1_000_000
	}
}

// Load parses an exotic.toml file from the given directory.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var c Config
	md, err := toml.Decode(string(data), &c)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown key %s in %s", undecoded[0], path)
	}

	c.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	c.applyDefaults()
	return &c, nil
}

// FindAndLoad walks up from startDir to find an exotic.toml file, then loads
// it. Without one it returns Default.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, FileName)); err == nil {
			return Load(dir)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return Default(), nil
		}
		dir = parent
	}
}

// TypeSwitchOptions returns options for a type switch called name.
func (c *Config) TypeSwitchOptions(name string) typeswitch.Options {
	return typeswitch.Options{Name: name, MaxDepth: c.TypeSwitch.MaxDepth, StrategyCutoff: c.TypeSwitch.StrategyCutoff}
}

// StringSwitchOptions returns options for a string switch called name.
func (c *Config) StringSwitchOptions(name string) stringswitch.Options {
	return stringswitch.Options{Name: name, MaxDepth: c.StringSwitch.MaxDepth}
}

// StructuralOptions returns options for a structural call called name.
func (c *Config) StructuralOptions(name string) structural.Options {
	return structural.Options{Name: name, MaxDepth: c.Structural.MaxDepth}
}

// VisitorOptions returns options for a visitor called name.
func (c *Config) VisitorOptions(name string) visitor.Options {
	return visitor.Options{Name: name, MaxDepth: c.Visitor.MaxDepth}
}

// MemoOptions returns options for a memoizer called name.
func (c *Config) MemoOptions(name string) memo.Options {
	return memo.Options{Name: name, MaxDepth: c.Memo.MaxDepth}
}

// LogPath returns the configured log file, relative paths resolved against
// Dir, or nil for stderr.
func (c *Config) LogPath() *string {
	if c.Log.File == "" {
		return nil
	}
	path := c.Log.File
	if !filepath.IsAbs(path) && c.Dir != "" {
		path = filepath.Join(c.Dir, path)
	}
	return &path
}

// ConfigureLogging applies the [log] section to commonlog. The caller must
// import a backend such as github.com/tliron/commonlog/simple.
func (c *Config) ConfigureLogging() {
	commonlog.Configure(c.Log.Verbosity, c.LogPath())
}
