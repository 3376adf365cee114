package backend

import (
	"fmt"
	"runtime"

	"go.uber.org/zap"

	"github.com/tetratelabs/binemit/internal/binemit"
)

// Config controls how functions are compiled, with the defaults as NewConfig.
type Config struct {
	logger                *zap.Logger
	resolveLocal          bool
	constantPoolAlignment binemit.CodeOffset
	workers               int
}

// defaultConfig helps avoid copy/pasting the wrong defaults.
var defaultConfig = &Config{
	logger:                zap.NewNop(),
	resolveLocal:          true,
	constantPoolAlignment: 16,
	workers:               0,
}

// clone ensures all fields are copied even if nil.
func (c *Config) clone() *Config {
	return &Config{
		logger:                c.logger,
		resolveLocal:          c.resolveLocal,
		constantPoolAlignment: c.constantPoolAlignment,
		workers:               c.workers,
	}
}

// NewConfig returns the default configuration: no logging, local relocations resolved, the
// constant pool aligned on 16 bytes and one worker per CPU.
func NewConfig() *Config {
	return defaultConfig.clone()
}

// WithLogger sets the logger receiving debug entries about compiled functions and their blocks.
// Defaults to a no-op logger if nil.
func (c *Config) WithLogger(logger *zap.Logger) *Config {
	if logger == nil {
		logger = zap.NewNop()
	}
	ret := c.clone()
	ret.logger = logger
	return ret
}

// WithResolveLocal controls whether relocations whose target is within the function are patched
// in the code. When false, every relocation is reported in Result.Relocs. Defaults to true.
func (c *Config) WithResolveLocal(enabled bool) *Config {
	ret := c.clone()
	ret.resolveLocal = enabled
	return ret
}

// WithConstantPoolAlignment sets the alignment of the constant pool placed after each function.
// It must be a power of two, or zero to place the pool right after the read-only data.
// Defaults to 16, the alignment of 128-bit vector loads.
func (c *Config) WithConstantPoolAlignment(align uint32) *Config {
	ret := c.clone()
	ret.constantPoolAlignment = align
	return ret
}

// WithWorkers sets how many functions CompileAll compiles concurrently. Zero or less means
// runtime.GOMAXPROCS(0), which is the default.
func (c *Config) WithWorkers(workers int) *Config {
	ret := c.clone()
	ret.workers = workers
	return ret
}

func (c *Config) numWorkers() int {
	if c.workers <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return c.workers
}

func (c *Config) validate() error {
	if align := c.constantPoolAlignment; align&(align-1) != 0 {
		return fmt.Errorf("invalid constant pool alignment %d: must be a power of two", align)
	}
	return nil
}
