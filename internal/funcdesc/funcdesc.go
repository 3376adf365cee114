// Package funcdesc decodes textual descriptions of functions ready for binary emission, written
// in YAML or TOML, into ir.Function.
//
// A description lists the blocks of each function in layout order, the location register
// allocation gave to every value, and the jump tables:
//
//	functions:
//	  - name: "%add"
//	    values: {v0: rax, v1: rbx, v2: rax}
//	    blocks:
//	      - name: entry
//	        insts:
//	          - {op: iadd, args: [v0, v1], results: [v2]}
//	          - {op: return}
package funcdesc

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// File is the root of a description.
type File struct {
	Functions []Function `yaml:"functions" toml:"functions"`
}

// Function describes one function.
type Function struct {
	// Name is an external name, either "%name" or "u<namespace>:<index>".
	Name string `yaml:"name" toml:"name"`
	// Values maps a value such as "v0" to a register name such as "rax" or a stack slot such as
	// "ss[16]".
	Values     map[string]string `yaml:"values" toml:"values"`
	JumpTables []JumpTable       `yaml:"jump_tables" toml:"jump_tables"`
	// Blocks are in layout order. The first one is the entry block.
	Blocks []Block `yaml:"blocks" toml:"blocks"`
}

// JumpTable lists the blocks a br_table with this table jumps to, by index.
type JumpTable struct {
	Name    string   `yaml:"name" toml:"name"`
	Targets []string `yaml:"targets" toml:"targets"`
}

// Block is a basic block and its instructions.
type Block struct {
	Name  string `yaml:"name" toml:"name"`
	Insts []Inst `yaml:"insts" toml:"insts"`
}

// Inst describes an instruction. Which fields are used depends on Op, as for ir.InstData.
type Inst struct {
	Op      string   `yaml:"op" toml:"op"`
	Args    []string `yaml:"args" toml:"args"`
	Results []string `yaml:"results" toml:"results"`
	Imm     int64    `yaml:"imm" toml:"imm"`
	// Dest is the name of the block a jump or conditional branch goes to.
	Dest string `yaml:"dest" toml:"dest"`
	// Table is the name of the jump table of a br_table.
	Table string `yaml:"table" toml:"table"`
	// Constant is the hex encoded value loaded by a vconst.
	Constant  string `yaml:"constant" toml:"constant"`
	Func      string `yaml:"func" toml:"func"`
	Colocated bool   `yaml:"colocated" toml:"colocated"`
	// Trap is a trap code such as "heap_oob". On load and store, it makes the access trapping.
	Trap string `yaml:"trap" toml:"trap"`
	// Src and Dst are the locations of regmove, regspill and regfill.
	Src string `yaml:"src" toml:"src"`
	Dst string `yaml:"dst" toml:"dst"`
	// SrcLoc is the source location attached to the instruction.
	SrcLoc *uint32 `yaml:"srcloc" toml:"srcloc"`
}

// Format is the syntax of a description.
type Format byte

const (
	FormatYAML Format = iota
	FormatTOML
)

// String implements fmt.Stringer.
func (f Format) String() string {
	switch f {
	case FormatYAML:
		return "yaml"
	case FormatTOML:
		return "toml"
	default:
		return fmt.Sprintf("format(%d)", byte(f))
	}
}

// FormatOf returns the format of a description file from its extension.
func FormatOf(path string) (Format, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return 0, fmt.Errorf("unknown description format %q of %s", ext, path)
	}
}

// Decode parses data in the given format. Unknown fields are errors.
func Decode(data []byte, format Format) (*File, error) {
	var f File
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("invalid yaml description: %w", err)
		}
	case FormatTOML:
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&f); err != nil {
			return nil, fmt.Errorf("invalid toml description: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported description format %s", format)
	}
	return &f, nil
}

// Load reads and decodes the description file at path, in the format of its extension.
func Load(path string) (*File, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read description: %w", err)
	}
	f, err := Decode(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}
