package baseline32

import (
	"fmt"

	"github.com/pelletier/go-toml/v2"
	"go.uber.org/multierr"
)

// Program is the TOML form of the functions compiled into a Module:
//
//	[[function]]
//	name = "add"
//	code = """
//	i32.add a0 a0 a1
//	"""
//
//	[[function]]
//	name = "checked_div"
//	frame_size = 16
//	code = """
//	i32.div_u a0 a0 a1 @div_by_zero
//	"""
//	ool = """
//	div_by_zero:
//	stub ThrowWasmTrapDivByZero
//	"""
//
// Functions are numbered by their position, which is the index used by "call".
type Program struct {
	Functions []FunctionSource `toml:"function"`
}

// FunctionSource is the operation text of a function.
type FunctionSource struct {
	Name string `toml:"name"`
	// FrameSize is the spill area in bytes reserved below the fixed slots of the frame, in
	// addition to the offsets the code spills to.
	FrameSize int32 `toml:"frame_size"`
	// Code is the body, which returns when it does not end with "ret".
	Code string `toml:"code"`
	// OOL is the out-of-line code emitted after the body.
	OOL string `toml:"ool"`
}

// ParseProgram reads the TOML document and checks every function has a distinct name.
func ParseProgram(data []byte) (*Program, error) {
	var p Program
	if err := toml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to read program: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate returns every invalid function of the program, combined with multierr.
func (p *Program) Validate() (err error) {
	seen := make(map[string]int, len(p.Functions))
	for i := range p.Functions {
		f := &p.Functions[i]
		switch prev, dup := seen[f.Name]; {
		case f.Name == "":
			err = multierr.Append(err, fmt.Errorf("function[%d]: missing name", i))
		case dup:
			err = multierr.Append(err, fmt.Errorf("function[%d]: name %q already used by function[%d]", i, f.Name, prev))
		default:
			seen[f.Name] = i
		}
		if f.FrameSize < 0 {
			err = multierr.Append(err, fmt.Errorf("function[%d]: frame_size must not be negative, but was %d", i, f.FrameSize))
		}
	}
	return
}
