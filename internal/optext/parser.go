// Package optext parses the textual form of the operations lowered by the baseline compiler.
//
// Each line holds one operation: a mnemonic followed by its operands, or a label definition
// "name:". Registers use their ABI names ("a0", "fa1", "v3"), i64 values live in pairs written
// "low:high", labels are referenced as "@name" and "-" stands for a missing index register.
// Comments start at '#' or ";;".
//
//	loop:
//		i64.add a0:a1 a0:a1 a2:a3
//		i32.sub_br_if_neg s1 1 @done
//		jump @loop
//	done:
package optext

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tetratelabs/baseline32/internal/asm/riscv32"
	"github.com/tetratelabs/baseline32/internal/engine/baseline"
)

// Function is the parsed text of a function.
type Function struct {
	Body []baseline.Operation
	// OOL is the out-of-line code, lowered after Body once the frame is complete.
	OOL []baseline.Operation
	// Labels are the labels of both sections by name.
	Labels map[string]*riscv32.Label
}

// Parse parses the body and the out-of-line code of a function. Labels are shared by both
// sections, so that the body can branch to out-of-line code and back.
func Parse(body, ool string) (*Function, error) {
	p := &parser{labels: map[string]*label{}}
	f := &Function{Labels: map[string]*riscv32.Label{}}
	var err error
	if f.Body, err = p.parse("body", body); err != nil {
		return nil, err
	}
	if f.OOL, err = p.parse("ool", ool); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(p.labels))
	for name := range p.labels {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		l := p.labels[name]
		if !l.bound {
			return nil, &FormatError{Line: l.line, Col: l.col, Context: l.section, cause: fmt.Errorf("%w: %s", ErrUndefinedLabel, name)}
		}
		f.Labels[name] = l.label
	}
	return f, nil
}

type label struct {
	label *riscv32.Label
	bound bool
	// section, line and col are the position of the first use, reported when the label is never bound.
	section   string
	line, col int
}

type parser struct {
	labels map[string]*label
	// section and line are the current position.
	section string
	line    int
}

func (p *parser) parse(section, text string) (ret []baseline.Operation, err error) {
	p.section = section
	for i, line := range strings.Split(text, "\n") {
		p.line = i + 1
		fs := fields(line)
		if len(fs) == 0 {
			continue
		}
		mnemonic := fs[0]
		if name := strings.TrimSuffix(mnemonic.text, ":"); name != mnemonic.text {
			if len(fs) > 1 {
				return nil, p.errorf(fs[1], name, "unexpected %s after label", fs[1].text)
			}
			op, err := p.bind(mnemonic, name)
			if err != nil {
				return nil, err
			}
			ret = append(ret, op)
			continue
		}

		ops, err := p.operation(mnemonic.text, fs[1:])
		if err != nil {
			return nil, p.wrap(err, mnemonic.text)
		}
		ret = append(ret, ops...)
	}
	return
}

// wrap positions the error at the current line.
func (p *parser) wrap(err error, mnemonic string) error {
	ret := &FormatError{Line: p.line, Context: p.section + ": " + mnemonic, cause: err}
	if oe, ok := err.(*operandError); ok {
		ret.Col, ret.cause = oe.col, oe.cause
	}
	return ret
}

func (p *parser) errorf(f field, context string, format string, args ...interface{}) error {
	return &FormatError{Line: p.line, Col: f.col, Context: p.section + ": " + context, cause: fmt.Errorf(format, args...)}
}

func (p *parser) bind(f field, name string) (baseline.Operation, error) {
	if name == "" {
		return nil, p.errorf(f, "", "empty label")
	}
	l := p.lookup(f, name)
	if l.bound {
		return nil, p.errorf(f, name, "label already defined")
	}
	l.bound = true
	return &baseline.OperationLabel{Label: l.label}, nil
}

func (p *parser) lookup(f field, name string) *label {
	l, ok := p.labels[name]
	if !ok {
		l = &label{label: &riscv32.Label{}, section: p.section, line: p.line, col: f.col}
		p.labels[name] = l
	}
	return l
}

// labelOperand parses a label reference "@name".
func (p *parser) labelOperand(f field) (*riscv32.Label, error) {
	name := strings.TrimPrefix(f.text, "@")
	if name == f.text || name == "" {
		return nil, errorAt(f, "expected a label, but parsed %s", f.text)
	}
	return p.lookup(f, name).label, nil
}

// operation dispatches on the mnemonic. Most lines produce one operation, "ret" produces the
// epilogue and the return.
func (p *parser) operation(mnemonic string, args []field) ([]baseline.Operation, error) {
	if op, ok := baseline.ConvertOpByName(mnemonic); ok {
		return one(p.convert(op, args))
	}
	if h, ok := controlOps[mnemonic]; ok {
		return one(h(p, args))
	}
	if mnemonic == "ret" {
		return p.ret(args)
	}

	prefix, rest, ok := strings.Cut(mnemonic, ".")
	if !ok {
		return nil, unknownMnemonic(mnemonic)
	}
	if k, ok := kinds[prefix]; ok {
		if op, handled, err := p.value(k, prefix, rest, args); handled {
			return one(op, err)
		}
		switch k {
		case baseline.KindI32, baseline.KindI64:
			return one(p.integer(k, rest, args))
		case baseline.KindF32, baseline.KindF64:
			return one(p.float(k, rest, args))
		case baseline.KindS128:
			return one(p.v128(rest, args))
		case baseline.KindRef:
			return one(p.ref(rest, args))
		}
		return nil, unknownMnemonic(mnemonic)
	}
	if shape, ok := baseline.ShapeByName(prefix); ok {
		return one(p.simd(shape, rest, args))
	}
	switch prefix {
	case "br_if":
		return one(p.condJump(rest, args))
	case "br_if_imm":
		return one(p.condJumpImm(rest, args))
	}
	return nil, unknownMnemonic(mnemonic)
}

func one(op baseline.Operation, err error) ([]baseline.Operation, error) {
	if err != nil {
		return nil, err
	}
	return []baseline.Operation{op}, nil
}

var kinds = map[string]baseline.ValueKind{
	"i32":  baseline.KindI32,
	"i64":  baseline.KindI64,
	"f32":  baseline.KindF32,
	"f64":  baseline.KindF64,
	"v128": baseline.KindS128,
	"ref":  baseline.KindRef,
}

func want(args []field, n int) error {
	if len(args) != n {
		return operandCount(n, len(args))
	}
	return nil
}

func (p *parser) ret(args []field) ([]baseline.Operation, error) {
	var slots uint32
	switch len(args) {
	case 0:
	case 1:
		var err error
		if slots, err = uint32Operand(args[0]); err != nil {
			return nil, err
		}
	default:
		return nil, operandCount(1, len(args))
	}
	return []baseline.Operation{&baseline.OperationLeaveFrame{}, &baseline.OperationDropStackSlotsAndRet{Slots: slots}}, nil
}
