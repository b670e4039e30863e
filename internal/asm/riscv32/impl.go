package riscv32

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"go.uber.org/multierr"

	"github.com/tetratelabs/baseline32/internal/asm"
)

// ErrBranchOutOfRange is returned by Assemble when a branch target is not encodable.
var ErrBranchOutOfRange = errors.New("branch target out of range")

type NodeImpl struct {
	// NOTE: fields here are exported for testing and for patching reserved nodes.

	Instruction asm.Instruction

	OffsetInBinaryField asm.NodeOffsetInBinary // Field suffix to dodge conflict with OffsetInBinary

	// JumpTarget holds the target node in the linked for the jump-kind instruction,
	// or the target of the pair for auipc.
	JumpTarget *NodeImpl
	// Next holds the next node from this node in the assembled linked list.
	Next *NodeImpl

	Rd, Rs1, Rs2 asm.Register
	Imm          asm.ConstantValue

	RoundingMode     RoundingMode
	Acquire, Release bool
	Masked           bool
	VType            int64

	// PCRelativeHi is set on the low half (jalr/addi) of an auipc pair and points to the auipc
	// node, whose JumpTarget decides the immediate of both halves.
	PCRelativeHi *NodeImpl
}

// AssignJumpTarget implements the same method as documented on asm.Node.
func (n *NodeImpl) AssignJumpTarget(target asm.Node) {
	n.JumpTarget = target.(*NodeImpl)
}

// AssignDestinationConstant implements the same method as documented on asm.Node.
func (n *NodeImpl) AssignDestinationConstant(value asm.ConstantValue) {
	n.Imm = value
}

// AssignSourceConstant implements the same method as documented on asm.Node.
func (n *NodeImpl) AssignSourceConstant(value asm.ConstantValue) {
	n.Imm = value
}

// OffsetInBinary implements the same method as documented on asm.Node.
func (n *NodeImpl) OffsetInBinary() asm.NodeOffsetInBinary {
	return n.OffsetInBinaryField
}

// Replace rewrites the node in place into another single instruction, keeping its
// position in the list. It is used to patch placeholders once their operands are known.
func (n *NodeImpl) Replace(instruction asm.Instruction, rd, rs1 asm.Register, imm asm.ConstantValue) {
	next, offset := n.Next, n.OffsetInBinaryField
	*n = NodeImpl{Instruction: instruction, Rd: rd, Rs1: rs1, Imm: imm, Next: next, OffsetInBinaryField: offset}
}

// String implements fmt.Stringer.
//
// This is for debugging purpose, and the format follows the assembler syntax of the ISA manual.
func (n *NodeImpl) String() (ret string) {
	name := InstructionName(n.Instruction)
	if n.Instruction >= instructionEnd {
		return name
	}
	e := encodings[n.Instruction]
	mask := ""
	if n.Masked || e.alwaysMasked {
		mask = ", v0.t"
	}
	switch e.format {
	case formatFixed:
		ret = name
	case formatR:
		ret = fmt.Sprintf("%s %s, %s, %s", name, RegisterName(n.Rd), RegisterName(n.Rs1), RegisterName(n.Rs2))
	case formatRUnary:
		ret = fmt.Sprintf("%s %s, %s", name, RegisterName(n.Rd), RegisterName(n.Rs1))
	case formatI, formatIShift:
		if n.PCRelativeHi != nil {
			ret = fmt.Sprintf("%s %s, %s, %%pcrel_lo", name, RegisterName(n.Rd), RegisterName(n.Rs1))
		} else {
			ret = fmt.Sprintf("%s %s, %s, %d", name, RegisterName(n.Rd), RegisterName(n.Rs1), n.Imm)
		}
	case formatLoad:
		ret = fmt.Sprintf("%s %s, %d(%s)", name, RegisterName(n.Rd), n.Imm, RegisterName(n.Rs1))
	case formatStore:
		ret = fmt.Sprintf("%s %s, %d(%s)", name, RegisterName(n.Rs2), n.Imm, RegisterName(n.Rs1))
	case formatBranch:
		ret = fmt.Sprintf("%s %s, %s, {%v}", name, RegisterName(n.Rs1), RegisterName(n.Rs2), n.targetString())
	case formatU:
		if n.JumpTarget != nil {
			ret = fmt.Sprintf("%s %s, %%pcrel_hi{%v}", name, RegisterName(n.Rd), n.targetString())
		} else {
			ret = fmt.Sprintf("%s %s, 0x%x", name, RegisterName(n.Rd), n.Imm&0xfffff)
		}
	case formatJ:
		ret = fmt.Sprintf("%s %s, {%v}", name, RegisterName(n.Rd), n.targetString())
	case formatFence:
		ret = fmt.Sprintf("%s %s, %s", name, fenceString(byte(n.Imm>>4)), fenceString(byte(n.Imm)))
	case formatAMO:
		suffix := ""
		if n.Acquire {
			suffix += ".aq"
		}
		if n.Release {
			suffix += ".rl"
		}
		if n.Instruction == LRW {
			ret = fmt.Sprintf("%s%s %s, (%s)", name, suffix, RegisterName(n.Rd), RegisterName(n.Rs1))
		} else {
			ret = fmt.Sprintf("%s%s %s, %s, (%s)", name, suffix, RegisterName(n.Rd), RegisterName(n.Rs2), RegisterName(n.Rs1))
		}
	case formatVSetIVLI:
		ret = fmt.Sprintf("%s %s, %d, e%d, %s, ta, ma", name, RegisterName(n.Rd), n.Imm, SEW(n.VType>>3&0b111).Bits(), LMUL(n.VType&0b111))
	case formatVLoad, formatVStore:
		ret = fmt.Sprintf("%s %s, (%s)%s", name, RegisterName(n.Rd), RegisterName(n.Rs1), mask)
	case formatVV, formatVX:
		ret = fmt.Sprintf("%s %s, %s, %s%s", name, RegisterName(n.Rd), RegisterName(n.Rs2), RegisterName(n.Rs1), mask)
	case formatVI:
		ret = fmt.Sprintf("%s %s, %s, %d%s", name, RegisterName(n.Rd), RegisterName(n.Rs2), n.Imm, mask)
	case formatVUnary:
		ret = fmt.Sprintf("%s %s, %s%s", name, RegisterName(n.Rd), RegisterName(n.Rs2), mask)
	case formatVScalar:
		if e.funct3 == opIVI {
			ret = fmt.Sprintf("%s %s, %d", name, RegisterName(n.Rd), n.Imm)
		} else {
			ret = fmt.Sprintf("%s %s, %s", name, RegisterName(n.Rd), RegisterName(n.Rs1))
		}
	}
	return
}

func (n *NodeImpl) targetString() string {
	if n.JumpTarget == nil {
		return fmt.Sprintf("%+d", n.Imm)
	}
	return InstructionName(n.JumpTarget.Instruction)
}

func fenceString(bits byte) (ret string) {
	for i, c := range "iorw" {
		if bits&(FenceI>>i) != 0 {
			ret += string(c)
		}
	}
	if ret == "" {
		ret = "0"
	}
	return
}

// String implements fmt.Stringer.
func (l LMUL) String() string {
	switch l {
	case M2:
		return "m2"
	case M4:
		return "m4"
	case M8:
		return "m8"
	case MF2:
		return "mf2"
	case MF4:
		return "mf4"
	case MF8:
		return "mf8"
	}
	return "m1"
}

// Label is a position in the code which can be targeted before it is bound.
type Label struct {
	target  *NodeImpl
	origins []*NodeImpl
}

// Bound returns true if the label has been bound to a node.
func (l *Label) Bound() bool {
	return l.target != nil
}

// Target returns the node the label is bound to, or nil.
func (l *Label) Target() asm.Node {
	if l.target == nil {
		return nil
	}
	return l.target
}

func (l *Label) bind(n *NodeImpl) {
	l.target = n
	for _, o := range l.origins {
		o.JumpTarget = n
	}
	l.origins = nil
}

// AssemblerImpl implements Assembler.
type AssemblerImpl struct {
	asm.BaseAssemblerImpl
	Root, Current *NodeImpl
	Buf           *bytes.Buffer
	nodeCount     int

	// labelsOnNext are bound to the next node.
	labelsOnNext []*Label
	labels       []*Label
}

var _ Assembler = &AssemblerImpl{}

func NewAssemblerImpl() *AssemblerImpl {
	return &AssemblerImpl{Buf: bytes.NewBuffer(nil)}
}

// newNode creates a new Node and appends it into the linked list.
func (a *AssemblerImpl) newNode(instruction asm.Instruction) *NodeImpl {
	n := &NodeImpl{Instruction: instruction}
	a.addNode(n)
	return n
}

// addNode appends the new node into the linked list.
func (a *AssemblerImpl) addNode(node *NodeImpl) {
	a.nodeCount++

	if a.Root == nil {
		a.Root = node
		a.Current = node
	} else {
		parent := a.Current
		parent.Next = node
		a.Current = node
	}

	for _, o := range a.SetBranchTargetOnNextNodes {
		origin := o.(*NodeImpl)
		origin.JumpTarget = node
	}
	a.SetBranchTargetOnNextNodes = nil

	for _, l := range a.labelsOnNext {
		l.bind(node)
	}
	a.labelsOnNext = nil
}

// Nodes implements Assembler.Nodes.
func (a *AssemblerImpl) Nodes() int {
	return a.nodeCount
}

// Assemble implements asm.AssemblerBase.
//
// Every node is one 32-bit instruction, so the offsets are assigned in a first pass
// and the nodes are encoded in a second one. All the encoding errors are reported at once.
func (a *AssemblerImpl) Assemble() ([]byte, error) {
	if len(a.SetBranchTargetOnNextNodes) > 0 || len(a.labelsOnNext) > 0 {
		return nil, errors.New("jump targets are set on the next node but no node follows")
	}
	for _, l := range a.labels {
		if len(l.origins) > 0 {
			return nil, fmt.Errorf("label targeted by %s is never bound", l.origins[0])
		}
	}

	var offset asm.NodeOffsetInBinary
	for n := a.Root; n != nil; n = n.Next {
		n.OffsetInBinaryField = offset
		offset += 4
	}

	a.Buf.Reset()
	a.Buf.Grow(int(offset))
	var errs error
	var word [4]byte
	for n := a.Root; n != nil; n = n.Next {
		code, err := a.EncodeNode(n)
		if err != nil {
			errs = multierr.Append(errs, err)
		}
		binary.LittleEndian.PutUint32(word[:], code)
		a.Buf.Write(word[:])
	}
	if errs != nil {
		return nil, errs
	}

	code := a.Buf.Bytes()
	for _, cb := range a.OnGenerateCallbacks {
		if err := cb(code); err != nil {
			return nil, err
		}
	}
	return code, nil
}

// EncodeNode returns the machine word of the given node.
func (a *AssemblerImpl) EncodeNode(n *NodeImpl) (uint32, error) {
	if n.Instruction >= instructionEnd {
		return 0, fmt.Errorf("unknown instruction %d", n.Instruction)
	}
	if err := validateOperands(n); err != nil {
		return 0, err
	}
	return a.encodeNode(n)
}

// CompileStandAlone implements the same method as documented on asm.AssemblerBase.
func (a *AssemblerImpl) CompileStandAlone(instruction asm.Instruction) asm.Node {
	return a.newNode(instruction)
}

// CompileConstToRegister implements the same method as documented on asm.AssemblerBase.
// The value is the 20-bit signed upper immediate of lui/auipc.
func (a *AssemblerImpl) CompileConstToRegister(instruction asm.Instruction, value asm.ConstantValue, destinationReg asm.Register) asm.Node {
	n := a.newNode(instruction)
	n.Imm = value
	n.Rd = destinationReg
	return n
}

// CompileRegisterToRegister implements the same method as documented on asm.AssemblerBase.
func (a *AssemblerImpl) CompileRegisterToRegister(instruction asm.Instruction, from, to asm.Register) {
	a.CompileFloatingPointUnary(instruction, from, to, RNE)
}

// CompileFloatingPointUnary implements Assembler.CompileFloatingPointUnary.
func (a *AssemblerImpl) CompileFloatingPointUnary(instruction asm.Instruction, from, to asm.Register, rm RoundingMode) {
	n := a.newNode(instruction)
	n.Rs1 = from
	n.Rd = to
	n.RoundingMode = rm
}

// CompileTwoRegistersToRegister implements Assembler.CompileTwoRegistersToRegister.
func (a *AssemblerImpl) CompileTwoRegistersToRegister(instruction asm.Instruction, rs1, rs2, rd asm.Register) {
	n := a.newNode(instruction)
	n.Rs1 = rs1
	n.Rs2 = rs2
	n.Rd = rd
}

// CompileRegisterAndConstToRegister implements Assembler.CompileRegisterAndConstToRegister.
func (a *AssemblerImpl) CompileRegisterAndConstToRegister(instruction asm.Instruction, rs1 asm.Register, imm asm.ConstantValue, rd asm.Register) asm.Node {
	n := a.newNode(instruction)
	n.Rs1 = rs1
	n.Imm = imm
	n.Rd = rd
	return n
}

// CompileMemoryToRegister implements the same method as documented on asm.AssemblerBase.
func (a *AssemblerImpl) CompileMemoryToRegister(instruction asm.Instruction, sourceBaseReg asm.Register, sourceOffsetConst asm.ConstantValue, destinationReg asm.Register) {
	n := a.newNode(instruction)
	n.Rs1 = sourceBaseReg
	n.Imm = sourceOffsetConst
	n.Rd = destinationReg
}

// CompileRegisterToMemory implements the same method as documented on asm.AssemblerBase.
// Vector stores take the stored register in the rd (vs3) field.
func (a *AssemblerImpl) CompileRegisterToMemory(instruction asm.Instruction, sourceRegister, destinationBaseRegister asm.Register, destinationOffsetConst asm.ConstantValue) {
	n := a.newNode(instruction)
	if encodings[instruction].format == formatVStore {
		n.Rd = sourceRegister
	} else {
		n.Rs2 = sourceRegister
	}
	n.Rs1 = destinationBaseRegister
	n.Imm = destinationOffsetConst
}

// CompileConditionalBranch implements Assembler.CompileConditionalBranch.
func (a *AssemblerImpl) CompileConditionalBranch(instruction asm.Instruction, rs1, rs2 asm.Register) asm.Node {
	n := a.newNode(instruction)
	n.Rs1 = rs1
	n.Rs2 = rs2
	return n
}

// CompileJump implements the same method as documented on asm.AssemblerBase.
// The only jump instruction is jal, which is emitted as `jal zero, target`.
func (a *AssemblerImpl) CompileJump(jmpInstruction asm.Instruction) asm.Node {
	n := a.newNode(jmpInstruction)
	n.Rd = RegZERO
	return n
}

// CompileJumpAndLink implements Assembler.CompileJumpAndLink.
func (a *AssemblerImpl) CompileJumpAndLink(rd asm.Register) asm.Node {
	n := a.newNode(JAL)
	n.Rd = rd
	return n
}

// CompileJumpToRegister implements the same method as documented on asm.AssemblerBase.
func (a *AssemblerImpl) CompileJumpToRegister(jmpInstruction asm.Instruction, reg asm.Register) {
	n := a.newNode(jmpInstruction)
	n.Rs1 = reg
	n.Rd = RegZERO
}

// CompileFarJump implements Assembler.CompileFarJump.
func (a *AssemblerImpl) CompileFarJump(scratch, link asm.Register) asm.Node {
	hi := a.newNode(AUIPC)
	hi.Rd = scratch
	lo := a.newNode(JALR)
	lo.Rs1 = scratch
	lo.Rd = link
	lo.PCRelativeHi = hi
	return hi
}

// RewriteFarJump turns two consecutive placeholder nodes into an auipc/jalr pair jumping to target.
func (a *AssemblerImpl) RewriteFarJump(hi, lo *NodeImpl, scratch, link asm.Register, target asm.Node) {
	if hi.Next != lo {
		panic("BUG: far jump halves must be consecutive")
	}
	hi.Replace(AUIPC, scratch, asm.NilRegister, 0)
	hi.JumpTarget = target.(*NodeImpl)
	lo.Replace(JALR, link, scratch, 0)
	lo.PCRelativeHi = hi
}

// CompileAtomic implements Assembler.CompileAtomic.
func (a *AssemblerImpl) CompileAtomic(instruction asm.Instruction, addr, src, dst asm.Register, acquire, release bool) {
	n := a.newNode(instruction)
	n.Rs1 = addr
	n.Rs2 = src
	n.Rd = dst
	n.Acquire = acquire
	n.Release = release
}

// CompileFence implements Assembler.CompileFence.
func (a *AssemblerImpl) CompileFence(pred, succ byte) {
	n := a.newNode(FENCE)
	n.Imm = asm.ConstantValue(pred&0xf)<<4 | asm.ConstantValue(succ&0xf)
}

// CompileVectorConfig implements Assembler.CompileVectorConfig.
func (a *AssemblerImpl) CompileVectorConfig(avl int, sew SEW, lmul LMUL) {
	n := a.newNode(VSETIVLI)
	n.Rd = RegZERO
	n.Imm = asm.ConstantValue(avl)
	n.VType = VType(sew, lmul)
}

// CompileVectorVV implements Assembler.CompileVectorVV.
func (a *AssemblerImpl) CompileVectorVV(instruction asm.Instruction, vs2, vs1, vd asm.Register, masked bool) {
	n := a.newNode(instruction)
	n.Rs2 = vs2
	n.Rs1 = vs1
	n.Rd = vd
	n.Masked = masked
}

// CompileVectorVX implements Assembler.CompileVectorVX.
func (a *AssemblerImpl) CompileVectorVX(instruction asm.Instruction, vs2, rs1, vd asm.Register, masked bool) {
	a.CompileVectorVV(instruction, vs2, rs1, vd, masked)
}

// CompileVectorVI implements Assembler.CompileVectorVI.
func (a *AssemblerImpl) CompileVectorVI(instruction asm.Instruction, vs2 asm.Register, imm asm.ConstantValue, vd asm.Register, masked bool) {
	n := a.newNode(instruction)
	n.Rs2 = vs2
	n.Imm = imm
	n.Rd = vd
	n.Masked = masked
}

// CompileVectorUnary implements Assembler.CompileVectorUnary.
func (a *AssemblerImpl) CompileVectorUnary(instruction asm.Instruction, vs2, vd asm.Register, masked bool) {
	n := a.newNode(instruction)
	n.Rs2 = vs2
	n.Rd = vd
	n.Masked = masked
}

// CompileVectorMove implements Assembler.CompileVectorMove.
func (a *AssemblerImpl) CompileVectorMove(instruction asm.Instruction, src, vd asm.Register) {
	n := a.newNode(instruction)
	n.Rs1 = src
	n.Rd = vd
}

// CompileVectorMoveImmediate implements Assembler.CompileVectorMoveImmediate.
func (a *AssemblerImpl) CompileVectorMoveImmediate(imm asm.ConstantValue, vd asm.Register) {
	n := a.newNode(VMVVI)
	n.Imm = imm
	n.Rd = vd
}

// NewLabel implements Assembler.NewLabel.
func (a *AssemblerImpl) NewLabel() *Label {
	l := &Label{}
	a.labels = append(a.labels, l)
	return l
}

// BindLabel implements Assembler.BindLabel.
func (a *AssemblerImpl) BindLabel(l *Label) {
	if l.target != nil {
		panic("BUG: label bound twice")
	}
	a.labelsOnNext = append(a.labelsOnNext, l)
}

// JumpToLabel implements Assembler.JumpToLabel.
func (a *AssemblerImpl) JumpToLabel(n asm.Node, l *Label) {
	node := n.(*NodeImpl)
	if l.target != nil {
		node.JumpTarget = l.target
	} else {
		l.origins = append(l.origins, node)
	}
}
