// Package rv32sim is an instruction level simulator of the RV32IMAFD subset with the vector
// extension (VLEN=128) emitted by the baseline compiler. It runs generated code in tests on
// any host: harts share one little-endian memory, runtime stubs and C functions are Go
// handlers mapped at fixed addresses outside of the memory.
//
// A Machine and its harts are not safe for concurrent use. Concurrency between harts is
// simulated by interleaving their instructions, see RunInterleaved.
package rv32sim

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand"

	"go.uber.org/zap"

	"github.com/tetratelabs/baseline32/internal/asm/riscv32"
)

const (
	// DefaultMemorySize is the memory size of New when zero is given.
	DefaultMemorySize = 4 << 20

	// NullGuardSize is the size of the unmapped area at address zero.
	NullGuardSize = 0x1000

	// CodeBase is the address of the first code loaded with LoadCode.
	CodeBase = NullGuardSize

	// CodeSize is the size of the code area. Data allocated with Alloc follows it.
	CodeSize = 1 << 20

	// StackSize is the stack size of each hart. Stacks are carved from the top of the memory.
	StackSize = 64 << 10

	// ExitAddress is set in ra by Call: returning to it stops the hart.
	ExitAddress = 0x00fff000

	// StubBase is the address of the first handler registered with RegisterStub.
	StubBase = 0x01000000
	// StubStride is the distance between two stub addresses.
	StubStride = 16
)

var (
	// ErrOutOfBounds is returned when generated code accesses memory outside of the machine.
	ErrOutOfBounds = errors.New("memory access out of bounds")
	// ErrStepLimit is returned when a hart runs more instructions than allowed.
	ErrStepLimit = errors.New("step limit exceeded")
	// ErrMisaligned is returned by LR/SC on a misaligned address.
	ErrMisaligned = errors.New("misaligned atomic access")
)

// BreakpointError is returned when a hart executes ebreak.
type BreakpointError struct {
	PC uint32
}

// Error implements error.
func (e *BreakpointError) Error() string {
	return fmt.Sprintf("ebreak at %#x", e.PC)
}

// TrapError is returned when a hart calls a stub registered with RegisterTrap.
type TrapError struct {
	Name string
	// ReturnAddress is ra at the time of the call, pointing after the call site.
	ReturnAddress uint32
}

// Error implements error.
func (e *TrapError) Error() string {
	return fmt.Sprintf("trap %s called from %#x", e.Name, e.ReturnAddress)
}

// Handler is a Go function called when a hart jumps to its stub address. The hart returns to
// ra once the handler returns nil. A non-nil error stops the hart.
type Handler func(h *Hart) error

type stub struct {
	name    string
	handler Handler
}

// Option configures a Machine.
type Option func(*Machine)

// WithLogger makes the machine trace every executed instruction at debug level.
func WithLogger(l *zap.Logger) Option {
	return func(m *Machine) {
		m.logger = l
	}
}

// Machine is the memory, code and stubs shared by harts.
type Machine struct {
	mem       []byte
	codeEnd   uint32
	heapEnd   uint32
	stackTop  uint32
	stubs     []stub
	stubNames map[string]uint32
	decoded   map[uint32]*riscv32.NodeImpl
	harts     []*Hart
	logger    *zap.Logger
	trace     bool
}

// New returns a Machine with memSize bytes of zeroed memory.
func New(memSize int, opts ...Option) *Machine {
	if memSize == 0 {
		memSize = DefaultMemorySize
	}
	if memSize < CodeBase+CodeSize+StackSize || memSize >= ExitAddress {
		panic(fmt.Sprintf("BUG: invalid memory size %d", memSize))
	}
	m := &Machine{
		mem:       make([]byte, memSize),
		codeEnd:   CodeBase,
		heapEnd:   CodeBase + CodeSize,
		stackTop:  uint32(memSize),
		stubNames: map[string]uint32{},
		decoded:   map[uint32]*riscv32.NodeImpl{},
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.trace = m.logger.Core().Enabled(zap.DebugLevel)
	return m
}

// CodeEnd returns the address the next LoadCode places code at.
func (m *Machine) CodeEnd() uint32 {
	return m.codeEnd
}

// LoadCode copies code into the code area and returns its address.
func (m *Machine) LoadCode(code []byte) (uint32, error) {
	if len(code)%4 != 0 {
		return 0, fmt.Errorf("code size %d is not a multiple of 4", len(code))
	}
	addr := m.codeEnd
	end := addr + uint32(len(code))
	if end > CodeBase+CodeSize {
		return 0, fmt.Errorf("code area exhausted: %d bytes at %#x", len(code), addr)
	}
	copy(m.mem[addr:], code)
	m.codeEnd = (end + 15) &^ 15
	for pc := addr; pc < end; pc += 4 {
		delete(m.decoded, pc)
	}
	return addr, nil
}

// Alloc returns the address of size zeroed bytes aligned to align, which is a power of two.
func (m *Machine) Alloc(size, align uint32) uint32 {
	if align == 0 {
		align = 1
	}
	addr := (m.heapEnd + align - 1) &^ (align - 1)
	end := addr + size
	if end > m.stackTop-StackSize*uint32(len(m.harts)+1) {
		panic(fmt.Sprintf("BUG: heap exhausted allocating %d bytes", size))
	}
	m.heapEnd = end
	return addr
}

// RegisterStub maps handler at a new stub address, which is returned. Registering the same
// name twice returns the first address.
func (m *Machine) RegisterStub(name string, handler Handler) uint32 {
	if addr, ok := m.stubNames[name]; ok {
		return addr
	}
	addr := StubBase + StubStride*uint32(len(m.stubs))
	m.stubs = append(m.stubs, stub{name: name, handler: handler})
	m.stubNames[name] = addr
	return addr
}

// RegisterTrap maps a stub which stops the calling hart with a *TrapError.
func (m *Machine) RegisterTrap(name string) uint32 {
	return m.RegisterStub(name, func(h *Hart) error {
		return &TrapError{Name: name, ReturnAddress: h.X[1]}
	})
}

// StubAddress returns the address of the stub of the given name.
func (m *Machine) StubAddress(name string) (uint32, bool) {
	addr, ok := m.stubNames[name]
	return addr, ok
}

func (m *Machine) stubAt(pc uint32) (stub, bool) {
	if pc < StubBase || (pc-StubBase)%StubStride != 0 {
		return stub{}, false
	}
	i := (pc - StubBase) / StubStride
	if int(i) >= len(m.stubs) {
		return stub{}, false
	}
	return m.stubs[i], true
}

// NewHart returns a hart with its own stack, and sp pointing to the top of it.
func (m *Machine) NewHart() *Hart {
	top := m.stackTop - StackSize*uint32(len(m.harts))
	base := top - StackSize
	if base < m.heapEnd {
		panic("BUG: no room for another stack")
	}
	h := &Hart{m: m, StackBase: base, StackTop: top}
	h.X[2] = top
	m.harts = append(m.harts, h)
	return h
}

// Call runs h from entry until it returns to ExitAddress, with ra set accordingly. Arguments
// are passed by setting the registers of h beforehand. maxSteps bounds the number of executed
// instructions, zero means no bound.
func (m *Machine) Call(h *Hart, entry uint32, maxSteps int) error {
	h.start(entry)
	for !h.done {
		if maxSteps > 0 && h.Steps >= maxSteps {
			return ErrStepLimit
		}
		if err := h.Step(); err != nil {
			return err
		}
	}
	return nil
}

// RunInterleaved runs every hart from its entry, choosing the hart of each next instruction
// at random with the given seed, until all of them returned. maxSteps bounds the steps of
// every hart.
func (m *Machine) RunInterleaved(harts []*Hart, entries []uint32, maxSteps int, seed int64) error {
	if len(harts) != len(entries) {
		return fmt.Errorf("%d harts but %d entries", len(harts), len(entries))
	}
	running := make([]*Hart, len(harts))
	copy(running, harts)
	for i, h := range harts {
		h.start(entries[i])
	}
	r := rand.New(rand.NewSource(seed))
	for len(running) > 0 {
		i := r.Intn(len(running))
		h := running[i]
		if maxSteps > 0 && h.Steps >= maxSteps {
			return fmt.Errorf("hart at %#x: %w", h.PC, ErrStepLimit)
		}
		if err := h.Step(); err != nil {
			return err
		}
		if h.done {
			running = append(running[:i], running[i+1:]...)
		}
	}
	return nil
}

func (m *Machine) checkRange(addr, size uint32) error {
	if addr < NullGuardSize || uint64(addr)+uint64(size) > uint64(len(m.mem)) {
		return fmt.Errorf("%w: %d bytes at %#x", ErrOutOfBounds, size, addr)
	}
	return nil
}

// invalidate drops the reservations of the harts other than by overlapping [addr, addr+size).
func (m *Machine) invalidate(by *Hart, addr, size uint32) {
	for _, h := range m.harts {
		if h == by || !h.reserved {
			continue
		}
		if addr < h.reservation+4 && h.reservation < addr+size {
			h.reserved = false
		}
	}
}

// Bytes returns a copy of size bytes at addr.
func (m *Machine) Bytes(addr, size uint32) ([]byte, error) {
	if err := m.checkRange(addr, size); err != nil {
		return nil, err
	}
	return append([]byte(nil), m.mem[addr:addr+size]...), nil
}

// WriteBytes copies b to addr.
func (m *Machine) WriteBytes(addr uint32, b []byte) error {
	if err := m.checkRange(addr, uint32(len(b))); err != nil {
		return err
	}
	copy(m.mem[addr:], b)
	m.invalidate(nil, addr, uint32(len(b)))
	return nil
}

// ReadUint8 returns the byte at addr.
func (m *Machine) ReadUint8(addr uint32) (byte, error) {
	if err := m.checkRange(addr, 1); err != nil {
		return 0, err
	}
	return m.mem[addr], nil
}

// ReadUint16 returns the little-endian uint16 at addr.
func (m *Machine) ReadUint16(addr uint32) (uint16, error) {
	if err := m.checkRange(addr, 2); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(m.mem[addr:]), nil
}

// ReadUint32 returns the little-endian uint32 at addr.
func (m *Machine) ReadUint32(addr uint32) (uint32, error) {
	if err := m.checkRange(addr, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(m.mem[addr:]), nil
}

// ReadUint64 returns the little-endian uint64 at addr.
func (m *Machine) ReadUint64(addr uint32) (uint64, error) {
	if err := m.checkRange(addr, 8); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(m.mem[addr:]), nil
}

// WriteUint8 stores v at addr.
func (m *Machine) WriteUint8(addr uint32, v byte) error {
	return m.WriteBytes(addr, []byte{v})
}

// WriteUint16 stores v little-endian at addr.
func (m *Machine) WriteUint16(addr uint32, v uint16) error {
	return m.WriteBytes(addr, binary.LittleEndian.AppendUint16(nil, v))
}

// WriteUint32 stores v little-endian at addr.
func (m *Machine) WriteUint32(addr uint32, v uint32) error {
	return m.WriteBytes(addr, binary.LittleEndian.AppendUint32(nil, v))
}

// WriteUint64 stores v little-endian at addr.
func (m *Machine) WriteUint64(addr uint32, v uint64) error {
	return m.WriteBytes(addr, binary.LittleEndian.AppendUint64(nil, v))
}

func (m *Machine) load(addr, size uint32) (uint64, error) {
	if err := m.checkRange(addr, size); err != nil {
		return 0, err
	}
	switch size {
	case 1:
		return uint64(m.mem[addr]), nil
	case 2:
		return uint64(binary.LittleEndian.Uint16(m.mem[addr:])), nil
	case 4:
		return uint64(binary.LittleEndian.Uint32(m.mem[addr:])), nil
	case 8:
		return binary.LittleEndian.Uint64(m.mem[addr:]), nil
	}
	panic(fmt.Sprintf("BUG: invalid access size %d", size))
}

func (m *Machine) store(by *Hart, addr, size uint32, v uint64) error {
	if err := m.checkRange(addr, size); err != nil {
		return err
	}
	switch size {
	case 1:
		m.mem[addr] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(m.mem[addr:], uint16(v))
	case 4:
		binary.LittleEndian.PutUint32(m.mem[addr:], uint32(v))
	case 8:
		binary.LittleEndian.PutUint64(m.mem[addr:], v)
	default:
		panic(fmt.Sprintf("BUG: invalid access size %d", size))
	}
	m.invalidate(by, addr, size)
	return nil
}

func (m *Machine) fetch(pc uint32) (*riscv32.NodeImpl, error) {
	if n, ok := m.decoded[pc]; ok {
		return n, nil
	}
	if pc < CodeBase || pc >= m.codeEnd || pc%4 != 0 {
		return nil, fmt.Errorf("%w: fetch at %#x", ErrOutOfBounds, pc)
	}
	n, err := riscv32.Decode(binary.LittleEndian.Uint32(m.mem[pc:]))
	if err != nil {
		return nil, fmt.Errorf("at %#x: %w", pc, err)
	}
	m.decoded[pc] = n
	return n, nil
}
