package baseline

import (
	"fmt"

	"github.com/tetratelabs/baseline32/internal/asm"
	"github.com/tetratelabs/baseline32/internal/asm/riscv32"
)

// Atomic accesses of 32 bits and less are sequentially consistent: loads and stores are plain
// accesses between fences, read-modify-writes are lr.w/sc.w loops with both aq and rl set.
// Byte and half-word read-modify-writes operate on the aligned word holding them. 64-bit
// loads and stores are fenced word pairs, 64-bit read-modify-writes bail out since RV32A has no
// double-word reservations.

func (c *Compiler) compileAtomicLoad(s *scope, o *OperationAtomicLoad) error {
	c.assembler.CompileFence(riscv32.FenceRW, riscv32.FenceRW)
	if err := c.compileLoad(s, &OperationLoad{Dst: o.Dst, Base: o.Base, Index: o.Index, Offset: o.Offset, Type: o.Type}); err != nil {
		return err
	}
	c.assembler.CompileFence(riscv32.FenceR, riscv32.FenceRW)
	return nil
}

func (c *Compiler) compileAtomicStore(s *scope, o *OperationAtomicStore) error {
	c.assembler.CompileFence(riscv32.FenceRW, riscv32.FenceW)
	if err := c.compileStore(s, &OperationStore{Base: o.Base, Index: o.Index, Offset: o.Offset, Src: o.Src, Type: o.Type}); err != nil {
		return err
	}
	c.assembler.CompileFence(riscv32.FenceRW, riscv32.FenceRW)
	return nil
}

func (c *Compiler) compileAtomicFence(_ *scope, _ *OperationAtomicFence) error {
	c.assembler.CompileFence(riscv32.FenceRW, riscv32.FenceRW)
	return nil
}

// atomicAddress computes the address into a GP scratch register, which the caller releases.
func (c *Compiler) atomicAddress(s *scope, base, index asm.Register, offset uint32) asm.Register {
	addr := s.acquireGP()
	c.mv(addr, base)
	if index != asm.NilRegister {
		c.rr(riscv32.ADD, addr, addr, index)
	}
	c.addImm(s, addr, addr, int64(offset))
	return addr
}

var atomicInstructions = map[AtomicOp]asm.Instruction{
	AtomicAdd: riscv32.ADD,
	AtomicSub: riscv32.SUB,
	AtomicAnd: riscv32.AND,
	AtomicOr:  riscv32.OR,
	AtomicXor: riscv32.XOR,
}

func (c *Compiler) compileAtomicRMW(s *scope, o *OperationAtomicRMW) error {
	if o.Type == StoreI64 {
		c.bailout(ReasonAtomics, "64-bit atomic "+o.Op.String())
		return nil
	}
	if o.Op == AtomicCompareExchange {
		panic("BUG: compare exchange has its own operation")
	}
	addr := c.atomicAddress(s, o.Base, o.Index, o.Offset)
	defer s.release(addr)

	v, r := o.Value.Low(), o.Result.Low()
	switch o.Type.Size() {
	case 4:
		// The loop reads the value after the result is written.
		v = c.distinctFromResult(s, o.Value, o.Result)
		defer c.releaseIfScratch(s, v, o.Value)
		tmp := s.acquireGP()
		retry := c.NewLabel()
		c.BindLabel(retry)
		c.assembler.CompileAtomic(riscv32.LRW, addr, asm.NilRegister, r, true, true)
		c.atomicApply(o.Op, tmp, r, v)
		c.assembler.CompileAtomic(riscv32.SCW, addr, tmp, tmp, true, true)
		c.branch(riscv32.BNE, tmp, zero, retry)
		s.release(tmp)
	case 1, 2:
		c.subWordRMW(s, o.Op, o.Type.Size(), addr, r, v)
	default:
		panic(fmt.Sprintf("BUG: atomic %s", o.Type))
	}
	if o.Result.IsPair() {
		c.li(o.Result.High(), 0)
	}
	return nil
}

// atomicApply computes the new memory value `old op v` into dst.
func (c *Compiler) atomicApply(op AtomicOp, dst, old, v asm.Register) {
	if op == AtomicExchange {
		c.mv(dst, v)
		return
	}
	c.rr(atomicInstructions[op], dst, old, v)
}

// subWordLane computes the bit position and the mask of the lane at addr within its aligned word,
// then aligns addr down.
func (c *Compiler) subWordLane(size int, addr, shift, mask asm.Register) {
	c.ri(riscv32.ANDI, shift, addr, 3)
	c.ri(riscv32.SLLI, shift, shift, 3)
	c.ri(riscv32.ANDI, addr, addr, -4)
	c.li(mask, int32(1)<<(8*size)-1)
	c.rr(riscv32.SLL, mask, mask, shift)
}

// extractSubWord shifts the lane of the word down and zero extends it.
func (c *Compiler) extractSubWord(size int, dst, shift asm.Register) {
	c.rr(riscv32.SRL, dst, dst, shift)
	if size == 1 {
		c.ri(riscv32.ANDI, dst, dst, 0xff)
	} else {
		c.ri(riscv32.SLLI, dst, dst, 16)
		c.ri(riscv32.SRLI, dst, dst, 16)
	}
}

// mergeSubWord sets dst to old with the lane bits taken from lane: old ^ ((lane ^ old) & mask).
func (c *Compiler) mergeSubWord(dst, old, lane, mask asm.Register) {
	c.rr(riscv32.XOR, dst, lane, old)
	c.rr(riscv32.AND, dst, dst, mask)
	c.rr(riscv32.XOR, dst, dst, old)
}

// subWordRMW reads v before the loop, so v may alias result.
func (c *Compiler) subWordRMW(s *scope, op AtomicOp, size int, addr, result, v asm.Register) {
	sh, m, sv := s.acquireGP(), s.acquireGP(), s.acquireGP()
	defer func() {
		s.release(sh)
		s.release(m)
		s.release(sv)
	}()

	c.subWordLane(size, addr, sh, m)
	c.rr(riscv32.SLL, sv, v, sh)
	tmp := s.acquireGP()
	retry := c.NewLabel()
	c.BindLabel(retry)
	c.assembler.CompileAtomic(riscv32.LRW, addr, asm.NilRegister, result, true, true)
	c.atomicApply(op, tmp, result, sv)
	c.mergeSubWord(tmp, result, tmp, m)
	c.assembler.CompileAtomic(riscv32.SCW, addr, tmp, tmp, true, true)
	c.branch(riscv32.BNE, tmp, zero, retry)
	s.release(tmp)
	c.extractSubWord(size, result, sh)
}

func (c *Compiler) compileAtomicCompareExchange(s *scope, o *OperationAtomicCompareExchange) error {
	if o.Type == StoreI64 {
		c.bailout(ReasonAtomics, "64-bit atomic compare exchange")
		return nil
	}
	addr := c.atomicAddress(s, o.Base, o.Index, o.Offset)
	defer s.release(addr)

	e, n, r := o.Expected.Low(), o.NewValue.Low(), o.Result.Low()
	retry, done := c.NewLabel(), c.NewLabel()
	switch size := o.Type.Size(); size {
	case 4:
		// The loop reads both operands after the result is written.
		e = c.distinctFromResult(s, o.Expected, o.Result)
		defer c.releaseIfScratch(s, e, o.Expected)
		n = c.distinctFromResult(s, o.NewValue, o.Result)
		defer c.releaseIfScratch(s, n, o.NewValue)
		tmp := s.acquireGP()
		c.BindLabel(retry)
		c.assembler.CompileAtomic(riscv32.LRW, addr, asm.NilRegister, r, true, true)
		c.branch(riscv32.BNE, r, e, done)
		c.assembler.CompileAtomic(riscv32.SCW, addr, n, tmp, true, true)
		c.branch(riscv32.BNE, tmp, zero, retry)
		c.BindLabel(done)
		s.release(tmp)
	case 1, 2:
		sh, m, se, sn := s.acquireGP(), s.acquireGP(), s.acquireGP(), s.acquireGP()
		c.subWordLane(size, addr, sh, m)
		// Only the low bits of the operands take part in the comparison and the store. Both are
		// read before the loop, so they may alias the result.
		c.rr(riscv32.SLL, se, e, sh)
		c.rr(riscv32.AND, se, se, m)
		c.rr(riscv32.SLL, sn, n, sh)
		tmp := s.acquireGP()
		c.BindLabel(retry)
		c.assembler.CompileAtomic(riscv32.LRW, addr, asm.NilRegister, r, true, true)
		c.rr(riscv32.AND, tmp, r, m)
		c.branch(riscv32.BNE, tmp, se, done)
		c.mergeSubWord(tmp, r, sn, m)
		c.assembler.CompileAtomic(riscv32.SCW, addr, tmp, tmp, true, true)
		c.branch(riscv32.BNE, tmp, zero, retry)
		c.BindLabel(done)
		c.extractSubWord(size, r, sh)
		for _, t := range [...]asm.Register{tmp, sh, m, se, sn} {
			s.release(t)
		}
	default:
		panic(fmt.Sprintf("BUG: atomic %s", o.Type))
	}
	if o.Result.IsPair() {
		c.li(o.Result.High(), 0)
	}
	return nil
}

// distinctFromResult returns the low register of value, copied to scratch when value aliases
// result.
func (c *Compiler) distinctFromResult(s *scope, value, result Reg) asm.Register {
	if !Alias(value, result) {
		return value.Low()
	}
	t := s.acquireGP()
	c.mv(t, value.Low())
	return t
}

// releaseIfScratch releases r when distinctFromResult copied value into it.
func (c *Compiler) releaseIfScratch(s *scope, r asm.Register, value Reg) {
	if r != value.Low() {
		s.release(r)
	}
}
