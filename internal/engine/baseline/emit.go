package baseline

import (
	"fmt"

	"github.com/twitchyliquid64/golang-asm/obj/riscv"

	"github.com/tetratelabs/baseline32/internal/asm"
	"github.com/tetratelabs/baseline32/internal/asm/riscv32"
)

const zero = riscv32.RegZERO

func fitsImm12(v int64) bool {
	return v >= -2048 && v <= 2047
}

// li materializes the 32-bit constant with lui and addi.
func (c *Compiler) li(rd asm.Register, v int32) {
	lo, hi, err := riscv.Split32BitImmediate(int64(v))
	if err != nil {
		panic("BUG: " + err.Error())
	}
	if hi == 0 {
		c.addi(rd, zero, lo)
		return
	}
	c.assembler.CompileConstToRegister(riscv32.LUI, hi, rd)
	if lo != 0 {
		c.addi(rd, rd, lo)
	}
}

func (c *Compiler) addi(rd, rs asm.Register, imm int64) {
	c.assembler.CompileRegisterAndConstToRegister(riscv32.ADDI, rs, imm, rd)
}

func (c *Compiler) mv(rd, rs asm.Register) {
	if rd != rs {
		c.addi(rd, rs, 0)
	}
}

func (c *Compiler) rr(inst asm.Instruction, rd, rs1, rs2 asm.Register) {
	c.assembler.CompileTwoRegistersToRegister(inst, rs1, rs2, rd)
}

func (c *Compiler) ri(inst asm.Instruction, rd, rs1 asm.Register, imm int64) {
	c.assembler.CompileRegisterAndConstToRegister(inst, rs1, imm, rd)
}

// seqz sets rd to 1 if rs is zero.
func (c *Compiler) seqz(rd, rs asm.Register) {
	c.ri(riscv32.SLTIU, rd, rs, 1)
}

// snez sets rd to 1 if rs is not zero.
func (c *Compiler) snez(rd, rs asm.Register) {
	c.rr(riscv32.SLTU, rd, zero, rs)
}

// addImm adds a 32-bit immediate, going through a scratch register when it does not fit addi.
func (c *Compiler) addImm(s *scope, rd, rs asm.Register, imm int64) {
	if fitsImm12(imm) {
		c.addi(rd, rs, imm)
		return
	}
	tmp := s.acquireGP()
	c.li(tmp, int32(imm))
	c.rr(riscv32.ADD, rd, rs, tmp)
	s.release(tmp)
}

// address returns a base register and a 12-bit offset addressing base+offset. The returned
// scratch register, if not NilRegister, must be released by the caller.
func (c *Compiler) address(s *scope, base asm.Register, offset int64) (asm.Register, int64, asm.Register) {
	if fitsImm12(offset) {
		return base, offset, asm.NilRegister
	}
	tmp := s.acquireGP()
	c.li(tmp, int32(offset))
	c.rr(riscv32.ADD, tmp, base, tmp)
	return tmp, 0, tmp
}

// load emits a scalar load of base+offset for any offset.
func (c *Compiler) load(s *scope, inst asm.Instruction, rd, base asm.Register, offset int64) {
	b, off, tmp := c.address(s, base, offset)
	c.assembler.CompileMemoryToRegister(inst, b, off, rd)
	if tmp != asm.NilRegister {
		s.release(tmp)
	}
}

// store emits a scalar store to base+offset for any offset.
func (c *Compiler) store(s *scope, inst asm.Instruction, src, base asm.Register, offset int64) {
	b, off, tmp := c.address(s, base, offset)
	c.assembler.CompileRegisterToMemory(inst, src, b, off)
	if tmp != asm.NilRegister {
		s.release(tmp)
	}
}

// vectorAddress returns a register holding base+offset, acquiring a scratch register when the
// offset is not zero. The scratch register, if any, is returned second.
func (c *Compiler) vectorAddress(s *scope, base asm.Register, offset int64) (asm.Register, asm.Register) {
	if offset == 0 {
		return base, asm.NilRegister
	}
	tmp := s.acquireGP()
	if fitsImm12(offset) {
		c.addi(tmp, base, offset)
	} else {
		c.li(tmp, int32(offset))
		c.rr(riscv32.ADD, tmp, base, tmp)
	}
	return tmp, tmp
}

// loadVector loads the 16 bytes at base+offset.
func (c *Compiler) loadVector(s *scope, vd, base asm.Register, offset int64) {
	c.vsetivli(riscv32.E8, riscv32.M1)
	addr, tmp := c.vectorAddress(s, base, offset)
	c.assembler.CompileMemoryToRegister(riscv32.VLE8V, addr, 0, vd)
	if tmp != asm.NilRegister {
		s.release(tmp)
	}
}

// storeVector stores the 16 bytes of vs to base+offset.
func (c *Compiler) storeVector(s *scope, vs, base asm.Register, offset int64) {
	c.vsetivli(riscv32.E8, riscv32.M1)
	addr, tmp := c.vectorAddress(s, base, offset)
	c.assembler.CompileRegisterToMemory(riscv32.VSE8V, vs, addr, 0)
	if tmp != asm.NilRegister {
		s.release(tmp)
	}
}

// vsetivli configures the vector unit for a full register group of the element width.
func (c *Compiler) vsetivli(sew riscv32.SEW, lmul riscv32.LMUL) {
	c.assembler.CompileVectorConfig(riscv32.VLMax(sew, lmul), sew, lmul)
}

// adjustSP adds delta to sp.
func (c *Compiler) adjustSP(s *scope, delta int64) {
	if delta == 0 {
		return
	}
	c.addImm(s, riscv32.RegSP, riscv32.RegSP, delta)
}

// push stores the words of the registers below sp, the first register at the highest address.
func (c *Compiler) push(regs ...asm.Register) {
	c.addi(riscv32.RegSP, riscv32.RegSP, -int64(4*len(regs)))
	for i, r := range regs {
		c.assembler.CompileRegisterToMemory(riscv32.SW, r, riscv32.RegSP, int64(4*(len(regs)-1-i)))
	}
}

// pop reverses push of the same registers.
func (c *Compiler) pop(regs ...asm.Register) {
	for i, r := range regs {
		c.assembler.CompileMemoryToRegister(riscv32.LW, riscv32.RegSP, int64(4*(len(regs)-1-i)), r)
	}
	c.addi(riscv32.RegSP, riscv32.RegSP, int64(4*len(regs)))
}

var invertedBranch = map[asm.Instruction]asm.Instruction{
	riscv32.BEQ:  riscv32.BNE,
	riscv32.BNE:  riscv32.BEQ,
	riscv32.BLT:  riscv32.BGE,
	riscv32.BGE:  riscv32.BLT,
	riscv32.BLTU: riscv32.BGEU,
	riscv32.BGEU: riscv32.BLTU,
}

// branch emits a conditional branch to a label within the 4KiB range of branches.
func (c *Compiler) branch(inst asm.Instruction, rs1, rs2 asm.Register, l *riscv32.Label) {
	n := c.assembler.CompileConditionalBranch(inst, rs1, rs2)
	c.assembler.JumpToLabel(n, l)
}

// branchFar emits a conditional branch which reaches any label of the function, as an inverted
// branch over a jal.
func (c *Compiler) branchFar(inst asm.Instruction, rs1, rs2 asm.Register, l *riscv32.Label) {
	inverted, ok := invertedBranch[inst]
	if !ok {
		panic(fmt.Sprintf("BUG: %s is not a conditional branch", riscv32.InstructionName(inst)))
	}
	skip := c.assembler.CompileConditionalBranch(inverted, rs1, rs2)
	c.jump(l)
	c.assembler.SetJumpTargetOnNext(skip)
}

// jump emits an unconditional jump to the label.
func (c *Compiler) jump(l *riscv32.Label) {
	n := c.assembler.CompileJump(riscv32.JAL)
	c.assembler.JumpToLabel(n, l)
}

// move copies a register of any class into another of the same class.
func (c *Compiler) move(dst, src Reg) {
	if dst == src {
		return
	}
	if dst.Class() != src.Class() {
		panic(fmt.Sprintf("BUG: moving %s into %s", src, dst))
	}
	switch dst.Class() {
	case RegClassGP:
		c.mv(dst.Low(), src.Low())
	case RegClassGPPair:
		c.movePair(dst.Low(), dst.High(), src.Low(), src.High())
	case RegClassFP:
		c.rr(riscv32.FSGNJD, dst.Low(), src.Low(), src.Low())
	case RegClassVec:
		c.vsetivli(riscv32.E8, riscv32.M1)
		c.assembler.CompileVectorMove(riscv32.VMVVV, src.Low(), dst.Low())
	}
}

// movePair moves a pair into another one which may overlap it.
func (c *Compiler) movePair(dstLow, dstHigh, srcLow, srcHigh asm.Register) {
	switch {
	case dstLow == srcHigh && dstHigh == srcLow:
		c.rr(riscv32.XOR, dstLow, dstLow, dstHigh)
		c.rr(riscv32.XOR, dstHigh, dstLow, dstHigh)
		c.rr(riscv32.XOR, dstLow, dstLow, dstHigh)
	case dstLow == srcHigh:
		c.mv(dstHigh, srcHigh)
		c.mv(dstLow, srcLow)
	default:
		c.mv(dstLow, srcLow)
		c.mv(dstHigh, srcHigh)
	}
}

// farCall emits `auipc scratch, 0; jalr link, 0(scratch)` to be patched by Function.Link. The
// relocation takes the offset of the auipc once the function is assembled.
func (c *Compiler) farCall(kind RelocationKind, target uint32, scratch, link asm.Register) {
	hi := c.assembler.CompileFarJump(scratch, link)
	i := len(c.relocations)
	c.relocations = append(c.relocations, Relocation{Kind: kind, Target: target})
	c.assembler.AddOnGenerateCallBack(func(code []byte) error {
		offset := uint32(hi.OffsetInBinary())
		if offset+8 > uint32(len(code)) {
			return fmt.Errorf("%s: call site at %#x is past the end of the code", c.relocations[i], offset)
		}
		c.relocations[i].Offset = offset
		return nil
	})
}

func (c *Compiler) callRuntimeStub(stub RuntimeStub) {
	c.farCall(RelocRuntimeStub, uint32(stub), riscv32.RegRA, riscv32.RegRA)
}

func (c *Compiler) callExternal(ref ExternalReference) {
	c.farCall(RelocExternalReference, uint32(ref), riscv32.RegRA, riscv32.RegRA)
}
