package cpu

import (
	"fmt"

	"github.com/juju/errors"
)

// InstructionSize is the width of every instruction in bytes.
const InstructionSize = 2

// Op identifies a decoded instruction kind.
type Op uint8

const (
	OpInvalid Op = iota
	OpCLS        // 00E0
	OpRET        // 00EE
	OpJP         // 1NNN
	OpCALL       // 2NNN
	OpSEImm      // 3XNN
	OpSNEImm     // 4XNN
	OpSEReg      // 5XY0
	OpLDImm      // 6XNN
	OpADDImm     // 7XNN
	OpLDReg      // 8XY0
	OpOR         // 8XY1
	OpAND        // 8XY2
	OpXOR        // 8XY3
	OpADDReg     // 8XY4
	OpSUB        // 8XY5
	OpSHR        // 8XY6
	OpSUBN       // 8XY7
	OpSHL        // 8XYE
	OpSNEReg     // 9XY0
	OpLDI        // ANNN
	OpJPV0       // BNNN
	OpRND        // CXNN
	OpDRW        // DXYN
	OpSKP        // EX9E
	OpSKNP       // EXA1
	OpLDVxDT     // FX07
	OpLDVxK      // FX0A
	OpLDDTVx     // FX15
	OpLDSTVx     // FX18
	OpADDIVx     // FX1E
	OpLDFVx      // FX29
	OpLDBVx      // FX33
	OpLDIVx      // FX55
	OpLDVxI      // FX65

	opCount
)

// Instruction is a decoded instruction word with its operand fields.
// Fields that the kind does not use are zero.
type Instruction struct {
	Op   Op
	Word uint16
	X    uint8  // second nibble, register index
	Y    uint8  // third nibble, register index
	N    uint8  // low nibble
	NN   uint8  // low byte
	NNN  uint16 // low 12 bits, address
}

// Decode splits a word into its fields and selects the instruction kind:
// first by the opcode family nibble, then by the exact sub-selector.
// Words that match nothing decode to OpInvalid.
func Decode(word uint16) Instruction {
	ins := Instruction{
		Word: word,
		X:    uint8(word>>8) & 0x0F,
		Y:    uint8(word>>4) & 0x0F,
		N:    uint8(word) & 0x0F,
		NN:   uint8(word),
		NNN:  word & 0x0FFF,
	}
	ins.Op = decodeOp(word, ins.N, ins.NN)
	return ins
}

func decodeOp(word uint16, n, nn uint8) Op {
	switch word >> 12 {
	case 0x0:
		switch word {
		case 0x00E0:
			return OpCLS
		case 0x00EE:
			return OpRET
		}
	case 0x1:
		return OpJP
	case 0x2:
		return OpCALL
	case 0x3:
		return OpSEImm
	case 0x4:
		return OpSNEImm
	case 0x5:
		if n == 0x0 {
			return OpSEReg
		}
	case 0x6:
		return OpLDImm
	case 0x7:
		return OpADDImm
	case 0x8:
		switch n {
		case 0x0:
			return OpLDReg
		case 0x1:
			return OpOR
		case 0x2:
			return OpAND
		case 0x3:
			return OpXOR
		case 0x4:
			return OpADDReg
		case 0x5:
			return OpSUB
		case 0x6:
			return OpSHR
		case 0x7:
			return OpSUBN
		case 0xE:
			return OpSHL
		}
	case 0x9:
		if n == 0x0 {
			return OpSNEReg
		}
	case 0xA:
		return OpLDI
	case 0xB:
		return OpJPV0
	case 0xC:
		return OpRND
	case 0xD:
		return OpDRW
	case 0xE:
		switch nn {
		case 0x9E:
			return OpSKP
		case 0xA1:
			return OpSKNP
		}
	case 0xF:
		switch nn {
		case 0x07:
			return OpLDVxDT
		case 0x0A:
			return OpLDVxK
		case 0x15:
			return OpLDDTVx
		case 0x18:
			return OpLDSTVx
		case 0x1E:
			return OpADDIVx
		case 0x29:
			return OpLDFVx
		case 0x33:
			return OpLDBVx
		case 0x55:
			return OpLDIVx
		case 0x65:
			return OpLDVxI
		}
	}
	return OpInvalid
}

// Encode builds the instruction word for op from its operand fields.
// It is the inverse of Decode for every valid kind.
func Encode(op Op, x, y, n uint8, nn uint8, nnn uint16) (uint16, error) {
	x16, y16, n16, nn16, addr := uint16(x&0x0F), uint16(y&0x0F), uint16(n&0x0F), uint16(nn), nnn&0x0FFF
	xy := func(family, sel uint16) uint16 { return family<<12 | x16<<8 | y16<<4 | sel }
	xnn := func(family uint16) uint16 { return family<<12 | x16<<8 | nn16 }
	fx := func(family, sel uint16) uint16 { return family<<12 | x16<<8 | sel }

	switch op {
	case OpCLS:
		return 0x00E0, nil
	case OpRET:
		return 0x00EE, nil
	case OpJP:
		return 0x1000 | addr, nil
	case OpCALL:
		return 0x2000 | addr, nil
	case OpSEImm:
		return xnn(0x3), nil
	case OpSNEImm:
		return xnn(0x4), nil
	case OpSEReg:
		return xy(0x5, 0x0), nil
	case OpLDImm:
		return xnn(0x6), nil
	case OpADDImm:
		return xnn(0x7), nil
	case OpLDReg:
		return xy(0x8, 0x0), nil
	case OpOR:
		return xy(0x8, 0x1), nil
	case OpAND:
		return xy(0x8, 0x2), nil
	case OpXOR:
		return xy(0x8, 0x3), nil
	case OpADDReg:
		return xy(0x8, 0x4), nil
	case OpSUB:
		return xy(0x8, 0x5), nil
	case OpSHR:
		return xy(0x8, 0x6), nil
	case OpSUBN:
		return xy(0x8, 0x7), nil
	case OpSHL:
		return xy(0x8, 0xE), nil
	case OpSNEReg:
		return xy(0x9, 0x0), nil
	case OpLDI:
		return 0xA000 | addr, nil
	case OpJPV0:
		return 0xB000 | addr, nil
	case OpRND:
		return xnn(0xC), nil
	case OpDRW:
		return xy(0xD, n16), nil
	case OpSKP:
		return fx(0xE, 0x9E), nil
	case OpSKNP:
		return fx(0xE, 0xA1), nil
	case OpLDVxDT:
		return fx(0xF, 0x07), nil
	case OpLDVxK:
		return fx(0xF, 0x0A), nil
	case OpLDDTVx:
		return fx(0xF, 0x15), nil
	case OpLDSTVx:
		return fx(0xF, 0x18), nil
	case OpADDIVx:
		return fx(0xF, 0x1E), nil
	case OpLDFVx:
		return fx(0xF, 0x29), nil
	case OpLDBVx:
		return fx(0xF, 0x33), nil
	case OpLDIVx:
		return fx(0xF, 0x55), nil
	case OpLDVxI:
		return fx(0xF, 0x65), nil
	}
	return 0, errors.Errorf("cannot encode op %d", op)
}

// String renders the instruction in Cowgod mnemonic syntax.
func (i Instruction) String() string {
	switch i.Op {
	case OpCLS:
		return "CLS"
	case OpRET:
		return "RET"
	case OpJP:
		return fmt.Sprintf("JP 0x%03X", i.NNN)
	case OpCALL:
		return fmt.Sprintf("CALL 0x%03X", i.NNN)
	case OpSEImm:
		return fmt.Sprintf("SE V%X, 0x%02X", i.X, i.NN)
	case OpSNEImm:
		return fmt.Sprintf("SNE V%X, 0x%02X", i.X, i.NN)
	case OpSEReg:
		return fmt.Sprintf("SE V%X, V%X", i.X, i.Y)
	case OpLDImm:
		return fmt.Sprintf("LD V%X, 0x%02X", i.X, i.NN)
	case OpADDImm:
		return fmt.Sprintf("ADD V%X, 0x%02X", i.X, i.NN)
	case OpLDReg:
		return fmt.Sprintf("LD V%X, V%X", i.X, i.Y)
	case OpOR:
		return fmt.Sprintf("OR V%X, V%X", i.X, i.Y)
	case OpAND:
		return fmt.Sprintf("AND V%X, V%X", i.X, i.Y)
	case OpXOR:
		return fmt.Sprintf("XOR V%X, V%X", i.X, i.Y)
	case OpADDReg:
		return fmt.Sprintf("ADD V%X, V%X", i.X, i.Y)
	case OpSUB:
		return fmt.Sprintf("SUB V%X, V%X", i.X, i.Y)
	case OpSHR:
		return fmt.Sprintf("SHR V%X, V%X", i.X, i.Y)
	case OpSUBN:
		return fmt.Sprintf("SUBN V%X, V%X", i.X, i.Y)
	case OpSHL:
		return fmt.Sprintf("SHL V%X, V%X", i.X, i.Y)
	case OpSNEReg:
		return fmt.Sprintf("SNE V%X, V%X", i.X, i.Y)
	case OpLDI:
		return fmt.Sprintf("LD I, 0x%03X", i.NNN)
	case OpJPV0:
		return fmt.Sprintf("JP V0, 0x%03X", i.NNN)
	case OpRND:
		return fmt.Sprintf("RND V%X, 0x%02X", i.X, i.NN)
	case OpDRW:
		return fmt.Sprintf("DRW V%X, V%X, %d", i.X, i.Y, i.N)
	case OpSKP:
		return fmt.Sprintf("SKP V%X", i.X)
	case OpSKNP:
		return fmt.Sprintf("SKNP V%X", i.X)
	case OpLDVxDT:
		return fmt.Sprintf("LD V%X, DT", i.X)
	case OpLDVxK:
		return fmt.Sprintf("LD V%X, K", i.X)
	case OpLDDTVx:
		return fmt.Sprintf("LD DT, V%X", i.X)
	case OpLDSTVx:
		return fmt.Sprintf("LD ST, V%X", i.X)
	case OpADDIVx:
		return fmt.Sprintf("ADD I, V%X", i.X)
	case OpLDFVx:
		return fmt.Sprintf("LD F, V%X", i.X)
	case OpLDBVx:
		return fmt.Sprintf("LD B, V%X", i.X)
	case OpLDIVx:
		return fmt.Sprintf("LD [I], V%X", i.X)
	case OpLDVxI:
		return fmt.Sprintf("LD V%X, [I]", i.X)
	}
	return fmt.Sprintf(".WORD 0x%04X", i.Word)
}
