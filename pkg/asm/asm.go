// Package asm assembles CHIP-8 source in Cowgod mnemonic syntax into a
// program image that loads at cpu.ProgramStart.
package asm

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/juju/errors"

	"gochip8/pkg/cpu"
)

// Origin is the address of the first emitted byte.
const Origin = cpu.ProgramStart

// mnemonics lists every instruction the assembler accepts. Every
// instruction is cpu.InstructionSize bytes long.
var mnemonics = map[string]bool{
	"CLS": true, "RET": true, "JP": true, "CALL": true,
	"SE": true, "SNE": true, "LD": true, "ADD": true,
	"OR": true, "AND": true, "XOR": true, "SUB": true,
	"SHR": true, "SUBN": true, "SHL": true, "RND": true,
	"DRW": true, "SKP": true, "SKNP": true,
}

// registerPairOps take exactly "Vx, Vy".
var registerPairOps = map[string]cpu.Op{
	"OR":   cpu.OpOR,
	"AND":  cpu.OpAND,
	"XOR":  cpu.OpXOR,
	"SUB":  cpu.OpSUB,
	"SUBN": cpu.OpSUBN,
}

// Assembler turns source text into a program image.
type Assembler struct {
	labels map[string]uint16
}

type parsedLine struct {
	lineNo   int
	labels   []string
	mnemonic string
	operands []string
}

func NewAssembler() *Assembler {
	return &Assembler{
		labels: make(map[string]uint16),
	}
}

// Assemble returns the program image and a map from absolute address to
// the 1-based source line that produced it.
func Assemble(code string) ([]byte, map[uint16]int, error) {
	return NewAssembler().Assemble(code)
}

func (a *Assembler) Assemble(code string) ([]byte, map[uint16]int, error) {
	lines := strings.Split(code, "\n")

	if err := a.pass1(lines); err != nil {
		return nil, nil, err
	}

	return a.pass2(lines)
}

// Labels returns the resolved label addresses, keyed by upper-cased name.
func (a *Assembler) Labels() map[string]uint16 {
	out := make(map[string]uint16, len(a.labels))
	for k, v := range a.labels {
		out[k] = v
	}
	return out
}

func (a *Assembler) pass1(lines []string) error {
	address := uint32(Origin)

	for i, raw := range lines {
		lineNo := i + 1
		p, err := parseLine(raw, lineNo)
		if err != nil {
			return err
		}

		for _, lbl := range p.labels {
			if address >= cpu.MemorySize {
				return errors.Errorf("label '%s' on line %d points past addressable memory", lbl, lineNo)
			}
			key := normalizeLabel(lbl)
			if _, exists := a.labels[key]; exists {
				return errors.Errorf("duplicate label '%s' on line %d", lbl, lineNo)
			}
			if isReserved(key) {
				return errors.Errorf("label '%s' on line %d shadows a register name", lbl, lineNo)
			}
			a.labels[key] = uint16(address)
		}

		if p.mnemonic == "" {
			continue
		}

		var length uint32
		switch p.mnemonic {
		case ".ORG":
			target, err := parseOrigin(p.operands, lineNo)
			if err != nil {
				return err
			}
			if target < address {
				return errors.Errorf("cannot move origin backward on line %d", lineNo)
			}
			address = target
			continue
		case ".BYTE":
			if len(p.operands) == 0 {
				return errors.Errorf(".BYTE expects at least one operand on line %d", lineNo)
			}
			length = uint32(len(p.operands))
		case ".WORD":
			if len(p.operands) != 1 {
				return errors.Errorf(".WORD expects exactly one operand on line %d", lineNo)
			}
			length = 2
		default:
			if !mnemonics[p.mnemonic] {
				return errors.Errorf("unknown instruction on line %d: %s", lineNo, p.mnemonic)
			}
			length = cpu.InstructionSize
		}

		if address+length > cpu.MemorySize {
			return errors.Annotatef(cpu.ErrProgramTooLarge, "near line %d", lineNo)
		}
		address += length
	}

	return nil
}

func (a *Assembler) pass2(lines []string) ([]byte, map[uint16]int, error) {
	program := make([]byte, 0)
	sourceMap := make(map[uint16]int)

	for i, raw := range lines {
		lineNo := i + 1
		p, err := parseLine(raw, lineNo)
		if err != nil {
			return nil, nil, err
		}

		if p.mnemonic == "" {
			continue
		}

		ops := p.operands

		if p.mnemonic == ".ORG" {
			target, err := parseOrigin(ops, lineNo)
			if err != nil {
				return nil, nil, err
			}
			padding := int(target) - Origin - len(program)
			if padding > 0 {
				program = append(program, make([]byte, padding)...)
			}
			continue
		}

		sourceMap[uint16(Origin+len(program))] = lineNo

		switch p.mnemonic {
		case ".BYTE":
			for _, op := range ops {
				v, err := a.parseImmediate(op, 0xFF, lineNo)
				if err != nil {
					return nil, nil, err
				}
				program = append(program, byte(v))
			}
			continue
		case ".WORD":
			v, err := a.parseImmediate(ops[0], 0xFFFF, lineNo)
			if err != nil {
				return nil, nil, err
			}
			program = append(program, byte(v>>8), byte(v))
			continue
		}

		word, err := a.encode(p.mnemonic, ops, lineNo)
		if err != nil {
			return nil, nil, err
		}
		program = append(program, byte(word>>8), byte(word))
	}

	return program, sourceMap, nil
}

// encode resolves one instruction line to its machine word. The operand
// shape picks the instruction kind when a mnemonic has several forms.
func (a *Assembler) encode(mnemonic string, ops []string, lineNo int) (uint16, error) {
	var (
		op        cpu.Op
		x, y, n   uint8
		nn        uint8
		nnn       uint16
		wantCount = -1
	)

	reg := func(i int) (uint8, error) { return parseRegister(ops[i], lineNo) }
	imm := func(i int, limit uint16) (uint16, error) { return a.parseImmediate(ops[i], limit, lineNo) }
	isReg := func(i int) bool { return i < len(ops) && isRegister(ops[i]) }
	is := func(i int, name string) bool { return i < len(ops) && strings.EqualFold(ops[i], name) }

	var err error
	switch mnemonic {
	case "CLS":
		op, wantCount = cpu.OpCLS, 0
	case "RET":
		op, wantCount = cpu.OpRET, 0

	case "JP":
		if is(0, "V0") && len(ops) == 2 {
			op, wantCount = cpu.OpJPV0, 2
			nnn, err = imm(1, 0xFFF)
		} else {
			op, wantCount = cpu.OpJP, 1
			if len(ops) == 1 {
				nnn, err = imm(0, 0xFFF)
			}
		}

	case "CALL":
		op, wantCount = cpu.OpCALL, 1
		if len(ops) == 1 {
			nnn, err = imm(0, 0xFFF)
		}

	case "SE", "SNE":
		wantCount = 2
		if len(ops) != 2 {
			break
		}
		if x, err = reg(0); err != nil {
			break
		}
		if isReg(1) {
			op = map[string]cpu.Op{"SE": cpu.OpSEReg, "SNE": cpu.OpSNEReg}[mnemonic]
			y, err = reg(1)
		} else {
			op = map[string]cpu.Op{"SE": cpu.OpSEImm, "SNE": cpu.OpSNEImm}[mnemonic]
			var v uint16
			v, err = imm(1, 0xFF)
			nn = uint8(v)
		}

	case "LD":
		wantCount = 2
		if len(ops) != 2 {
			break
		}
		op, x, y, nn, nnn, err = a.encodeLoad(ops, lineNo)

	case "ADD":
		wantCount = 2
		if len(ops) != 2 {
			break
		}
		switch {
		case is(0, "I"):
			op = cpu.OpADDIVx
			x, err = reg(1)
		case isReg(1):
			op = cpu.OpADDReg
			if x, err = reg(0); err == nil {
				y, err = reg(1)
			}
		default:
			op = cpu.OpADDImm
			if x, err = reg(0); err == nil {
				var v uint16
				v, err = imm(1, 0xFF)
				nn = uint8(v)
			}
		}

	case "OR", "AND", "XOR", "SUB", "SUBN":
		op, wantCount = registerPairOps[mnemonic], 2
		if len(ops) == 2 {
			if x, err = reg(0); err == nil {
				y, err = reg(1)
			}
		}

	case "SHR", "SHL":
		// The source register is optional; it only matters under the
		// ShiftUsesVY quirk.
		op = map[string]cpu.Op{"SHR": cpu.OpSHR, "SHL": cpu.OpSHL}[mnemonic]
		if len(ops) == 1 || len(ops) == 2 {
			wantCount = len(ops)
			if x, err = reg(0); err == nil {
				y = x
				if len(ops) == 2 {
					y, err = reg(1)
				}
			}
		} else {
			wantCount = 2
		}

	case "RND":
		op, wantCount = cpu.OpRND, 2
		if len(ops) == 2 {
			if x, err = reg(0); err == nil {
				var v uint16
				v, err = imm(1, 0xFF)
				nn = uint8(v)
			}
		}

	case "DRW":
		op, wantCount = cpu.OpDRW, 3
		if len(ops) == 3 {
			if x, err = reg(0); err == nil {
				if y, err = reg(1); err == nil {
					var v uint16
					v, err = imm(2, 0xF)
					n = uint8(v)
				}
			}
		}

	case "SKP", "SKNP":
		op = map[string]cpu.Op{"SKP": cpu.OpSKP, "SKNP": cpu.OpSKNP}[mnemonic]
		wantCount = 1
		if len(ops) == 1 {
			x, err = reg(0)
		}

	default:
		return 0, errors.Errorf("unknown instruction on line %d: %s", lineNo, mnemonic)
	}

	if wantCount >= 0 && len(ops) != wantCount {
		return 0, errors.Errorf("%s expects %d operands on line %d", mnemonic, wantCount, lineNo)
	}
	if err != nil {
		return 0, err
	}
	word, err := cpu.Encode(op, x, y, n, nn, nnn)
	if err != nil {
		return 0, errors.Annotatef(err, "line %d", lineNo)
	}
	return word, nil
}

// encodeLoad handles the many forms of LD.
func (a *Assembler) encodeLoad(ops []string, lineNo int) (op cpu.Op, x, y, nn uint8, nnn uint16, err error) {
	dst, src := strings.ToUpper(ops[0]), strings.ToUpper(ops[1])
	switch {
	case dst == "I":
		op = cpu.OpLDI
		nnn, err = a.parseImmediate(ops[1], 0xFFF, lineNo)
	case dst == "DT":
		op = cpu.OpLDDTVx
		x, err = parseRegister(ops[1], lineNo)
	case dst == "ST":
		op = cpu.OpLDSTVx
		x, err = parseRegister(ops[1], lineNo)
	case dst == "F":
		op = cpu.OpLDFVx
		x, err = parseRegister(ops[1], lineNo)
	case dst == "B":
		op = cpu.OpLDBVx
		x, err = parseRegister(ops[1], lineNo)
	case dst == "[I]":
		op = cpu.OpLDIVx
		x, err = parseRegister(ops[1], lineNo)
	default:
		if x, err = parseRegister(ops[0], lineNo); err != nil {
			return
		}
		switch {
		case src == "DT":
			op = cpu.OpLDVxDT
		case src == "K":
			op = cpu.OpLDVxK
		case src == "[I]":
			op = cpu.OpLDVxI
		case isRegister(src):
			op = cpu.OpLDReg
			y, err = parseRegister(src, lineNo)
		default:
			op = cpu.OpLDImm
			var v uint16
			v, err = a.parseImmediate(ops[1], 0xFF, lineNo)
			nn = uint8(v)
		}
	}
	return
}

func parseLine(raw string, lineNo int) (parsedLine, error) {
	p := parsedLine{lineNo: lineNo}

	line := strings.TrimSpace(stripComments(raw))
	if line == "" {
		return p, nil
	}

	for {
		colon := strings.IndexByte(line, ':')
		if colon <= 0 {
			break
		}

		beforeColon := strings.TrimSpace(line[:colon])
		if strings.ContainsAny(beforeColon, " \t") {
			break
		}

		if !isIdentifier(beforeColon) {
			return p, errors.Errorf("invalid label '%s' on line %d", beforeColon, lineNo)
		}

		p.labels = append(p.labels, beforeColon)
		line = strings.TrimSpace(line[colon+1:])
		if line == "" {
			return p, nil
		}
	}
	if strings.HasPrefix(line, ":") {
		return p, errors.Errorf("invalid label on line %d", lineNo)
	}

	fields := strings.Fields(normalizeInstructionText(line))
	if len(fields) == 0 {
		return p, nil
	}

	p.mnemonic = strings.ToUpper(fields[0])
	if len(fields) > 1 {
		p.operands = fields[1:]
	}

	return p, nil
}

func stripComments(line string) string {
	semicolon := strings.Index(line, ";")
	doubleSlash := strings.Index(line, "//")

	cut := -1
	if semicolon >= 0 {
		cut = semicolon
	}
	if doubleSlash >= 0 && (cut == -1 || doubleSlash < cut) {
		cut = doubleSlash
	}
	if cut >= 0 {
		return line[:cut]
	}
	return line
}

func normalizeInstructionText(line string) string {
	return strings.ReplaceAll(line, ",", " ")
}

func parseOrigin(ops []string, lineNo int) (uint32, error) {
	if len(ops) != 1 {
		return 0, errors.Errorf(".ORG expects exactly one operand on line %d", lineNo)
	}
	target, err := strconv.ParseUint(ops[0], 0, 32)
	if err != nil {
		return 0, errors.Errorf("invalid .ORG value on line %d: %s", lineNo, ops[0])
	}
	if target < Origin || target >= cpu.MemorySize {
		return 0, errors.Errorf(".ORG out of range on line %d: %s", lineNo, ops[0])
	}
	return uint32(target), nil
}

func isRegister(token string) bool {
	_, ok := registerIndex(token)
	return ok
}

func registerIndex(token string) (uint8, bool) {
	if len(token) != 2 || (token[0] != 'V' && token[0] != 'v') {
		return 0, false
	}
	v, err := strconv.ParseUint(token[1:], 16, 8)
	if err != nil {
		return 0, false
	}
	return uint8(v), true
}

func parseRegister(token string, lineNo int) (uint8, error) {
	if x, ok := registerIndex(token); ok {
		return x, nil
	}
	return 0, errors.Errorf("invalid register '%s' on line %d", token, lineNo)
}

func (a *Assembler) parseImmediate(token string, limit uint16, lineNo int) (uint16, error) {
	if value, err := strconv.ParseUint(token, 0, 32); err == nil {
		if value > uint64(limit) {
			return 0, errors.Errorf("immediate out of range on line %d: %s", lineNo, token)
		}
		return uint16(value), nil
	}

	label := normalizeLabel(token)
	if addr, ok := a.labels[label]; ok {
		if addr > limit {
			return 0, errors.Errorf("label '%s' does not fit operand on line %d", token, lineNo)
		}
		return addr, nil
	}

	if isIdentifier(token) {
		return 0, errors.Errorf("undefined label '%s' on line %d", token, lineNo)
	}

	return 0, errors.Errorf("invalid immediate '%s' on line %d", token, lineNo)
}

// isReserved reports names that operands would read as something other
// than a label.
func isReserved(name string) bool {
	if isRegister(name) {
		return true
	}
	switch name {
	case "I", "DT", "ST", "K", "F", "B":
		return true
	}
	return false
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}

	for i, r := range s {
		if i == 0 {
			if !unicode.IsLetter(r) && r != '_' {
				return false
			}
			continue
		}

		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return false
		}
	}

	return true
}

func normalizeLabel(label string) string {
	return strings.ToUpper(label)
}
