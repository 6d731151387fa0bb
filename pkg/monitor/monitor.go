// Package monitor renders interpreter state and program listings as text
// tables for the command line tool.
package monitor

import (
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"

	"gochip8/pkg/cpu"
)

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	return table
}

// DumpState writes the registers, timers and call stack of c.
func DumpState(w io.Writer, c *cpu.CPU) {
	regs := newTable(w, "Register", "Hex", "Dec")
	for i, v := range c.Regs.V {
		regs.Append([]string{fmt.Sprintf("V%X", i), fmt.Sprintf("0x%02X", v), fmt.Sprint(v)})
	}
	regs.Append([]string{"I", fmt.Sprintf("0x%03X", c.Regs.I), fmt.Sprint(c.Regs.I)})
	regs.Append([]string{"PC", fmt.Sprintf("0x%03X", c.Regs.PC), fmt.Sprint(c.Regs.PC)})
	regs.Append([]string{"DT", fmt.Sprintf("0x%02X", c.Timers.Delay()), fmt.Sprint(c.Timers.Delay())})
	regs.Append([]string{"ST", fmt.Sprintf("0x%02X", c.Timers.Sound()), fmt.Sprint(c.Timers.Sound())})
	regs.Append([]string{"SP", fmt.Sprintf("0x%X", c.Stack.Depth()), fmt.Sprint(c.Stack.Depth())})
	regs.Render()

	status := newTable(w, "Cycles", "Waiting", "Halted", "Keys down")
	status.Append([]string{
		fmt.Sprint(c.Cycles),
		fmt.Sprint(c.Waiting),
		fmt.Sprint(c.Halted),
		keysDown(c.Keys.State()),
	})
	status.Render()

	entries := c.Stack.Entries()
	if len(entries) == 0 {
		return
	}
	stack := newTable(w, "Depth", "Return")
	for i := len(entries) - 1; i >= 0; i-- {
		stack.Append([]string{fmt.Sprint(i), fmt.Sprintf("0x%03X", entries[i])})
	}
	stack.Render()
}

func keysDown(state [cpu.KeyCount]bool) string {
	var keys []string
	for k, down := range state {
		if down {
			keys = append(keys, fmt.Sprintf("%X", k))
		}
	}
	if len(keys) == 0 {
		return "-"
	}
	return strings.Join(keys, " ")
}

// Disassemble writes a listing of image as if loaded at base. labels maps
// addresses to names and may be nil. A trailing odd byte is listed as data.
func Disassemble(w io.Writer, image []byte, base uint16, labels map[uint16]string) {
	table := newTable(w, "Address", "Label", "Word", "Instruction")
	for off := 0; off < len(image); off += cpu.InstructionSize {
		addr := base + uint16(off)
		if off+1 >= len(image) {
			table.Append([]string{fmt.Sprintf("0x%03X", addr), labels[addr], fmt.Sprintf("%02X", image[off]), fmt.Sprintf(".BYTE 0x%02X", image[off])})
			break
		}
		word := uint16(image[off])<<8 | uint16(image[off+1])
		table.Append([]string{
			fmt.Sprintf("0x%03X", addr),
			labels[addr],
			fmt.Sprintf("%04X", word),
			cpu.Decode(word).String(),
		})
	}
	table.Render()
}

// InvertLabels turns an assembler label table into an address lookup.
// When several labels share an address the alphabetically first wins.
func InvertLabels(labels map[string]uint16) map[uint16]string {
	out := make(map[uint16]string, len(labels))
	for name, addr := range labels {
		if prev, ok := out[addr]; !ok || name < prev {
			out[addr] = name
		}
	}
	return out
}

// RenderDisplay draws the framebuffer with '#' for lit pixels.
func RenderDisplay(w io.Writer, g cpu.Grid) error {
	var sb strings.Builder
	for y := range g {
		for _, lit := range g[y] {
			if lit {
				sb.WriteByte('#')
			} else {
				sb.WriteByte('.')
			}
		}
		sb.WriteByte('\n')
	}
	_, err := io.WriteString(w, sb.String())
	return err
}
