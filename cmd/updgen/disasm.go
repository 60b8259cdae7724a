package main

import (
	"debug/elf"
	"fmt"
	"os"

	"golang.org/x/arch/arm64/arm64asm"
	"golang.org/x/arch/x86/x86asm"
)

// disassembler prints the entry instructions of an export so a coverage
// report can show what the real library does there (jump thunk, plain
// prologue, interception-hostile tail call).
type disassembler struct {
	machine elf.Machine
	data    []byte
	segs    []*elf.Prog
}

func newDisassembler(path string) (*disassembler, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	switch f.Machine {
	case elf.EM_X86_64, elf.EM_AARCH64:
	default:
		return nil, fmt.Errorf("disassembly not supported for %s", f.Machine)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	d := &disassembler{machine: f.Machine, data: data}
	for _, p := range f.Progs {
		if p.Type == elf.PT_LOAD {
			d.segs = append(d.segs, p)
		}
	}
	return d, nil
}

// offset maps a virtual address to a file offset through the PT_LOAD
// segment that contains it.
func (d *disassembler) offset(vaddr uint64) (uint64, bool) {
	for _, p := range d.segs {
		if vaddr >= p.Vaddr && vaddr < p.Vaddr+p.Filesz {
			return p.Off + (vaddr - p.Vaddr), true
		}
	}
	return 0, false
}

// first decodes up to n instructions starting at vaddr.
func (d *disassembler) first(vaddr uint64, n int) []string {
	off, ok := d.offset(vaddr)
	if !ok || off >= uint64(len(d.data)) {
		return []string{"(not in a loadable segment)"}
	}
	code := d.data[off:]

	var lines []string
	pc := vaddr
	for i := 0; i < n && len(code) > 0; i++ {
		var text string
		var size int
		switch d.machine {
		case elf.EM_X86_64:
			inst, err := x86asm.Decode(code, 64)
			if err != nil {
				return append(lines, fmt.Sprintf("0x%08x  (bad)", pc))
			}
			text = x86asm.GNUSyntax(inst, pc, nil)
			size = inst.Len
		case elf.EM_AARCH64:
			if len(code) < 4 {
				return lines
			}
			inst, err := arm64asm.Decode(code)
			if err != nil {
				return append(lines, fmt.Sprintf("0x%08x  (bad)", pc))
			}
			text = arm64asm.GNUSyntax(inst)
			size = 4
		}
		lines = append(lines, fmt.Sprintf("0x%08x  %s", pc, text))
		code = code[size:]
		pc += uint64(size)
	}
	return lines
}
