package emit

import (
	"encoding/binary"
	"errors"
	"testing"
)

func words(b []byte) []uint32 {
	out := make([]uint32, len(b)/4)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(b[4*i:])
	}
	return out
}

func TestNEONEncoding(t *testing.T) {
	tests := []struct {
		name  string
		start int
		fn    func(e Emitter)
		want  []uint32
	}{
		{"ldr_q", 0, func(e Emitter) { e.LoadV128(VWork, Src, 0) }, []uint32{0x3DC00021}},
		{"ldr_q_offset", 0, func(e Emitter) { e.LoadV128(VWork, Src, 32) }, []uint32{0x3DC00821}},
		{"ldr_d", 0, func(e Emitter) { e.LoadV64(VWork, Src, 0) }, []uint32{0xFD400021}},
		{"ldr_s", 0, func(e Emitter) { e.LoadV32(VWork, Src, 0) }, []uint32{0xBD400021}},
		{"str_q", 0, func(e Emitter) { e.StoreV128(VDest, Dst, 0) }, []uint32{0x3D800000}},
		{"ldrh", 0, func(e Emitter) { e.LoadU16(G0, Src, 0) }, []uint32{0x79400024}},
		{"dup_s0", 0, func(e Emitter) { e.DupLane32(VDest, VWork, 0) }, []uint32{0x4E040420}},
		{"dup_s3", 0, func(e Emitter) { e.DupLane32(VDest, VWork, 3) }, []uint32{0x4E1C0420}},
		{"dup_d1", 0, func(e Emitter) { e.DupLane64(VDest, VWork, 1) }, []uint32{0x4E180420}},
		{"dup_gpr", 0, func(e Emitter) { e.DupGPR32(VDest, G0) }, []uint32{0x4E040C80}},
		{"ins_w5", 0, func(e Emitter) { e.InsertLane32(VDest, 1, G1) }, []uint32{0x4E0C1CA0}},
		{"ins_wzr", 0, func(e Emitter) { e.ZeroLane32(VDest, 3) }, []uint32{0x4E1C1FE0}},
		{"sxtl_h", 0, func(e Emitter) { e.Widen8To16(VWork, false) }, []uint32{0x0F08A421}},
		{"sxtl_s", 0, func(e Emitter) { e.Widen16To32(VWork, false) }, []uint32{0x0F10A421}},
		{"uxtl_s", 0, func(e Emitter) { e.Widen16To32(VWork, true) }, []uint32{0x2F10A421}},
		{"and", 0, func(e Emitter) { e.And(VDest, VMaskA) }, []uint32{0x4E3D1C00}},
		{"orr", 0, func(e Emitter) { e.Or(VDest, VPrev) }, []uint32{0x4EA71C00}},
		{"shl_24", 0, func(e Emitter) { e.ShiftLeftV32(VDest, 24) }, []uint32{0x4F385400}},
		{"ushr_24", 0, func(e Emitter) { e.ShiftRightV32(VDest, 24, true) }, []uint32{0x6F280400}},
		{"lsl_3", 0, func(e Emitter) { e.ShiftLeft(G1, G1, 3) }, []uint32{0x531D70A5}},
		{"lsr_8", 0, func(e Emitter) { e.ShiftRight(G0, G0, 8) }, []uint32{0x53087C84}},
		{"ldr_literal", 64, func(e Emitter) { e.LoadV128At(VMaskA, 0) }, []uint32{0x9CFFFE1D}},
		{"ret", 0, func(e Emitter) { e.Ret() }, []uint32{0xD65F03C0}},
		{"ubfx", 0, func(e Emitter) { e.(BitfieldExtractor).ExtractBits(G1, G0, 10, 5) }, []uint32{0x530A3885}},
		{"prfm", 0, func(e Emitter) {
			e.(Prefetcher).Prefetch(Src, 64, false)
			e.(Prefetcher).Prefetch(Dst, 0, true)
		}, []uint32{0xF9802020, 0xF9800010}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := words(encode(t, TargetNEON, tt.start, tt.fn))
			if len(got) != len(tt.want) {
				t.Fatalf("got %d words %08x, want %08x", len(got), got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("word %d: got %08x, want %08x", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestNEONAlign(t *testing.T) {
	got := encode(t, TargetNEON, 0, func(e Emitter) {
		e.Ret()
		e.Align(16)
	})
	if len(got) != 16 {
		t.Fatalf("got %d bytes, want 16", len(got))
	}
	for i, b := range got[4:] {
		if b != 0 {
			t.Errorf("pad byte %d: got %#x, want 0", i, b)
		}
	}
}

func TestNEONOperandErrors(t *testing.T) {
	tests := []struct {
		name string
		fn   func(e Emitter)
	}{
		{"unaligned_q", func(e Emitter) { e.LoadV128(VWork, Src, 8) }},
		{"negative_offset", func(e Emitter) { e.LoadV64(VWork, Src, -8) }},
		{"lane", func(e Emitter) { e.InsertLane32(VDest, 4, G0) }},
		{"dlane", func(e Emitter) { e.DupLane64(VDest, VWork, 2) }},
		{"shift", func(e Emitter) { e.ShiftRightV32(VDest, 0, true) }},
		{"bitfield", func(e Emitter) { e.(BitfieldExtractor).ExtractBits(G0, G0, 30, 5) }},
		{"literal_range", func(e Emitter) { e.LoadV128At(VMaskA, 1<<21) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := NewBuffer(make([]byte, 64), 0)
			e, _ := New(TargetNEON, buf)
			tt.fn(e)
			if !errors.Is(buf.Err(), ErrOperand) {
				t.Fatalf("got %v, want ErrOperand", buf.Err())
			}
			if buf.Pos() != 0 {
				t.Errorf("bytes written on error: %d", buf.Pos())
			}
		})
	}
}

func TestNEONCapabilities(t *testing.T) {
	e, _ := New(TargetNEON, NewBuffer(make([]byte, 16), 0))
	if _, ok := e.(BitfieldExtractor); !ok {
		t.Error("neon should extract bitfields")
	}
	if _, ok := e.(Prefetcher); !ok {
		t.Error("neon should prefetch")
	}
	if _, ok := e.(FusedWidener); ok {
		t.Error("neon should not offer fused widening")
	}
}
