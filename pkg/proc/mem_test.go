package proc_test

import (
	"bytes"
	"testing"

	"github.com/go-delve/deet/pkg/proc"
)

func TestWriteByteUnaligned(t *testing.T) {
	p := newFakeProcess()
	p.Map(textBase, []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15})
	for _, off := range []uint64{0, 3, 7, 8, 15} {
		orig, err := proc.WriteByte(p, textBase+off, 0xAA)
		assertNoError(err, t, "WriteByte")
		if orig != byte(off) {
			t.Errorf("offset %d: expected original %#x, got %#x", off, off, orig)
		}
		if p.Mem[textBase+off] != 0xAA {
			t.Errorf("offset %d: byte not written", off)
		}
		proc.WriteByte(p, textBase+off, orig)
	}
	for i := uint64(0); i < 16; i++ {
		if p.Mem[textBase+i] != byte(i) {
			t.Fatalf("byte %d corrupted: %#x", i, p.Mem[textBase+i])
		}
	}
}

func TestWriteByteInvalidAddress(t *testing.T) {
	p := newFakeProcess()
	_, err := proc.WriteByte(p, 0xdeadbeef, proc.TrapByte)
	if !proc.IsInvalidAddress(err) {
		t.Fatalf("expected InvalidAddressError, got %v", err)
	}
}

func TestReadMemoryMasksBreakpoints(t *testing.T) {
	p := newFakeProcess()
	p.Map(textBase, []byte{0x55, 0x48, 0x89, 0xe5, 0xc3, 0x90, 0x90, 0x90})
	bps := proc.NewBreakpointTable()
	bps.Add(textBase + 1)
	assertNoError(bps.InstallAll(p), t, "InstallAll")

	raw, err := proc.ReadMemory(p, nil, textBase+1, 3)
	assertNoError(err, t, "ReadMemory")
	if !bytes.Equal(raw, []byte{proc.TrapByte, 0x89, 0xe5}) {
		t.Fatalf("unexpected raw memory % x", raw)
	}
	masked, err := proc.ReadMemory(p, bps, textBase+1, 3)
	assertNoError(err, t, "ReadMemory")
	if !bytes.Equal(masked, []byte{0x48, 0x89, 0xe5}) {
		t.Fatalf("unexpected masked memory % x", masked)
	}
}
