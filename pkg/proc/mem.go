package proc

import (
	"encoding/binary"
	"errors"
)

const wordSize = 8

func alignAddr(addr uint64) uint64 {
	return addr &^ (wordSize - 1)
}

// WriteByte replaces the byte at addr with val using a word aligned
// read-modify-write, leaving the neighbouring bytes untouched. It returns
// the byte that was replaced.
func WriteByte(mem WordReadWriter, addr uint64, val byte) (byte, error) {
	aligned := alignAddr(addr)
	shift := (addr - aligned) * 8
	word, err := mem.PeekWord(aligned)
	if err != nil {
		return 0, byteError(addr, err)
	}
	orig := byte(word >> shift)
	word = word&^(0xff<<shift) | uint64(val)<<shift
	if err := mem.PokeWord(aligned, word); err != nil {
		return 0, byteError(addr, err)
	}
	return orig, nil
}

// byteError reports invalid address errors against the byte address
// rather than the aligned word that was accessed.
func byteError(addr uint64, err error) error {
	var iae *InvalidAddressError
	if errors.As(err, &iae) && iae.Addr != addr {
		return &InvalidAddressError{Addr: addr, Err: iae.Err}
	}
	return err
}

// ReadMemory reads size bytes at addr. Trap bytes of installed
// breakpoints are replaced by the original bytes when bps is not nil.
func ReadMemory(mem WordReadWriter, bps *BreakpointTable, addr uint64, size int) ([]byte, error) {
	if size <= 0 {
		return nil, nil
	}
	start := alignAddr(addr)
	end := alignAddr(addr + uint64(size) + wordSize - 1)
	buf := make([]byte, 0, end-start)
	var w [wordSize]byte
	for a := start; a < end; a += wordSize {
		word, err := mem.PeekWord(a)
		if err != nil {
			return nil, err
		}
		binary.LittleEndian.PutUint64(w[:], word)
		buf = append(buf, w[:]...)
	}
	data := buf[addr-start : addr-start+uint64(size)]
	if bps != nil {
		for i := range data {
			if orig, ok := bps.Lookup(addr + uint64(i)); ok {
				data[i] = orig
			}
		}
	}
	return data, nil
}
