package bytecode

import (
	"encoding/binary"
	"math"

	lunarerrors "lunar/internal/errors"
)

// Reader is a positional cursor over an immutable byte buffer. Every read
// either succeeds and advances the cursor, or fails; on failure the cursor
// position is left undefined and the caller must abort the load rather
// than attempt to recover and keep reading.
type Reader struct {
	buf []byte
	pos int
}

// NewReader wraps buf for sequential decoding. buf is not copied; the
// caller must not mutate it while the Reader is in use.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Pos returns the current byte offset, for diagnostics.
func (r *Reader) Pos() int { return r.pos }

// Len returns the total buffer length, for diagnostics.
func (r *Reader) Len() int { return len(r.buf) }

func (r *Reader) overread(need int) error {
	return lunarerrors.NewLoadError(
		"truncated bytecode stream: need %d byte(s) at offset %d, have %d remaining",
		need, r.pos, len(r.buf)-r.pos)
}

// U8 reads one byte.
func (r *Reader) U8() (uint8, error) {
	if r.pos+1 > len(r.buf) {
		return 0, r.overread(1)
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

// U32LE reads a little-endian uint32.
func (r *Reader) U32LE() (uint32, error) {
	if r.pos+4 > len(r.buf) {
		return 0, r.overread(4)
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos : r.pos+4])
	r.pos += 4
	return v, nil
}

// F32 reads a little-endian IEEE-754 single-precision float.
func (r *Reader) F32() (float32, error) {
	bits, err := r.U32LE()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(bits), nil
}

// F64 reads a little-endian IEEE-754 double-precision float.
func (r *Reader) F64() (float64, error) {
	if r.pos+8 > len(r.buf) {
		return 0, r.overread(8)
	}
	bits := binary.LittleEndian.Uint64(r.buf[r.pos : r.pos+8])
	r.pos += 8
	return math.Float64frombits(bits), nil
}

// Varint reads a LEB128-encoded unsigned integer: up to 5 bytes, 7 data
// bits each, MSB as the continuation flag.
func (r *Reader) Varint() (uint32, error) {
	var result uint32
	for i := 0; i < 5; i++ {
		b, err := r.U8()
		if err != nil {
			return 0, err
		}
		result |= uint32(b&0x7F) << (7 * i)
		if b&0x80 == 0 {
			return result, nil
		}
	}
	return 0, lunarerrors.NewLoadError("varint exceeds 5 bytes at offset %d", r.pos)
}

// String reads exactly n raw bytes and returns them as a Go string.
func (r *Reader) String(n int) (string, error) {
	if n == 0 {
		return "", nil
	}
	if r.pos+n > len(r.buf) {
		return "", r.overread(n)
	}
	s := string(r.buf[r.pos : r.pos+n])
	r.pos += n
	return s, nil
}

// LengthPrefixedString reads a varint length followed by that many bytes.
func (r *Reader) LengthPrefixedString() (string, error) {
	n, err := r.Varint()
	if err != nil {
		return "", err
	}
	return r.String(int(n))
}

// Skip advances the cursor by n bytes without interpreting them.
func (r *Reader) Skip(n int) error {
	if r.pos+n > len(r.buf) {
		return r.overread(n)
	}
	r.pos += n
	return nil
}

// Word reads a raw 32-bit code slot (instruction or AUX word).
func (r *Reader) Word() (Word, error) {
	v, err := r.U32LE()
	return Word(v), err
}
