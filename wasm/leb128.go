package wasm

import (
	"encoding/binary"
	"errors"
	"math"
)

// LEB128 helpers in the append/consume style of encoding/binary.

// ErrTruncated is returned when a value runs past the end of its buffer.
var ErrTruncated = errors.New("leb128: truncated value")

// ErrOverflow is returned when a value exceeds its maximum bit width.
var ErrOverflow = errors.New("leb128: overflow")

// AppendUint appends v as unsigned LEB128.
func AppendUint(dst []byte, v uint64) []byte {
	for {
		b := byte(v & 0x7F)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		dst = append(dst, b)
		if v == 0 {
			return dst
		}
	}
}

// AppendInt appends v as signed LEB128.
func AppendInt(dst []byte, v int64) []byte {
	for {
		b := byte(v & 0x7F)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			return append(dst, b)
		}
		dst = append(dst, b|0x80)
	}
}

// AppendF32 appends a little-endian float32.
func AppendF32(dst []byte, v float32) []byte {
	return binary.LittleEndian.AppendUint32(dst, math.Float32bits(v))
}

// AppendF64 appends a little-endian float64.
func AppendF64(dst []byte, v float64) []byte {
	return binary.LittleEndian.AppendUint64(dst, math.Float64bits(v))
}

// Uint consumes an unsigned LEB128 value from b, returning the value and the
// number of bytes read.
func Uint(b []byte) (uint64, int, error) {
	var v uint64
	var shift uint
	for i, c := range b {
		v |= uint64(c&0x7F) << shift
		if c&0x80 == 0 {
			return v, i + 1, nil
		}
		shift += 7
		if shift >= 70 {
			return 0, 0, ErrOverflow
		}
	}
	return 0, 0, ErrTruncated
}

// Uint32 consumes an unsigned LEB128 value that must fit in 32 bits.
func Uint32(b []byte) (uint32, int, error) {
	v, n, err := Uint(b)
	if err != nil {
		return 0, 0, err
	}
	if v > math.MaxUint32 {
		return 0, 0, ErrOverflow
	}
	return uint32(v), n, nil
}

// Int consumes a signed LEB128 value from b.
func Int(b []byte) (int64, int, error) {
	var v int64
	var shift uint
	for i, c := range b {
		v |= int64(c&0x7F) << shift
		shift += 7
		if c&0x80 == 0 {
			if shift < 64 && c&0x40 != 0 {
				v |= -1 << shift
			}
			return v, i + 1, nil
		}
		if shift >= 70 {
			return 0, 0, ErrOverflow
		}
	}
	return 0, 0, ErrTruncated
}
