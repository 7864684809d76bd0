package model

import (
	"database/sql/driver"
	"encoding/binary"
	"fmt"
	"math"
)

// Vector is an embedding stored as little-endian float32 bytes.
type Vector []float32

func (v Vector) Value() (driver.Value, error) {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf, nil
}

func (v *Vector) Scan(src any) error {
	var b []byte
	switch s := src.(type) {
	case nil:
		*v = nil
		return nil
	case []byte:
		b = s
	case string:
		b = []byte(s)
	default:
		return fmt.Errorf("scan vector: unsupported type %T", src)
	}
	if len(b)%4 != 0 {
		return fmt.Errorf("scan vector: byte length %d is not a multiple of 4", len(b))
	}
	out := make(Vector, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	*v = out
	return nil
}
