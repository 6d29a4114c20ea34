package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrBufferOverflow is returned when a write does not fit the target buffer.
var ErrBufferOverflow = errors.New("buffer overflow")

// PacketWriter writes big-endian fields into a caller-owned slice.
type PacketWriter struct {
	buf []byte
	pos int
}

// NewPacketWriter returns a writer positioned at the start of buf.
func NewPacketWriter(buf []byte) *PacketWriter {
	return &PacketWriter{buf: buf}
}

// Position returns the number of bytes written.
func (w *PacketWriter) Position() int {
	return w.pos
}

// Bytes returns the written part of the buffer.
func (w *PacketWriter) Bytes() []byte {
	return w.buf[:w.pos]
}

func (w *PacketWriter) reserve(n int) ([]byte, error) {
	if w.pos+n > len(w.buf) {
		return nil, fmt.Errorf("writing %d bytes at %d into %d: %w", n, w.pos, len(w.buf), ErrBufferOverflow)
	}
	b := w.buf[w.pos : w.pos+n]
	w.pos += n
	return b, nil
}

// WriteByte writes a single byte.
func (w *PacketWriter) WriteByte(v byte) error {
	b, err := w.reserve(1)
	if err != nil {
		return err
	}
	b[0] = v
	return nil
}

// WriteUint16 writes v big-endian.
func (w *PacketWriter) WriteUint16(v uint16) error {
	b, err := w.reserve(2)
	if err != nil {
		return err
	}
	binary.BigEndian.PutUint16(b, v)
	return nil
}

// WriteUint32 writes v big-endian.
func (w *PacketWriter) WriteUint32(v uint32) error {
	b, err := w.reserve(4)
	if err != nil {
		return err
	}
	binary.BigEndian.PutUint32(b, v)
	return nil
}

// WriteInt32 writes v big-endian.
func (w *PacketWriter) WriteInt32(v int32) error {
	return w.WriteUint32(uint32(v))
}

// Write copies p.
func (w *PacketWriter) Write(p []byte) (int, error) {
	b, err := w.reserve(len(p))
	if err != nil {
		return 0, err
	}
	return copy(b, p), nil
}

// WriteFixedString writes s as ASCII into an n-byte field, zero padded.
// Strings longer than n are rejected.
func (w *PacketWriter) WriteFixedString(s string, n int) error {
	if len(s) > n {
		return fmt.Errorf("string of %d bytes exceeds field size %d: %w", len(s), n, ErrBufferOverflow)
	}
	b, err := w.reserve(n)
	if err != nil {
		return err
	}
	clear(b[copy(b, s):])
	return nil
}
