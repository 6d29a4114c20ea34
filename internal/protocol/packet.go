package protocol

import (
	"fmt"
	"io"
)

// Transformer is a stateful stream cipher step.
// *crypto.LoginCrypt implements it.
type Transformer interface {
	Transform(dst, src []byte) int
}

// WritePacket encrypts payload into buf and writes buf[:len(payload)] to w.
// payload and buf may be the same slice.
func WritePacket(w io.Writer, enc Transformer, buf, payload []byte) error {
	if len(buf) < len(payload) {
		return fmt.Errorf("write packet: buffer too small (need %d, have %d): %w", len(payload), len(buf), ErrBufferOverflow)
	}
	n := enc.Transform(buf, payload)
	if _, err := w.Write(buf[:n]); err != nil {
		return fmt.Errorf("writing packet: %w", err)
	}
	return nil
}

// ReadPacket reads exactly len(buf) bytes from r and decrypts them in place.
func ReadPacket(r io.Reader, dec Transformer, buf []byte) ([]byte, error) {
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("reading packet payload: %w", err)
	}
	dec.Transform(buf, buf)
	return buf, nil
}

// EncryptingWriter transforms everything written to it before passing it on.
// Like the cipher it wraps, it has a single owner.
type EncryptingWriter struct {
	w   io.Writer
	enc Transformer
	buf []byte
}

// NewEncryptingWriter wraps w.
func NewEncryptingWriter(w io.Writer, enc Transformer) *EncryptingWriter {
	return &EncryptingWriter{w: w, enc: enc}
}

// Write encrypts p into an internal buffer and writes it. p is not modified.
// A short write leaves the cipher ahead of the peer; the stream is then unusable.
func (ew *EncryptingWriter) Write(p []byte) (int, error) {
	if cap(ew.buf) < len(p) {
		ew.buf = make([]byte, len(p))
	}
	buf := ew.buf[:len(p)]
	ew.enc.Transform(buf, p)
	n, err := ew.w.Write(buf)
	if err != nil {
		return n, fmt.Errorf("writing encrypted bytes: %w", err)
	}
	return n, nil
}

// DecryptingReader decrypts everything read through it.
type DecryptingReader struct {
	r   io.Reader
	dec Transformer
}

// NewDecryptingReader wraps r.
func NewDecryptingReader(r io.Reader, dec Transformer) *DecryptingReader {
	return &DecryptingReader{r: r, dec: dec}
}

// Read reads from the underlying reader and decrypts the bytes in place.
func (dr *DecryptingReader) Read(p []byte) (int, error) {
	n, err := dr.r.Read(p)
	if n > 0 {
		dr.dec.Transform(p[:n], p[:n])
	}
	return n, err
}
