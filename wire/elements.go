package wire

import (
	"bytes"
	"encoding/binary"
	"io"
)

// Writer accumulates a canonical, domain-tagged payload encoding.
// Every field is written in a fixed order with fixed-width integers
// and length-prefixed byte strings, so two independent
// implementations of the same logical record produce byte-identical
// bytes (spec.md section 6's "Payload encodings are a deterministic,
// domain-tagged concatenation" requirement). Grounded on
// elkrem/serdes.go's binary.Write-per-field style.
type Writer struct {
	buf bytes.Buffer
}

// NewWriter returns an empty element Writer.
func NewWriter() *Writer { return &Writer{} }

// Bytes returns the accumulated encoding.
func (w *Writer) Bytes() []byte { return w.buf.Bytes() }

// WriteUint8 appends a single byte.
func (w *Writer) WriteUint8(v uint8) { w.buf.WriteByte(v) }

// WriteUint32 appends a big-endian uint32.
func (w *Writer) WriteUint32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

// WriteUint64 appends a big-endian uint64.
func (w *Writer) WriteUint64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	w.buf.Write(b[:])
}

// WriteInt64 appends a big-endian int64, used for Unix timestamps.
func (w *Writer) WriteInt64(v int64) {
	w.WriteUint64(uint64(v))
}

// WriteFixed appends raw bytes with no length prefix, for fields whose
// length is implied by the schema (e.g. a 32-byte challenge).
func (w *Writer) WriteFixed(b []byte) { w.buf.Write(b) }

// WriteBytes appends a uint32-length-prefixed byte string.
func (w *Writer) WriteBytes(b []byte) {
	w.WriteUint32(uint32(len(b)))
	w.buf.Write(b)
}

// WriteString appends a uint32-length-prefixed UTF-8 string.
func (w *Writer) WriteString(s string) {
	w.WriteBytes([]byte(s))
}

// Reader consumes a canonical element encoding in the same order it
// was written.
type Reader struct {
	r   *bytes.Reader
	err error
}

// NewReader wraps b for element-by-element decoding.
func NewReader(b []byte) *Reader {
	return &Reader{r: bytes.NewReader(b)}
}

// Err returns the first error encountered by any Read call, or nil.
func (r *Reader) Err() error { return r.err }

// Fail marks the reader as having encountered a malformed-input
// condition a caller outside this package detected (e.g. a
// count-prefixed list whose declared length exceeds a schema-specific
// cap). Subsequent Read calls become no-ops once set.
func (r *Reader) Fail() {
	r.fail(ErrMalformed)
}

func (r *Reader) fail(err error) {
	if r.err == nil {
		r.err = ErrMalformed
		_ = err
	}
}

// ReadUint8 reads a single byte.
func (r *Reader) ReadUint8() uint8 {
	if r.err != nil {
		return 0
	}
	b, err := r.r.ReadByte()
	if err != nil {
		r.fail(err)
		return 0
	}
	return b
}

// ReadUint32 reads a big-endian uint32.
func (r *Reader) ReadUint32() uint32 {
	if r.err != nil {
		return 0
	}
	var b [4]byte
	if _, err := io.ReadFull(r.r, b[:]); err != nil {
		r.fail(err)
		return 0
	}
	return binary.BigEndian.Uint32(b[:])
}

// ReadUint64 reads a big-endian uint64.
func (r *Reader) ReadUint64() uint64 {
	if r.err != nil {
		return 0
	}
	var b [8]byte
	if _, err := io.ReadFull(r.r, b[:]); err != nil {
		r.fail(err)
		return 0
	}
	return binary.BigEndian.Uint64(b[:])
}

// ReadInt64 reads a big-endian int64, the inverse of WriteInt64.
func (r *Reader) ReadInt64() int64 {
	return int64(r.ReadUint64())
}

// ReadFixed reads exactly n raw bytes.
func (r *Reader) ReadFixed(n int) []byte {
	if r.err != nil {
		return nil
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r.r, b); err != nil {
		r.fail(err)
		return nil
	}
	return b
}

// ReadBytes reads a uint32-length-prefixed byte string, capped at
// maxLen to avoid a corrupt length field driving an unbounded
// allocation.
func (r *Reader) ReadBytes(maxLen uint32) []byte {
	if r.err != nil {
		return nil
	}
	n := r.ReadUint32()
	if r.err != nil {
		return nil
	}
	if n > maxLen {
		r.fail(ErrTooLarge)
		return nil
	}
	return r.ReadFixed(int(n))
}

// ReadString reads a uint32-length-prefixed UTF-8 string.
func (r *Reader) ReadString(maxLen uint32) string {
	return string(r.ReadBytes(maxLen))
}
