// Package molttypes holds small value types shared by more than one
// component of the data model in spec.md section 3 — a capacity
// announcement's GPU list and a hardware attestation's GPU list are
// the same shape, so the type lives here rather than being duplicated
// or forcing orderbook and attestation to import each other.
package molttypes

import (
	"strings"

	"github.com/molt-labs/molt-core/wire"
)

// GpuDescriptor names one GPU a provider offers or attests to.
type GpuDescriptor struct {
	Model  string
	VramGB uint32
	Index  uint32
}

// CanonicalModel returns the lower-cased model string used for
// case-insensitive substring matching (spec.md section 4.4).
func (g GpuDescriptor) CanonicalModel() string {
	return strings.ToLower(g.Model)
}

const maxModelLen = 256

// WriteTo appends the canonical encoding of g to w.
func (g GpuDescriptor) WriteTo(w *wire.Writer) {
	w.WriteString(g.Model)
	w.WriteUint32(g.VramGB)
	w.WriteUint32(g.Index)
}

// ReadGpuDescriptor reads one descriptor from r.
func ReadGpuDescriptor(r *wire.Reader) GpuDescriptor {
	return GpuDescriptor{
		Model:  r.ReadString(maxModelLen),
		VramGB: r.ReadUint32(),
		Index:  r.ReadUint32(),
	}
}

// WriteGpuList appends a uint32-count-prefixed, ordered sequence of
// descriptors to w.
func WriteGpuList(w *wire.Writer, gpus []GpuDescriptor) {
	w.WriteUint32(uint32(len(gpus)))
	for _, g := range gpus {
		g.WriteTo(w)
	}
}

const maxGpuCount = 4096

// ReadGpuList reads a uint32-count-prefixed sequence of descriptors.
func ReadGpuList(r *wire.Reader) []GpuDescriptor {
	n := r.ReadUint32()
	if r.Err() != nil {
		return nil
	}
	if n > maxGpuCount {
		r.Fail()
		return nil
	}
	out := make([]GpuDescriptor, n)
	for i := range out {
		out[i] = ReadGpuDescriptor(r)
	}
	return out
}
