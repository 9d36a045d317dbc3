package molttypes

import (
	"sort"

	"github.com/molt-labs/molt-core/wire"
)

// Feature is one tag from the closed enumeration of capacity features
// spec.md section 3 describes ("features (set of tags from a closed
// enumeration)").
type Feature uint8

const (
	FeatureNVLink Feature = iota + 1
	FeatureInfiniBand
	FeatureSecureBoot
	FeatureSpotEligible
	FeatureDedicatedBandwidth
	FeatureMultiInstance
)

var featureNames = map[Feature]string{
	FeatureNVLink:             "nvlink",
	FeatureInfiniBand:         "infiniband",
	FeatureSecureBoot:         "secure_boot",
	FeatureSpotEligible:       "spot_eligible",
	FeatureDedicatedBandwidth: "dedicated_bandwidth",
	FeatureMultiInstance:      "multi_instance",
}

// String renders the feature's canonical name, or "unknown" for a
// value outside the closed enumeration.
func (f Feature) String() string {
	if name, ok := featureNames[f]; ok {
		return name
	}
	return "unknown"
}

// Valid reports whether f is one of the closed enumeration values.
func (f Feature) Valid() bool {
	_, ok := featureNames[f]
	return ok
}

// FeatureSet is an unordered set of Feature tags.
type FeatureSet map[Feature]struct{}

// NewFeatureSet builds a FeatureSet from a list of tags.
func NewFeatureSet(tags ...Feature) FeatureSet {
	fs := make(FeatureSet, len(tags))
	for _, t := range tags {
		fs[t] = struct{}{}
	}
	return fs
}

// Has reports whether f is a member of fs.
func (fs FeatureSet) Has(f Feature) bool {
	_, ok := fs[f]
	return ok
}

// Satisfies reports whether fs is a superset of required — every
// feature tag a buyer's requirements name must be present on the
// provider's offer.
func (fs FeatureSet) Satisfies(required FeatureSet) bool {
	for f := range required {
		if !fs.Has(f) {
			return false
		}
	}
	return true
}

// sorted returns the set's members in ascending numeric order, for a
// deterministic canonical encoding.
func (fs FeatureSet) sorted() []Feature {
	out := make([]Feature, 0, len(fs))
	for f := range fs {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// WriteTo appends a uint8-count-prefixed, ascending-sorted encoding of
// fs to w, so two peers holding the same logical set always produce
// identical bytes regardless of insertion order.
func (fs FeatureSet) WriteTo(w *wire.Writer) {
	sorted := fs.sorted()
	w.WriteUint8(uint8(len(sorted)))
	for _, f := range sorted {
		w.WriteUint8(uint8(f))
	}
}

// ReadFeatureSet reads a FeatureSet written by WriteTo.
func ReadFeatureSet(r *wire.Reader) FeatureSet {
	n := r.ReadUint8()
	fs := make(FeatureSet, n)
	for i := uint8(0); i < n; i++ {
		fs[Feature(r.ReadUint8())] = struct{}{}
	}
	return fs
}
