package molttypes

import (
	"testing"

	"github.com/molt-labs/molt-core/wire"
	"github.com/stretchr/testify/require"
)

func TestGpuListRoundTrip(t *testing.T) {
	gpus := []GpuDescriptor{
		{Model: "H100", VramGB: 80, Index: 0},
		{Model: "H100", VramGB: 80, Index: 1},
	}

	w := wire.NewWriter()
	WriteGpuList(w, gpus)

	r := wire.NewReader(w.Bytes())
	got := ReadGpuList(r)
	require.NoError(t, r.Err())
	require.Equal(t, gpus, got)
}

func TestFeatureSetSatisfies(t *testing.T) {
	offered := NewFeatureSet(FeatureNVLink, FeatureSecureBoot)
	required := NewFeatureSet(FeatureNVLink)
	require.True(t, offered.Satisfies(required))

	required = NewFeatureSet(FeatureNVLink, FeatureInfiniBand)
	require.False(t, offered.Satisfies(required))
}

func TestFeatureSetDeterministicEncoding(t *testing.T) {
	a := NewFeatureSet(FeatureMultiInstance, FeatureNVLink, FeatureSecureBoot)
	b := NewFeatureSet(FeatureSecureBoot, FeatureNVLink, FeatureMultiInstance)

	wa := wire.NewWriter()
	a.WriteTo(wa)
	wb := wire.NewWriter()
	b.WriteTo(wb)

	require.Equal(t, wa.Bytes(), wb.Bytes())
}

func TestCanonicalModelIsLowerCased(t *testing.T) {
	g := GpuDescriptor{Model: "H100-SXM"}
	require.Equal(t, "h100-sxm", g.CanonicalModel())
}
