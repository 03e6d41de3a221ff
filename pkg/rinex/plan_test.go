package rinex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whigg/gnssproc/pkg/gnss"
)

func mustObsCode(t *testing.T, s string) gnss.ObsCode {
	t.Helper()
	c, err := gnss.ParseObsCode(s)
	require.NoError(t, err)
	return c
}

func testHeaderGPSOnly(t *testing.T) ObsHeader {
	return ObsHeader{
		ObsTypes: map[gnss.System][]gnss.ObsCode{
			gnss.SysGPS: {mustObsCode(t, "C1C"), mustObsCode(t, "L1C")},
		},
	}
}

func TestResolvePlan_SkipMissingTrue_DropsUnresolvable(t *testing.T) {
	hdr := testHeaderGPSOnly(t)

	resolvable := gnss.GnssObservable{Label: "c1c", Terms: []gnss.Term{
		{Sys: gnss.SysGPS, Code: mustObsCode(t, "C1C"), Coeff: 1},
	}}
	unresolvable := gnss.GnssObservable{Label: "c2w", Terms: []gnss.Term{
		{Sys: gnss.SysGPS, Code: mustObsCode(t, "C2W"), Coeff: 1},
	}}
	userMap := map[gnss.System][]gnss.GnssObservable{
		gnss.SysGPS: {resolvable, unresolvable},
	}

	plans, err := ResolvePlan(hdr, userMap, true)
	require.NoError(t, err)

	require.Len(t, plans[gnss.SysGPS], 1)
	assert.Equal(t, "c1c", plans[gnss.SysGPS][0].Label)

	// userMap is mutated in place to stay positionally aligned with plans.
	require.Len(t, userMap[gnss.SysGPS], 1)
	assert.Equal(t, "c1c", userMap[gnss.SysGPS][0].Label)
}

// TestResolvePlan_SkipMissingFalse_AbortsToEmptyMap exercises spec.md §8
// scenario 4's literal behavior ("with skip_missing=false it returns a
// completely empty plan map and logs UnknownObservable"), matching
// original_source's set_read_map which returns ResultType{} on the first
// unresolvable recipe rather than a Go/C++ exception.
func TestResolvePlan_SkipMissingFalse_AbortsToEmptyMap(t *testing.T) {
	hdr := testHeaderGPSOnly(t)

	resolvable := gnss.GnssObservable{Label: "c1c", Terms: []gnss.Term{
		{Sys: gnss.SysGPS, Code: mustObsCode(t, "C1C"), Coeff: 1},
	}}
	unresolvable := gnss.GnssObservable{Label: "c2w", Terms: []gnss.Term{
		{Sys: gnss.SysGPS, Code: mustObsCode(t, "C2W"), Coeff: 1},
	}}
	userMap := map[gnss.System][]gnss.GnssObservable{
		gnss.SysGPS: {resolvable, unresolvable},
	}

	plans, err := ResolvePlan(hdr, userMap, false)
	require.NoError(t, err)
	assert.Empty(t, plans)
}

func TestResolvePlan_SkipMissingFalse_UnknownConstellationAborts(t *testing.T) {
	hdr := testHeaderGPSOnly(t) // no Galileo in header

	recipe := gnss.GnssObservable{Label: "e1c", Terms: []gnss.Term{
		{Sys: gnss.SysGAL, Code: mustObsCode(t, "C1C"), Coeff: 1},
	}}
	userMap := map[gnss.System][]gnss.GnssObservable{gnss.SysGAL: {recipe}}

	plans, err := ResolvePlan(hdr, userMap, false)
	require.NoError(t, err)
	assert.Empty(t, plans)
}

func TestResolvePlan_SkipMissingFalse_MixedConstellationAborts(t *testing.T) {
	hdr := testHeaderGPSOnly(t)

	mixed := gnss.GnssObservable{Label: "bad", Terms: []gnss.Term{
		{Sys: gnss.SysGPS, Code: mustObsCode(t, "C1C"), Coeff: 1},
		{Sys: gnss.SysGLO, Code: mustObsCode(t, "C1C"), Coeff: -1},
	}}
	userMap := map[gnss.System][]gnss.GnssObservable{gnss.SysGPS: {mixed}}

	plans, err := ResolvePlan(hdr, userMap, false)
	require.NoError(t, err)
	assert.Empty(t, plans)
}

func TestPlanErrorKind_Discrimination(t *testing.T) {
	cases := []struct {
		kind PlanErrorKind
		want string
	}{
		{MixedConstellation, "MixedConstellation"},
		{UnknownConstellation, "UnknownConstellation"},
		{UnknownObservable, "UnknownObservable"},
		{PlanErrorKind(99), "unknown"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, c.kind.String())
	}

	base := assert.AnError
	err := &PlanError{Kind: UnknownObservable, Label: "c2w", Err: base}
	assert.Contains(t, err.Error(), "c2w")
	assert.Contains(t, err.Error(), "UnknownObservable")
	assert.ErrorIs(t, err, base)
}

func TestIndexOfCode(t *testing.T) {
	codes := []gnss.ObsCode{mustObsCode(t, "C1C"), mustObsCode(t, "L1C")}
	assert.Equal(t, 0, indexOfCode(codes, mustObsCode(t, "C1C")))
	assert.Equal(t, 1, indexOfCode(codes, mustObsCode(t, "L1C")))
	assert.Equal(t, -1, indexOfCode(codes, mustObsCode(t, "D1C")))
}
