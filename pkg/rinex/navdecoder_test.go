package rinex

import (
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whigg/gnssproc/pkg/gnss"
)

var testNavHeader = []string{
	"     3.04           N                   M                   RINEX VERSION / TYPE",
	"testpgm             testrun             20210101 000000 UTC PGM / RUN BY / DATE",
	"                                                            END OF HEADER",
}

func newTestNavDecoder(t *testing.T) *NavDecoder {
	t.Helper()
	lines := append(append([]string{}, testNavHeader...), gpsFrameLines...)
	lines = append(lines, glonassFrameLines...)
	dec, err := NewNavDecoder(strings.NewReader(strings.Join(lines, "\n") + "\n"))
	require.NoError(t, err)
	return dec
}

func TestNavDecoder_Header(t *testing.T) {
	dec := newTestNavDecoder(t)
	assert.Equal(t, float32(3.04), dec.Header.RINEXVersion)
	assert.Equal(t, "N", dec.Header.RINEXType)
	assert.Equal(t, gnss.SysMIXED, dec.Header.SatSystem)
}

func TestNavDecoder_ReadNext(t *testing.T) {
	dec := newTestNavDecoder(t)

	f1, err := dec.ReadNext()
	require.NoError(t, err)
	kf, ok := f1.(*KeplerianFrame)
	require.True(t, ok)
	assert.Equal(t, "G12", kf.Prn.String())

	f2, err := dec.ReadNext()
	require.NoError(t, err)
	gf, ok := f2.(*GlonassFrame)
	require.True(t, ok)
	assert.Equal(t, "R07", gf.Prn.String())

	_, err = dec.ReadNext()
	assert.Equal(t, io.EOF, err)
}

func TestNavDecoder_PeekSatsysAndSkipNext(t *testing.T) {
	dec := newTestNavDecoder(t)

	sys, ok := dec.PeekSatsys()
	require.True(t, ok)
	assert.Equal(t, gnss.SysGPS, sys)

	// peeking must not consume
	require.NoError(t, dec.SkipNext())

	sys, ok = dec.PeekSatsys()
	require.True(t, ok)
	assert.Equal(t, gnss.SysGLO, sys)

	f, err := dec.ReadNext()
	require.NoError(t, err)
	assert.Equal(t, gnss.SysGLO, f.System())

	_, ok = dec.PeekSatsys()
	assert.False(t, ok)
}

func TestNavDecoder_RewindAndOffset(t *testing.T) {
	dec := newTestNavDecoder(t)

	start := dec.Offset()
	f1, err := dec.ReadNext()
	require.NoError(t, err)

	dec.RewindTo(start)
	f1Again, err := dec.ReadNext()
	require.NoError(t, err)
	assert.Equal(t, f1.PRN(), f1Again.PRN())

	dec.Rewind()
	f1Yet, err := dec.ReadNext()
	require.NoError(t, err)
	assert.Equal(t, f1.PRN(), f1Yet.PRN())
}

func TestNavDecoder_FindNext(t *testing.T) {
	dec := newTestNavDecoder(t)

	prn, err := gnss.NewPRN("R07")
	require.NoError(t, err)

	f, _, err := dec.FindNext(gnss.SysGLO, prn)
	require.NoError(t, err)
	assert.Equal(t, "R07", f.PRN().String())

	gpsPrn, err := gnss.NewPRN("G99")
	require.NoError(t, err)
	_, _, err = dec.FindNext(gnss.SysGPS, gpsPrn)
	assert.Equal(t, io.EOF, err)
}

func TestNavDecoder_FindNextValid(t *testing.T) {
	dec := newTestNavDecoder(t)

	prn, err := gnss.NewPRN("G12")
	require.NoError(t, err)

	toc := time.Date(2020, 6, 17, 2, 0, 0, 0, time.UTC)
	f, err := dec.FindNextValid(toc.Add(15*time.Minute), gnss.SysGPS, prn)
	require.NoError(t, err)
	assert.Equal(t, "G12", f.PRN().String())

	// out of the frame's fit interval: no match, cursor restored
	start := dec.Offset()
	_, err = dec.FindNextValid(toc.Add(10*time.Hour), gnss.SysGPS, prn)
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, start, dec.Offset())
}
