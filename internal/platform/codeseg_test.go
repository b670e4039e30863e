package platform

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMmapCodeSegment(t *testing.T) {
	b, err := MmapCodeSegment(4096)
	require.NoError(t, err)
	require.Equal(t, 4096, len(b))

	b[0], b[4095] = 0x13, 0x73
	require.NoError(t, MunmapCodeSegment(b))
}

func TestRemapCodeSegment(t *testing.T) {
	b, err := MmapCodeSegment(4096)
	require.NoError(t, err)
	for i := range b {
		b[i] = byte(i)
	}

	grown, err := RemapCodeSegment(b, 8192)
	require.NoError(t, err)
	require.Equal(t, 8192, len(grown))
	for i := 0; i < 4096; i++ {
		require.Equal(t, byte(i), grown[i])
	}
	require.NoError(t, MunmapCodeSegment(grown))
}

func TestRemapCodeSegment_nil(t *testing.T) {
	b, err := RemapCodeSegment(nil, 65536)
	require.NoError(t, err)
	require.Equal(t, 65536, len(b))
	require.NoError(t, MunmapCodeSegment(b))
}

func TestMunmapCodeSegment_panicsOnEmpty(t *testing.T) {
	require.Panics(t, func() { _ = MunmapCodeSegment(nil) })
}
