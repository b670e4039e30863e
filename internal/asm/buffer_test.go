package asm_test

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tetratelabs/baseline32/internal/asm"
)

func TestCodeSegmentZeroValue(t *testing.T) {
	withCodeSegment(t, func(code *asm.CodeSegment) {
		require.Equal(t, uintptr(0), code.Addr())
		require.Equal(t, uintptr(0), code.Size())
		require.Equal(t, 0, code.Len())
		require.Equal(t, 0, len(code.Bytes()))

		buf := code.Next()
		require.Equal(t, 0, buf.Cap())
		require.Equal(t, 0, buf.Len())
		require.Equal(t, 0, len(buf.Bytes()))
	})
}

func TestCodeSegmentMapUnmap(t *testing.T) {
	withCodeSegment(t, func(code *asm.CodeSegment) {
		const size = 4096
		require.NoError(t, code.Map(size))
		require.NotEqual(t, uintptr(0), code.Addr())
		require.Equal(t, uintptr(size), code.Size())
		require.Equal(t, size, code.Len())
		require.Error(t, code.Map(size))

		for i := 0; i < 3; i++ {
			require.NoError(t, code.Unmap())
			require.Equal(t, uintptr(0), code.Addr())
			require.Equal(t, uintptr(0), code.Size())
			require.Equal(t, 0, code.Len())
		}
	})
}

func TestCodeSegmentNextAligns(t *testing.T) {
	withCodeSegment(t, func(code *asm.CodeSegment) {
		first := code.Next()
		require.Equal(t, 0, first.Offset())
		first.WriteUint32(0x00000013)

		second := code.Next()
		require.Equal(t, 16, second.Offset())
		require.Equal(t, []byte{0x13, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}, code.Bytes()[:16])
	})
}

func TestBufferWrite(t *testing.T) {
	withBuffer(t, func(buf asm.Buffer) {
		data := []byte("Hello World!")
		n, err := buf.Write(data)
		require.NoError(t, err)
		require.Equal(t, len(data), n)
		require.NotEqual(t, 0, buf.Cap())
		require.Equal(t, 12, buf.Len())
		require.Equal(t, data, buf.Bytes())
	})
}

func TestBufferWriteUint32(t *testing.T) {
	withBuffer(t, func(buf asm.Buffer) {
		values := []uint32{0xff010113, 0x00c58533, 0x0080006f, 3}
		expected := make([]byte, 0, 4*len(values))
		for i, v := range values {
			buf.WriteUint32(v)
			expected = binary.LittleEndian.AppendUint32(expected, v)
			require.Equal(t, 4*(i+1), buf.Len())
			require.Equal(t, expected, buf.Bytes())
		}
	})
}

func TestBufferReset(t *testing.T) {
	withBuffer(t, func(buf asm.Buffer) {
		_, _ = buf.Write([]byte("Hello World!"))
		require.Equal(t, 12, buf.Len())

		buf.Reset()
		require.Equal(t, 0, buf.Len())
		require.Equal(t, 0, len(buf.Bytes()))
	})
}

func TestBufferTruncate(t *testing.T) {
	withBuffer(t, func(buf asm.Buffer) {
		_, _ = buf.Write([]byte("Hello World!"))
		require.Equal(t, 12, buf.Len())

		buf.Truncate(5)
		require.Equal(t, 5, buf.Len())
		require.Equal(t, []byte("Hello"), buf.Bytes())
	})
}

func TestBufferGrow(t *testing.T) {
	withBuffer(t, func(buf asm.Buffer) {
		for i := 0; i < 40000; i++ {
			buf.WriteUint32(uint32(i))
		}
		require.Equal(t, 160000, buf.Len())
		require.Equal(t, uint32(39999), binary.LittleEndian.Uint32(buf.Bytes()[159996:]))
	})
}

func withCodeSegment(t *testing.T, f func(*asm.CodeSegment)) {
	code := asm.NewCodeSegment(nil)
	defer func() { require.NoError(t, code.Unmap()) }()
	f(code)
}

func withBuffer(t *testing.T, f func(asm.Buffer)) {
	withCodeSegment(t, func(code *asm.CodeSegment) {
		// Repeat the test multiple times to ensure that Next works as expected.
		for i := 0; i < 10; i++ {
			f(code.Next())
		}
	})
}
