package block

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

func TestNullBlock(t *testing.T) {
	require.True(t, Null.IsNull())
	require.True(t, Block{}.IsNull())
	require.False(t, Block{Ptr: unsafe.Pointer(&struct{}{}), Size: 0}.IsNull())
}

func TestLayoutValid(t *testing.T) {
	require.True(t, New(16, 8).Valid())
	require.True(t, New(16, 0).Valid()) // defaults to align 1
	require.False(t, Layout{Size: 16, Align: 3}.Valid())
}

func TestAlignUp(t *testing.T) {
	require.EqualValues(t, 16, AlignUp(9, 16))
	require.EqualValues(t, 0, AlignUp(0, 16))
	require.EqualValues(t, 32, AlignUp(17, 16))
}

func TestBlockContains(t *testing.T) {
	buf := make([]byte, 64)
	b := Block{Ptr: unsafe.Pointer(&buf[0]), Size: 64}
	require.True(t, b.Contains(unsafe.Pointer(&buf[0]), 16))
	require.True(t, b.Contains(unsafe.Add(unsafe.Pointer(&buf[0]), 48), 16))
	require.False(t, b.Contains(unsafe.Add(unsafe.Pointer(&buf[0]), 48), 17))
	require.False(t, Block{}.Contains(unsafe.Pointer(&buf[0]), 1))
}
